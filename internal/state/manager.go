package state

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"chatflow/pkg/interfaces"
	"chatflow/pkg/types"
)

// PasswordVerifier checks a plaintext password against a stored hash.
// Hashing is owned by the auth layer; the manager only stores hashes and
// delegates comparison through this hook.
type PasswordVerifier func(hash, password string) bool

// Config holds tunables for the state manager.
type Config struct {
	// PresenceWindow is how recently a user must have been seen to count
	// as globally online. Recomputed on every query, never cached.
	PresenceWindow time.Duration

	// RecentWindow caps the legacy anonymous read path and DM reads.
	RecentWindow int

	// VerifyPassword compares a room password against its stored hash.
	VerifyPassword PasswordVerifier
}

// DefaultConfig returns the manager defaults used in production.
func DefaultConfig() *Config {
	return &Config{
		PresenceWindow: 30 * time.Second,
		RecentWindow:   50,
	}
}

// Manager owns all mutable chat state: registered users and rooms, per-room
// aggregates, DM logs and per-user read checkpoints. It is constructed once
// and injected into request handlers; there are no package-level globals.
//
// Locking: mu guards the top-level indexes (rooms, registry, users, dms,
// checkpoints). Each roomState carries its own mutex guarding the room's
// aggregate. A room lock is never taken while holding another room's lock,
// and mu is never acquired while a room lock is held; cross-room queries
// snapshot room pointers under mu and then visit rooms one at a time.
type Manager struct {
	mu          sync.RWMutex
	rooms       map[string]*roomState       // every room touched by join/create
	registry    map[string]*types.Room      // rooms created explicitly
	users       map[string]*types.User      // registered accounts
	dms         map[string]*dmLog           // canonical pair key -> log
	checkpoints map[string]map[string]int64 // user -> room -> last-read stamp

	cfg  *Config
	sink interfaces.Sink

	now func() time.Time // overridable in tests
}

// roomState is one room's mutable aggregate. All fields are guarded by mu
// so that read-modify-write sequences (toggle a reaction, ban-and-evict,
// pin-if-absent) are atomic with respect to other callers in the same room.
type roomState struct {
	mu        sync.Mutex
	messages  []*types.Message
	online    map[string]struct{}
	typing    map[string]struct{}
	banned    map[string]struct{}
	pins      []string // ordered message ids, no duplicates
	modlog    []*types.ModLogEntry
	lastStamp int64
}

type dmLog struct {
	messages  []*types.Message
	lastStamp int64
}

// NewManager creates a state manager. sink may be nil to disable the
// write-behind path entirely.
func NewManager(cfg *Config, sink interfaces.Sink) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.PresenceWindow <= 0 {
		cfg.PresenceWindow = 30 * time.Second
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 50
	}
	return &Manager{
		rooms:       make(map[string]*roomState),
		registry:    make(map[string]*types.Room),
		users:       make(map[string]*types.User),
		dms:         make(map[string]*dmLog),
		checkpoints: make(map[string]map[string]int64),
		cfg:         cfg,
		sink:        sink,
		now:         time.Now,
	}
}

func newRoomState() *roomState {
	return &roomState{
		online: make(map[string]struct{}),
		typing: make(map[string]struct{}),
		banned: make(map[string]struct{}),
	}
}

// stamp returns the next authoritative timestamp for this room's log.
// Strictly increasing even when the wall clock stalls or steps backwards.
// Caller holds rs.mu.
func (rs *roomState) stamp(t time.Time) int64 {
	ts := t.UnixNano()
	if ts <= rs.lastStamp {
		ts = rs.lastStamp + 1
	}
	rs.lastStamp = ts
	return ts
}

// ensureRoomLocked returns the room's state, materializing it if absent.
// Caller holds m.mu for writing.
func (m *Manager) ensureRoomLocked(room string) *roomState {
	rs, ok := m.rooms[room]
	if !ok {
		rs = newRoomState()
		m.rooms[room] = rs
	}
	return rs
}

// roomFor returns the room state without materializing it.
func (m *Manager) roomFor(room string) (*roomState, bool) {
	m.mu.RLock()
	rs, ok := m.rooms[room]
	m.mu.RUnlock()
	return rs, ok
}

// isRoomAdmin reports whether caller is the registered creator of room.
// Rooms without a registry entry have no admin.
func (m *Manager) isRoomAdmin(room, caller string) bool {
	m.mu.RLock()
	reg, ok := m.registry[room]
	m.mu.RUnlock()
	return ok && reg.CreatedBy == caller
}

// snapshotRooms copies the room index so cross-room queries can iterate
// without holding mu.
func (m *Manager) snapshotRooms() map[string]*roomState {
	m.mu.RLock()
	snap := make(map[string]*roomState, len(m.rooms))
	for name, rs := range m.rooms {
		snap[name] = rs
	}
	m.mu.RUnlock()
	return snap
}

// persistMessage hands a message to the sink. Best effort: the sink queues
// internally and any failure is its own to log; the chat operation has
// already succeeded by the time this runs. The sink gets its own deep copy:
// the live record keeps mutating under the room lock (reaction toggles,
// edits, read-by) and the sink reads without it.
func (m *Manager) persistMessage(msg *types.Message) {
	if m.sink == nil {
		return
	}
	m.sink.StoreMessage(cloneMessage(msg))
}

func (m *Manager) persistModLogEntry(entry *types.ModLogEntry) {
	if m.sink == nil {
		return
	}
	m.sink.StoreModLogEntry(entry)
}

// RegisterUser creates an account. passwordHash is produced by the auth
// layer; the manager stores it verbatim.
func (m *Manager) RegisterUser(username, passwordHash, avatar string) (*types.User, error) {
	if !types.IsValidUsername(username) {
		return nil, fmt.Errorf("%w: username must be 1-50 characters, alphanumeric plus underscore/hyphen", types.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[username]; exists {
		return nil, fmt.Errorf("%w: user %q", types.ErrAlreadyExists, username)
	}

	user := &types.User{
		Username:     username,
		PasswordHash: passwordHash,
		Avatar:       avatar,
		LastSeen:     m.now(),
	}
	m.users[username] = user

	log.Printf("Registered user: username=%s", username)
	u := *user
	return &u, nil
}

// GetUser returns a copy of the stored account, including the password
// hash for the auth layer to verify against.
func (m *Manager) GetUser(username string) (*types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", types.ErrNotFound, username)
	}
	u := *user
	return &u, nil
}

// UpdateAvatar replaces the user's avatar reference.
func (m *Manager) UpdateAvatar(username, avatar string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[username]
	if !ok {
		return fmt.Errorf("%w: user %q", types.ErrNotFound, username)
	}
	user.Avatar = avatar
	return nil
}

// Heartbeat records activity for the global online heuristic.
func (m *Manager) Heartbeat(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[username]
	if !ok {
		return fmt.Errorf("%w: user %q", types.ErrNotFound, username)
	}
	user.LastSeen = m.now()
	return nil
}

// OnlineUsers returns registered users whose last activity falls within the
// presence window. This is a liveness heuristic recomputed on every call.
func (m *Manager) OnlineUsers() []string {
	cutoff := m.now().Add(-m.cfg.PresenceWindow)

	m.mu.RLock()
	var online []string
	for name, user := range m.users {
		if user.LastSeen.After(cutoff) {
			online = append(online, name)
		}
	}
	m.mu.RUnlock()

	sort.Strings(online)
	return online
}

// Stats returns coarse counters for health reporting.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int{
		"rooms":      len(m.rooms),
		"registered": len(m.registry),
		"users":      len(m.users),
		"dm_logs":    len(m.dms),
	}
}

// touchUserLocked bumps last-seen if the user is registered. Anonymous
// legacy callers are not in the user index and are skipped silently.
// Caller holds m.mu for writing.
func (m *Manager) touchUserLocked(username string) {
	if user, ok := m.users[username]; ok {
		user.LastSeen = m.now()
	}
}
