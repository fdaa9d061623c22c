package state

import (
	"fmt"
	"log"
	"sort"

	"chatflow/pkg/types"
)

// CreateRoom registers a room. passwordHash comes pre-hashed from the auth
// layer; an empty hash means the room is open. The creator becomes the
// room's sole admin and is placed in the online set.
func (m *Manager) CreateRoom(name, passwordHash, creator string) (*types.Room, error) {
	if !types.IsValidRoomName(name) {
		return nil, fmt.Errorf("%w: room name must be 1-100 characters, alphanumeric plus underscore/hyphen", types.ErrInvalidInput)
	}
	if creator == "" {
		return nil, fmt.Errorf("%w: creator is required", types.ErrInvalidInput)
	}

	m.mu.Lock()
	if _, exists := m.registry[name]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: room %q", types.ErrAlreadyExists, name)
	}
	room := &types.Room{
		Name:         name,
		PasswordHash: passwordHash,
		CreatedBy:    creator,
		CreatedAt:    m.now(),
	}
	m.registry[name] = room
	rs := m.ensureRoomLocked(name)
	m.touchUserLocked(creator)
	m.mu.Unlock()

	rs.mu.Lock()
	rs.online[creator] = struct{}{}
	rs.mu.Unlock()

	log.Printf("Created room: name=%s creator=%s protected=%t", name, creator, passwordHash != "")
	r := *room
	return &r, nil
}

// ListRooms returns registered rooms with their protection flag. The hash
// itself never leaves the manager.
func (m *Manager) ListRooms() []types.RoomInfo {
	m.mu.RLock()
	rooms := make([]types.RoomInfo, 0, len(m.registry))
	for _, room := range m.registry {
		rooms = append(rooms, types.RoomInfo{
			Name:      room.Name,
			Protected: room.PasswordHash != "",
			CreatedBy: room.CreatedBy,
		})
	}
	m.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms
}

// JoinRoom adds user to the room's online set after checking the password
// gate and the ban set. Rooms with no registry entry are tolerated: the
// legacy anonymous surface joins implicit rooms freely, so the registry is
// only consulted when an entry exists.
func (m *Manager) JoinRoom(room, password, user string) error {
	if room == "" || user == "" {
		return fmt.Errorf("%w: room and user are required", types.ErrInvalidInput)
	}

	m.mu.Lock()
	reg := m.registry[room]
	rs := m.ensureRoomLocked(room)
	m.touchUserLocked(user)
	m.mu.Unlock()

	// Password comparison happens outside any lock: bcrypt is slow.
	if reg != nil && reg.PasswordHash != "" {
		if m.cfg.VerifyPassword == nil || !m.cfg.VerifyPassword(reg.PasswordHash, password) {
			return fmt.Errorf("%w: wrong password for room %q", types.ErrForbidden, room)
		}
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, banned := rs.banned[user]; banned {
		return fmt.Errorf("%w: user %q is banned from room %q", types.ErrForbidden, user, room)
	}
	rs.online[user] = struct{}{}
	return nil
}

// LeaveRoom removes user from the room's online and typing sets. Leaving a
// room that was never touched is a no-op.
func (m *Manager) LeaveRoom(room, user string) error {
	if room == "" || user == "" {
		return fmt.Errorf("%w: room and user are required", types.ErrInvalidInput)
	}

	rs, ok := m.roomFor(room)
	if !ok {
		return nil
	}

	rs.mu.Lock()
	delete(rs.online, user)
	delete(rs.typing, user)
	rs.mu.Unlock()
	return nil
}

// RoomUsers returns the room's online set. An untouched room reads empty.
func (m *Manager) RoomUsers(room string) []string {
	rs, ok := m.roomFor(room)
	if !ok {
		return []string{}
	}

	rs.mu.Lock()
	users := make([]string, 0, len(rs.online))
	for user := range rs.online {
		users = append(users, user)
	}
	rs.mu.Unlock()

	sort.Strings(users)
	return users
}

// SetTyping adds or removes user from the room's typing set and returns a
// snapshot of who is typing now. The room is materialized if absent,
// matching the permissive legacy surface.
func (m *Manager) SetTyping(room, user string, isTyping bool) []string {
	m.mu.Lock()
	rs := m.ensureRoomLocked(room)
	m.mu.Unlock()

	rs.mu.Lock()
	if isTyping {
		rs.typing[user] = struct{}{}
	} else {
		delete(rs.typing, user)
	}
	typing := make([]string, 0, len(rs.typing))
	for u := range rs.typing {
		typing = append(typing, u)
	}
	rs.mu.Unlock()

	sort.Strings(typing)
	return typing
}
