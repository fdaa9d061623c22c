package state

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"chatflow/pkg/types"
)

// Moderation rule used everywhere: the room admin is the registered
// creator and nobody else. Rooms with no registry entry have no admin, so
// every moderation action on them fails.

// Kick evicts target from the room's online set. No ban is recorded; the
// target may rejoin immediately.
func (m *Manager) Kick(room, target, admin string) error {
	if !m.isRoomAdmin(room, admin) {
		return fmt.Errorf("%w: %q is not the admin of room %q", types.ErrForbidden, admin, room)
	}
	rs, ok := m.roomFor(room)
	if !ok {
		return fmt.Errorf("%w: room %q", types.ErrNotFound, room)
	}

	rs.mu.Lock()
	delete(rs.online, target)
	delete(rs.typing, target)
	entry := m.appendModLogLocked(rs, room, types.ModActionKick, admin, target, "")
	rs.mu.Unlock()

	m.persistModLogEntry(entry)
	log.Printf("Kicked user: room=%s target=%s admin=%s", room, target, admin)
	return nil
}

// Ban adds target to the room's ban set and evicts them from the online
// set in the same critical section, so a banned user can never be observed
// online after the call returns. Bans are permanent: no unban exists.
func (m *Manager) Ban(room, target, admin string) error {
	if !m.isRoomAdmin(room, admin) {
		return fmt.Errorf("%w: %q is not the admin of room %q", types.ErrForbidden, admin, room)
	}
	rs, ok := m.roomFor(room)
	if !ok {
		return fmt.Errorf("%w: room %q", types.ErrNotFound, room)
	}

	rs.mu.Lock()
	rs.banned[target] = struct{}{}
	delete(rs.online, target)
	delete(rs.typing, target)
	entry := m.appendModLogLocked(rs, room, types.ModActionBan, admin, target, "")
	rs.mu.Unlock()

	m.persistModLogEntry(entry)
	log.Printf("Banned user: room=%s target=%s admin=%s", room, target, admin)
	return nil
}

// Pin appends a message id to the room's pin list. Idempotent: re-pinning
// an already-pinned id neither duplicates the entry nor logs again.
func (m *Manager) Pin(room, messageID, admin string) error {
	if !m.isRoomAdmin(room, admin) {
		return fmt.Errorf("%w: %q is not the admin of room %q", types.ErrForbidden, admin, room)
	}
	rs, ok := m.roomFor(room)
	if !ok {
		return fmt.Errorf("%w: room %q", types.ErrNotFound, room)
	}

	rs.mu.Lock()
	msg := findMessage(rs.messages, messageID)
	if msg == nil {
		rs.mu.Unlock()
		return fmt.Errorf("%w: message %q", types.ErrNotFound, messageID)
	}
	for _, pinned := range rs.pins {
		if pinned == messageID {
			rs.mu.Unlock()
			return nil
		}
	}
	rs.pins = append(rs.pins, messageID)
	entry := m.appendModLogLocked(rs, room, types.ModActionPin, admin, messageID, snippet(msg.Text))
	rs.mu.Unlock()

	m.persistModLogEntry(entry)
	return nil
}

// GetPins resolves the room's pin list to the pinned messages, in pin
// order. Pins whose message has since been deleted are skipped.
func (m *Manager) GetPins(room string) []*types.Message {
	rs, ok := m.roomFor(room)
	if !ok {
		return []*types.Message{}
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	pinned := make([]*types.Message, 0, len(rs.pins))
	for _, id := range rs.pins {
		if msg := findMessage(rs.messages, id); msg != nil {
			pinned = append(pinned, cloneMessage(msg))
		}
	}
	return pinned
}

// GetModLog returns the room's audit trail in insertion order. Admin only.
func (m *Manager) GetModLog(room, caller string) ([]*types.ModLogEntry, error) {
	if !m.isRoomAdmin(room, caller) {
		return nil, fmt.Errorf("%w: %q is not the admin of room %q", types.ErrForbidden, caller, room)
	}
	rs, ok := m.roomFor(room)
	if !ok {
		return nil, fmt.Errorf("%w: room %q", types.ErrNotFound, room)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	entries := make([]*types.ModLogEntry, len(rs.modlog))
	for i, entry := range rs.modlog {
		e := *entry
		entries[i] = &e
	}
	return entries, nil
}

// appendModLogLocked creates and appends an audit entry. The log is
// append-only: entries are never mutated or removed. Caller holds rs.mu.
func (m *Manager) appendModLogLocked(rs *roomState, room, action, admin, target, detail string) *types.ModLogEntry {
	entry := &types.ModLogEntry{
		ID:        uuid.New().String(),
		Room:      room,
		Action:    action,
		Admin:     admin,
		Target:    target,
		Detail:    detail,
		Timestamp: m.now(),
	}
	rs.modlog = append(rs.modlog, entry)
	return entry
}
