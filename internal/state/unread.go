package state

import (
	"fmt"
	"sort"

	"chatflow/pkg/types"
)

// MarkRead advances the caller's read checkpoint for a room to the room's
// newest timestamp. This is the per-room checkpoint mechanism; it is
// deliberately independent of per-message read-by lists, which answer a
// different question.
func (m *Manager) MarkRead(room, user string) error {
	if room == "" || user == "" {
		return fmt.Errorf("%w: room and user are required", types.ErrInvalidInput)
	}

	rs, ok := m.roomFor(room)
	stamp := m.now().UnixNano()
	if ok {
		rs.mu.Lock()
		if rs.lastStamp > 0 {
			stamp = rs.lastStamp
		}
		rs.mu.Unlock()
	}

	m.mu.Lock()
	cp := m.checkpoints[user]
	if cp == nil {
		cp = make(map[string]int64)
		m.checkpoints[user] = cp
	}
	cp[room] = stamp
	m.mu.Unlock()
	return nil
}

// UnreadCounts derives per-room unread counts for a user: messages newer
// than the user's checkpoint and not authored by them. Rooms with nothing
// unread are omitted entirely rather than reported as zero.
func (m *Manager) UnreadCounts(user string) map[string]int {
	m.mu.RLock()
	checkpoints := make(map[string]int64, len(m.checkpoints[user]))
	for room, stamp := range m.checkpoints[user] {
		checkpoints[room] = stamp
	}
	m.mu.RUnlock()

	counts := make(map[string]int)
	for room, rs := range m.snapshotRooms() {
		since := checkpoints[room]
		rs.mu.Lock()
		n := 0
		for _, msg := range rs.messages {
			if msg.Timestamp > since && msg.Sender != user {
				n++
			}
		}
		rs.mu.Unlock()
		if n > 0 {
			counts[room] = n
		}
	}
	return counts
}

// GetMentions collects every room message that mentions the user, ordered
// by room name and then by message timestamp.
func (m *Manager) GetMentions(user string) []types.Mention {
	snap := m.snapshotRooms()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	var mentions []types.Mention
	for _, room := range names {
		rs := snap[room]
		rs.mu.Lock()
		for _, msg := range rs.messages {
			for _, mentioned := range msg.Mentions {
				if mentioned == user {
					mentions = append(mentions, types.Mention{Room: room, Message: cloneMessage(msg)})
					break
				}
			}
		}
		rs.mu.Unlock()
	}
	return mentions
}
