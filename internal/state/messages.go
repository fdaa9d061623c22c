package state

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"chatflow/pkg/types"
)

// PostMessage appends a message to the room's ordered log. The room must
// already exist in the store's namespace (touched by a join or create):
// posting to an unknown room is rejected while reading one is not, a
// deliberately asymmetric legacy contract.
//
// Mentions are resolved once here against the registered user set; editing
// the text later does not recompute them.
func (m *Manager) PostMessage(room, sender, text string, file *types.FileRef) (*types.Message, error) {
	if room == "" || sender == "" {
		return nil, fmt.Errorf("%w: room and sender are required", types.ErrInvalidInput)
	}
	if err := types.ValidateText(text); err != nil {
		return nil, err
	}

	m.mu.RLock()
	rs, ok := m.rooms[room]
	mentions := scanMentions(text, m.users)
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: room %q", types.ErrNotFound, room)
	}

	now := m.now()
	msg := &types.Message{
		ID:        uuid.New().String(),
		Room:      room,
		Sender:    sender,
		Text:      text,
		File:      file,
		Time:      types.DisplayTime(now),
		Reactions: make(map[string][]string),
		Mentions:  mentions,
		ReadBy:    []string{sender},
	}

	rs.mu.Lock()
	msg.Timestamp = rs.stamp(now)
	rs.messages = append(rs.messages, msg)
	rs.mu.Unlock()

	m.persistMessage(msg)
	return cloneMessage(msg), nil
}

// GetMessages returns the room's full log in arrival order. A room that
// was never touched reads as empty rather than erroring.
func (m *Manager) GetMessages(room string) []*types.Message {
	return m.messagesWindow(room, 0)
}

// RecentMessages returns at most the configured recent window of messages,
// preserving the legacy anonymous cap of 50.
func (m *Manager) RecentMessages(room string) []*types.Message {
	return m.messagesWindow(room, m.cfg.RecentWindow)
}

func (m *Manager) messagesWindow(room string, limit int) []*types.Message {
	rs, ok := m.roomFor(room)
	if !ok {
		return []*types.Message{}
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	msgs := rs.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*types.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = cloneMessage(msg)
	}
	return out
}

// EditMessage updates a message's text in place. Only the sender may edit;
// id, timestamp and reactions are untouched.
func (m *Manager) EditMessage(room, id, newText, caller string) (*types.Message, error) {
	if err := types.ValidateText(newText); err != nil {
		return nil, err
	}

	rs, ok := m.roomFor(room)
	if !ok {
		return nil, fmt.Errorf("%w: room %q", types.ErrNotFound, room)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	msg := findMessage(rs.messages, id)
	if msg == nil {
		return nil, fmt.Errorf("%w: message %q", types.ErrNotFound, id)
	}
	if msg.Sender != caller {
		return nil, fmt.Errorf("%w: only the sender can edit a message", types.ErrForbidden)
	}
	msg.Text = newText
	return cloneMessage(msg), nil
}

// DeleteMessage removes a message from the log entirely (no tombstone).
// Allowed for the sender or the room admin; every deletion is audited.
func (m *Manager) DeleteMessage(room, id, caller string) error {
	rs, ok := m.roomFor(room)
	if !ok {
		return fmt.Errorf("%w: room %q", types.ErrNotFound, room)
	}
	isAdmin := m.isRoomAdmin(room, caller)

	rs.mu.Lock()
	idx := -1
	for i, msg := range rs.messages {
		if msg.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		rs.mu.Unlock()
		return fmt.Errorf("%w: message %q", types.ErrNotFound, id)
	}
	msg := rs.messages[idx]
	if msg.Sender != caller && !isAdmin {
		rs.mu.Unlock()
		return fmt.Errorf("%w: only the sender or the room admin can delete a message", types.ErrForbidden)
	}
	rs.messages = append(rs.messages[:idx], rs.messages[idx+1:]...)
	entry := m.appendModLogLocked(rs, room, types.ModActionDelete, caller, id, snippet(msg.Text))
	rs.mu.Unlock()

	m.persistModLogEntry(entry)
	return nil
}

// React toggles caller's reaction with the given emoji and returns the
// updated reaction mapping. Applying the same reaction twice restores the
// prior state.
func (m *Manager) React(room, id, emoji, caller string) (map[string][]string, error) {
	if emoji == "" {
		return nil, fmt.Errorf("%w: emoji is required", types.ErrInvalidInput)
	}

	rs, ok := m.roomFor(room)
	if !ok {
		return nil, fmt.Errorf("%w: room %q", types.ErrNotFound, room)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	msg := findMessage(rs.messages, id)
	if msg == nil {
		return nil, fmt.Errorf("%w: message %q", types.ErrNotFound, id)
	}

	if msg.Reactions == nil {
		msg.Reactions = make(map[string][]string)
	}
	users := msg.Reactions[emoji]
	removed := false
	for i, u := range users {
		if u == caller {
			users = append(users[:i], users[i+1:]...)
			removed = true
			break
		}
	}
	switch {
	case removed && len(users) == 0:
		delete(msg.Reactions, emoji)
	case removed:
		msg.Reactions[emoji] = users
	default:
		msg.Reactions[emoji] = append(users, caller)
	}

	return cloneReactions(msg.Reactions), nil
}

// Reply appends a threaded reply to the target message.
func (m *Manager) Reply(room, id, text, sender string) (*types.Reply, error) {
	if err := types.ValidateText(text); err != nil {
		return nil, err
	}

	rs, ok := m.roomFor(room)
	if !ok {
		return nil, fmt.Errorf("%w: room %q", types.ErrNotFound, room)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	msg := findMessage(rs.messages, id)
	if msg == nil {
		return nil, fmt.Errorf("%w: message %q", types.ErrNotFound, id)
	}

	now := m.now()
	reply := types.Reply{
		ID:        uuid.New().String(),
		Sender:    sender,
		Text:      text,
		Time:      types.DisplayTime(now),
		Timestamp: rs.stamp(now),
	}
	msg.Replies = append(msg.Replies, reply)
	return &reply, nil
}

// GetReplies returns the target message's reply sequence in order.
func (m *Manager) GetReplies(room, id string) ([]types.Reply, error) {
	rs, ok := m.roomFor(room)
	if !ok {
		return nil, fmt.Errorf("%w: room %q", types.ErrNotFound, room)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	msg := findMessage(rs.messages, id)
	if msg == nil {
		return nil, fmt.Errorf("%w: message %q", types.ErrNotFound, id)
	}
	replies := make([]types.Reply, len(msg.Replies))
	copy(replies, msg.Replies)
	return replies, nil
}

// MarkMessageRead idempotently adds caller to the message's read-by list.
// The message is located by id across all rooms; this mechanism is
// independent of the per-room read checkpoint.
func (m *Manager) MarkMessageRead(id, caller string) error {
	if id == "" || caller == "" {
		return fmt.Errorf("%w: message_id and caller are required", types.ErrInvalidInput)
	}

	for _, rs := range m.snapshotRooms() {
		rs.mu.Lock()
		if msg := findMessage(rs.messages, id); msg != nil {
			alreadyRead := false
			for _, u := range msg.ReadBy {
				if u == caller {
					alreadyRead = true
					break
				}
			}
			if !alreadyRead {
				msg.ReadBy = append(msg.ReadBy, caller)
			}
			rs.mu.Unlock()
			return nil
		}
		rs.mu.Unlock()
	}
	return fmt.Errorf("%w: message %q", types.ErrNotFound, id)
}

// GetReadBy returns who has seen a specific message.
func (m *Manager) GetReadBy(room, id string) ([]string, error) {
	rs, ok := m.roomFor(room)
	if !ok {
		return nil, fmt.Errorf("%w: room %q", types.ErrNotFound, room)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	msg := findMessage(rs.messages, id)
	if msg == nil {
		return nil, fmt.Errorf("%w: message %q", types.ErrNotFound, id)
	}
	readBy := make([]string, len(msg.ReadBy))
	copy(readBy, msg.ReadBy)
	return readBy, nil
}

// ClearRoom wipes a room's message log. Registered rooms restrict this to
// the admin; implicit rooms keep the permissive legacy behavior. Pins
// referencing cleared messages are dropped with the log.
func (m *Manager) ClearRoom(room, caller string) error {
	m.mu.RLock()
	reg := m.registry[room]
	rs, ok := m.rooms[room]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if reg != nil && reg.CreatedBy != caller {
		return fmt.Errorf("%w: only the room admin can clear room %q", types.ErrForbidden, room)
	}

	rs.mu.Lock()
	rs.messages = nil
	rs.pins = nil
	rs.mu.Unlock()
	return nil
}

// findMessage scans the ordered log for id. Logs are short-lived and
// bounded by chat usage, so a linear scan is fine.
func findMessage(messages []*types.Message, id string) *types.Message {
	for _, msg := range messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// scanMentions extracts @tokens from text and keeps the ones naming a
// registered user. Caller holds m.mu at least for reading.
func scanMentions(text string, users map[string]*types.User) []string {
	var mentions []string
	seen := make(map[string]struct{})
	for i := 0; i < len(text); i++ {
		if text[i] != '@' {
			continue
		}
		j := i + 1
		for j < len(text) && isMentionChar(text[j]) {
			j++
		}
		token := text[i+1 : j]
		i = j - 1
		if token == "" {
			continue
		}
		if _, known := users[token]; !known {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		mentions = append(mentions, token)
	}
	sort.Strings(mentions)
	return mentions
}

func isMentionChar(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// snippet truncates text to the first 50 characters for audit details.
// Counted in runes so truncation never splits a multibyte character.
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) > 50 {
		return string(runes[:50])
	}
	return text
}

func cloneMessage(msg *types.Message) *types.Message {
	out := *msg
	out.Reactions = cloneReactions(msg.Reactions)
	if msg.Mentions != nil {
		out.Mentions = append([]string(nil), msg.Mentions...)
	}
	if msg.ReadBy != nil {
		out.ReadBy = append([]string(nil), msg.ReadBy...)
	}
	if msg.Replies != nil {
		out.Replies = append([]types.Reply(nil), msg.Replies...)
	}
	if msg.File != nil {
		f := *msg.File
		out.File = &f
	}
	return &out
}

func cloneReactions(reactions map[string][]string) map[string][]string {
	if reactions == nil {
		return nil
	}
	out := make(map[string][]string, len(reactions))
	for emoji, users := range reactions {
		out[emoji] = append([]string(nil), users...)
	}
	return out
}
