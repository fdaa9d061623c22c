package state

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"chatflow/pkg/types"
)

// dmKey canonicalizes a user pair by lexicographic sort, so either
// ordering of the two usernames maps to the same log.
func dmKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// SendDM appends a direct message to the pair's log. Both parties must be
// registered users. DMs carry no mentions, reactions or replies.
func (m *Manager) SendDM(from, to, text string, file *types.FileRef) (*types.Message, error) {
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: sender and recipient are required", types.ErrInvalidInput)
	}
	if err := types.ValidateText(text); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[to]; !ok {
		return nil, fmt.Errorf("%w: user %q", types.ErrNotFound, to)
	}

	key := dmKey(from, to)
	dl := m.dms[key]
	if dl == nil {
		dl = &dmLog{}
		m.dms[key] = dl
	}

	now := m.now()
	ts := now.UnixNano()
	if ts <= dl.lastStamp {
		ts = dl.lastStamp + 1
	}
	dl.lastStamp = ts

	msg := &types.Message{
		ID:        uuid.New().String(),
		Sender:    from,
		Text:      text,
		File:      file,
		Time:      types.DisplayTime(now),
		Timestamp: ts,
	}
	dl.messages = append(dl.messages, msg)

	m.persistMessage(msg)
	return cloneMessage(msg), nil
}

// GetDM returns the most recent window of the pair's direct messages.
// A pair with no history reads empty.
func (m *Manager) GetDM(a, b string) []*types.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dl := m.dms[dmKey(a, b)]
	if dl == nil {
		return []*types.Message{}
	}

	msgs := dl.messages
	if len(msgs) > m.cfg.RecentWindow {
		msgs = msgs[len(msgs)-m.cfg.RecentWindow:]
	}
	out := make([]*types.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = cloneMessage(msg)
	}
	return out
}

// DMPartners lists users the given user has a DM history with.
func (m *Manager) DMPartners(user string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var partners []string
	for key := range m.dms {
		pair := strings.SplitN(key, "|", 2)
		switch user {
		case pair[0]:
			partners = append(partners, pair[1])
		case pair[1]:
			partners = append(partners, pair[0])
		}
	}
	sort.Strings(partners)
	return partners
}
