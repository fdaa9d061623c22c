package state

import (
	"testing"
)

func TestUnreadCounts(t *testing.T) {
	m, _ := newTestManager(t)
	registerUsers(t, m, "alice", "bob")
	mustCreateRoom(t, m, "general", "", "alice")
	mustCreateRoom(t, m, "random", "", "alice")

	postMessage(t, m, "general", "alice", "one")
	postMessage(t, m, "general", "alice", "two")
	postMessage(t, m, "general", "bob", "mine")
	postMessage(t, m, "random", "alice", "elsewhere")

	// Never-read room: everything not authored by bob counts.
	counts := m.UnreadCounts("bob")
	if counts["general"] != 2 {
		t.Errorf("general unread = %d, want 2", counts["general"])
	}
	if counts["random"] != 1 {
		t.Errorf("random unread = %d, want 1", counts["random"])
	}

	// After mark_read the room drops out of the mapping entirely.
	if err := m.MarkRead("general", "bob"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	counts = m.UnreadCounts("bob")
	if _, present := counts["general"]; present {
		t.Errorf("room with zero unread must be omitted, got %v", counts)
	}
	if counts["random"] != 1 {
		t.Errorf("random unread = %d, want 1", counts["random"])
	}

	// A newer message makes the room reappear.
	postMessage(t, m, "general", "alice", "newer")
	counts = m.UnreadCounts("bob")
	if counts["general"] != 1 {
		t.Errorf("general unread after new message = %d, want 1", counts["general"])
	}
}

func TestUnreadSkipsOwnMessages(t *testing.T) {
	m, _ := newTestManager(t)
	registerUsers(t, m, "alice")
	mustCreateRoom(t, m, "solo", "", "alice")
	postMessage(t, m, "solo", "alice", "talking to myself")

	if counts := m.UnreadCounts("alice"); len(counts) != 0 {
		t.Errorf("own messages must not count as unread: %v", counts)
	}
}

func TestGetMentionsAcrossRooms(t *testing.T) {
	m, _ := newTestManager(t)
	registerUsers(t, m, "alice", "bob")
	mustCreateRoom(t, m, "alpha", "", "alice")
	mustCreateRoom(t, m, "beta", "", "alice")

	postMessage(t, m, "beta", "alice", "ping @bob")
	postMessage(t, m, "alpha", "alice", "hey @bob")
	postMessage(t, m, "alpha", "alice", "not for you")

	mentions := m.GetMentions("bob")
	if len(mentions) != 2 {
		t.Fatalf("expected 2 mentions, got %d", len(mentions))
	}
	// Ordered by room name, then log order.
	if mentions[0].Room != "alpha" || mentions[1].Room != "beta" {
		t.Errorf("mention rooms = %s, %s", mentions[0].Room, mentions[1].Room)
	}

	if mentions := m.GetMentions("alice"); len(mentions) != 0 {
		t.Errorf("alice mention feed should be empty, got %d", len(mentions))
	}
}
