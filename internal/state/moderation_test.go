package state

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"chatflow/pkg/types"
)

func TestKick(t *testing.T) {
	m, sink := newTestManager(t)
	registerUsers(t, m, "alice", "bob")
	mustCreateRoom(t, m, "general", "", "alice")
	if err := m.JoinRoom("general", "", "bob"); err != nil {
		t.Fatal(err)
	}

	if err := m.Kick("general", "bob", "bob"); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-admin kick, got %v", err)
	}
	if err := m.Kick("general", "bob", "alice"); err != nil {
		t.Fatalf("Kick failed: %v", err)
	}

	if users := m.RoomUsers("general"); len(users) != 1 || users[0] != "alice" {
		t.Errorf("expected only alice online after kick, got %v", users)
	}
	// No ban recorded: bob can rejoin immediately.
	if err := m.JoinRoom("general", "", "bob"); err != nil {
		t.Errorf("kicked user could not rejoin: %v", err)
	}
	if n := sink.entryCount(types.ModActionKick); n != 1 {
		t.Errorf("expected 1 kick audit entry, got %d", n)
	}
}

func TestBanEvictsAndBlocks(t *testing.T) {
	m, _ := newTestManager(t)
	registerUsers(t, m, "alice", "bob")
	mustCreateRoom(t, m, "general", "", "alice")
	if err := m.JoinRoom("general", "", "bob"); err != nil {
		t.Fatal(err)
	}

	if err := m.Ban("general", "bob", "alice"); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}

	// Never observable online after the ban returns.
	for _, user := range m.RoomUsers("general") {
		if user == "bob" {
			t.Fatal("banned user still in online set")
		}
	}
	if err := m.JoinRoom("general", "", "bob"); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("expected ErrForbidden on rejoin after ban, got %v", err)
	}
}

func TestModerationOnUnregisteredRoomForbidden(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.JoinRoom("adhoc", "", "drifter"); err != nil {
		t.Fatal(err)
	}

	// Implicit rooms have no admin: every moderation action fails.
	if err := m.Kick("adhoc", "drifter", "drifter"); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("kick: expected ErrForbidden, got %v", err)
	}
	if err := m.Ban("adhoc", "drifter", "drifter"); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("ban: expected ErrForbidden, got %v", err)
	}
	if _, err := m.GetModLog("adhoc", "drifter"); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("mod log: expected ErrForbidden, got %v", err)
	}
}

func TestPinIdempotent(t *testing.T) {
	m, sink := newTestManager(t)
	registerUsers(t, m, "alice")
	mustCreateRoom(t, m, "general", "", "alice")
	msg := postMessage(t, m, "general", "alice", "important: read the onboarding doc before the standup tomorrow")

	if err := m.Pin("general", msg.ID, "alice"); err != nil {
		t.Fatalf("Pin failed: %v", err)
	}
	if err := m.Pin("general", msg.ID, "alice"); err != nil {
		t.Fatalf("re-Pin failed: %v", err)
	}

	pins := m.GetPins("general")
	if len(pins) != 1 || pins[0].ID != msg.ID {
		t.Errorf("expected exactly one pin, got %d", len(pins))
	}

	// Only the first pin logs, with a truncated snippet.
	entries, err := m.GetModLog("general", "alice")
	if err != nil {
		t.Fatalf("GetModLog failed: %v", err)
	}
	pinEntries := 0
	for _, e := range entries {
		if e.Action == types.ModActionPin {
			pinEntries++
			if len(e.Detail) > 50 {
				t.Errorf("audit detail not truncated: %d chars", len(e.Detail))
			}
		}
	}
	if pinEntries != 1 {
		t.Errorf("expected 1 pin audit entry, got %d", pinEntries)
	}
	if n := sink.entryCount(types.ModActionPin); n != 1 {
		t.Errorf("expected 1 persisted pin entry, got %d", n)
	}

	if err := m.Pin("general", "missing", "alice"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for absent message, got %v", err)
	}
}

func TestPinSnippetKeepsRunesIntact(t *testing.T) {
	m, _ := newTestManager(t)
	registerUsers(t, m, "alice")
	mustCreateRoom(t, m, "general", "", "alice")

	// 60 multibyte runes: byte-indexed truncation would cut mid-rune.
	text := strings.Repeat("日", 60)
	msg := postMessage(t, m, "general", "alice", text)
	if err := m.Pin("general", msg.ID, "alice"); err != nil {
		t.Fatalf("Pin failed: %v", err)
	}

	entries, err := m.GetModLog("general", "alice")
	if err != nil {
		t.Fatalf("GetModLog failed: %v", err)
	}
	var detail string
	for _, e := range entries {
		if e.Action == types.ModActionPin {
			detail = e.Detail
		}
	}
	if !utf8.ValidString(detail) {
		t.Errorf("audit detail is not valid UTF-8: %q", detail)
	}
	if n := utf8.RuneCountInString(detail); n != 50 {
		t.Errorf("audit detail rune count = %d, want 50", n)
	}
}

func TestModLogOrderAndAccess(t *testing.T) {
	m, _ := newTestManager(t)
	registerUsers(t, m, "alice", "bob")
	mustCreateRoom(t, m, "general", "", "alice")
	if err := m.JoinRoom("general", "", "bob"); err != nil {
		t.Fatal(err)
	}

	if err := m.Kick("general", "bob", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := m.Ban("general", "bob", "alice"); err != nil {
		t.Fatal(err)
	}

	entries, err := m.GetModLog("general", "alice")
	if err != nil {
		t.Fatalf("GetModLog failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != types.ModActionKick || entries[1].Action != types.ModActionBan {
		t.Errorf("unexpected log order: %+v", entries)
	}

	if _, err := m.GetModLog("general", "bob"); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-admin, got %v", err)
	}
}

// End-to-end scenario: room creation, mention, ban, rejoin refusal.
func TestGeneralRoomScenario(t *testing.T) {
	m, _ := newTestManager(t)
	registerUsers(t, m, "alice", "bob")

	mustCreateRoom(t, m, "general", "", "alice")
	if err := m.JoinRoom("general", "", "bob"); err != nil {
		t.Fatalf("bob could not join: %v", err)
	}

	msg := postMessage(t, m, "general", "alice", "hello @bob")
	if len(msg.Mentions) != 1 || msg.Mentions[0] != "bob" {
		t.Fatalf("mentions = %v, want [bob]", msg.Mentions)
	}

	mentions := m.GetMentions("bob")
	if len(mentions) != 1 || mentions[0].Room != "general" || mentions[0].Message.ID != msg.ID {
		t.Fatalf("unexpected mention feed: %+v", mentions)
	}

	if err := m.Ban("general", "bob", "alice"); err != nil {
		t.Fatalf("ban failed: %v", err)
	}
	if err := m.JoinRoom("general", "", "bob"); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("expected ErrForbidden after ban, got %v", err)
	}
}
