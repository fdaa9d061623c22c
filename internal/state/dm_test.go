package state

import (
	"errors"
	"fmt"
	"testing"

	"chatflow/pkg/types"
)

func TestDMCanonicalPair(t *testing.T) {
	m, _ := newTestManager(t)
	registerUsers(t, m, "alice", "bob")

	if _, err := m.SendDM("alice", "bob", "hi bob", nil); err != nil {
		t.Fatalf("SendDM failed: %v", err)
	}
	if _, err := m.SendDM("bob", "alice", "hi alice", nil); err != nil {
		t.Fatalf("SendDM failed: %v", err)
	}

	// Either ordering of the pair reads the same log.
	fromAlice := m.GetDM("alice", "bob")
	fromBob := m.GetDM("bob", "alice")
	if len(fromAlice) != 2 || len(fromBob) != 2 {
		t.Fatalf("expected both views to see 2 messages, got %d and %d", len(fromAlice), len(fromBob))
	}
	if fromAlice[0].Text != "hi bob" || fromAlice[1].Text != "hi alice" {
		t.Errorf("unexpected DM order: %q, %q", fromAlice[0].Text, fromAlice[1].Text)
	}
}

func TestDMPlainShape(t *testing.T) {
	m, _ := newTestManager(t)
	registerUsers(t, m, "alice", "bob")

	msg, err := m.SendDM("alice", "bob", "mention @bob does nothing here", nil)
	if err != nil {
		t.Fatalf("SendDM failed: %v", err)
	}
	if msg.Reactions != nil || msg.Mentions != nil || msg.Replies != nil {
		t.Errorf("DM carries room-only features: %+v", msg)
	}
}

func TestDMUnknownRecipient(t *testing.T) {
	m, _ := newTestManager(t)
	registerUsers(t, m, "alice")

	if _, err := m.SendDM("alice", "nobody", "hello?", nil); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown recipient, got %v", err)
	}
}

func TestDMWindow(t *testing.T) {
	m, _ := newTestManager(t)
	registerUsers(t, m, "alice", "bob")

	for i := 0; i < 55; i++ {
		if _, err := m.SendDM("alice", "bob", fmt.Sprintf("dm%d", i), nil); err != nil {
			t.Fatal(err)
		}
	}

	msgs := m.GetDM("bob", "alice")
	if len(msgs) != 50 {
		t.Fatalf("expected window of 50, got %d", len(msgs))
	}
	if msgs[0].Text != "dm5" || msgs[49].Text != "dm54" {
		t.Errorf("window misaligned: first=%q last=%q", msgs[0].Text, msgs[49].Text)
	}

	if empty := m.GetDM("alice", "carol"); len(empty) != 0 {
		t.Errorf("expected empty history, got %d", len(empty))
	}
}

func TestDMPartners(t *testing.T) {
	m, _ := newTestManager(t)
	registerUsers(t, m, "alice", "bob", "carol")

	if _, err := m.SendDM("alice", "bob", "hey", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SendDM("carol", "alice", "hey", nil); err != nil {
		t.Fatal(err)
	}

	partners := m.DMPartners("alice")
	if len(partners) != 2 || partners[0] != "bob" || partners[1] != "carol" {
		t.Errorf("partners = %v, want [bob carol]", partners)
	}
}
