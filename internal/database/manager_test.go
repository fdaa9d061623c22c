package database

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"chatflow/pkg/types"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := NewManager(&Config{
		Path:      path,
		QueueSize: 16,
	})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return m, path
}

func TestStoreMessageAndDrainOnClose(t *testing.T) {
	m, path := newTestManager(t)

	msg := &types.Message{
		ID:        "msg-1",
		Room:      "general",
		Sender:    "alice",
		Text:      "hello @bob",
		Time:      "10:30:00",
		Timestamp: time.Now().UnixNano(),
		Reactions: map[string][]string{"👍": {"bob"}},
		Mentions:  []string{"bob"},
	}
	m.StoreMessage(msg)

	entry := &types.ModLogEntry{
		ID:        "mod-1",
		Room:      "general",
		Action:    types.ModActionBan,
		Admin:     "alice",
		Target:    "carol",
		Timestamp: time.Now(),
	}
	m.StoreModLogEntry(entry)

	// Close drains the queue, so both rows must be visible afterwards.
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var sender, text string
	err = db.QueryRow("SELECT sender, text FROM messages WHERE id = ?", "msg-1").Scan(&sender, &text)
	if err != nil {
		t.Fatalf("message row not found: %v", err)
	}
	if sender != "alice" || text != "hello @bob" {
		t.Errorf("stored message = %q/%q", sender, text)
	}

	var action, target string
	err = db.QueryRow("SELECT action, target FROM mod_log WHERE id = ?", "mod-1").Scan(&action, &target)
	if err != nil {
		t.Fatalf("mod log row not found: %v", err)
	}
	if action != types.ModActionBan || target != "carol" {
		t.Errorf("stored entry = %q/%q", action, target)
	}
}

func TestStoreMessageUpsert(t *testing.T) {
	m, path := newTestManager(t)

	msg := &types.Message{ID: "msg-1", Room: "general", Sender: "alice", Text: "first"}
	m.StoreMessage(msg)
	msg.Text = "edited"
	m.StoreMessage(msg)

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
	var text string
	if err := db.QueryRow("SELECT text FROM messages WHERE id = ?", "msg-1").Scan(&text); err != nil {
		t.Fatal(err)
	}
	if text != "edited" {
		t.Errorf("text = %q, want edited", text)
	}
}

// Serialization happens before enqueue, so a caller mutating the record's
// maps after the hand-off never shares state with the writer goroutine.
func TestStoreMessageSnapshotsAtCall(t *testing.T) {
	m, path := newTestManager(t)

	msg := &types.Message{
		ID:        "msg-1",
		Room:      "general",
		Sender:    "alice",
		Text:      "hello",
		Reactions: map[string][]string{"👍": {"bob"}},
	}
	m.StoreMessage(msg)

	// Mutations after the hand-off, as reaction toggles do to live records.
	msg.Reactions["👍"] = append(msg.Reactions["👍"], "carol")
	msg.Reactions["🎉"] = []string{"dave"}

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var reactionsJSON string
	if err := db.QueryRow("SELECT reactions FROM messages WHERE id = ?", "msg-1").Scan(&reactionsJSON); err != nil {
		t.Fatalf("message row not found: %v", err)
	}
	var reactions map[string][]string
	if err := json.Unmarshal([]byte(reactionsJSON), &reactions); err != nil {
		t.Fatalf("stored reactions not valid JSON: %v", err)
	}
	if len(reactions) != 1 || len(reactions["👍"]) != 1 || reactions["👍"][0] != "bob" {
		t.Errorf("stored reactions = %v, want call-time snapshot", reactions)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	// Writes after close are silently discarded.
	m.StoreMessage(&types.Message{ID: "late", Room: "general"})
}

func TestHealthCheck(t *testing.T) {
	m, _ := newTestManager(t)
	defer m.Close()
	if err := m.HealthCheck(); err != nil {
		t.Errorf("health check: %v", err)
	}
}

func TestEmptyPathRejected(t *testing.T) {
	if _, err := NewManager(&Config{Path: ""}); err == nil {
		t.Fatal("expected error for empty path")
	}
}
