package types

import (
	"time"
)

// Moderation action kinds recorded in the audit log.
const (
	ModActionKick   = "kick"
	ModActionBan    = "ban"
	ModActionPin    = "pin"
	ModActionDelete = "delete"
)

// User represents a registered account. The password hash is held by the
// state manager but never serialized to API responses.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
}

// Room is a registered chat room. Identity fields are immutable after
// creation; CreatedBy doubles as the room's sole admin.
type Room struct {
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoomInfo is the listing view of a room. The password hash is reduced to a
// protected flag so it can never leak through the listing path.
type RoomInfo struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
	CreatedBy string `json:"created_by"`
}

// FileRef is an opaque reference to an externally uploaded attachment.
// The store keeps it verbatim and never inspects the content behind it.
type FileRef struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Reply is a threaded response attached to a message.
type Reply struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Time      string `json:"time"`
	Timestamp int64  `json:"timestamp"`
}

// Message is a single chat message in a room log or a DM log.
//
// Timestamp is the authoritative ordering value (nanoseconds, strictly
// increasing within a log). Time is a display-only wall-clock string and
// must never be used for comparisons: it loses the date.
//
// DM messages reuse this shape with Reactions, Mentions and Replies left
// empty.
type Message struct {
	ID        string              `json:"id"`
	Room      string              `json:"room"`
	Sender    string              `json:"sender"`
	Text      string              `json:"text"`
	File      *FileRef            `json:"file,omitempty"`
	Time      string              `json:"time"`
	Timestamp int64               `json:"timestamp"`
	Reactions map[string][]string `json:"reactions,omitempty"`
	Mentions  []string            `json:"mentions,omitempty"`
	ReadBy    []string            `json:"read_by,omitempty"`
	Replies   []Reply             `json:"replies,omitempty"`
}

// ModLogEntry is one append-only audit record of an admin action.
type ModLogEntry struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Action    string    `json:"action"`
	Admin     string    `json:"admin"`
	Target    string    `json:"target"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Mention is one entry in a user's mention feed: the room plus the message
// that referenced them.
type Mention struct {
	Room    string   `json:"room"`
	Message *Message `json:"message"`
}

// DisplayTime formats a timestamp the way the legacy clients render it.
func DisplayTime(t time.Time) string {
	return t.Format("15:04:05")
}
