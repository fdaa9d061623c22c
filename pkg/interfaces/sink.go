package interfaces

import "chatflow/pkg/types"

// Sink is an optional write-behind persistence target for messages and
// moderation entries. Implementations must be fire-and-forget: a Sink may
// queue but never block, and a sink failure must never surface to the chat
// operation. Records handed to a Sink are owned by it outright; the caller
// never mutates them after the call.
type Sink interface {
	StoreMessage(message *types.Message)
	StoreModLogEntry(entry *types.ModLogEntry)
	Close() error
}
