// Package source defines the inbound message stream contract.
//
// A Source is a cursor-based iterator over a per-channel message stream.
// Delivery is at-least-once: a message returned under one cursor may be
// returned again if the caller's cursor write did not durably land. The
// caller owns cursor persistence; the source only promises arrival order
// and no skips for cursors it has handed out.
package source

import "context"

// Cursor is an opaque, monotonically non-decreasing watermark into a
// channel's message stream. The zero Cursor means "from the beginning".
type Cursor int64

// RawMessage is one inbound chat message.
type RawMessage struct {
	// Handle is the opaque identifier of this message within its channel.
	Handle string

	// SenderChat identifies the chat the message arrived from.
	SenderChat string

	// Text is the raw message text.
	Text string

	// RepliesTo is the handle of the message this one replies to,
	// empty when the message is not a reply.
	RepliesTo string

	// Cursor is the watermark that, once persisted by the caller,
	// excludes this message (and everything before it) from redelivery.
	Cursor Cursor
}

// Source polls a channel for messages after the given cursor.
//
// Implementations must return messages in arrival order and must treat
// transient remote failures as an empty batch with an unchanged cursor
// rather than an error; the caller retries on its own schedule. A non-nil
// error is reserved for permanent misconfiguration.
type Source interface {
	Poll(ctx context.Context, channelToken string, cur Cursor) ([]RawMessage, Cursor, error)
}
