// Package transport defines the outbound messaging surface. Announcements
// are send-only; nothing in this program reads chat input.
package transport

import "context"

type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers rendered text to a chat target. Implementations chunk
// oversized texts themselves; callers treat one SendText as one logical
// message.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
