package channel

import (
	"context"
)

// Channel is an outbound adapter to a messaging or calling provider.
type Channel interface {
	// ID returns the unique configured channel identifier.
	ID() string

	// Type returns the channel provider type used for routing.
	Type() Type

	// Stop releases channel resources.
	Stop(ctx context.Context) error
}

// TextChannel delivers chat messages.
type TextChannel interface {
	Channel

	// SendMessage sends text content to the target chat.
	// chatID is provider-specific and is passed as a string for portability.
	SendMessage(ctx context.Context, chatID string, content string) error
}

// VoiceChannel places a call that speaks text to the configured callee.
type VoiceChannel interface {
	Channel

	Call(ctx context.Context, text string) error

	// MaxTextLen is the longest text, in runes, the provider accepts.
	// Zero means no limit. Callers truncate before calling.
	MaxTextLen() int
}
