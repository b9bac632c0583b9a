package channel

import (
	"errors"
)

var (
	ErrNotFound    = errors.New("channel not found")
	ErrWrongKind   = errors.New("channel does not support this operation")
	ErrUnsupported = errors.New("unsupported channel type")
)

type Type string

const (
	Telegram Type = "telegram"

	Lark Type = "lark"

	CallMeBot Type = "callmebot"

	Twilio Type = "twilio"
)

var SupportedChannels = []Type{
	Telegram,
	Lark,
	CallMeBot,
	Twilio,
}

// IsVoice reports whether channels of type t place calls rather than send text.
func (t Type) IsVoice() bool {
	return t == CallMeBot || t == Twilio
}
