// Package condition gates due reminders behind boolean conditions and supplies
// the values substituted into their messages.
//
// A condition ref is either a registered internal path such as
// "/condition/extreme" or an absolute http(s) URL whose trimmed body must be
// exactly "1".
package condition

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownCondition    = errors.New("unknown internal condition")
	ErrInvalidConditionRef = errors.New("condition ref must be an internal path or an http(s) URL")
)

// Outcome is what a provider reports for one evaluation.
type Outcome struct {
	Trigger bool
	Data    map[string]any
}

// Provider computes an internal condition.
type Provider interface {
	Evaluate(ctx context.Context, now time.Time) (Outcome, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, now time.Time) (Outcome, error)

func (f ProviderFunc) Evaluate(ctx context.Context, now time.Time) (Outcome, error) {
	return f(ctx, now)
}

// AlarmProvider is implemented by providers that know in advance when they
// will hold on the local day of now. ok is false when they will not hold today.
type AlarmProvider interface {
	Provider
	AlarmAt(ctx context.Context, now time.Time) (at time.Time, ok bool, err error)
}

// Result is the resolver's answer for one reminder.
type Result struct {
	Trigger       bool
	Substitutions map[string]string
}
