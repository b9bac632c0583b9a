// Package schedule classifies reminder schedules and decides whether they are
// due at a given instant. Everything here is pure: no I/O, no clocks.
//
// Three shapes are understood:
//
//	30 9 * * *              5-field cron (minute hour dom month dow)
//	P2M@2025-01-31T09:00    every N days/months/years from a reference date
//	2025-01-01T00:00:00Z    one-shot ISO instant
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the classified shape of a schedule string.
type Kind string

const (
	KindCron     Kind = "cron"
	KindInterval Kind = "interval"
	KindOneShot  Kind = "oneshot"
)

var (
	ErrUnclassifiable  = errors.New("schedule is not a cron expression, interval pattern or ISO instant")
	ErrInvalidCron     = errors.New("invalid cron expression")
	ErrInvalidInterval = errors.New("invalid interval pattern")
)

// Spec is a parsed schedule.
type Spec interface {
	Kind() Kind
	String() string
	// Due reports whether the schedule fires at now, given how many times the
	// reminder has fired before.
	Due(now time.Time, triggerCount int) bool
	// Next returns the first firing instant at or after from. ok is false when
	// no further firing is expected.
	Next(from time.Time, triggerCount int) (next time.Time, ok bool)
}

var defaultMatcher = NewMatcher()

// Parse classifies s with the default zones (cron in UTC, local at +07:00).
func Parse(s string) (Spec, error) {
	return defaultMatcher.Parse(s)
}

// Classify returns the kind of s, or an error when s is not a valid schedule.
func Classify(s string) (Kind, error) {
	return defaultMatcher.Classify(s)
}

// Validate is Classify without the kind, for input checks.
func Validate(s string) error {
	_, err := Classify(s)
	return err
}

func (m *Matcher) Parse(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrUnclassifiable)
	}

	if intervalPattern.MatchString(s) {
		spec, err := m.parseInterval(s)
		if err != nil {
			return nil, err
		}
		return spec, nil
	}
	if fields := strings.Fields(s); len(fields) == 5 {
		spec, err := m.parseCron(fields)
		if err != nil {
			return nil, err
		}
		return spec, nil
	}
	if spec, ok := m.parseOneShot(s); ok {
		return spec, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnclassifiable, s)
}

func (m *Matcher) Classify(s string) (Kind, error) {
	spec, err := m.Parse(s)
	if err != nil {
		return "", err
	}
	return spec.Kind(), nil
}
