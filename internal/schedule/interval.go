package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// P<value><D|M|Y>@<YYYY-MM-DD>[T<HH:MM>]
var intervalPattern = regexp.MustCompile(`^P(\d+)([DMY])@(\d{4}-\d{2}-\d{2})(?:T(\d{2}:\d{2}))?$`)

type Unit byte

const (
	UnitDay   Unit = 'D'
	UnitMonth Unit = 'M'
	UnitYear  Unit = 'Y'
)

// IntervalSpec fires every Value units from Reference. Occurrence 0 is the
// reference itself; a reminder that has fired n times next fires at
// occurrence n+1.
type IntervalSpec struct {
	Value     int
	Unit      Unit
	Reference time.Time

	raw string
}

func (m *Matcher) parseInterval(s string) (*IntervalSpec, error) {
	parts := intervalPattern.FindStringSubmatch(s)
	if parts == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}

	value, err := strconv.Atoi(parts[1])
	if err != nil || value < 1 {
		return nil, fmt.Errorf("%w: step must be at least 1 in %q", ErrInvalidInterval, s)
	}

	loc := m.localZone()
	day, err := time.ParseInLocation("2006-01-02", parts[3], loc)
	if err != nil {
		return nil, fmt.Errorf("%w: bad reference date in %q", ErrInvalidInterval, s)
	}

	hour, minute := 0, 0
	if m != nil {
		hour, minute = m.DefaultHour, m.DefaultMinute
	}
	if parts[4] != "" {
		clock, err := time.Parse("15:04", parts[4])
		if err != nil {
			return nil, fmt.Errorf("%w: bad time in %q", ErrInvalidInterval, s)
		}
		hour, minute = clock.Hour(), clock.Minute()
	}

	return &IntervalSpec{
		Value:     value,
		Unit:      Unit(parts[2][0]),
		Reference: time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc),
		raw:       s,
	}, nil
}

func (iv *IntervalSpec) Kind() Kind { return KindInterval }

func (iv *IntervalSpec) String() string { return iv.raw }

// Occurrence returns the k-th instant of the sequence. Month and year steps
// clamp to the last day of the target month.
func (iv *IntervalSpec) Occurrence(k int) time.Time {
	steps := k * iv.Value
	switch iv.Unit {
	case UnitDay:
		return iv.Reference.AddDate(0, 0, steps)
	case UnitMonth:
		return addMonthsClamped(iv.Reference, steps)
	case UnitYear:
		return addMonthsClamped(iv.Reference, 12*steps)
	default:
		return iv.Reference
	}
}

// NextOccurrence is the instant a reminder that already fired triggerCount
// times is waiting for.
func (iv *IntervalSpec) NextOccurrence(triggerCount int) time.Time {
	if triggerCount < 0 {
		triggerCount = 0
	}
	return iv.Occurrence(triggerCount + 1)
}

// Due matches at minute resolution. An occurrence whose minute passed without
// a tick is not caught up.
func (iv *IntervalSpec) Due(now time.Time, triggerCount int) bool {
	return truncMinute(now).Equal(iv.NextOccurrence(triggerCount))
}

func (iv *IntervalSpec) Next(from time.Time, triggerCount int) (time.Time, bool) {
	next := iv.NextOccurrence(triggerCount)
	return next, !next.Before(truncMinute(from))
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), 0, 0, t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
