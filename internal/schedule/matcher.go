package schedule

import (
	"time"
)

// DefaultLocalZone is the wall clock interval schedules are written in.
var DefaultLocalZone = time.FixedZone("UTC+07:00", 7*60*60)

// Matcher evaluates schedules against instants. The zero value reads cron
// fields in UTC and interval dates at 00:00 UTC; use NewMatcher for the
// usual defaults.
type Matcher struct {
	// CronZone is the zone cron calendar fields and zone-less ISO instants
	// are read in.
	CronZone *time.Location
	// LocalZone is the zone interval reference dates are read in.
	LocalZone *time.Location
	// DefaultHour and DefaultMinute apply to interval patterns without a time.
	DefaultHour   int
	DefaultMinute int
}

func NewMatcher() *Matcher {
	return &Matcher{
		CronZone:      time.UTC,
		LocalZone:     DefaultLocalZone,
		DefaultHour:   8,
		DefaultMinute: 0,
	}
}

// IsDue reports whether schedule fires at now. A schedule that cannot be
// classified is never due and the classification error is returned so the
// caller can report it.
func (m *Matcher) IsDue(schedule string, triggerCount int, now time.Time) (bool, error) {
	spec, err := m.Parse(schedule)
	if err != nil {
		return false, err
	}
	return spec.Due(now, triggerCount), nil
}

func (m *Matcher) cronZone() *time.Location {
	if m == nil || m.CronZone == nil {
		return time.UTC
	}
	return m.CronZone
}

func (m *Matcher) localZone() *time.Location {
	if m == nil || m.LocalZone == nil {
		return time.UTC
	}
	return m.LocalZone
}

func truncMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}
