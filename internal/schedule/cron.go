package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser is a standard 5-field cron expression parser (minute hour dom month dow).
// It is only used for bound checks; matching follows MatchField.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// maxCronScan bounds Next lookups for sparse expressions such as "0 0 29 2 *".
const maxCronScan = 366 * 24 * time.Hour

// MatchField reports whether a single cron field matches value. A field is
// a comma-separated list of sub-fields, each one of: "*" (any value), "a-b"
// (inclusive range), "*/n" (value mod n == 0) or a plain integer.
//
// Anything else never matches.
func MatchField(field string, value int) bool {
	field = strings.TrimSpace(field)
	if field == "*" {
		return true
	}
	if strings.Contains(field, ",") {
		for _, part := range strings.Split(field, ",") {
			if MatchField(part, value) {
				return true
			}
		}
		return false
	}
	if step, ok := strings.CutPrefix(field, "*/"); ok {
		n, err := strconv.Atoi(step)
		return err == nil && n > 0 && value%n == 0
	}
	if lo, hi, ok := strings.Cut(field, "-"); ok && lo != "" {
		a, errA := strconv.Atoi(lo)
		b, errB := strconv.Atoi(hi)
		return errA == nil && errB == nil && a <= value && value <= b
	}
	n, err := strconv.Atoi(field)
	return err == nil && n == value
}

// validField checks a field against the forms MatchField understands.
func validField(field string) bool {
	if field == "" {
		return false
	}
	if field == "*" {
		return true
	}
	if strings.Contains(field, ",") {
		for _, part := range strings.Split(field, ",") {
			if part == "*" || strings.Contains(part, ",") || !validField(part) {
				return false
			}
		}
		return true
	}
	if step, ok := strings.CutPrefix(field, "*/"); ok {
		n, err := strconv.Atoi(step)
		return err == nil && n > 0
	}
	if lo, hi, ok := strings.Cut(field, "-"); ok {
		a, errA := strconv.Atoi(lo)
		b, errB := strconv.Atoi(hi)
		return errA == nil && errB == nil && a >= 0 && a <= b
	}
	n, err := strconv.Atoi(field)
	return err == nil && n >= 0
}

var cronFieldNames = [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}

// CronSpec is a 5-field cron expression evaluated in a fixed zone.
type CronSpec struct {
	Fields [5]string
	Zone   *time.Location
}

func (m *Matcher) parseCron(fields []string) (*CronSpec, error) {
	spec := &CronSpec{Zone: m.cronZone()}
	for i, f := range fields {
		if !validField(f) {
			return nil, fmt.Errorf("%w: bad %s field %q", ErrInvalidCron, cronFieldNames[i], f)
		}
		spec.Fields[i] = f
	}
	if _, err := cronParser.Parse(strings.Join(fields, " ")); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCron, err)
	}
	return spec, nil
}

func (c *CronSpec) Kind() Kind { return KindCron }

func (c *CronSpec) String() string { return strings.Join(c.Fields[:], " ") }

// Matches reports whether all five fields match t, read in the expression's zone.
func (c *CronSpec) Matches(t time.Time) bool {
	t = t.In(c.zone())
	return MatchField(c.Fields[0], t.Minute()) &&
		MatchField(c.Fields[1], t.Hour()) &&
		MatchField(c.Fields[2], t.Day()) &&
		MatchField(c.Fields[3], int(t.Month())) &&
		MatchField(c.Fields[4], int(t.Weekday()))
}

// Due ignores triggerCount: cron reminders fire on every matching minute.
func (c *CronSpec) Due(now time.Time, _ int) bool {
	return c.Matches(now)
}

func (c *CronSpec) Next(from time.Time, _ int) (time.Time, bool) {
	return c.FirstMatchBetween(from, from.Add(maxCronScan))
}

// FirstMatchBetween scans minutes in [from, to) and returns the first match.
func (c *CronSpec) FirstMatchBetween(from, to time.Time) (time.Time, bool) {
	t := truncMinute(from)
	if t.Before(from) {
		t = t.Add(time.Minute)
	}
	for ; t.Before(to); t = t.Add(time.Minute) {
		if c.Matches(t) {
			return t, true
		}
	}
	return time.Time{}, false
}

func (c *CronSpec) zone() *time.Location {
	if c.Zone == nil {
		return time.UTC
	}
	return c.Zone
}
