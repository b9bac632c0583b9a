package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tgifai/teleworker/internal/condition"
	"github.com/tgifai/teleworker/internal/pkg/logs"
	"github.com/tgifai/teleworker/internal/reminder"
	"github.com/tgifai/teleworker/internal/schedule"
)

// Alarm is one ring-enabled reminder expected to fire today, in local time.
// It feeds phone alarm shortcuts.
type Alarm struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Time string `json:"time"` // 15:04
	Date string `json:"date"` // 2006-01-02T15:04:00

	at time.Time
}

// Alarms lists today's alarms for the ring-enabled active reminders, sorted by
// time. "Today" is the local date of now.
func (e *Engine) Alarms(ctx context.Context, reminders []reminder.Reminder, now time.Time) []Alarm {
	zone := e.matcher.LocalZone
	if zone == nil {
		zone = time.UTC
	}
	local := now.In(zone)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var alarms []Alarm
	for _, r := range reminders {
		if !r.Active || !r.Ring {
			continue
		}
		spec, err := e.matcher.Parse(r.Schedule)
		if err != nil {
			logs.CtxDebug(ctx, "[engine] alarms: skip %s: %v", r.ID, err)
			continue
		}

		at, ok := e.alarmFor(ctx, r, spec, now, dayStart, dayEnd)
		if !ok || at.Before(dayStart) || !at.Before(dayEnd) {
			continue
		}
		at = at.In(zone)
		alarms = append(alarms, Alarm{
			ID:   r.ID,
			Name: r.Name,
			Time: at.Format("15:04"),
			Date: at.Format("2006-01-02T15:04:00"),
			at:   at,
		})
	}

	sort.SliceStable(alarms, func(i, j int) bool {
		if !alarms[i].at.Equal(alarms[j].at) {
			return alarms[i].at.Before(alarms[j].at)
		}
		return alarms[i].Name < alarms[j].Name
	})
	return alarms
}

func (e *Engine) alarmFor(ctx context.Context, r reminder.Reminder, spec schedule.Spec, now, dayStart, dayEnd time.Time) (time.Time, bool) {
	switch s := spec.(type) {
	case *schedule.IntervalSpec:
		return s.NextOccurrence(r.TriggerCount), true

	case *schedule.OneShotSpec:
		return s.At, r.TriggerCount == 0

	case *schedule.CronSpec:
		first, ok := s.FirstMatchBetween(dayStart, dayEnd)
		if !ok {
			return time.Time{}, false
		}
		p := e.internalProvider(r.ConditionRef)
		if p == nil {
			return first, true
		}

		if ap, isAlarm := p.(condition.AlarmProvider); isAlarm {
			at, ok, err := ap.AlarmAt(ctx, now)
			if err != nil {
				logs.CtxWarn(ctx, "[engine] alarms: %s: %v", r.ConditionRef, err)
				return time.Time{}, false
			}
			return at, ok
		}

		// Calendar-style conditions: the cron fixes the time, the provider
		// decides whether today counts.
		out, err := p.Evaluate(ctx, first)
		if err != nil {
			logs.CtxWarn(ctx, "[engine] alarms: %s: %v", r.ConditionRef, err)
			return time.Time{}, false
		}
		return first, out.Trigger
	}
	return time.Time{}, false
}

func (e *Engine) internalProvider(ref string) condition.Provider {
	if e.providers == nil || !strings.HasPrefix(strings.TrimSpace(ref), "/") {
		return nil
	}
	p, ok := e.providers.Lookup(ref)
	if !ok {
		return nil
	}
	return p
}
