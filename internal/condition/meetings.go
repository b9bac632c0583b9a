package condition

import (
	"context"
	"time"
)

// LastThursday holds on the last Thursday of the month in Zone. It carries no
// time of day, the reminder's cron expression supplies that.
type LastThursday struct {
	Zone *time.Location
}

func (p *LastThursday) Evaluate(_ context.Context, now time.Time) (Outcome, error) {
	zone := p.Zone
	if zone == nil {
		zone = time.UTC
	}
	local := now.In(zone)
	last := local.Weekday() == time.Thursday && local.AddDate(0, 0, 7).Month() != local.Month()
	return Outcome{
		Trigger: last,
		Data:    map[string]any{"date": local.Format("2006-01-02")},
	}, nil
}
