package schedule

import (
	"time"
)

// zone-less layouts are read in the matcher's cron zone
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// OneShotSpec fires once, on the first tick at or after At.
type OneShotSpec struct {
	At time.Time

	raw string
}

func (m *Matcher) parseOneShot(s string) (*OneShotSpec, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &OneShotSpec{At: t, raw: s}, true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, m.cronZone()); err == nil {
			return &OneShotSpec{At: t, raw: s}, true
		}
	}
	return nil, false
}

func (o *OneShotSpec) Kind() Kind { return KindOneShot }

func (o *OneShotSpec) String() string { return o.raw }

func (o *OneShotSpec) Due(now time.Time, triggerCount int) bool {
	return triggerCount == 0 && !o.At.After(now)
}

func (o *OneShotSpec) Next(_ time.Time, triggerCount int) (time.Time, bool) {
	return o.At, triggerCount == 0
}
