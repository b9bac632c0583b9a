package condition

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tgifai/teleworker/internal/pkg/httpx"
)

// Timings holds one day's prayer times as "HH:MM" in the city's local time.
type Timings struct {
	Fajr    string `json:"Fajr"`
	Sunrise string `json:"Sunrise"`
	Dhuhr   string `json:"Dhuhr"`
	Asr     string `json:"Asr"`
	Maghrib string `json:"Maghrib"`
	Isha    string `json:"Isha"`
}

func (t Timings) get(name string) (string, bool) {
	switch name {
	case "Fajr":
		return t.Fajr, true
	case "Sunrise":
		return t.Sunrise, true
	case "Dhuhr":
		return t.Dhuhr, true
	case "Asr":
		return t.Asr, true
	case "Maghrib":
		return t.Maghrib, true
	case "Isha":
		return t.Isha, true
	}
	return "", false
}

type prayerResponse struct {
	Data struct {
		Timings Timings `json:"timings"`
	} `json:"data"`
}

// PrayerSource fetches daily timings for one city and caches them per local
// date. Only the current day is kept.
type PrayerSource struct {
	URL     string
	City    string
	Country string
	Method  int
	Zone    *time.Location
	Client  *http.Client

	mu      sync.Mutex
	day     string
	timings Timings
}

func (s *PrayerSource) zone() *time.Location {
	if s.Zone == nil {
		return time.UTC
	}
	return s.Zone
}

// Timings returns the timings for the local date of now.
func (s *PrayerSource) Timings(ctx context.Context, now time.Time) (Timings, error) {
	day := now.In(s.zone()).Format("02-01-2006")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.day == day {
		return s.timings, nil
	}

	q := url.Values{}
	q.Set("city", s.City)
	q.Set("country", s.Country)
	q.Set("method", strconv.Itoa(s.Method))
	endpoint := strings.TrimRight(s.URL, "/") + "/" + day + "?" + q.Encode()

	var resp prayerResponse
	if err := httpx.GetJSON(ctx, s.Client, endpoint, &resp); err != nil {
		return Timings{}, fmt.Errorf("fetch prayer timings: %w", err)
	}
	if resp.Data.Timings.Fajr == "" {
		return Timings{}, fmt.Errorf("prayer timings: empty response for %s", day)
	}

	s.day, s.timings = day, resp.Data.Timings
	return s.timings, nil
}

// PrayerAlarm holds during the minute that falls Offset before a prayer.
type PrayerAlarm struct {
	Source *PrayerSource
	Prayer string
	Offset time.Duration
	// OnlyOn restricts the alarm to one weekday when set.
	OnlyOn *time.Weekday
}

func (p *PrayerAlarm) Evaluate(ctx context.Context, now time.Time) (Outcome, error) {
	at, prayerAt, ok, err := p.alarm(ctx, now)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return Outcome{}, nil
	}

	local := now.In(p.Source.zone())
	return Outcome{
		Trigger: local.Hour() == at.Hour() && local.Minute() == at.Minute(),
		Data: map[string]any{
			"prayer": p.Prayer,
			"time":   prayerAt.Format("15:04"),
			"alarm":  at.Format("15:04"),
		},
	}, nil
}

func (p *PrayerAlarm) AlarmAt(ctx context.Context, now time.Time) (time.Time, bool, error) {
	at, _, ok, err := p.alarm(ctx, now)
	return at, ok, err
}

func (p *PrayerAlarm) alarm(ctx context.Context, now time.Time) (at, prayerAt time.Time, ok bool, err error) {
	local := now.In(p.Source.zone())
	if p.OnlyOn != nil && local.Weekday() != *p.OnlyOn {
		return time.Time{}, time.Time{}, false, nil
	}

	timings, err := p.Source.Timings(ctx, now)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	raw, known := timings.get(p.Prayer)
	if !known {
		return time.Time{}, time.Time{}, false, fmt.Errorf("unknown prayer %q", p.Prayer)
	}
	hh, mm, err := parseTiming(raw)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("%s: %w", p.Prayer, err)
	}

	prayerAt = time.Date(local.Year(), local.Month(), local.Day(), hh, mm, 0, 0, local.Location())
	return prayerAt.Add(-p.Offset), prayerAt, true, nil
}

// parseTiming reads "HH:MM", ignoring a trailing zone note like " (WIB)".
func parseTiming(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("bad timing %q", s)
	}
	return t.Hour(), t.Minute(), nil
}
