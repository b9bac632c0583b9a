package condition

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tgifai/teleworker/internal/config"
	"github.com/tgifai/teleworker/internal/pkg/httpx"
)

var wib = time.FixedZone("UTC+07:00", 7*3600)

func fngServer(t *testing.T, value string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Fear and Greed Index","data":[{"value":"` + value + `","value_classification":"Extreme Fear"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(cfg config.ConditionsConfig) *Resolver {
	reg := NewRegistry()
	client := httpx.NewClient(2 * time.Second)
	RegisterDefaults(reg, cfg, wib, client)
	return NewResolver(reg, client)
}

func TestResolver_FNGExtreme(t *testing.T) {
	var hits int32
	srv := fngServer(t, "10", &hits)
	r := newTestResolver(config.ConditionsConfig{FNG: config.FNGConfig{URL: srv.URL}})
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		ref  string
		want bool
	}{
		{KeyExtreme, true},
		{KeyExtremeFear, true},
		{KeyExtremeGreed, false},
		{"/microservices/fng/extreme-fear", true},
	}
	for _, tt := range tests {
		res, err := r.Evaluate(context.Background(), tt.ref, now)
		if err != nil {
			t.Fatalf("Evaluate(%s) error = %v", tt.ref, err)
		}
		if res.Trigger != tt.want {
			t.Errorf("Evaluate(%s).Trigger = %v, want %v", tt.ref, res.Trigger, tt.want)
		}
		if res.Substitutions["value"] != "10" || res.Substitutions["action"] != "buying" {
			t.Errorf("Evaluate(%s) substitutions = %v", tt.ref, res.Substitutions)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("api hits = %d, want 1 (cached)", got)
	}
}

func TestResolver_FNGNeutral(t *testing.T) {
	srv := fngServer(t, "50", nil)
	r := newTestResolver(config.ConditionsConfig{FNG: config.FNGConfig{URL: srv.URL}})

	res := r.Resolve(context.Background(), KeyExtreme, time.Now())
	if res.Trigger {
		t.Fatal("neutral index must not trigger")
	}
	if res.Substitutions["action"] != "holding" {
		t.Fatalf("action = %q", res.Substitutions["action"])
	}
}

func TestResolver_External(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/yes":
			_, _ = w.Write([]byte(" 1\n"))
		case "/no":
			_, _ = w.Write([]byte("0"))
		case "/word":
			_, _ = w.Write([]byte("true"))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("1"))
		}
	}))
	defer srv.Close()

	r := NewResolver(NewRegistry(), httpx.NewClient(2*time.Second))
	tests := []struct {
		path string
		want bool
	}{
		{"/yes", true},
		{"/no", false},
		{"/word", false},
		{"/broken", false},
	}
	for _, tt := range tests {
		res, err := r.Evaluate(context.Background(), srv.URL+tt.path, time.Now())
		if err != nil {
			t.Fatalf("Evaluate(%s) error = %v", tt.path, err)
		}
		if res.Trigger != tt.want {
			t.Errorf("Evaluate(%s) = %v, want %v", tt.path, res.Trigger, tt.want)
		}
	}
}

func TestResolver_Errors(t *testing.T) {
	r := NewResolver(NewRegistry(), httpx.NewClient(time.Second))
	ctx := context.Background()

	if _, err := r.Evaluate(ctx, "/condition/nope", time.Now()); !errors.Is(err, ErrUnknownCondition) {
		t.Fatalf("unknown path err = %v", err)
	}
	if _, err := r.Evaluate(ctx, "ftp://example.com/x", time.Now()); !errors.Is(err, ErrInvalidConditionRef) {
		t.Fatalf("bad scheme err = %v", err)
	}
	if res := r.Resolve(ctx, "/condition/nope", time.Now()); res.Trigger {
		t.Fatal("Resolve of unknown ref must not trigger")
	}
	if res := r.Resolve(ctx, "http://127.0.0.1:1/unreachable", time.Now()); res.Trigger {
		t.Fatal("Resolve of unreachable ref must not trigger")
	}
}

func TestResolver_PanicIsContained(t *testing.T) {
	reg := NewRegistry()
	reg.Register("/condition/boom", ProviderFunc(func(context.Context, time.Time) (Outcome, error) {
		panic("boom")
	}))
	r := NewResolver(reg, nil)
	if res := r.Resolve(context.Background(), "/condition/boom", time.Now()); res.Trigger {
		t.Fatal("panicking provider must resolve to not met")
	}
}

func TestResolver_Check(t *testing.T) {
	r := newTestResolver(config.ConditionsConfig{})
	tests := []struct {
		ref     string
		wantErr error
	}{
		{"", nil},
		{KeyMonthlyMeeting, nil},
		{"/condition/prayer/wake-up/", nil},
		{"https://example.com/gate", nil},
		{"/condition/unknown", ErrUnknownCondition},
		{"example.com/gate", ErrInvalidConditionRef},
		{"http://", ErrInvalidConditionRef},
	}
	for _, tt := range tests {
		err := r.Check(tt.ref)
		if tt.wantErr == nil && err != nil {
			t.Errorf("Check(%q) error = %v", tt.ref, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Errorf("Check(%q) error = %v, want %v", tt.ref, err, tt.wantErr)
		}
	}
}

func TestRegistry_Keys(t *testing.T) {
	r := newTestResolver(config.ConditionsConfig{})
	keys := r.Registry.Keys()
	if len(keys) != 7 {
		t.Fatalf("keys = %v", keys)
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
	for _, k := range keys {
		if strings.HasPrefix(k, "/microservices/") {
			t.Fatalf("alias %s listed", k)
		}
	}
}

func prayerServer(t *testing.T, hits *int32, paths *[]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		mu.Lock()
		*paths = append(*paths, r.URL.Path)
		mu.Unlock()
		if r.URL.Query().Get("method") != "20" || r.URL.Query().Get("city") != "Sidoarjo" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"code":200,"data":{"timings":{"Fajr":"04:10 (WIB)","Sunrise":"05:20","Dhuhr":"11:40","Asr":"15:05","Maghrib":"17:55","Isha":"19:08"}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPrayerAlarms(t *testing.T) {
	var hits int32
	var paths []string
	srv := prayerServer(t, &hits, &paths)

	cfg := config.ConditionsConfig{Prayer: config.PrayerConfig{URL: srv.URL, City: "Sidoarjo", Country: "Indonesia", Method: 20}}
	r := newTestResolver(cfg)
	ctx := context.Background()

	// 2025-01-03 is a Friday.
	tests := []struct {
		name string
		ref  string
		at   time.Time
		want bool
	}{
		{"fajr minus five", KeyWakeUp, time.Date(2025, 1, 3, 4, 5, 0, 0, wib), true},
		{"fajr minus four", KeyWakeUp, time.Date(2025, 1, 3, 4, 6, 0, 0, wib), false},
		{"sunrise minus ten", KeyWakeUpSunrise, time.Date(2025, 1, 3, 5, 10, 30, 0, wib), true},
		{"friday dhuhr", KeyFridayPrayer, time.Date(2025, 1, 3, 11, 10, 0, 0, wib), true},
		{"utc input", KeyWakeUp, time.Date(2025, 1, 2, 21, 5, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Evaluate(ctx, tt.ref, tt.at)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if res.Trigger != tt.want {
				t.Fatalf("Trigger = %v, want %v (subs %v)", res.Trigger, tt.want, res.Substitutions)
			}
		})
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("api hits = %d, want 1 for a single day", got)
	}
	if len(paths) == 0 || !strings.HasSuffix(paths[0], "/03-01-2025") {
		t.Fatalf("paths = %v", paths)
	}

	res, _ := r.Evaluate(ctx, KeyWakeUp, time.Date(2025, 1, 3, 4, 5, 0, 0, wib))
	if res.Substitutions["time"] != "04:10" || res.Substitutions["alarm"] != "04:05" {
		t.Fatalf("substitutions = %v", res.Substitutions)
	}
}

func TestPrayerAlarm_FridayOnly(t *testing.T) {
	var hits int32
	var paths []string
	srv := prayerServer(t, &hits, &paths)
	cfg := config.ConditionsConfig{Prayer: config.PrayerConfig{URL: srv.URL, City: "Sidoarjo", Country: "Indonesia", Method: 20}}
	r := newTestResolver(cfg)

	p, _ := r.Registry.Lookup(KeyFridayPrayer)
	ap := p.(AlarmProvider)

	thursday := time.Date(2025, 1, 2, 11, 10, 0, 0, wib)
	if _, ok, err := ap.AlarmAt(context.Background(), thursday); err != nil || ok {
		t.Fatalf("AlarmAt(thursday) ok = %v err = %v", ok, err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatal("weekday gate should skip the fetch")
	}

	at, ok, err := ap.AlarmAt(context.Background(), thursday.AddDate(0, 0, 1))
	if err != nil || !ok {
		t.Fatalf("AlarmAt(friday) ok = %v err = %v", ok, err)
	}
	if at.Format("15:04") != "11:10" {
		t.Fatalf("alarm = %s", at.Format("15:04"))
	}
}

func TestLastThursday(t *testing.T) {
	p := &LastThursday{Zone: wib}
	tests := []struct {
		day  time.Time
		want bool
	}{
		{time.Date(2025, 1, 30, 9, 0, 0, 0, wib), true},
		{time.Date(2025, 1, 23, 9, 0, 0, 0, wib), false},
		{time.Date(2025, 1, 31, 9, 0, 0, 0, wib), false},
		{time.Date(2025, 2, 27, 9, 0, 0, 0, wib), true},
		// Thursday 30th in local time, still Wednesday in UTC.
		{time.Date(2025, 1, 29, 20, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		out, err := p.Evaluate(context.Background(), tt.day)
		if err != nil {
			t.Fatal(err)
		}
		if out.Trigger != tt.want {
			t.Errorf("Evaluate(%s) = %v, want %v", tt.day, out.Trigger, tt.want)
		}
	}
}

func TestParseTiming(t *testing.T) {
	hh, mm, err := parseTiming(" 04:10 (WIB)")
	if err != nil || hh != 4 || mm != 10 {
		t.Fatalf("parseTiming = %d:%d %v", hh, mm, err)
	}
	if _, _, err := parseTiming("soon"); err == nil {
		t.Fatal("expected error")
	}
}
