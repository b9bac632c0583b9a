package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tgifai/teleworker/internal/channel"
	"github.com/tgifai/teleworker/internal/condition"
	"github.com/tgifai/teleworker/internal/config"
	"github.com/tgifai/teleworker/internal/notify"
	"github.com/tgifai/teleworker/internal/pkg/httpx"
	"github.com/tgifai/teleworker/internal/reminder"
	"github.com/tgifai/teleworker/internal/schedule"
)

type memStore struct {
	mu        sync.Mutex
	reminders []reminder.Reminder
	incErr    error
	incCalls  map[string]int
}

func newMemStore(rs ...reminder.Reminder) *memStore {
	return &memStore{reminders: rs, incCalls: map[string]int{}}
}

func (s *memStore) ListActive(context.Context) ([]reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []reminder.Reminder
	for _, r := range s.reminders {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, id string) (reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reminders {
		if r.ID == id {
			return r, nil
		}
	}
	return reminder.Reminder{}, reminder.ErrNotFound
}

func (s *memStore) IncrementCount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incCalls[id]++
	if s.incErr != nil {
		return s.incErr
	}
	for i := range s.reminders {
		if s.reminders[i].ID == id {
			s.reminders[i].TriggerCount++
			return nil
		}
	}
	return reminder.ErrNotFound
}

func (s *memStore) count(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reminders {
		if r.ID == id {
			return r.TriggerCount
		}
	}
	return -1
}

type sent struct {
	recipients []string
	text       string
	ring       bool
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []sent
	panic map[string]bool // by text
	block time.Duration
}

func (n *recordingNotifier) Notify(_ context.Context, recipients []string, text string, ring bool) notify.Report {
	if n.panic[text] {
		panic("notifier exploded")
	}
	if n.block > 0 {
		time.Sleep(n.block)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{recipients: recipients, text: text, ring: ring})
	return notify.Report{Delivered: recipients}
}

func (n *recordingNotifier) texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		out = append(out, s.text)
	}
	return out
}

type fixedResolver map[string]condition.Result

func (f fixedResolver) Resolve(_ context.Context, ref string, _ time.Time) condition.Result {
	return f[ref]
}

func newEngine(store reminder.Store, n Notifier, r Resolver) *Engine {
	return New(Options{
		Store:    store,
		Matcher:  schedule.NewMatcher(),
		Resolver: r,
		Notifier: n,
		Config:   config.SchedulerConfig{MaxConcurrentRuns: 1, JobTimeoutSec: 5},
	})
}

var tickTime = time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)

func TestRunTick_CronDueAndNotDue(t *testing.T) {
	store := newMemStore(
		reminder.Reminder{ID: "due", Message: "a", Schedule: "30 9 * * *", Active: true},
		reminder.Reminder{ID: "later", Message: "b", Schedule: "31 9 * * *", Active: true},
		reminder.Reminder{ID: "inactive", Message: "c", Schedule: "30 9 * * *"},
	)
	n := &recordingNotifier{}
	rep := newEngine(store, n, fixedResolver{}).RunTick(context.Background(), tickTime)

	if rep.Evaluated != 2 || rep.Due != 1 || rep.Fired != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if got := n.texts(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("sent = %v", got)
	}
	if store.count("due") != 1 || store.count("later") != 0 {
		t.Fatal("only the fired reminder should be counted")
	}
}

type fakeChat struct {
	id   string
	fail map[string]bool

	mu   sync.Mutex
	sent []string
}

func (f *fakeChat) ID() string                 { return f.id }
func (f *fakeChat) Type() channel.Type         { return channel.Telegram }
func (f *fakeChat) Stop(context.Context) error { return nil }
func (f *fakeChat) SendMessage(_ context.Context, chatID, _ string) error {
	if f.fail[chatID] {
		return errors.New("forbidden: bot was blocked by the user")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, chatID)
	return nil
}

func TestRunTick_PartialDeliveryCountsOnce(t *testing.T) {
	chat := &fakeChat{id: "tg", fail: map[string]bool{"b": true}}
	reg := channel.NewRegistry()
	_ = reg.Register(chat)
	dispatcher := notify.New(reg, config.NotifyConfig{DefaultChannel: "tg"}, nil)

	store := newMemStore(reminder.Reminder{
		ID: "r1", Message: "stand up", Schedule: "30 9 * * *", Active: true,
		Recipients: reminder.Recipients{"a", "b", "c"},
	})
	rep := newEngine(store, dispatcher, fixedResolver{}).RunTick(context.Background(), tickTime)

	if rep.Fired != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if len(chat.sent) != 2 || chat.sent[0] != "a" || chat.sent[1] != "c" {
		t.Fatalf("delivered = %v", chat.sent)
	}
	if store.incCalls["r1"] != 1 || store.count("r1") != 1 {
		t.Fatalf("increments = %d, count = %d", store.incCalls["r1"], store.count("r1"))
	}
}

func TestRunTick_OneShotFiresOnce(t *testing.T) {
	store := newMemStore(reminder.Reminder{ID: "once", Message: "hny", Schedule: "2025-01-01T00:00:00Z", Active: true})
	n := &recordingNotifier{}
	e := newEngine(store, n, fixedResolver{})

	e.RunTick(context.Background(), tickTime)
	e.RunTick(context.Background(), tickTime.Add(time.Minute))

	if got := n.texts(); len(got) != 1 {
		t.Fatalf("one-shot fired %d times", len(got))
	}
	if store.count("once") != 1 {
		t.Fatalf("count = %d", store.count("once"))
	}
}

func TestRunTick_ConditionGateAndRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"value":"10","value_classification":"Extreme Fear"}]}`))
	}))
	defer srv.Close()

	reg := condition.NewRegistry()
	client := httpx.NewClient(2 * time.Second)
	condition.RegisterDefaults(reg, config.ConditionsConfig{FNG: config.FNGConfig{URL: srv.URL}}, schedule.DefaultLocalZone, client)
	resolver := condition.NewResolver(reg, client)

	store := newMemStore(
		reminder.Reminder{ID: "fng", Message: "Index at {{value}}, consider {{action}}", Schedule: "30 9 * * *",
			ConditionRef: condition.KeyExtreme, Active: true},
		reminder.Reminder{ID: "greed", Message: "sell", Schedule: "30 9 * * *",
			ConditionRef: condition.KeyExtremeGreed, Active: true},
		reminder.Reminder{ID: "bad-ref", Message: "never", Schedule: "30 9 * * *",
			ConditionRef: "/condition/unknown", Active: true},
	)
	n := &recordingNotifier{}
	rep := newEngine(store, n, resolver).RunTick(context.Background(), tickTime)

	if got := n.texts(); len(got) != 1 || got[0] != "Index at 10, consider buying" {
		t.Fatalf("sent = %v", got)
	}
	if rep.Fired != 1 || rep.Skipped != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if store.count("greed") != 0 || store.count("bad-ref") != 0 {
		t.Fatal("gated reminders must not be counted")
	}
}

func TestRunTick_Idempotent(t *testing.T) {
	store := newMemStore(
		reminder.Reminder{ID: "c", Message: "x", Schedule: "*/5 * * * *", Active: true},
		reminder.Reminder{ID: "i", Message: "y", Schedule: "P1D@2024-12-31T10:00", Active: true},
		reminder.Reminder{ID: "n", Message: "z", Schedule: "0 0 1 1 *", Active: true},
	)
	e := newEngine(store, &recordingNotifier{}, fixedResolver{})

	first := e.RunTick(context.Background(), tickTime)
	second := e.RunTick(context.Background(), tickTime)
	if first.Evaluated != second.Evaluated {
		t.Fatalf("first = %+v, second = %+v", first, second)
	}
	if first.Due != 1 || second.Due != 1 {
		t.Fatalf("due: first = %d, second = %d", first.Due, second.Due)
	}
}

func TestRunTick_PanicIsIsolated(t *testing.T) {
	store := newMemStore(
		reminder.Reminder{ID: "boom", Message: "boom", Schedule: "30 9 * * *", Active: true},
		reminder.Reminder{ID: "ok", Message: "ok", Schedule: "30 9 * * *", Active: true},
	)
	n := &recordingNotifier{panic: map[string]bool{"boom": true}}
	rep := newEngine(store, n, fixedResolver{}).RunTick(context.Background(), tickTime)

	if rep.Failed != 1 || rep.Fired != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if store.count("boom") != 0 || store.count("ok") != 1 {
		t.Fatalf("counts: boom=%d ok=%d", store.count("boom"), store.count("ok"))
	}
}

func TestRunTick_UnclassifiableSchedule(t *testing.T) {
	store := newMemStore(
		reminder.Reminder{ID: "bad", Message: "x", Schedule: "every tuesday", Active: true},
		reminder.Reminder{ID: "good", Message: "y", Schedule: "30 9 * * *", Active: true},
	)
	rep := newEngine(store, &recordingNotifier{}, fixedResolver{}).RunTick(context.Background(), tickTime)
	if rep.Failed != 1 || rep.Fired != 1 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestRunTick_PersistFailureStillFires(t *testing.T) {
	store := newMemStore(reminder.Reminder{ID: "r", Message: "x", Schedule: "30 9 * * *", Active: true})
	store.incErr = errors.New("disk full")
	n := &recordingNotifier{}
	rep := newEngine(store, n, fixedResolver{}).RunTick(context.Background(), tickTime)
	if rep.Fired != 1 || len(n.texts()) != 1 || store.incCalls["r"] != 1 {
		t.Fatalf("report = %+v, increments = %d", rep, store.incCalls["r"])
	}
}

func TestRunTick_SingletonGuard(t *testing.T) {
	store := newMemStore(reminder.Reminder{ID: "r", Message: "x", Schedule: "30 9 * * *", Active: true})
	n := &recordingNotifier{}
	e := newEngine(store, n, fixedResolver{})
	e.tryMarkRunning("r")

	rep := e.RunTick(context.Background(), tickTime)
	if rep.Skipped != 1 || len(n.texts()) != 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestRunTick_OverlappingTicksFireOneShotOnce(t *testing.T) {
	store := newMemStore(
		reminder.Reminder{ID: "slow", Message: "slow", Schedule: "30 9 * * *", Active: true},
		reminder.Reminder{ID: "once", Message: "once", Schedule: "2025-01-01T09:30:00Z", Active: true},
	)
	n := &recordingNotifier{block: 200 * time.Millisecond}
	e := newEngine(store, n, fixedResolver{})

	var wg sync.WaitGroup
	reports := make([]TickReport, 2)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i] = e.RunTick(context.Background(), tickTime)
		}(i)
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()

	var once int
	for _, text := range n.texts() {
		if text == "once" {
			once++
		}
	}
	if once != 1 || store.count("once") != 1 {
		t.Fatalf("one-shot delivered %d times, count = %d, reports = %+v", once, store.count("once"), reports)
	}
}

func TestRunTick_StaleListingUsesStoredCount(t *testing.T) {
	store := &staleListStore{memStore: newMemStore(
		reminder.Reminder{ID: "once", Message: "once", Schedule: "2025-01-01T09:30:00Z", Active: true},
	)}
	_ = store.IncrementCount(context.Background(), "once")
	n := &recordingNotifier{}

	rep := newEngine(store, n, fixedResolver{}).RunTick(context.Background(), tickTime)
	if rep.Due != 0 || len(n.texts()) != 0 {
		t.Fatalf("report = %+v, sent = %v", rep, n.texts())
	}
}

// staleListStore lists reminders with a zero count regardless of what Get sees.
type staleListStore struct {
	*memStore
}

func (s *staleListStore) ListActive(ctx context.Context) ([]reminder.Reminder, error) {
	rs, err := s.memStore.ListActive(ctx)
	for i := range rs {
		rs[i].TriggerCount = 0
	}
	return rs, err
}

func TestRunTick_BudgetDefersRemaining(t *testing.T) {
	store := newMemStore(
		reminder.Reminder{ID: "a", Message: "a", Schedule: "30 9 * * *", Active: true},
		reminder.Reminder{ID: "b", Message: "b", Schedule: "30 9 * * *", Active: true},
	)
	n := &recordingNotifier{block: 200 * time.Millisecond}
	e := newEngine(store, n, fixedResolver{})
	e.tickBudget = 50 * time.Millisecond

	rep := e.RunTick(context.Background(), tickTime)
	if rep.Fired != 1 || rep.Deferred != 1 || rep.Due != 2 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		msg  string
		subs map[string]string
		want string
	}{
		{"Index at {{value}}, consider {{action}}", map[string]string{"value": "10", "action": "buying"}, "Index at 10, consider buying"},
		{"Hi {{ name }}", map[string]string{"name": "Ana"}, "Hi Ana"},
		{"Keep {{unknown}} literal", map[string]string{"x": "1"}, "Keep {{unknown}} literal"},
		{"{{value}}{{value}}", map[string]string{"value": "7"}, "77"},
		{"no subs {{value}}", nil, "no subs {{value}}"},
		{"empty value [{{v}}]", map[string]string{"v": ""}, "empty value []"},
	}
	for _, tt := range tests {
		if got := Render(tt.msg, tt.subs); got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}
