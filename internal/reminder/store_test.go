package reminder

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/tgifai/teleworker/internal/config"
)

// exerciseRepository runs the same contract against every backend.
func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	a := &Reminder{
		Name:       "water",
		Message:    "drink {{value}}",
		Recipients: Recipients{"1", "tg:2"},
		Schedule:   "0 9 * * *",
		Ring:       true,
		Active:     true,
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if a.ID == "" || a.CreatedAt.IsZero() || a.TriggerCount != 0 {
		t.Fatalf("Create() did not assign defaults: %+v", a)
	}

	b := &Reminder{Name: "paused", Message: "m", Recipients: Recipients{"3"}, Schedule: "2025-01-01T00:00:00Z"}
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "water" || !got.Ring || !got.Active || len(got.Recipients) != 2 || got.Recipients[1] != "tg:2" {
		t.Fatalf("Get() = %+v", got)
	}

	all, err := repo.List(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("List() = %d, %v", len(all), err)
	}
	active, err := repo.ListActive(ctx)
	if err != nil || len(active) != 1 || active[0].ID != a.ID {
		t.Fatalf("ListActive() = %+v, %v", active, err)
	}

	for i := 0; i < 2; i++ {
		if err := repo.IncrementCount(ctx, a.ID); err != nil {
			t.Fatalf("IncrementCount() error = %v", err)
		}
	}
	got, _ = repo.Get(ctx, a.ID)
	if got.TriggerCount != 2 {
		t.Fatalf("count = %d, want 2", got.TriggerCount)
	}

	ring, cond := false, "/condition/extreme"
	updated, err := repo.Update(ctx, a.ID, Patch{Ring: &ring, ConditionRef: &cond})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Ring || updated.ConditionRef != cond || updated.Name != "water" || updated.TriggerCount != 2 {
		t.Fatalf("Update() = %+v", updated)
	}

	if _, err := repo.Update(ctx, "missing", Patch{Ring: &ring}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update(missing) err = %v", err)
	}
	if err := repo.IncrementCount(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("IncrementCount(missing) err = %v", err)
	}
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err = %v", err)
	}

	if err := repo.Delete(ctx, b.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete twice err = %v", err)
	}
	all, _ = repo.List(ctx)
	if len(all) != 1 {
		t.Fatalf("List() after delete = %d", len(all))
	}
}

func TestJSONStore(t *testing.T) {
	repo := NewJSONStore(filepath.Join(t.TempDir(), "data", "reminders.json"))
	exerciseRepository(t, repo)
}

func TestJSONStore_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	rs, err := NewJSONStore(path).List(context.Background())
	if err != nil || len(rs) != 0 {
		t.Fatalf("List() = %v, %v", rs, err)
	}
}

func TestJSONStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	repo := NewJSONStore(filepath.Join(t.TempDir(), "reminders.json"))
	r := &Reminder{Name: "n", Message: "m", Schedule: "* * * * *", Active: true}
	if err := repo.Create(ctx, r); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.IncrementCount(ctx, r.ID)
		}()
	}
	wg.Wait()

	got, _ := repo.Get(ctx, r.ID)
	if got.TriggerCount != 20 {
		t.Fatalf("count = %d, want 20", got.TriggerCount)
	}
}

func TestJSONStore_ReadsLegacyRecipients(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.json")
	legacy := `[{"id":"r1","name":"n","message":"m","chat_ids":"[\"10\",\"20\"]","when":"0 9 * * *","ring":false,"active":true,"count":0,"created_at":"2025-01-01T00:00:00Z"}]`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := NewJSONStore(path).Get(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Recipients) != 2 || r.Recipients[0] != "10" {
		t.Fatalf("recipients = %#v", r.Recipients)
	}
}

func TestSQLiteStore(t *testing.T) {
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "reminders.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer repo.Close()
	exerciseRepository(t, repo)
}

func TestSQLiteStore_JournalMode(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "reminders.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer repo.Close()

	var mode string
	if err := repo.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if strings.ToLower(mode) != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}

	mem, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	defer mem.Close()
	got, err := enableWAL(ctx, mem)
	if err != nil {
		t.Fatalf("enableWAL() error = %v", err)
	}
	if got != "memory" {
		t.Fatalf("in-memory journal mode = %q, want memory reported back", got)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TELEWORKER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TELEWORKER_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	repo, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer repo.Close()
	if _, err := repo.pool.Exec(ctx, `TRUNCATE reminders`); err != nil {
		t.Fatal(err)
	}
	exerciseRepository(t, repo)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		cfg     config.StoreConfig
		want    string
		wantErr bool
	}{
		{cfg: config.StoreConfig{Driver: config.StoreJSON, Path: filepath.Join(dir, "r.json")}, want: "*reminder.JSONStore"},
		{cfg: config.StoreConfig{Driver: config.StoreSQLite, Path: filepath.Join(dir, "r.db")}, want: "*reminder.SQLiteStore"},
		{cfg: config.StoreConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		repo, err := Open(context.Background(), tt.cfg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Open(%s) expected error", tt.cfg.Driver)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Open(%s) error = %v", tt.cfg.Driver, err)
		}
		if got := typeName(repo); got != tt.want {
			t.Errorf("Open(%s) = %s, want %s", tt.cfg.Driver, got, tt.want)
		}
		_ = repo.Close()
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *JSONStore:
		return "*reminder.JSONStore"
	case *SQLiteStore:
		return "*reminder.SQLiteStore"
	case *PostgresStore:
		return "*reminder.PostgresStore"
	}
	return "unknown"
}
