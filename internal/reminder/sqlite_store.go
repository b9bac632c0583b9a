package reminder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tgifai/teleworker/internal/pkg/logs"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reminders (
	id            TEXT    PRIMARY KEY,
	name          TEXT    NOT NULL,
	message       TEXT    NOT NULL,
	recipients    TEXT    NOT NULL DEFAULT '',
	schedule      TEXT    NOT NULL,
	condition_ref TEXT    NOT NULL DEFAULT '',
	ring          INTEGER NOT NULL DEFAULT 0,
	active        INTEGER NOT NULL DEFAULT 1,
	trigger_count INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminders_active ON reminders(active);
`

// fixed width so created_at sorts lexically
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const reminderColumns = `id, name, message, recipients, schedule, condition_ref, ring, active, trigger_count, created_at`

// SQLiteStore persists reminders with the pure-Go modernc driver.
type SQLiteStore struct {
	db *sql.DB
}

var _ Repository = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; readers share it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		logs.CtxWarn(ctx, "[store] sqlite %s: set busy_timeout: %v", path, err)
	}
	if mode, err := enableWAL(ctx, db); err != nil {
		logs.CtxWarn(ctx, "[store] sqlite %s: enable WAL: %v", path, err)
	} else if mode != "wal" {
		logs.CtxWarn(ctx, "[store] sqlite %s: journal mode is %q, concurrent readers will block on writes", path, mode)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// enableWAL asks for WAL and returns the journal mode sqlite actually chose.
func enableWAL(ctx context.Context, db *sql.DB) (string, error) {
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode = WAL").Scan(&mode); err != nil {
		return "", err
	}
	return strings.ToLower(mode), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) List(ctx context.Context) ([]Reminder, error) {
	return s.query(ctx, `SELECT `+reminderColumns+` FROM reminders ORDER BY created_at, id`)
}

func (s *SQLiteStore) ListActive(ctx context.Context) ([]Reminder, error) {
	return s.query(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE active = 1 ORDER BY created_at, id`)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Reminder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	r, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Reminder{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Reminder{}, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) Create(ctx context.Context, r *Reminder) error {
	prepareCreate(r)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Message, EncodeRecipients(r.Recipients), r.Schedule, r.ConditionRef,
		boolInt(r.Ring), boolInt(r.Active), r.TriggerCount, r.CreatedAt.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, p Patch) (Reminder, error) {
	sets, args := patchColumns(p, sqliteDialect)
	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			`UPDATE reminders SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return Reminder{}, fmt.Errorf("update reminder: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return Reminder{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) IncrementCount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET trigger_count = trigger_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		r, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (Reminder, error) {
	var (
		r            Reminder
		recipients   string
		ring, active int
		createdAt    string
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Message, &recipients, &r.Schedule, &r.ConditionRef,
		&ring, &active, &r.TriggerCount, &createdAt); err != nil {
		return Reminder{}, err
	}
	r.Recipients = DecodeRecipients(recipients)
	r.Ring, r.Active = ring != 0, active != 0
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		r.CreatedAt = t
	}
	return r, nil
}

// dialect covers the bind differences between the SQL backends.
type dialect struct {
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
	boolValue   func(b bool) any
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	boolValue:   func(b bool) any { return boolInt(b) },
}

// patchColumns turns a patch into SET clauses and their arguments.
func patchColumns(p Patch, d dialect) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = "+d.placeholder(len(args)))
	}

	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Message != nil {
		add("message", *p.Message)
	}
	if p.Recipients != nil {
		add("recipients", EncodeRecipients(*p.Recipients))
	}
	if p.Schedule != nil {
		add("schedule", strings.TrimSpace(*p.Schedule))
	}
	if p.ConditionRef != nil {
		add("condition_ref", strings.TrimSpace(*p.ConditionRef))
	}
	if p.Ring != nil {
		add("ring", d.boolValue(*p.Ring))
	}
	if p.Active != nil {
		add("active", d.boolValue(*p.Active))
	}
	if p.TriggerCount != nil && *p.TriggerCount >= 0 {
		add("trigger_count", *p.TriggerCount)
	}
	return sets, args
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
