package reminder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS reminders (
	id            TEXT        PRIMARY KEY,
	name          TEXT        NOT NULL,
	message       TEXT        NOT NULL,
	recipients    TEXT        NOT NULL DEFAULT '',
	schedule      TEXT        NOT NULL,
	condition_ref TEXT        NOT NULL DEFAULT '',
	ring          BOOLEAN     NOT NULL DEFAULT FALSE,
	active        BOOLEAN     NOT NULL DEFAULT TRUE,
	trigger_count INTEGER     NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_reminders_active ON reminders(active);
`

var postgresDialect = dialect{
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	boolValue:   func(b bool) any { return b },
}

// PostgresStore persists reminders through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresStore)(nil)

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Reminder, error) {
	return s.query(ctx, `SELECT `+reminderColumns+` FROM reminders ORDER BY created_at, id`)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]Reminder, error) {
	return s.query(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE active ORDER BY created_at, id`)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Reminder, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, id)
	r, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reminder{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Reminder{}, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Create(ctx context.Context, r *Reminder) error {
	prepareCreate(r)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.Name, r.Message, EncodeRecipients(r.Recipients), r.Schedule, r.ConditionRef,
		r.Ring, r.Active, r.TriggerCount, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, p Patch) (Reminder, error) {
	sets, args := patchColumns(p, postgresDialect)
	if len(sets) > 0 {
		args = append(args, id)
		tag, err := s.pool.Exec(ctx,
			`UPDATE reminders SET `+strings.Join(sets, ", ")+` WHERE id = $`+strconv.Itoa(len(args)), args...)
		if err != nil {
			return Reminder{}, fmt.Errorf("update reminder: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return Reminder{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	return s.Get(ctx, id)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) IncrementCount(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE reminders SET trigger_count = trigger_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]Reminder, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		r, err := scanPostgres(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanPostgres(row pgx.Row) (Reminder, error) {
	var (
		r          Reminder
		recipients string
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Message, &recipients, &r.Schedule, &r.ConditionRef,
		&r.Ring, &r.Active, &r.TriggerCount, &r.CreatedAt); err != nil {
		return Reminder{}, err
	}
	r.Recipients = DecodeRecipients(recipients)
	return r, nil
}
