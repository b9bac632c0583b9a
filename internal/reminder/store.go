package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tgifai/teleworker/internal/config"
)

var ErrNotFound = errors.New("reminder not found")

// Store is what the trigger engine needs.
type Store interface {
	ListActive(ctx context.Context) ([]Reminder, error)
	// Get reads the current row; the engine re-checks counts through it.
	Get(ctx context.Context, id string) (Reminder, error)
	// IncrementCount bumps the trigger count by one using the backend's
	// atomic update.
	IncrementCount(ctx context.Context, id string) error
}

// Repository adds the CRUD used by the gateway, MCP server and CLI.
type Repository interface {
	Store

	List(ctx context.Context) ([]Reminder, error)
	// Create assigns ID, CreatedAt and a zero count when they are unset.
	Create(ctx context.Context, r *Reminder) error
	Update(ctx context.Context, id string, p Patch) (Reminder, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open returns the repository selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Repository, error) {
	switch cfg.Driver {
	case config.StoreJSON, "":
		return NewJSONStore(cfg.Path), nil
	case config.StoreSQLite:
		return OpenSQLite(ctx, cfg.Path)
	case config.StorePostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func prepareCreate(r *Reminder) {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.TriggerCount = 0
	r.Recipients = cleanRecipients(r.Recipients)
}

// sortReminders orders by creation time, then id.
func sortReminders(rs []Reminder) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}
