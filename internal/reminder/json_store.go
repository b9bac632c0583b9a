package reminder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

// JSONStore keeps reminders in a single JSON file. Every operation reads the
// file, so several processes sharing it see each other's writes; writes are
// atomic (tmp + rename) and serialized within the process.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

var _ Repository = (*JSONStore)(nil)

// NewJSONStore creates a store backed by path. The file is created on the
// first write.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) load() ([]Reminder, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var rs []Reminder
	if err := sonic.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("unmarshal store: %w", err)
	}
	return rs, nil
}

func (s *JSONStore) save(rs []Reminder) error {
	if rs == nil {
		rs = []Reminder{}
	}
	data, err := sonic.ConfigStd.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tmp store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename store: %w", err)
	}
	return nil
}

// mutate runs fn over the loaded reminders and saves the result when fn
// reports a change.
func (s *JSONStore) mutate(fn func(rs []Reminder) ([]Reminder, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.load()
	if err != nil {
		return err
	}
	rs, changed, err := fn(rs)
	if err != nil || !changed {
		return err
	}
	return s.save(rs)
}

func (s *JSONStore) List(_ context.Context) ([]Reminder, error) {
	s.mu.Lock()
	rs, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sortReminders(rs)
	return rs, nil
}

func (s *JSONStore) ListActive(ctx context.Context) ([]Reminder, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, r := range all {
		if r.Active {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *JSONStore) Get(_ context.Context, id string) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, err := s.load()
	if err != nil {
		return Reminder{}, err
	}
	for _, r := range rs {
		if r.ID == id {
			return r, nil
		}
	}
	return Reminder{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *JSONStore) Create(_ context.Context, r *Reminder) error {
	prepareCreate(r)
	return s.mutate(func(rs []Reminder) ([]Reminder, bool, error) {
		for _, existing := range rs {
			if existing.ID == r.ID {
				return nil, false, fmt.Errorf("reminder already exists: %s", r.ID)
			}
		}
		return append(rs, *r), true, nil
	})
}

func (s *JSONStore) Update(_ context.Context, id string, p Patch) (Reminder, error) {
	var updated Reminder
	err := s.mutate(func(rs []Reminder) ([]Reminder, bool, error) {
		for i := range rs {
			if rs[i].ID == id {
				p.Apply(&rs[i])
				updated = rs[i]
				return rs, !p.Empty(), nil
			}
		}
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, id)
	})
	return updated, err
}

func (s *JSONStore) Delete(_ context.Context, id string) error {
	return s.mutate(func(rs []Reminder) ([]Reminder, bool, error) {
		for i := range rs {
			if rs[i].ID == id {
				return append(rs[:i], rs[i+1:]...), true, nil
			}
		}
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, id)
	})
}

func (s *JSONStore) IncrementCount(_ context.Context, id string) error {
	return s.mutate(func(rs []Reminder) ([]Reminder, bool, error) {
		for i := range rs {
			if rs[i].ID == id {
				rs[i].TriggerCount++
				return rs, true, nil
			}
		}
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, id)
	})
}

func (s *JSONStore) Close() error { return nil }
