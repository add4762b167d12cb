package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pillbox/internal/schedule"
	logx "pillbox/pkg/logx"
)

// fileStore is the dependency-light backend: one CSV table with a header
// row, kept fully in memory and rewritten atomically (temp file + rename)
// on every mutation. A mutex serializes each load-mutate-persist cycle.
//
// Legacy tables are migrated on open: a missing "container" or "id" header
// column is appended once, and rows without an id get one assigned.
type fileStore struct {
	log  logx.Logger
	path string

	mu      sync.Mutex
	entries []schedule.Entry
}

func openFile(cfg Config, log logx.Logger) (schedule.Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		// Lazy creation: an empty table with the full header.
		s.entries = nil
		s.log.Info("schedule table created", logx.String("path", s.path))
		return storeErr(s.persistLocked())
	}
	if err != nil {
		return storeErr(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return storeErr(err)
	}
	if len(records) == 0 {
		s.entries = nil
		return storeErr(s.persistLocked())
	}

	idx := map[string]int{}
	for i, h := range records[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	// One-time idempotent migration: persisting below rewrites the table
	// with the full header.
	migrate := false
	for _, col := range tableColumns {
		if _, ok := idx[col]; !ok {
			migrate = true
		}
	}

	s.entries = nil
	for _, rec := range records[1:] {
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		e := schedule.Entry{
			ID:        get("id"),
			Time:      get("scheduled_time"),
			Name:      get("name"),
			Quantity:  get("quantity"),
			Container: get("container"),
		}
		if e.Name == "" && e.Time == "" {
			continue
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
			migrate = true
		}
		s.entries = append(s.entries, e)
	}

	if migrate {
		s.log.Info("schedule table migrated", logx.String("path", s.path), logx.Int("entries", len(s.entries)))
		return storeErr(s.persistLocked())
	}
	return nil
}

// persistLocked writes the whole table via a temp file and rename. Caller
// holds s.mu.
func (s *fileStore) persistLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(tableColumns); err != nil {
		_ = f.Close()
		return err
	}
	for _, e := range s.entries {
		if err := w.Write([]string{e.Time, e.Name, e.Quantity, e.Container, e.ID}); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) List(ctx context.Context) ([]schedule.Entry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schedule.Entry(nil), s.entries...), nil
}

func (s *fileStore) Get(ctx context.Context, id string) (schedule.Entry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return schedule.Entry{}, schedule.ErrNotFound
}

func (s *fileStore) Append(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if schedule.ContainerConflict(s.entries, e.Container, e.ID) {
		return schedule.Entry{}, schedule.ErrContainerTaken
	}
	s.entries = append(s.entries, e)
	if err := s.persistLocked(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return schedule.Entry{}, storeErr(err)
	}
	return e, nil
}

func (s *fileStore) Update(ctx context.Context, id string, p schedule.Patch) (schedule.Entry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			return s.updateLocked(i, p)
		}
	}
	return schedule.Entry{}, schedule.ErrNotFound
}

func (s *fileStore) UpdateFirstByName(ctx context.Context, name string, p schedule.Patch) (schedule.Entry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].Name == name {
			return s.updateLocked(i, p)
		}
	}
	return schedule.Entry{}, schedule.ErrNotFound
}

func (s *fileStore) updateLocked(i int, p schedule.Patch) (schedule.Entry, error) {
	updated := s.entries[i]
	p.Apply(&updated)
	if schedule.ContainerConflict(s.entries, updated.Container, updated.ID) {
		return schedule.Entry{}, schedule.ErrContainerTaken
	}
	prev := s.entries[i]
	s.entries[i] = updated
	if err := s.persistLocked(); err != nil {
		s.entries[i] = prev
		return schedule.Entry{}, storeErr(err)
	}
	return updated, nil
}

func (s *fileStore) Delete(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			return s.deleteLocked(i)
		}
	}
	return schedule.ErrNotFound
}

func (s *fileStore) DeleteFirstByName(ctx context.Context, name string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].Name == name {
			return s.deleteLocked(i)
		}
	}
	return schedule.ErrNotFound
}

func (s *fileStore) deleteLocked(i int) error {
	prev := append([]schedule.Entry(nil), s.entries...)
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	if err := s.persistLocked(); err != nil {
		s.entries = prev
		return storeErr(err)
	}
	return nil
}
