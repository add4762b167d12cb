package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"pillbox/internal/schedule"
	logx "pillbox/pkg/logx"
)

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS medications (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT    NOT NULL UNIQUE,
	scheduled_time TEXT    NOT NULL DEFAULT '',
	name           TEXT    NOT NULL DEFAULT '',
	quantity       TEXT    NOT NULL DEFAULT '',
	container      TEXT    NOT NULL DEFAULT ''
)`

func openSQLite(cfg Config, log logx.Logger) (schedule.Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; a 1-connection pool also serializes the
	// read-check-write cycles below.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, storeErr(err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return err
	}
	// Pre-existing tables may predate the container column. Idempotent.
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('medications') WHERE name = 'container'`).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		s.log.Info("adding container column to medications table")
		if _, err := s.db.ExecContext(ctx,
			`ALTER TABLE medications ADD COLUMN container TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// querier covers both *sql.DB and *sql.Tx for shared list queries.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func sqliteList(ctx context.Context, q querier) ([]schedule.Entry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, scheduled_time, name, quantity, container FROM medications ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Entry
	for rows.Next() {
		var e schedule.Entry
		if err := rows.Scan(&e.ID, &e.Time, &e.Name, &e.Quantity, &e.Container); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) List(ctx context.Context) ([]schedule.Entry, error) {
	out, err := sqliteList(ctx, s.db)
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (schedule.Entry, error) {
	var e schedule.Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT id, scheduled_time, name, quantity, container FROM medications WHERE id = ?`, id).
		Scan(&e.ID, &e.Time, &e.Name, &e.Quantity, &e.Container)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Entry{}, schedule.ErrNotFound
	}
	if err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	return e, nil
}

func (s *sqliteStore) Append(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	defer tx.Rollback()

	all, err := sqliteList(ctx, tx)
	if err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	if schedule.ContainerConflict(all, e.Container, e.ID) {
		return schedule.Entry{}, schedule.ErrContainerTaken
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO medications(id, scheduled_time, name, quantity, container) VALUES(?,?,?,?,?)`,
		e.ID, e.Time, e.Name, e.Quantity, e.Container); err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	if err := tx.Commit(); err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	return e, nil
}

func (s *sqliteStore) Update(ctx context.Context, id string, p schedule.Patch) (schedule.Entry, error) {
	return s.update(ctx, `SELECT id FROM medications WHERE id = ?`, id, p)
}

func (s *sqliteStore) UpdateFirstByName(ctx context.Context, name string, p schedule.Patch) (schedule.Entry, error) {
	return s.update(ctx, `SELECT id FROM medications WHERE name = ? ORDER BY seq LIMIT 1`, name, p)
}

func (s *sqliteStore) update(ctx context.Context, lookup, key string, p schedule.Patch) (schedule.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, lookup, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Entry{}, schedule.ErrNotFound
	}
	if err != nil {
		return schedule.Entry{}, storeErr(err)
	}

	all, err := sqliteList(ctx, tx)
	if err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	var updated schedule.Entry
	found := false
	for _, e := range all {
		if e.ID == id {
			updated = e
			found = true
			break
		}
	}
	if !found {
		return schedule.Entry{}, schedule.ErrNotFound
	}
	p.Apply(&updated)
	if schedule.ContainerConflict(all, updated.Container, updated.ID) {
		return schedule.Entry{}, schedule.ErrContainerTaken
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE medications SET scheduled_time = ?, name = ?, quantity = ?, container = ? WHERE id = ?`,
		updated.Time, updated.Name, updated.Quantity, updated.Container, updated.ID); err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	if err := tx.Commit(); err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	return updated, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM medications WHERE id = ?`, id)
	if err != nil {
		return storeErr(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DeleteFirstByName(ctx context.Context, name string) error {
	// Only the first matching row in store order; later duplicates stay.
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM medications WHERE seq = (SELECT seq FROM medications WHERE name = ? ORDER BY seq LIMIT 1)`, name)
	if err != nil {
		return storeErr(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}
