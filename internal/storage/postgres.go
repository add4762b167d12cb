package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pillbox/internal/schedule"
	logx "pillbox/pkg/logx"
)

type postgresStore struct {
	db  *sql.DB
	log logx.Logger

	// Serializes the read-check-write cycles (container uniqueness) within
	// this process.
	mu sync.Mutex
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS medications (
	seq            BIGSERIAL PRIMARY KEY,
	id             TEXT NOT NULL UNIQUE,
	scheduled_time TEXT NOT NULL DEFAULT '',
	name           TEXT NOT NULL DEFAULT '',
	quantity       TEXT NOT NULL DEFAULT '',
	container      TEXT NOT NULL DEFAULT ''
)`

func openPostgres(cfg Config, log logx.Logger) (schedule.Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storeErr(err)
	}

	st := &postgresStore{db: db, log: log}
	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, storeErr(err)
	}
	return st, nil
}

func (s *postgresStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.columns
		 WHERE table_name = 'medications' AND column_name = 'container'`).Scan(&n)
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

func (s *postgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *postgresStore) list(ctx context.Context, q querier) ([]schedule.Entry, error) {
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

func (s *postgresStore) List(ctx context.Context) ([]schedule.Entry, error) {
	out, err := s.list(ctx, s.db)
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (s *postgresStore) Get(ctx context.Context, id string) (schedule.Entry, error) {
	var e schedule.Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT id, scheduled_time, name, quantity, container FROM medications WHERE id = $1`, id).
		Scan(&e.ID, &e.Time, &e.Name, &e.Quantity, &e.Container)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Entry{}, schedule.ErrNotFound
	}
	if err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	return e, nil
}

func (s *postgresStore) Append(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	defer tx.Rollback()

	all, err := s.list(ctx, tx)
	if err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	if schedule.ContainerConflict(all, e.Container, e.ID) {
		return schedule.Entry{}, schedule.ErrContainerTaken
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO medications(id, scheduled_time, name, quantity, container) VALUES($1,$2,$3,$4,$5)`,
		e.ID, e.Time, e.Name, e.Quantity, e.Container); err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	if err := tx.Commit(); err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	return e, nil
}

func (s *postgresStore) Update(ctx context.Context, id string, p schedule.Patch) (schedule.Entry, error) {
	return s.update(ctx, `SELECT id FROM medications WHERE id = $1`, id, p)
}

func (s *postgresStore) UpdateFirstByName(ctx context.Context, name string, p schedule.Patch) (schedule.Entry, error) {
	return s.update(ctx, `SELECT id FROM medications WHERE name = $1 ORDER BY seq LIMIT 1`, name, p)
}

func (s *postgresStore) update(ctx context.Context, lookup, key string, p schedule.Patch) (schedule.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	all, err := s.list(ctx, tx)
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
		`UPDATE medications SET scheduled_time = $1, name = $2, quantity = $3, container = $4 WHERE id = $5`,
		updated.Time, updated.Name, updated.Quantity, updated.Container, updated.ID); err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	if err := tx.Commit(); err != nil {
		return schedule.Entry{}, storeErr(err)
	}
	return updated, nil
}

func (s *postgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM medications WHERE id = $1`, id)
	if err != nil {
		return storeErr(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (s *postgresStore) DeleteFirstByName(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM medications WHERE seq = (SELECT seq FROM medications WHERE name = $1 ORDER BY seq LIMIT 1)`, name)
	if err != nil {
		return storeErr(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}
