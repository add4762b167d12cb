package storage

import (
	"errors"
	"strings"

	"pillbox/internal/schedule"
	logx "pillbox/pkg/logx"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (schedule.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "postgres", "pg":
		return openPostgres(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// storeErr maps backend failures onto the non-retriable taxonomy error while
// keeping the cause in the chain.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, schedule.ErrStoreUnavailable) ||
		errors.Is(err, schedule.ErrNotFound) ||
		errors.Is(err, schedule.ErrContainerTaken) {
		return err
	}
	return errors.Join(schedule.ErrStoreUnavailable, err)
}
