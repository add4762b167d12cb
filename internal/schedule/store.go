package schedule

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnavailable means the backing table is missing or unreadable.
	// Non-retriable without operator action; callers abort and report it.
	ErrStoreUnavailable = errors.New("schedule store unavailable")

	// ErrNotFound means no entry matched the given id or name.
	ErrNotFound = errors.New("schedule entry not found")

	// ErrContainerTaken means the requested container slot is already
	// assigned to another entry. Uniqueness is checked inside the store's
	// single-writer critical section, so two near-simultaneous creations
	// cannot both claim the same slot.
	ErrContainerTaken = errors.New("container already assigned")
)

// Patch is a partial update. Nil fields preserve the stored value; non-nil
// fields overwrite it (an explicit empty string clears, e.g. the container).
type Patch struct {
	Time      *string
	Name      *string
	Quantity  *string
	Container *string
}

// Apply overwrites e's fields from the non-nil patch fields.
func (p Patch) Apply(e *Entry) {
	if p.Time != nil {
		e.Time = *p.Time
	}
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Quantity != nil {
		e.Quantity = *p.Quantity
	}
	if p.Container != nil {
		e.Container = *p.Container
	}
}

// Store is the persisted medication schedule. Implementations serialize every
// load-mutate-persist cycle (single-writer discipline); readers get a
// point-in-time snapshot. All mutations persist immediately.
//
// Entries keep a stable insertion order; the ...FirstByName operations exist
// for the legacy name-keyed surface and act on the first match in that order.
type Store interface {
	List(ctx context.Context) ([]Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	Append(ctx context.Context, e Entry) (Entry, error)
	Update(ctx context.Context, id string, p Patch) (Entry, error)
	Delete(ctx context.Context, id string) error
	UpdateFirstByName(ctx context.Context, name string, p Patch) (Entry, error)
	DeleteFirstByName(ctx context.Context, name string) error
	Close() error
}
