package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pillbox/internal/schedule"
	logx "pillbox/pkg/logx"
)

func openTestFileStore(t *testing.T, path string) schedule.Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestFileStoreLazyCreation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "schedule.csv")
	st := openTestFileStore(t, path)

	entries, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty table, got %d entries", len(entries))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("table file not created: %v", err)
	}
	if !strings.Contains(string(raw), "scheduled_time,name,quantity,container,id") {
		t.Fatalf("header missing, got %q", raw)
	}
}

func TestFileStoreLegacyMigration(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "schedule.csv")
	legacy := "scheduled_time,name,quantity\n08:00,Aspirin,1\n12:30,Vitamin D,2\n"
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}

	st := openTestFileStore(t, path)
	entries, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 migrated entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.ID == "" {
			t.Errorf("entry %q missing assigned id", e.Name)
		}
		if e.Container != "" {
			t.Errorf("entry %q: migrated container should be empty, got %q", e.Name, e.Container)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "container") {
		t.Fatalf("migrated header missing container column: %q", raw)
	}
}

func TestFileStoreAppendAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "schedule.csv")
	st := openTestFileStore(t, path)
	ctx := context.Background()

	added, err := st.Append(ctx, schedule.Entry{Time: "08:00", Name: "Aspirin", Quantity: "1", Container: "3"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if added.ID == "" {
		t.Fatal("Append did not assign an id")
	}

	// A fresh store over the same path sees the persisted entry.
	st2 := openTestFileStore(t, path)
	entries, err := st2.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0] != added {
		t.Fatalf("reload mismatch: got %+v, want %+v", entries, added)
	}
}

func TestFileStorePartialUpdate(t *testing.T) {
	t.Parallel()

	st := openTestFileStore(t, filepath.Join(t.TempDir(), "schedule.csv"))
	ctx := context.Background()

	added, err := st.Append(ctx, schedule.Entry{Time: "08:00", Name: "Aspirin", Quantity: "1", Container: "3"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	newTime := "09:30"
	updated, err := st.Update(ctx, added.ID, schedule.Patch{Time: &newTime})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Time != "09:30" {
		t.Errorf("Time = %q, want 09:30", updated.Time)
	}
	if updated.Name != "Aspirin" || updated.Quantity != "1" || updated.Container != "3" {
		t.Errorf("untouched fields changed: %+v", updated)
	}

	empty := ""
	cleared, err := st.Update(ctx, added.ID, schedule.Patch{Container: &empty})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if cleared.Container != "" {
		t.Errorf("explicit empty container not applied: %q", cleared.Container)
	}
}

func TestFileStoreFirstByName(t *testing.T) {
	t.Parallel()

	st := openTestFileStore(t, filepath.Join(t.TempDir(), "schedule.csv"))
	ctx := context.Background()

	first, err := st.Append(ctx, schedule.Entry{Time: "08:00", Name: "Aspirin", Container: "1"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := st.Append(ctx, schedule.Entry{Time: "20:00", Name: "Aspirin", Container: "2"})
	if err != nil {
		t.Fatal(err)
	}

	newTime := "08:15"
	updated, err := st.UpdateFirstByName(ctx, "Aspirin", schedule.Patch{Time: &newTime})
	if err != nil {
		t.Fatalf("UpdateFirstByName: %v", err)
	}
	if updated.ID != first.ID {
		t.Fatalf("updated wrong entry: got %s, want %s", updated.ID, first.ID)
	}

	if err := st.DeleteFirstByName(ctx, "Aspirin"); err != nil {
		t.Fatalf("DeleteFirstByName: %v", err)
	}
	entries, err := st.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != second.ID {
		t.Fatalf("wrong survivor after first-match delete: %+v", entries)
	}

	if err := st.DeleteFirstByName(ctx, "Nope"); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("delete of unknown name: got %v, want ErrNotFound", err)
	}
}

func TestFileStoreContainerConflict(t *testing.T) {
	t.Parallel()

	st := openTestFileStore(t, filepath.Join(t.TempDir(), "schedule.csv"))
	ctx := context.Background()

	a, err := st.Append(ctx, schedule.Entry{Time: "08:00", Name: "Aspirin", Container: "3"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.Append(ctx, schedule.Entry{Time: "09:00", Name: "Ibuprofen", Container: "3"}); !errors.Is(err, schedule.ErrContainerTaken) {
		t.Fatalf("duplicate container on append: got %v, want ErrContainerTaken", err)
	}

	b, err := st.Append(ctx, schedule.Entry{Time: "09:00", Name: "Ibuprofen", Container: "4"})
	if err != nil {
		t.Fatal(err)
	}

	taken := "3"
	if _, err := st.Update(ctx, b.ID, schedule.Patch{Container: &taken}); !errors.Is(err, schedule.ErrContainerTaken) {
		t.Fatalf("duplicate container on update: got %v, want ErrContainerTaken", err)
	}

	// Keeping your own container is not a conflict.
	if _, err := st.Update(ctx, a.ID, schedule.Patch{Container: &taken}); err != nil {
		t.Fatalf("self container update: %v", err)
	}
}

func TestFileStoreUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
