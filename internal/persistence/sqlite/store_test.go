package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/daniacca/molgrid/internal/reaction"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func snapshotWith(t *testing.T, id reaction.ChartID, at time.Time, counts map[string]int) reaction.Snapshot {
	t.Helper()
	cm := reaction.NewChartManager(reaction.NewManualClock(at))
	defer cm.Close()
	chart, err := cm.CreateChart(id, reaction.ChartConfig{
		Name:           "history",
		MaxRowIndex:    9,
		FadeDurationMs: 100,
		DropSpeed:      10,
		Types:          []string{"A", "B"},
		Counts:         counts,
	})
	if err != nil {
		t.Fatalf("Failed to create chart: %v", err)
	}
	return reaction.TakeSnapshot(chart)
}

func TestStore_SaveAndLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, snapshotWith(t, "c1", epoch, map[string]int{"A": 1}))
	if err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	second, err := store.Save(ctx, snapshotWith(t, "c1", epoch.Add(time.Minute), map[string]int{"A": 2}))
	if err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if second <= first {
		t.Errorf("Expected increasing ids, got %d then %d", first, second)
	}
	if _, err := store.Save(ctx, snapshotWith(t, "c2", epoch, map[string]int{"B": 3})); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	latest, err := store.Latest(ctx, "c1")
	if err != nil {
		t.Fatalf("Failed to load latest: %v", err)
	}
	if latest.Counts["A"] != 2 || !latest.TakenAt.Equal(epoch.Add(time.Minute)) {
		t.Errorf("Expected the second snapshot, got %+v", latest)
	}
}

func TestStore_LatestNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Latest(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_SaveRejectsInvalidSnapshot(t *testing.T) {
	store := newTestStore(t)
	snap := snapshotWith(t, "c1", epoch, map[string]int{"A": 1})
	snap.Counts["A"] = 5
	if _, err := store.Save(context.Background(), snap); err == nil {
		t.Error("Expected invalid snapshot to be rejected")
	}
}

func TestStore_HistoryAndPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := range 5 {
		if _, err := store.Save(ctx, snapshotWith(t, "c1", epoch.Add(time.Duration(i)*time.Second), map[string]int{"A": i})); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
	}

	all, err := store.History(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("Failed to load history: %v", err)
	}
	if len(all) != 5 || all[0].Snapshot.Counts["A"] != 4 {
		t.Errorf("Expected 5 entries newest first, got %d", len(all))
	}

	limited, _ := store.History(ctx, "c1", 2)
	if len(limited) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(limited))
	}

	since, _ := store.Since(ctx, "c1", epoch.Add(3*time.Second))
	if len(since) != 2 || since[0].Snapshot.Counts["A"] != 3 {
		t.Errorf("Expected the last two snapshots oldest first, got %+v", since)
	}

	removed, err := store.Prune(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if removed != 3 {
		t.Errorf("Expected 3 rows pruned, got %d", removed)
	}
	all, _ = store.History(ctx, "c1", 0)
	if len(all) != 2 {
		t.Errorf("Expected 2 entries left, got %d", len(all))
	}
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.Save(context.Background(), snapshotWith(t, "c1", epoch, map[string]int{"B": 2})); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	store.Close()

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.Path() != path {
		t.Errorf("Expected path %s, got %s", path, reopened.Path())
	}
	latest, err := reopened.Latest(context.Background(), "c1")
	if err != nil || latest.Counts["B"] != 2 {
		t.Errorf("Expected snapshot to survive reopen, got %+v (%v)", latest, err)
	}
}
