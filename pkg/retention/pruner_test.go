package retention

import (
	"context"
	"testing"
	"time"

	"wander-hq/sherpa/pkg/limits/storage"
)

func TestPrune_RemovesExpiredEntries(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore(storage.WithClock(func() time.Time { return current }))
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "ratelimit:a:minute:202506011200", 3, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "quota:a:month:202506", 10, 32*24*time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	current = current.Add(2 * time.Minute)
	pruner := NewPruner(store, Config{})
	removed, err := pruner.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("store len = %d, want 1", store.Len())
	}
}

func TestStart_EmptyScheduleIsNoop(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()

	pruner := NewPruner(store, Config{})
	if err := pruner.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pruner.Stop()
}

func TestStart_RejectsInvalidSchedule(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()

	pruner := NewPruner(store, Config{Schedule: "not a schedule"})
	if err := pruner.Start(context.Background()); err == nil {
		t.Fatal("Start accepted an invalid cron expression")
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	pruner := NewPruner(store, Config{Schedule: "* * * * *"})
	if err := pruner.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pruner.Start(ctx); err == nil {
		t.Fatal("second Start while running succeeded")
	}

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		pruner.mu.Lock()
		running := pruner.running
		pruner.mu.Unlock()
		if !running {
			return
		}
		select {
		case <-deadline:
			t.Fatal("scheduler did not stop after context cancellation")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
