package action

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUsageDay(t *testing.T) {
	// The bucket key is the UTC day, regardless of the input zone.
	loc := time.FixedZone("UTC-8", -8*3600)
	at := time.Date(2025, 6, 1, 20, 0, 0, 0, loc)
	if got := UsageDay(at); got != "2025-06-02" {
		t.Errorf("UsageDay = %s, want 2025-06-02", got)
	}
}

func TestInMemoryUsageStore_ActionLimit(t *testing.T) {
	store := NewInMemoryUsageStore()
	ctx := context.Background()
	limits := UsageLimits{MaxActions: 2}

	for i := 0; i < 2; i++ {
		if err := store.Reserve(ctx, "alice", "2025-06-01", 100, limits); err != nil {
			t.Fatalf("Reserve %d: %v", i, err)
		}
	}
	if err := store.Reserve(ctx, "alice", "2025-06-01", 100, limits); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Reserve over limit: %v, want ErrRateLimited", err)
	}

	// Separate creators and separate days have their own buckets.
	if err := store.Reserve(ctx, "bob", "2025-06-01", 100, limits); err != nil {
		t.Errorf("Reserve for bob: %v", err)
	}
	if err := store.Reserve(ctx, "alice", "2025-06-02", 100, limits); err != nil {
		t.Errorf("Reserve next day: %v", err)
	}
}

func TestInMemoryUsageStore_ValueLimit(t *testing.T) {
	store := NewInMemoryUsageStore()
	ctx := context.Background()
	limits := UsageLimits{MaxValue: 1000}

	if err := store.Reserve(ctx, "alice", "2025-06-01", 600, limits); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := store.Reserve(ctx, "alice", "2025-06-01", 500, limits); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Reserve over value limit: %v, want ErrRateLimited", err)
	}

	// A rejected reservation consumes nothing: an exact fit still succeeds.
	if err := store.Reserve(ctx, "alice", "2025-06-01", 400, limits); err != nil {
		t.Errorf("Reserve exact remainder: %v", err)
	}
}

func TestInMemoryUsageStore_ZeroMeansUnlimited(t *testing.T) {
	store := NewInMemoryUsageStore()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if err := store.Reserve(ctx, "alice", "2025-06-01", 1_000_000, UsageLimits{}); err != nil {
			t.Fatalf("Reserve %d: %v", i, err)
		}
	}
}

func TestInMemoryUsageStore_ReleaseReturnsQuota(t *testing.T) {
	store := NewInMemoryUsageStore()
	ctx := context.Background()
	limits := UsageLimits{MaxActions: 1, MaxValue: 500}

	if err := store.Reserve(ctx, "alice", "2025-06-01", 500, limits); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := store.Reserve(ctx, "alice", "2025-06-01", 1, limits); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Reserve at limit: %v, want ErrRateLimited", err)
	}

	if err := store.Release(ctx, "alice", "2025-06-01", 500); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := store.Reserve(ctx, "alice", "2025-06-01", 500, limits); err != nil {
		t.Errorf("Reserve after release: %v", err)
	}

	// Releasing into an untouched bucket is a no-op.
	if err := store.Release(ctx, "bob", "2025-06-01", 100); err != nil {
		t.Errorf("Release unknown bucket: %v", err)
	}
}

func TestInMemoryUsageStore_Cleanup(t *testing.T) {
	store := NewInMemoryUsageStore()
	ctx := context.Background()
	limits := UsageLimits{MaxActions: 1}

	if err := store.Reserve(ctx, "alice", "2025-06-01", 0, limits); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := store.Reserve(ctx, "alice", "2025-06-02", 0, limits); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	store.Cleanup("2025-06-02")

	// The old day's bucket is gone, today's is intact.
	if err := store.Reserve(ctx, "alice", "2025-06-01", 0, limits); err != nil {
		t.Errorf("Reserve after cleanup: %v", err)
	}
	if err := store.Reserve(ctx, "alice", "2025-06-02", 0, limits); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Reserve kept bucket: %v, want ErrRateLimited", err)
	}
}
