package session_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"permitflow/internal/session"
)

func TestSweepDestroysStaleSessions(t *testing.T) {
	store := openStore(t, testConfig(t))
	ctx := context.Background()

	stale, err := store.Ensure(ctx, "stale-user")
	if err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	fresh, err := store.Ensure(ctx, "fresh-user")
	if err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	// Touch the fresh session so only the stale one crosses the cutoff.
	time.Sleep(10 * time.Millisecond)
	fresh.SetState(session.StateIdle)

	result := store.Sweep(ctx, 5*time.Millisecond)
	if len(result.Errors) != 0 {
		t.Fatalf("Sweep errors: %+v", result.Errors)
	}
	if len(result.Destroyed) != 1 || result.Destroyed[0] != "stale-user" {
		t.Fatalf("Sweep destroyed %v, want [stale-user]", result.Destroyed)
	}
	if _, statErr := os.Stat(stale.Dir); !os.IsNotExist(statErr) {
		t.Fatalf("stale session dir should be removed, stat err: %v", statErr)
	}
	if _, ok := store.Get("fresh-user"); !ok {
		t.Fatal("fresh session should survive the sweep")
	}
}

func TestSweepSkipsSessionsHoldingStageSlot(t *testing.T) {
	store := openStore(t, testConfig(t))
	ctx := context.Background()

	busy, err := store.Ensure(ctx, "busy-user")
	if err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	busy.Acquire()
	defer busy.Release()
	time.Sleep(10 * time.Millisecond)

	result := store.Sweep(ctx, time.Millisecond)
	if len(result.Destroyed) != 0 {
		t.Fatalf("Sweep destroyed %v, want none while stage slot held", result.Destroyed)
	}
	if _, ok := store.Get("busy-user"); !ok {
		t.Fatal("busy session should survive the sweep")
	}
}

func TestSweepRemovesUnclaimedDirectories(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t, cfg)
	ctx := context.Background()

	if _, err := store.Ensure(ctx, "kept-user"); err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	orphan := filepath.Join(cfg.Paths.SessionsDir, "leftover_deadbeef")
	if err := os.MkdirAll(filepath.Join(orphan, "pdf"), 0o755); err != nil {
		t.Fatalf("create orphan dir: %v", err)
	}

	result := store.Sweep(ctx, time.Hour)
	if len(result.RemovedDirs) != 1 || result.RemovedDirs[0] != orphan {
		t.Fatalf("Sweep removed %v, want [%s]", result.RemovedDirs, orphan)
	}
	if _, statErr := os.Stat(orphan); !os.IsNotExist(statErr) {
		t.Fatalf("orphan dir should be removed, stat err: %v", statErr)
	}
}
