package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	data := map[string]any{"user": "alice", "count": 2}
	if err := store.Save(ctx, "s1", data, time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got["user"] != "alice" {
		t.Errorf("user = %v, want alice", got["user"])
	}

	// Stored data is isolated from caller mutation.
	data["user"] = "mallory"
	got2, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if got2["user"] != "alice" {
		t.Errorf("user after caller mutation = %v, want alice", got2["user"])
	}
}

func TestMemoryNotFound(t *testing.T) {
	store := NewMemory()

	_, err := store.Load(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load err = %v, want ErrNotFound", err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.Save(ctx, "s1", map[string]any{"k": "v"}, -time.Second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := store.Load(ctx, "s1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load of expired session err = %v, want ErrNotFound", err)
	}
}

func TestMemoryDelete(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.Save(ctx, "s1", map[string]any{}, time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Delete err = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete of unknown id failed: %v", err)
	}
}

func TestMemorySweep(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	store.Save(ctx, "live", map[string]any{}, time.Minute)
	store.Save(ctx, "dead1", map[string]any{}, -time.Second)
	store.Save(ctx, "dead2", map[string]any{}, -time.Second)

	if removed := store.Sweep(); removed != 2 {
		t.Errorf("Sweep removed %d, want 2", removed)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}
