package slug

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/pv-hub/pv-hub/internal/site"
)

func TestAllocateReservesFreshDirectory(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestAllocator(t, store, sequence("alpha-beta-gamma"), 3)

	reserved, err := alloc.Allocate(context.Background())
	if err != nil {
		t.Fatalf("allocate error: %v", err)
	}
	if reserved.Slug != "alpha-beta-gamma" {
		t.Fatalf("unexpected slug %s", reserved.Slug)
	}
	entries, err := os.ReadDir(reserved.Dir)
	if err != nil {
		t.Fatalf("reserved dir should exist: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("reserved dir should be empty, got %d entries", len(entries))
	}
}

func TestAllocateRetriesOnCollision(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Reserve(context.Background(), "taken-one-slug"); err != nil {
		t.Fatalf("seed reserve: %v", err)
	}
	marker := filepath.Join(store.Root(), "taken-one-slug", "index.html")
	if err := os.WriteFile(marker, []byte("original"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	alloc := newTestAllocator(t, store, sequence("taken-one-slug", "taken-one-slug", "free-two-slug"), 5)
	reserved, err := alloc.Allocate(context.Background())
	if err != nil {
		t.Fatalf("allocate error: %v", err)
	}
	if reserved.Slug != "free-two-slug" {
		t.Fatalf("expected retry to land on free slug, got %s", reserved.Slug)
	}
	body, err := os.ReadFile(marker)
	if err != nil || string(body) != "original" {
		t.Fatalf("colliding site must not be touched: %q %v", body, err)
	}
}

func TestAllocateExhausted(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Reserve(context.Background(), "same-same-same"); err != nil {
		t.Fatalf("seed reserve: %v", err)
	}

	calls := 0
	gen := func() string {
		calls++
		return "same-same-same"
	}
	alloc := newTestAllocator(t, store, gen, 4)

	_, err := alloc.Allocate(context.Background())
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected exactly 4 attempts, got %d", calls)
	}
}

func TestAllocateSkipsInvalidCandidates(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestAllocator(t, store, sequence("../escape", "ok-ok-ok"), 2)

	reserved, err := alloc.Allocate(context.Background())
	if err != nil {
		t.Fatalf("allocate error: %v", err)
	}
	if reserved.Slug != "ok-ok-ok" {
		t.Fatalf("unexpected slug %s", reserved.Slug)
	}
}

func TestAllocateHonoursCancelledContext(t *testing.T) {
	store := newTestStore(t)
	alloc := newTestAllocator(t, store, sequence("never-used-slug"), 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := alloc.Allocate(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewAllocatorRequiresStore(t *testing.T) {
	if _, err := NewAllocator(nil, Options{}); err == nil {
		t.Fatalf("nil store should be rejected")
	}
}

// sequence returns a generator yielding values in order, repeating the last.
func sequence(values ...string) Generator {
	idx := 0
	return func() string {
		v := values[idx]
		if idx < len(values)-1 {
			idx++
		}
		return v
	}
}

func newTestStore(t *testing.T) site.Store {
	t.Helper()
	store, err := site.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func newTestAllocator(t *testing.T, store site.Store, gen Generator, attempts int) *Allocator {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)
	alloc, err := NewAllocator(store, Options{Generator: gen, MaxAttempts: attempts, Logger: logger})
	if err != nil {
		t.Fatalf("failed to create allocator: %v", err)
	}
	return alloc
}
