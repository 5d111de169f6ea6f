package site

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreReserveAndLookup(t *testing.T) {
	store := newTestStore(t)

	reserved, err := store.Reserve(context.Background(), "river-stone-echo")
	if err != nil {
		t.Fatalf("reserve error: %v", err)
	}
	if reserved.Dir != filepath.Join(store.Root(), "river-stone-echo") {
		t.Fatalf("unexpected dir: %s", reserved.Dir)
	}

	found, err := store.Lookup(context.Background(), "river-stone-echo")
	if err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	if found.Dir != reserved.Dir {
		t.Fatalf("lookup dir mismatch: %s vs %s", found.Dir, reserved.Dir)
	}
}

func TestStoreReserveRejectsExisting(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Reserve(context.Background(), "taken"); err != nil {
		t.Fatalf("reserve error: %v", err)
	}
	marker := filepath.Join(store.Root(), "taken", "index.html")
	if err := os.WriteFile(marker, []byte("keep"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	if _, err := store.Reserve(context.Background(), "taken"); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	body, err := os.ReadFile(marker)
	if err != nil || string(body) != "keep" {
		t.Fatalf("existing site content must stay untouched: %q %v", body, err)
	}
}

func TestStoreLookupMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Lookup(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreLookupIgnoresFiles(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(filepath.Join(store.Root(), "plain"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := store.Lookup(context.Background(), "plain"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for regular file, got %v", err)
	}
}

func TestStoreRejectsEscapingNames(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"", ".", "..", "../x", "a/b", `a\b`} {
		if _, err := store.Reserve(context.Background(), name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("reserve %q: expected ErrInvalidName, got %v", name, err)
		}
		if _, err := store.Lookup(context.Background(), name); !errors.Is(err, ErrNotFound) {
			t.Fatalf("lookup %q: expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestStoreRemoveAndList(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"b-site", "a-site"} {
		if _, err := store.Reserve(context.Background(), name); err != nil {
			t.Fatalf("reserve error: %v", err)
		}
	}

	sites, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(sites) != 2 || sites[0].Slug != "a-site" || sites[1].Slug != "b-site" {
		t.Fatalf("unexpected listing: %+v", sites)
	}

	if err := store.Remove(context.Background(), "a-site"); err != nil {
		t.Fatalf("remove error: %v", err)
	}
	if _, err := store.Lookup(context.Background(), "a-site"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
	if err := store.Remove(context.Background(), "a-site"); err != nil {
		t.Fatalf("removing a missing site should be a no-op: %v", err)
	}
}

func TestNewStoreCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if info, err := os.Stat(store.Root()); err != nil || !info.IsDir() {
		t.Fatalf("data dir should exist: %v", err)
	}
}

// newTestStore returns a Store backed by a temporary directory.
func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}
