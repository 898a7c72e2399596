package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStoreRoundTrips(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "altsignal.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	exerciseStore(t, store)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "altsignal.db")

	first := NewSQLiteStore(dbPath)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := first.SaveGenome(ctx, testGenome("g1", 2)); err != nil {
		t.Fatalf("save genome: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := NewSQLiteStore(dbPath)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	genome, ok, err := second.GetGenome(ctx, "g1")
	if err != nil || !ok {
		t.Fatalf("get genome after reopen: ok=%t err=%v", ok, err)
	}
	if len(genome.Functions) != 2 {
		t.Fatalf("unexpected genome: %+v", genome)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "altsignal.db"))
	if _, _, err := store.GetGenome(context.Background(), "g1"); err == nil {
		t.Fatal("expected error before init")
	}
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected error for empty path")
	}
}
