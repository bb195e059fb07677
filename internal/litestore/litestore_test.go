package litestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/irontracks/musclemap/internal/storetest"
)

var _ storetest.Store = (*DB)(nil)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "musclemap.db")
	db, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}

	var fk int
	if err := db.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("check foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}
}

// TestReopenKeepsData verifies migrations are idempotent across restarts.
func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "musclemap.db")

	db, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := db.GetOrCreateUser(ctx, "ana", "Ana")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	db.Close()

	db, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	again, err := db.GetOrCreateUser(ctx, "ana", "")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if again != id {
		t.Errorf("user id = %d after reopen, want %d", again, id)
	}
}

func TestStoreContract(t *testing.T) {
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "musclemap.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	storetest.Run(t, db)
}
