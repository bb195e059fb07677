package storage

import (
	"context"
	"os"
	"testing"

	"github.com/irontracks/musclemap/internal/storetest"
)

var _ storetest.Store = (*DB)(nil)

// TestStoreContract runs against a disposable PostgreSQL database named by
// MUSCLEMAP_TEST_DSN. The schema is migrated from ../../migrations.
func TestStoreContract(t *testing.T) {
	dsn := os.Getenv("MUSCLEMAP_TEST_DSN")
	if dsn == "" {
		t.Skip("MUSCLEMAP_TEST_DSN not set")
	}
	if err := RunMigrations(dsn, "../../migrations"); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	db, err := New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer db.Close()
	storetest.Run(t, db)
}
