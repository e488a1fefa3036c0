// Package databasetest opens throwaway sqlite databases for tests.
package databasetest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/database"
)

// New returns a migrated in-memory database that is closed when the test ends.
func New(t testing.TB) *database.Database {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := database.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
