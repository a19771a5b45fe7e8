package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/storage/database"
)

// PrepareDB connects to the postgres test database, migrated and emptied.
// Tests are skipped when MADRASA_TEST_DB is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("MADRASA_TEST_DB") == "" {
		t.Skip("MADRASA_TEST_DB not set: skipping postgres tests")
	}

	conf, err := core.NewConfig()
	if err != nil {
		t.Fatalf("NewConfig() failed: %v", err)
	}
	conf.Database.Name = os.Getenv("MADRASA_TEST_DB")

	db, err := database.Setup(context.Background(), conf)
	if err != nil {
		t.Fatalf("database.Setup() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ResetDB(t, db)
	return db
}

func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	if _, err := db.Exec(`TRUNCATE TABLE messages, contacts CASCADE`); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}
