// Package testutil holds fixtures shared by the package tests
package testutil

import (
	"bitwise74/course-archive/db"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DB returns a migrated in-memory sqlite database private to the test
func DB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	d, err := db.Open(sqlite.Open(dsn))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := d.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// One connection keeps the shared in-memory database alive and avoids
	// sqlite table locks between connections
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return d
}
