// Package testdb opens throwaway in-memory databases for tests.
package testdb

import (
	"fmt"
	"sync/atomic"
	"testing"

	"village-registry/internal/adapters/persistence/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// New returns a migrated in-memory SQLite database with foreign keys
// enforced. Each call gets its own database.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// FailDeletesOn makes every DELETE against table fail with err
func FailDeletesOn(t testing.TB, db *gorm.DB, table string, err error) {
	t.Helper()

	name := "testdb:fail_delete_" + table
	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(err)
		}
	}))
}
