// Package dbtest opens throwaway in-memory databases for tests.
package dbtest

import (
	"fmt"
	"menusync/src/models"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated in-memory SQLite database private to the test.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %s", err.Error())
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sqlite pool: %s", err.Error())
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %s", err.Error())
	}
	t.Cleanup(func() { sqlDB.Close() })
	return gdb
}

// SeedTenant inserts an active tenant with the given subdomain.
func SeedTenant(t testing.TB, gdb *gorm.DB, subdomain string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{Name: subdomain, Subdomain: subdomain}
	if err := gdb.Create(tenant).Error; err != nil {
		t.Fatalf("seed tenant %s: %s", subdomain, err.Error())
	}
	return tenant
}
