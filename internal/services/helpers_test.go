package services

import (
	"fmt"
	"testing"

	"github.com/cenkalti/backoff/v5"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tbourn/wa-inbox/internal/domain"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func newTestIngest(db *gorm.DB) *IngestService {
	s := NewIngestService(db)
	s.ItemMaxTries = 2
	s.ItemBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return s
}

func mustGet(t *testing.T, db *gorm.DB, id string) domain.Message {
	t.Helper()
	var m domain.Message
	if err := db.Where("message_id = ?", id).First(&m).Error; err != nil {
		t.Fatalf("load %s: %v", id, err)
	}
	return m
}

func strp(s string) *string { return &s }
