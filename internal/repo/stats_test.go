package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/wa-inbox/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
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

func seedMessage(t *testing.T, db *gorm.DB, id, waID string, ts int64) *domain.Message {
	t.Helper()
	m := &domain.Message{MessageID: id, WaID: waID, From: waID, ContactName: "c-" + waID, Timestamp: ts, Status: domain.StatusSent}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	return m
}

func TestMessagesStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, _, err := MessagesStats(context.Background(), db); err == nil {
		t.Fatalf("expected error due to missing table")
	}
}

func TestMessagesStats_Empty(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	n, ts, err := MessagesStats(context.Background(), db)
	if err != nil || n != 0 || ts != nil {
		t.Fatalf("want (0, nil, nil), got (%d, %v, %v)", n, ts, err)
	}
}

func TestMessagesStats_TracksStatusUpdates(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	ctx := context.Background()

	seedMessage(t, db, "m1", "w1", 1)
	seedMessage(t, db, "m2", "w2", 2)

	n, before, err := MessagesStats(ctx, db)
	if err != nil || n != 2 || before == nil {
		t.Fatalf("stats: n=%d ts=%v err=%v", n, before, err)
	}

	time.Sleep(10 * time.Millisecond)
	if err := UpdateMessageStatus(ctx, db, "m1", domain.StatusRead); err != nil {
		t.Fatalf("update: %v", err)
	}
	_, after, err := MessagesStats(ctx, db)
	if err != nil || after == nil || !after.After(*before) {
		t.Fatalf("max updated_at should advance: before=%v after=%v err=%v", before, after, err)
	}
}

func TestConversationStats_Scoped(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	seedMessage(t, db, "m1", "w1", 1)
	seedMessage(t, db, "m2", "w1", 2)
	seedMessage(t, db, "m3", "w2", 3)

	n, ts, err := ConversationStats(context.Background(), db, "w1")
	if err != nil || n != 2 || ts == nil {
		t.Fatalf("w1 stats: n=%d ts=%v err=%v", n, ts, err)
	}
	n, ts, err = ConversationStats(context.Background(), db, "nobody")
	if err != nil || n != 0 || ts != nil {
		t.Fatalf("missing conversation stats: n=%d ts=%v err=%v", n, ts, err)
	}
}
