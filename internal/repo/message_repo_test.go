package repo

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tbourn/wa-inbox/internal/domain"
)

func TestInsertMessage_InsertThenSkip(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	ctx := context.Background()

	body := "hi"
	first := &domain.Message{MessageID: "m1", WaID: "w1", From: "A", ContactName: "Alice", Timestamp: 100, Text: &body, Status: domain.StatusSent}
	ok, err := InsertMessage(ctx, db, first)
	if err != nil || !ok {
		t.Fatalf("first insert: inserted=%v err=%v", ok, err)
	}

	again := &domain.Message{MessageID: "m1", WaID: "w1", From: "A", ContactName: "Other", Timestamp: 999, Status: domain.StatusRead}
	ok, err = InsertMessage(ctx, db, again)
	if err != nil || ok {
		t.Fatalf("second insert: inserted=%v err=%v (want false, nil)", ok, err)
	}

	n, err := CountMessages(ctx, db)
	if err != nil || n != 1 {
		t.Fatalf("count = %d err=%v, want 1", n, err)
	}
	got, err := GetMessage(ctx, db, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ContactName != "Alice" || got.Timestamp != 100 || got.Status != domain.StatusSent {
		t.Fatalf("duplicate insert must not mutate the stored row: %+v", got)
	}
}

func TestInsertMessage_ConcurrentSameID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "race.db")
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := &domain.Message{MessageID: "dup", WaID: "w1", From: "A", Timestamp: 1, Status: domain.StatusSent}
			ok, err := InsertMessage(context.Background(), db, m)
			if err != nil {
				t.Errorf("insert: %v", err)
				return
			}
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Fatalf("exactly one concurrent insert should win, got %d", inserted)
	}
	if n, _ := CountMessages(context.Background(), db); n != 1 {
		t.Fatalf("want 1 stored row, got %d", n)
	}
}

func TestInsertMessage_NoTable(t *testing.T) {
	db := newTestDB(t)
	_, err := InsertMessage(context.Background(), db, &domain.Message{MessageID: "m1", WaID: "w1", From: "A"})
	if err == nil {
		t.Fatalf("expected error without schema")
	}
}

func TestUpdateMessageStatus(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	ctx := context.Background()
	seedMessage(t, db, "m1", "w1", 1)

	if err := UpdateMessageStatus(ctx, db, "m1", domain.StatusRead); err != nil {
		t.Fatalf("update: %v", err)
	}
	// Backward transitions are applied as-is.
	if err := UpdateMessageStatus(ctx, db, "m1", domain.StatusSent); err != nil {
		t.Fatalf("update back: %v", err)
	}
	got, _ := GetMessage(ctx, db, "m1")
	if got.Status != domain.StatusSent {
		t.Fatalf("status = %q, want sent", got.Status)
	}
	// Re-applying the same status still counts as a match.
	if err := UpdateMessageStatus(ctx, db, "m1", domain.StatusSent); err != nil {
		t.Fatalf("same-status update should match: %v", err)
	}

	if err := UpdateMessageStatus(ctx, db, "ghost", domain.StatusRead); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetMessage_NotFound(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	if _, err := GetMessage(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListConversationMessages_OrderAndLimit(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	ctx := context.Background()

	// Inserted out of timestamp order; "b" and "c" tie on timestamp 2.
	seedMessage(t, db, "ts3", "w1", 3)
	seedMessage(t, db, "ts1", "w1", 1)
	seedMessage(t, db, "b", "w1", 2)
	seedMessage(t, db, "c", "w1", 2)
	seedMessage(t, db, "other", "w2", 0)

	all, err := ListConversationMessages(ctx, db, "w1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"ts1", "b", "c", "ts3"}
	if len(all) != len(want) {
		t.Fatalf("got %d messages, want %d", len(all), len(want))
	}
	for i, id := range want {
		if all[i].MessageID != id {
			t.Fatalf("position %d: got %s want %s", i, all[i].MessageID, id)
		}
	}

	last2, err := ListConversationMessages(ctx, db, "w1", 2)
	if err != nil {
		t.Fatalf("list limit: %v", err)
	}
	if len(last2) != 2 || last2[0].MessageID != "c" || last2[1].MessageID != "ts3" {
		t.Fatalf("limit should keep the most recent messages ascending: %+v", last2)
	}

	none, err := ListConversationMessages(ctx, db, "nobody", 0)
	if err != nil || len(none) != 0 {
		t.Fatalf("unknown conversation: %v %v", none, err)
	}
}

func TestListAllMessages_GlobalOrder(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	seedMessage(t, db, "x", "w2", 5)
	seedMessage(t, db, "y", "w1", 1)
	seedMessage(t, db, "z", "w2", 3)

	all, err := ListAllMessages(context.Background(), db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].MessageID != "y" || all[1].MessageID != "z" || all[2].MessageID != "x" {
		t.Fatalf("unexpected order: %+v", all)
	}
}
