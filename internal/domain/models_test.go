package domain

import (
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestStatus_Valid(t *testing.T) {
	cases := map[Status]bool{
		StatusSent:      true,
		StatusDelivered: true,
		StatusRead:      true,
		StatusFailed:    true,
		"":              false,
		"deleted":       false,
		"READ":          false,
	}
	for s, want := range cases {
		if got := s.Valid(); got != want {
			t.Errorf("Status(%q).Valid() = %v, want %v", s, got, want)
		}
	}
}

func TestStatusEvent_TargetID_PrefersMetaMsgID(t *testing.T) {
	if got := (StatusEvent{ID: "a", MetaMsgID: "b"}).TargetID(); got != "b" {
		t.Fatalf("want meta_msg_id to win, got %q", got)
	}
	if got := (StatusEvent{ID: "a"}).TargetID(); got != "a" {
		t.Fatalf("want id fallback, got %q", got)
	}
	if got := (StatusEvent{}).TargetID(); got != "" {
		t.Fatalf("want empty target, got %q", got)
	}
}

func TestBatch_KindAndLen(t *testing.T) {
	var b Batch = &MessageBatch{Messages: []InboundMessage{{ID: "m1"}, {ID: "m2"}}}
	if b.Kind() != KindMessages || b.Len() != 2 {
		t.Fatalf("message batch: kind=%s len=%d", b.Kind(), b.Len())
	}
	b = &StatusBatch{Statuses: []StatusEvent{{ID: "m1"}}}
	if b.Kind() != KindStatuses || b.Len() != 1 {
		t.Fatalf("status batch: kind=%s len=%d", b.Kind(), b.Len())
	}
}

func TestMessage_View_HidesStorageFields(t *testing.T) {
	body := "hi"
	m := Message{ID: 42, MessageID: "m1", WaID: "w1", From: "A", ContactName: "Alice", Timestamp: 100, Text: &body, Status: StatusRead}
	v := m.View()
	if v.MessageID != "m1" || v.From != "A" || v.Timestamp != 100 || v.Status != StatusRead {
		t.Fatalf("unexpected view: %+v", v)
	}
	if v.Text == nil || *v.Text != "hi" {
		t.Fatalf("text not projected: %+v", v.Text)
	}
}

func TestMigration_MessageIDUniqueAndDefaults(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Message{}, &Delivery{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if !db.Migrator().HasIndex(&Message{}, "ux_messages_message_id") {
		t.Fatalf("expected unique index ux_messages_message_id")
	}
	if !db.Migrator().HasIndex(&Delivery{}, "ux_deliveries_digest") {
		t.Fatalf("expected unique index ux_deliveries_digest")
	}

	first := &Message{MessageID: "m1", WaID: "w1", From: "A", Timestamp: 1}
	if err := db.Create(first).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var got Message
	if err := db.First(&got, "message_id = ?", "m1").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != StatusSent {
		t.Fatalf("default status = %q, want sent", got.Status)
	}
	if got.Text != nil {
		t.Fatalf("text should be NULL for non-text messages")
	}

	dup := &Message{MessageID: "m1", WaID: "w1", From: "A", Timestamp: 2}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on duplicate message_id")
	}
}

func TestDelivery_Replayable(t *testing.T) {
	cases := []struct {
		kind    Kind
		outcome Outcome
		keyed   bool
		want    bool
	}{
		{KindMessages, OutcomeProcessed, false, true},
		{KindMessages, OutcomeProcessed, true, true},
		{KindStatuses, OutcomeProcessed, false, false},
		{KindStatuses, OutcomeProcessed, true, true},
		{KindStatuses, OutcomePartial, true, false},
		{KindMessages, OutcomeDeferred, true, false},
		{KindRejected, OutcomeRejected, true, false},
	}
	for _, tc := range cases {
		d := &Delivery{Kind: tc.kind, Outcome: tc.outcome}
		if got := d.Replayable(tc.keyed); got != tc.want {
			t.Errorf("Replayable(%s/%s, keyed=%v) = %v; want %v", tc.kind, tc.outcome, tc.keyed, got, tc.want)
		}
	}
}
