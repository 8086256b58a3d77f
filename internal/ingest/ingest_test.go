package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tbourn/wa-inbox/internal/domain"
	"github.com/tbourn/wa-inbox/internal/repo"
	"github.com/tbourn/wa-inbox/internal/services"
	"github.com/tbourn/wa-inbox/internal/webhook"
)

// ---------- test helpers ----------

type recorder struct {
	mu    sync.Mutex
	seen  []string
	fail  map[string]error
	reply map[string]*services.Report
}

func (r *recorder) Ingest(_ context.Context, in services.IngestInput) (*services.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	base := filepath.Base(in.Source)
	r.seen = append(r.seen, base)
	if err := r.fail[base]; err != nil {
		return nil, err
	}
	if rep := r.reply[base]; rep != nil {
		return rep, nil
	}
	return &services.Report{Kind: domain.KindMessages, Inserted: 1}, nil
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func msgPayload(id string, ts int) string {
	return fmt.Sprintf(`{"metaData":{"entry":[{"changes":[{"value":{
		"contacts":[{"profile":{"name":"Ravi Kumar"},"wa_id":"919937320320"}],
		"messages":[{"id":%q,"from":"919937320320","timestamp":"%d","text":{"body":"hi"}}]}}]}]}}`, id, ts)
}

func newIngestService(t *testing.T) (*services.IngestService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:ingest_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return services.NewIngestService(db), db
}

// ---------- scan ----------

func TestScanDir_LexicalOrderAndFiltering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", "{}")
	writeFile(t, dir, "a.json", "{}")
	writeFile(t, dir, "C.JSON", "{}")
	writeFile(t, dir, "notes.txt", "x")
	writeFile(t, dir, ".hidden.json", "{}")
	if err := os.Mkdir(filepath.Join(dir, "dir.json"), 0o755); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	sum, err := ScanDir(context.Background(), dir, rec)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []string{"C.JSON", "a.json", "b.json"}
	if fmt.Sprint(rec.seen) != fmt.Sprint(want) {
		t.Fatalf("order = %v; want %v", rec.seen, want)
	}
	if sum.Files != 3 || sum.Applied != 3 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestScanDir_FailuresAreSkipped(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"1.json", "2.json", "3.json", "4.json", "5.json"} {
		writeFile(t, dir, n, "{}")
	}
	rec := &recorder{
		fail: map[string]error{
			"1.json": fmt.Errorf("%w: no entry", webhook.ErrMalformedPayload),
			"2.json": errors.New("disk on fire"),
		},
		reply: map[string]*services.Report{
			"3.json": {Replay: true},
			"4.json": {Deferred: true, Failed: 1},
		},
	}
	sum, err := ScanDir(context.Background(), dir, rec)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := Summary{Files: 5, Applied: 1, Replays: 1, Deferred: 1, Rejected: 1, Errors: 1}
	if sum != want {
		t.Fatalf("summary = %+v; want %+v", sum, want)
	}
}

func TestScanDir_Errors(t *testing.T) {
	if _, err := ScanDir(context.Background(), filepath.Join(t.TempDir(), "missing"), &recorder{}); err == nil {
		t.Fatal("missing dir must fail")
	}

	dir := t.TempDir()
	writeFile(t, dir, "a.json", "{}")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}
	if _, err := ScanDir(ctx, dir, rec); !errors.Is(err, context.Canceled) || len(rec.seen) != 0 {
		t.Fatalf("cancelled scan: err=%v seen=%v", err, rec.seen)
	}
}

func TestScanDir_EndToEndRescan(t *testing.T) {
	svc, db := newIngestService(t)
	dir := t.TempDir()
	writeFile(t, dir, "001.json", msgPayload("wamid.1", 100))
	writeFile(t, dir, "002.json", msgPayload("wamid.2", 200))
	writeFile(t, dir, "003.json", `{"metaData":{"entry":[]}}`)
	writeFile(t, dir, "004.json", `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.1","status":"read"}]}}]}]}`)

	sum, err := ScanDir(context.Background(), dir, svc)
	if err != nil || sum.Applied != 3 || sum.Rejected != 1 {
		t.Fatalf("first scan: %+v %v", sum, err)
	}
	// Message files are replays; the status file is applied again.
	sum, err = ScanDir(context.Background(), dir, svc)
	if err != nil || sum.Replays != 2 || sum.Applied != 1 || sum.Rejected != 1 {
		t.Fatalf("second scan: %+v %v", sum, err)
	}

	var msgs []domain.Message
	db.Order("timestamp").Find(&msgs)
	if len(msgs) != 2 || msgs[0].Status != domain.StatusRead || msgs[1].Status != domain.StatusSent {
		t.Fatalf("stored: %+v", msgs)
	}
}

func TestScanDir_StatusBeforeMessageAppliesOnRescan(t *testing.T) {
	svc, db := newIngestService(t)
	dir := t.TempDir()
	// The status file sorts first, so on the first scan its target does not exist yet.
	writeFile(t, dir, "001-status.json", `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.9","status":"delivered"}]}}]}]}`)
	writeFile(t, dir, "002-message.json", msgPayload("wamid.9", 900))

	if _, err := ScanDir(context.Background(), dir, svc); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	var m domain.Message
	db.Where("message_id = ?", "wamid.9").First(&m)
	if m.Status != domain.StatusSent {
		t.Fatalf("after first scan: %q", m.Status)
	}

	if _, err := ScanDir(context.Background(), dir, svc); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	db.Where("message_id = ?", "wamid.9").First(&m)
	if m.Status != domain.StatusDelivered {
		t.Fatalf("after rescan: status = %q; want delivered", m.Status)
	}
}

func TestIngestFile_Unreadable(t *testing.T) {
	if _, err := IngestFile(context.Background(), filepath.Join(t.TempDir(), "gone.json"), &recorder{}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v", err)
	}
}

func TestIsPayloadFile(t *testing.T) {
	for name, want := range map[string]bool{
		"a.json":         true,
		"/x/y/B.Json":    true,
		".a.json":        false,
		"a.json.swp":     false,
		"a.txt":          false,
		"/tmp/.x/a.json": true,
		"json":           false,
	} {
		if got := IsPayloadFile(name); got != want {
			t.Errorf("IsPayloadFile(%q) = %v; want %v", name, got, want)
		}
	}
}

// ---------- watcher ----------

func TestWatcher_IngestsNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "existing.json", "{}")

	rec := &recorder{}
	got := make(chan string, 8)
	w := &Watcher{
		Dir:       dir,
		Ingest:    rec,
		Settle:    20 * time.Millisecond,
		ScanFirst: true,
		OnFile:    func(p string, _ *services.Report, _ error) { got <- filepath.Base(p) },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Summary, 1)
	go func() {
		sum, err := w.Run(ctx)
		if err != nil {
			t.Errorf("run: %v", err)
		}
		done <- sum
	}()

	// Give the watcher time to subscribe and finish the initial scan.
	deadline := time.After(5 * time.Second)
	for {
		rec.mu.Lock()
		n := len(rec.seen)
		rec.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("initial scan did not run")
		case <-time.After(10 * time.Millisecond):
		}
	}

	writeFile(t, dir, "new.json", "{}")
	writeFile(t, dir, "ignored.txt", "x")

	select {
	case name := <-got:
		if name != "new.json" {
			t.Fatalf("ingested %q", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("new file not ingested")
	}

	cancel()
	sum := <-done
	if sum.Files != 2 || sum.Applied != 2 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestWatcher_MissingDir(t *testing.T) {
	w := &Watcher{Dir: filepath.Join(t.TempDir(), "missing"), Ingest: &recorder{}}
	if _, err := w.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing dir")
	}
}
