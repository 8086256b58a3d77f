package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tbourn/wa-inbox/internal/services"
)

const defaultSettle = 250 * time.Millisecond

// Watcher ingests payload files as they appear in Dir.
//
// Files are picked up on Create and Write events and ingested once they
// have been quiet for Settle, so a file still being written is not read
// half-way. A message file rewritten with identical bytes is a replay and
// is not reapplied; a status file is applied again.
type Watcher struct {
	Dir    string
	Ingest Ingester
	// Settle is the quiet period before a changed file is read; <= 0 means 250ms.
	Settle time.Duration
	// ScanFirst ingests the files already present before watching.
	ScanFirst bool
	// OnFile, when set, observes every ingested file.
	OnFile func(path string, rep *services.Report, err error)
}

// Run watches until ctx is cancelled and returns the accumulated summary.
// A cancelled context is a normal stop and yields a nil error.
func (w *Watcher) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	settle := w.Settle
	if settle <= 0 {
		settle = defaultSettle
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return sum, fmt.Errorf("watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return sum, fmt.Errorf("watch %s: %w", w.Dir, err)
	}

	// Subscribe before the initial scan so files created during it are seen.
	if w.ScanFirst {
		s, err := ScanDir(ctx, w.Dir, w.Ingest)
		if err != nil {
			return s, err
		}
		sum = s
	}

	lg := logger(ctx).With().Str("dir", w.Dir).Logger()
	lg.Info().Dur("settle", settle).Msg("watching payload dir")

	pending := make(map[string]time.Time)
	tick := time.NewTicker(settle / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			lg.Info().Int("files", sum.Files).Msg("payload watcher stopped")
			return sum, nil

		case ev, ok := <-fw.Events:
			if !ok {
				return sum, nil
			}
			if IsPayloadFile(ev.Name) && (ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return sum, nil
			}
			lg.Error().Err(err).Msg("payload watcher error")

		case now := <-tick.C:
			for path, last := range pending {
				if now.Sub(last) < settle {
					continue
				}
				delete(pending, path)
				rep, err := IngestFile(ctx, path, w.Ingest)
				sum.add(rep, err)
				if w.OnFile != nil {
					w.OnFile(path, rep, err)
				}
			}
		}
	}
}
