// Package ingest feeds payload files to the ingestion pipeline: a one-shot
// directory scan and an fsnotify watcher. Each file holds one payload; its
// path is the delivery source.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/wa-inbox/internal/services"
	"github.com/tbourn/wa-inbox/internal/webhook"
)

// Ingester applies one raw payload.
type Ingester interface {
	Ingest(ctx context.Context, in services.IngestInput) (*services.Report, error)
}

// Summary counts the files handled by a scan or watcher.
type Summary struct {
	Files    int `json:"files"`
	Applied  int `json:"applied"`
	Replays  int `json:"replays"`
	Deferred int `json:"deferred"`
	Rejected int `json:"rejected"`
	Errors   int `json:"errors"`
}

func (s *Summary) add(rep *services.Report, err error) {
	s.Files++
	switch {
	case errors.Is(err, webhook.ErrMalformedPayload):
		s.Rejected++
	case err != nil:
		s.Errors++
	case rep.Replay:
		s.Replays++
	case rep.Deferred:
		s.Deferred++
	default:
		s.Applied++
	}
}

// IsPayloadFile reports whether name looks like a payload file (*.json,
// case-insensitive, not hidden).
func IsPayloadFile(name string) bool {
	base := filepath.Base(name)
	return !strings.HasPrefix(base, ".") && strings.EqualFold(filepath.Ext(base), ".json")
}

// ScanDir ingests every payload file directly under dir in lexical order.
// A file that cannot be read or is rejected is logged and skipped; only an
// unreadable directory or a cancelled context stops the scan.
func ScanDir(ctx context.Context, dir string, ing Ingester) (Summary, error) {
	var sum Summary
	entries, err := os.ReadDir(dir)
	if err != nil {
		return sum, fmt.Errorf("read payload dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && IsPayloadFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	lg := logger(ctx).With().Str("dir", dir).Logger()
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		rep, err := IngestFile(ctx, filepath.Join(dir, name), ing)
		sum.add(rep, err)
	}
	lg.Info().
		Int("files", sum.Files).
		Int("applied", sum.Applied).
		Int("replays", sum.Replays).
		Int("deferred", sum.Deferred).
		Int("rejected", sum.Rejected).
		Int("errors", sum.Errors).
		Msg("payload dir scanned")
	return sum, nil
}

// IngestFile reads one payload file and ingests it, logging the outcome.
func IngestFile(ctx context.Context, path string, ing Ingester) (*services.Report, error) {
	lg := logger(ctx).With().Str("file", path).Logger()
	body, err := os.ReadFile(path)
	if err != nil {
		lg.Warn().Err(err).Msg("payload file unreadable")
		return nil, err
	}
	rep, err := ing.Ingest(ctx, services.IngestInput{Source: path, Body: body})
	if err != nil {
		lg.Warn().Err(err).Msg("payload file skipped")
		return nil, err
	}
	lg.Debug().
		Str("kind", string(rep.Kind)).
		Bool("replay", rep.Replay).
		Bool("deferred", rep.Deferred).
		Msg("payload file ingested")
	return rep, nil
}

func logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
