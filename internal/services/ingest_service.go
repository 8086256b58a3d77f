// Package services – IngestService
//
// IngestService is the ingestion pipeline: it classifies a raw webhook
// payload, dispatches each item to the MessageStore or the StatusUpdater,
// and records the payload in the delivery ledger.
//
// Failure isolation:
//   - A malformed payload is rejected and recorded; nothing is applied.
//   - Within a batch every item is processed independently and in order. An
//     invalid item is counted and skipped; a storage failure is retried a few
//     times with backoff, then counted as failed.
//   - A payload with failed items is recorded as deferred and replayed later
//     by RetryDeferred. Replays are safe: inserts are idempotent and status
//     updates are last-write-wins.
//   - A repeated message payload is skipped by body digest. A repeated status
//     payload is applied again unless it carries a client key and fully
//     succeeded the first time (see domain.Delivery.Replayable).
//
// Observability: public methods are OpenTelemetry-instrumented and every item
// outcome is logged and counted in Prometheus.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/wa-inbox/internal/domain"
	"github.com/tbourn/wa-inbox/internal/repo"
	"github.com/tbourn/wa-inbox/internal/webhook"
)

const (
	defaultDeliveryTTL  = 24 * time.Hour
	defaultItemMaxTries = 3
	defaultMaxAttempts  = 5
)

// Report summarizes the processing of one payload.
type Report struct {
	Kind       domain.Kind `json:"kind"`
	Inserted   int         `json:"inserted"`
	Duplicates int         `json:"duplicates"`
	Updated    int         `json:"updated"`
	Missing    int         `json:"missing"`
	Invalid    int         `json:"invalid"`
	Failed     int         `json:"failed"`
	Replay     bool        `json:"replay"`
	Deferred   bool        `json:"deferred"`

	lastErr error
}

// outcome maps a report to the ledger outcome: deferred when items failed,
// partial when status targets were missing, processed otherwise.
func (r *Report) outcome() domain.Outcome {
	switch {
	case r.Failed > 0:
		return domain.OutcomeDeferred
	case r.Missing > 0:
		return domain.OutcomePartial
	default:
		return domain.OutcomeProcessed
	}
}

// IngestInput is one payload as received from a source.
type IngestInput struct {
	Source string // e.g. "webhook", a file path
	Body   []byte
	Key    string // optional client idempotency key; sha256(Body) otherwise
}

// RetrySummary reports a RetryDeferred pass.
type RetrySummary struct {
	Scanned   int `json:"scanned"`
	Resolved  int `json:"resolved"`
	Deferred  int `json:"deferred"`
	Abandoned int `json:"abandoned"`
}

// IngestService wires the classifier to the message store and status updater.
type IngestService struct {
	DB      *gorm.DB
	Store   *MessageStore
	Updater *StatusUpdater

	// DeliveryTTL bounds how long a processed payload is recognized as a replay.
	DeliveryTTL time.Duration
	// ItemMaxTries caps attempts per item on storage errors (>= 1).
	ItemMaxTries uint
	// MaxAttempts caps RetryDeferred passes before a payload is abandoned.
	MaxAttempts int
	// ItemBackOff builds the backoff between item attempts; nil uses an
	// exponential backoff starting at 50ms.
	ItemBackOff func() backoff.BackOff
}

// NewIngestService constructs an IngestService with default limits.
func NewIngestService(db *gorm.DB) *IngestService {
	return &IngestService{
		DB:           db,
		Store:        &MessageStore{DB: db},
		Updater:      &StatusUpdater{DB: db},
		DeliveryTTL:  defaultDeliveryTTL,
		ItemMaxTries: defaultItemMaxTries,
		MaxAttempts:  defaultMaxAttempts,
	}
}

// Digest returns the ledger key for a payload: the client key when given,
// otherwise the hex sha256 of the body.
func Digest(key string, body []byte) string {
	if key != "" {
		return key
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Ingest classifies and applies one payload. It returns an error wrapping
// webhook.ErrMalformedPayload when the payload is rejected; item-level
// problems never surface as errors and are reported in the Report instead.
func (s *IngestService) Ingest(ctx context.Context, in IngestInput) (*Report, error) {
	digest := Digest(in.Key, in.Body)

	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(
			attribute.String("ingest.source", in.Source),
			attribute.String("ingest.digest", digest),
		),
	)
	defer span.End()

	lg := logger(ctx).With().Str("source", in.Source).Str("digest", digest).Logger()

	// Ledger lookup. A ledger failure does not block ingestion: applying a
	// payload twice is harmless.
	var existing *domain.Delivery
	rec, err := repo.GetDelivery(ctx, s.DB, digest, time.Now().UTC())
	switch {
	case err == nil && rec.Replayable(in.Key != ""):
		lg.Debug().Msg("replayed delivery skipped")
		ingestPayloads.WithLabelValues(string(rec.Kind), "replay").Inc()
		return &Report{Kind: rec.Kind, Replay: true}, nil
	case err == nil:
		existing = rec
	case !errors.Is(err, repo.ErrNotFound):
		lg.Warn().Err(err).Msg("delivery ledger lookup failed")
	}

	batch, perr := webhook.Parse(in.Body)
	if perr != nil {
		lg.Warn().Err(perr).Msg("payload_rejected")
		ingestPayloads.WithLabelValues(string(domain.KindRejected), string(domain.OutcomeRejected)).Inc()
		s.record(ctx, &lg, existing, digest, in, domain.KindRejected, domain.OutcomeRejected, perr.Error())
		span.RecordError(perr)
		return nil, perr
	}

	report := s.Process(ctx, batch)

	outcome := report.outcome()
	lastErr := ""
	if outcome == domain.OutcomeDeferred {
		report.Deferred = true
		lastErr = errString(report.lastErr)
	}
	ingestPayloads.WithLabelValues(string(report.Kind), string(outcome)).Inc()
	s.record(ctx, &lg, existing, digest, in, report.Kind, outcome, lastErr)
	return report, nil
}

// Process applies a classified batch item by item. Items are processed in
// batch order; a failing item never prevents its siblings from running.
func (s *IngestService) Process(ctx context.Context, batch domain.Batch) *Report {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(
			attribute.String("batch.kind", string(batch.Kind())),
			attribute.Int("batch.size", batch.Len()),
		),
	)
	defer span.End()

	r := &Report{Kind: batch.Kind()}
	switch b := batch.(type) {
	case *domain.MessageBatch:
		s.processMessages(ctx, b, r)
	case *domain.StatusBatch:
		s.processStatuses(ctx, b, r)
	}
	return r
}

func (s *IngestService) processMessages(ctx context.Context, b *domain.MessageBatch, r *Report) {
	lg := logger(ctx).With().Str("wa_id", b.WaID).Logger()
	for _, m := range b.Messages {
		ev := lg.With().Str("message_id", m.ID).Logger()
		res, err := retryItem(ctx, s, func() (InsertResult, error) {
			return s.Store.Insert(ctx, m, b.ContactName, b.WaID)
		})
		switch {
		case errors.Is(err, ErrInvalidMessage):
			r.Invalid++
			ingestItems.WithLabelValues("invalid").Inc()
			ev.Warn().Err(err).Msg("message_invalid")
		case err != nil:
			r.Failed++
			r.lastErr = err
			ingestItems.WithLabelValues("failed").Inc()
			ev.Error().Err(err).Msg("message_insert_failed")
		case res == Inserted:
			r.Inserted++
			ingestItems.WithLabelValues("inserted").Inc()
			ev.Info().Msg("inserted")
		default:
			r.Duplicates++
			ingestItems.WithLabelValues("duplicate").Inc()
			ev.Debug().Msg("duplicate")
		}
	}
}

func (s *IngestService) processStatuses(ctx context.Context, b *domain.StatusBatch, r *Report) {
	lg := logger(ctx)
	for _, st := range b.Statuses {
		ev := lg.With().Str("message_id", st.TargetID()).Str("status", string(st.Status)).Logger()
		res, err := retryItem(ctx, s, func() (ApplyResult, error) {
			return s.Updater.Apply(ctx, st)
		})
		switch {
		case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNoStatusTarget):
			r.Invalid++
			ingestItems.WithLabelValues("invalid").Inc()
			ev.Warn().Err(err).Msg("status_invalid")
		case err != nil:
			r.Failed++
			r.lastErr = err
			ingestItems.WithLabelValues("failed").Inc()
			ev.Error().Err(err).Msg("status_update_failed")
		case res == Updated:
			r.Updated++
			ingestItems.WithLabelValues("updated").Inc()
			ev.Info().Msg("status_updated")
		default:
			r.Missing++
			ingestItems.WithLabelValues("missing").Inc()
			ev.Warn().Msg("status_target_missing")
		}
	}
}

// RetryDeferred reprocesses up to limit deferred payloads. A payload that
// still has failing items after MaxAttempts passes is marked rejected.
func (s *IngestService) RetryDeferred(ctx context.Context, limit int) (RetrySummary, error) {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "RetryDeferred", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	var sum RetrySummary
	list, err := repo.ListDeferred(ctx, s.DB, limit)
	if err != nil {
		return sum, err
	}
	lg := logger(ctx)
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	for _, d := range list {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.Scanned++
		ev := lg.With().Str("delivery_id", d.ID).Str("source", d.Source).Int("attempts", d.Attempts+1).Logger()

		batch, perr := webhook.Parse(d.Body)
		if perr != nil {
			sum.Abandoned++
			s.update(ctx, &ev, d.ID, domain.KindRejected, domain.OutcomeRejected, perr.Error())
			continue
		}

		r := s.Process(ctx, batch)
		switch {
		case r.Failed == 0:
			sum.Resolved++
			ingestPayloads.WithLabelValues(string(r.Kind), string(r.outcome())).Inc()
			s.update(ctx, &ev, d.ID, r.Kind, r.outcome(), "")
			ev.Info().Msg("deferred delivery resolved")
		case d.Attempts+1 >= maxAttempts:
			sum.Abandoned++
			ingestPayloads.WithLabelValues(string(r.Kind), string(domain.OutcomeRejected)).Inc()
			s.update(ctx, &ev, d.ID, r.Kind, domain.OutcomeRejected, errString(r.lastErr))
			ev.Error().Err(r.lastErr).Msg("deferred delivery abandoned")
		default:
			sum.Deferred++
			s.update(ctx, &ev, d.ID, r.Kind, domain.OutcomeDeferred, errString(r.lastErr))
			ev.Warn().Err(r.lastErr).Msg("delivery still deferred")
		}
	}
	return sum, nil
}

// record writes the ledger row for a processed payload. Ledger failures are
// logged only.
func (s *IngestService) record(ctx context.Context, lg *zerolog.Logger, existing *domain.Delivery, digest string, in IngestInput, kind domain.Kind, outcome domain.Outcome, lastErr string) {
	if existing != nil {
		s.update(ctx, lg, existing.ID, kind, outcome, lastErr)
		return
	}
	ttl := s.DeliveryTTL
	if ttl <= 0 {
		ttl = defaultDeliveryTTL
	}
	attempts := 1
	_, err := repo.CreateDelivery(ctx, s.DB, &domain.Delivery{
		Digest:    digest,
		Source:    in.Source,
		Kind:      kind,
		Outcome:   outcome,
		Attempts:  attempts,
		LastError: lastErr,
		Body:      in.Body,
	}, ttl)
	if err != nil && !errors.Is(err, repo.ErrDuplicate) {
		lg.Warn().Err(err).Msg("delivery ledger write failed")
	}
}

func (s *IngestService) update(ctx context.Context, lg *zerolog.Logger, id string, kind domain.Kind, outcome domain.Outcome, lastErr string) {
	if err := repo.UpdateDeliveryOutcome(ctx, s.DB, id, kind, outcome, lastErr); err != nil {
		lg.Warn().Err(err).Msg("delivery ledger update failed")
	}
}

// retryItem runs op with backoff, retrying only storage errors. Validation
// errors are returned immediately.
func retryItem[T any](ctx context.Context, s *IngestService, op func() (T, error)) (T, error) {
	tries := s.ItemMaxTries
	if tries == 0 {
		tries = 1
	}
	newBackOff := s.ItemBackOff
	if newBackOff == nil {
		newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		}
	}
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && isPermanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(tries),
	)
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrInvalidMessage) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrNoStatusTarget) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// logger returns the zerolog logger carried by ctx, or the global logger.
func logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprint(err)
}
