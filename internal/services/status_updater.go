// Package services – StatusUpdater
//
// StatusUpdater applies delivery-status events to stored messages. The target
// message is resolved from meta_msg_id first and id second. The new status
// overwrites the old one unconditionally: backward transitions (read → sent)
// are applied as received, and concurrent events for one message race with
// last-write-wins semantics.
package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/wa-inbox/internal/domain"
	"github.com/tbourn/wa-inbox/internal/repo"
)

// ApplyResult is the outcome of StatusUpdater.Apply.
type ApplyResult int

const (
	Updated ApplyResult = iota + 1
	NotFound
)

func (r ApplyResult) String() string {
	switch r {
	case Updated:
		return "updated"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// StatusUpdater sets message statuses by upstream id.
type StatusUpdater struct {
	DB *gorm.DB
}

// Apply sets the status of the message ev refers to. A missing target is
// reported as NotFound, not as an error: status events may race ahead of the
// message they describe.
func (u *StatusUpdater) Apply(ctx context.Context, ev domain.StatusEvent) (ApplyResult, error) {
	target := ev.TargetID()

	tr := otel.Tracer("services/StatusUpdater")
	ctx, span := tr.Start(ctx, "Apply",
		trace.WithAttributes(
			attribute.String("message.id", target),
			attribute.String("message.status", string(ev.Status)),
		),
	)
	defer span.End()

	if target == "" {
		return 0, ErrNoStatusTarget
	}
	if !ev.Status.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, ev.Status)
	}

	err := repo.UpdateMessageStatus(ctx, u.DB, target, ev.Status)
	switch {
	case err == nil:
		return Updated, nil
	case errors.Is(err, repo.ErrNotFound):
		return NotFound, nil
	default:
		span.RecordError(err)
		return 0, err
	}
}
