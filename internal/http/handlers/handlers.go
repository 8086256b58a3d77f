// Package handlers wiring.
//
// Handlers are transport-thin: they validate input, call the services, and
// translate results into HTTP responses. They depend on the narrow interfaces
// below so tests can substitute stubs.
package handlers

import (
	"context"
	"time"

	"github.com/tbourn/wa-inbox/internal/domain"
	"github.com/tbourn/wa-inbox/internal/services"
)

// ConversationReader serves the read side.
type ConversationReader interface {
	// List returns every conversation keyed by wa_id.
	List(ctx context.Context) (map[string]domain.Conversation, error)
	// Get returns one conversation's messages in order; limit > 0 keeps the
	// most recent limit messages.
	Get(ctx context.Context, waID string, limit int) ([]domain.MessageView, error)
}

// MessageCreator stores a fully specified message with insert-or-skip
// semantics.
type MessageCreator interface {
	Create(ctx context.Context, in services.CreateMessageInput) (services.InsertResult, *domain.Message, error)
}

// Ingester applies one raw webhook payload.
type Ingester interface {
	Ingest(ctx context.Context, in services.IngestInput) (*services.Report, error)
}

// VersionFunc reports (count, latest updated_at) for a set of messages.
// waID is empty for the whole store.
type VersionFunc func(ctx context.Context, waID string) (count int64, maxUpdatedAt *time.Time, err error)

// Options carries handler settings.
type Options struct {
	// VerifyToken is the hub.verify_token expected during the webhook
	// handshake. Empty disables the handshake.
	VerifyToken string
	// Version enables weak ETags on the read API when non-nil.
	Version VersionFunc
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	conv   ConversationReader
	store  MessageCreator
	ingest Ingester
	opts   Options
}

// New constructs Handlers bound to the given services.
func New(conv ConversationReader, store MessageCreator, ingest Ingester, opts Options) *Handlers {
	return &Handlers{conv: conv, store: store, ingest: ingest, opts: opts}
}
