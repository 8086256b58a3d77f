// Package services – ConversationService
//
// ConversationService is the read side: it rebuilds conversations from the
// stored messages on every call. Messages are grouped by wa_id and ordered by
// timestamp ascending with insertion order breaking ties; a conversation's
// contact name is the one stored with its earliest message.
//
// Storage failures are wrapped in ErrStoreUnavailable so handlers can signal
// degradation instead of returning a partial answer.
package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/wa-inbox/internal/domain"
	"github.com/tbourn/wa-inbox/internal/repo"
)

// ConversationService aggregates stored messages into conversations.
type ConversationService struct {
	DB *gorm.DB
}

// List returns every conversation keyed by wa_id.
func (s *ConversationService) List(ctx context.Context) (map[string]domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	msgs, err := repo.ListAllMessages(ctx, s.DB)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	out := Group(msgs)
	span.SetAttributes(attribute.Int("conversations", len(out)))
	return out, nil
}

// Get returns the ordered messages of one conversation. When limit > 0 only
// the most recent limit messages are returned, still in ascending order.
func (s *ConversationService) Get(ctx context.Context, waID string, limit int) ([]domain.MessageView, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("conversation.id", waID),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	waID = strings.TrimSpace(waID)
	if waID == "" {
		return nil, ErrConversationNotFound
	}
	msgs, err := repo.ListConversationMessages(ctx, s.DB, waID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(msgs) == 0 {
		return nil, ErrConversationNotFound
	}
	out := make([]domain.MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.View())
	}
	return out, nil
}

// Group folds messages that are already in conversation order into
// conversations keyed by wa_id. The first message seen for a wa_id provides
// the contact name.
func Group(msgs []domain.Message) map[string]domain.Conversation {
	out := make(map[string]domain.Conversation)
	for _, m := range msgs {
		c, ok := out[m.WaID]
		if !ok {
			c = domain.Conversation{WaID: m.WaID, ContactName: m.ContactName}
		}
		c.Messages = append(c.Messages, m.View())
		out[m.WaID] = c
	}
	return out
}
