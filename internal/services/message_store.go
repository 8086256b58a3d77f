// Package services – MessageStore
//
// MessageStore is the idempotent write side for messages: a message is
// persisted the first time its upstream id is seen and silently skipped on
// every later delivery. The uniqueness guarantee lives in the database (a
// unique index on message_id), so concurrent deliveries need no locking here.
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

// InsertResult is the outcome of MessageStore.Insert.
type InsertResult int

const (
	Inserted InsertResult = iota + 1
	AlreadyExists
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	}
	return "unknown"
}

// MessageStore inserts messages with insert-or-skip semantics.
type MessageStore struct {
	DB *gorm.DB
}

// Insert persists msg for the conversation waID with status "sent" unless a
// message with the same id already exists.
func (s *MessageStore) Insert(ctx context.Context, msg domain.InboundMessage, contactName, waID string) (InsertResult, error) {
	if msg.Invalid != "" {
		return 0, fmt.Errorf("%w: %s", ErrInvalidMessage, msg.Invalid)
	}
	return s.insert(ctx, &domain.Message{
		MessageID:   msg.ID,
		WaID:        waID,
		From:        msg.From,
		ContactName: contactName,
		Timestamp:   msg.Timestamp,
		Text:        msg.Text,
		Status:      domain.StatusSent,
	})
}

// CreateMessageInput is a fully specified message for direct creation.
type CreateMessageInput struct {
	MessageID   string
	WaID        string
	From        string
	ContactName string
	Timestamp   int64
	Text        *string
	Status      domain.Status // optional; defaults to sent
}

// Create validates in and stores it through the same insert-or-skip path as
// ingested messages. The returned message is the stored row.
func (s *MessageStore) Create(ctx context.Context, in CreateMessageInput) (InsertResult, *domain.Message, error) {
	in.MessageID = strings.TrimSpace(in.MessageID)
	in.WaID = strings.TrimSpace(in.WaID)
	in.From = strings.TrimSpace(in.From)
	switch {
	case in.MessageID == "":
		return 0, nil, fmt.Errorf("%w: message_id is required", ErrInvalidMessage)
	case in.WaID == "":
		return 0, nil, fmt.Errorf("%w: wa_id is required", ErrInvalidMessage)
	case in.From == "":
		return 0, nil, fmt.Errorf("%w: from is required", ErrInvalidMessage)
	}
	if in.Status == "" {
		in.Status = domain.StatusSent
	}
	if !in.Status.Valid() {
		return 0, nil, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}

	res, err := s.insert(ctx, &domain.Message{
		MessageID:   in.MessageID,
		WaID:        in.WaID,
		From:        in.From,
		ContactName: strings.TrimSpace(in.ContactName),
		Timestamp:   in.Timestamp,
		Text:        in.Text,
		Status:      in.Status,
	})
	if err != nil {
		return 0, nil, err
	}
	stored, err := repo.GetMessage(ctx, s.DB, in.MessageID)
	if err != nil {
		return 0, nil, err
	}
	return res, stored, nil
}

func (s *MessageStore) insert(ctx context.Context, m *domain.Message) (InsertResult, error) {
	tr := otel.Tracer("services/MessageStore")
	ctx, span := tr.Start(ctx, "Insert",
		trace.WithAttributes(
			attribute.String("message.id", m.MessageID),
			attribute.String("conversation.id", m.WaID),
		),
	)
	defer span.End()

	if m.MessageID == "" {
		return 0, fmt.Errorf("%w: message_id is required", ErrInvalidMessage)
	}
	ok, err := repo.InsertMessage(ctx, s.DB, m)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if !ok {
		return AlreadyExists, nil
	}
	return Inserted, nil
}
