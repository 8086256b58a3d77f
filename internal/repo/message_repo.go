// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model: the idempotent insert, status updates, and the ordered reads the
// conversation aggregator is built on.
//
// Error semantics:
//   - Lookups and updates of a missing message return ErrNotFound.
//   - InsertMessage never reports a duplicate message_id as an error; it
//     returns inserted=false instead.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/wa-inbox/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique constraint violation.
var ErrDuplicate = errors.New("duplicate")

// conversationOrder is the total order of messages inside a conversation:
// timestamp first, insertion order for ties.
const conversationOrder = "timestamp ASC, id ASC"

// InsertMessage stores m unless a message with the same MessageID already
// exists. The check and the insert are a single statement guarded by the
// unique index on message_id, so concurrent deliveries of the same id
// produce exactly one row.
func InsertMessage(ctx context.Context, db *gorm.DB, m *domain.Message) (inserted bool, err error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateMessageStatus overwrites the status of the message identified by
// messageID. It returns ErrNotFound when no such message exists.
func UpdateMessageStatus(ctx context.Context, db *gorm.DB, messageID string, status domain.Status) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("message_id = ?", messageID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMessage fetches a message by its upstream identifier.
func GetMessage(ctx context.Context, db *gorm.DB, messageID string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("message_id = ?", messageID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListAllMessages returns every stored message in conversation order.
func ListAllMessages(ctx context.Context, db *gorm.DB) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).Order(conversationOrder).Find(&out).Error
	return out, err
}

// ListConversationMessages returns the messages of one conversation in
// conversation order. When limit > 0 only the most recent limit messages are
// returned, still in ascending order.
func ListConversationMessages(ctx context.Context, db *gorm.DB, waID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).Where("wa_id = ?", waID)
	if limit <= 0 {
		err := q.Order(conversationOrder).Find(&out).Error
		return out, err
	}
	if err := q.Order("timestamp DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountMessages returns the number of stored messages.
func CountMessages(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Message{}).Count(&total).Error
	return total, err
}

// isUniqueViolation recognizes unique-constraint failures across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value violates unique constraint")
}
