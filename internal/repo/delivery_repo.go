// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the delivery ledger: one row per
// received webhook payload, used to short-circuit replays and to keep
// deferred payloads around for retry.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/wa-inbox/internal/domain"
)

// GetDelivery returns a non-expired delivery for digest or ErrNotFound.
func GetDelivery(ctx context.Context, db *gorm.DB, digest string, now time.Time) (*domain.Delivery, error) {
	if strings.TrimSpace(digest) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Delivery
	err := db.WithContext(ctx).
		Where("digest = ? AND expires_at > ?", digest, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateDelivery inserts a ledger row and returns ErrDuplicate when the
// digest is already recorded.
func CreateDelivery(ctx context.Context, db *gorm.DB, d *domain.Delivery, ttl time.Duration) (*domain.Delivery, error) {
	now := time.Now().UTC()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = now
	d.UpdatedAt = now
	d.ExpiresAt = now.Add(ttl)
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return d, nil
}

// UpdateDeliveryOutcome records the result of a processing attempt. The
// attempts counter is incremented and lastErr replaces the previous error.
func UpdateDeliveryOutcome(ctx context.Context, db *gorm.DB, id string, kind domain.Kind, outcome domain.Outcome, lastErr string) error {
	res := db.WithContext(ctx).
		Model(&domain.Delivery{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"kind":       kind,
			"outcome":    outcome,
			"last_error": lastErr,
			"attempts":   gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDeferred returns up to limit deferred deliveries, oldest first.
func ListDeferred(ctx context.Context, db *gorm.DB, limit int) ([]domain.Delivery, error) {
	var out []domain.Delivery
	q := db.WithContext(ctx).
		Where("outcome = ?", domain.OutcomeDeferred).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// PurgeExpiredDeliveries deletes settled ledger rows whose TTL has passed.
// Deferred rows are kept until they are resolved.
func PurgeExpiredDeliveries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ? AND outcome <> ?", now, domain.OutcomeDeferred).
		Delete(&domain.Delivery{})
	return res.RowsAffected, res.Error
}
