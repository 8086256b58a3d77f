package domain

import "time"

// Kind classifies a webhook payload.
type Kind string

const (
	KindMessages Kind = "messages"
	KindStatuses Kind = "statuses"
	KindRejected Kind = "rejected"
)

// Outcome is the processing result recorded for a Delivery.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	// OutcomePartial is a status payload applied with some targets missing.
	OutcomePartial  Outcome = "partial"
	OutcomeDeferred Outcome = "deferred"
	OutcomeRejected Outcome = "rejected"
)

// Delivery records one received payload, keyed by Digest (the client's
// Idempotency-Key or the sha256 of the body). It lets replays of an already
// processed payload short-circuit (see Replayable), and keeps the body of
// payloads that hit a storage failure so they can be retried later.
type Delivery struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Digest    string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_deliveries_digest"`
	Source    string    `gorm:"type:varchar(255);not null;default:''"`
	Kind      Kind      `gorm:"type:varchar(16);not null"`
	Outcome   Outcome   `gorm:"type:varchar(16);not null;index:idx_deliveries_outcome"`
	Attempts  int       `gorm:"not null;default:0"`
	LastError string    `gorm:"type:text;not null;default:''"`
	Body      []byte    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Delivery) TableName() string { return "deliveries" }

// Replayable reports whether a new delivery with the same digest may be
// skipped. Re-applying a message batch only produces duplicates, so its body
// digest is enough. Status updates are last-write-wins: an identical status
// body can legitimately arrive again after a different status, or after the
// message it missed, so it is skipped only under an explicit client key and
// only when every target was found.
func (d *Delivery) Replayable(explicitKey bool) bool {
	if d.Outcome != OutcomeProcessed {
		return false
	}
	return d.Kind == KindMessages || explicitKey
}
