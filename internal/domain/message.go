// Package domain defines the persistence models for ingested messages and
// webhook deliveries, plus the tagged payload variants produced by the
// webhook classifier. These types are mapped with GORM and shared across the
// repository and service layers.
package domain

import "time"

// Status is a message delivery state.
type Status string

// Known delivery states. StatusSent is assigned on first ingestion.
const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is one of the known delivery states.
func (s Status) Valid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return true
	}
	return false
}

// Message is the durable unit of conversation content.
//
// Fields:
//   - ID: internal auto-increment key; doubles as the insertion-order
//     tie-breaker for equal timestamps. Never exposed.
//   - MessageID: upstream-assigned identifier, unique across the store.
//   - WaID: conversation identifier (the counterpart's WhatsApp id).
//   - From: author of the message.
//   - ContactName: display name of the conversation as reported with this message.
//   - Timestamp: unix seconds reported by upstream; used for ordering.
//   - Text: body for text messages, nil for other message types.
//   - Status: current delivery state, mutable after creation.
type Message struct {
	ID          uint      `json:"-"            gorm:"primaryKey;autoIncrement"`
	MessageID   string    `json:"message_id"   gorm:"type:varchar(191);not null;uniqueIndex:ux_messages_message_id"`
	WaID        string    `json:"wa_id"        gorm:"type:varchar(64);not null;index:idx_conversation_ts,priority:1"`
	From        string    `json:"from"         gorm:"type:varchar(64);not null"`
	ContactName string    `json:"contact_name" gorm:"type:varchar(255);not null;default:''"`
	Timestamp   int64     `json:"timestamp"    gorm:"not null;index:idx_conversation_ts,priority:2"`
	Text        *string   `json:"text"`
	Status      Status    `json:"status"       gorm:"type:varchar(16);not null;default:'sent'"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "processed_messages" }

// MessageView is the public projection of a Message inside a conversation.
type MessageView struct {
	MessageID string  `json:"message_id" example:"wamid.HBgMOTE5OTY3NTc4NzIwFQIAEhggMTIzQURFRjEyMzQ1Njc4OTA"`
	From      string  `json:"from"       example:"919937320320"`
	Timestamp int64   `json:"timestamp"  example:"1754400000"`
	Text      *string `json:"text"       example:"Hi, I'd like to know more about your services."`
	Status    Status  `json:"status"     example:"delivered"`
}

// View projects m to its public shape.
func (m Message) View() MessageView {
	return MessageView{
		MessageID: m.MessageID,
		From:      m.From,
		Timestamp: m.Timestamp,
		Text:      m.Text,
		Status:    m.Status,
	}
}

// Conversation is a derived view: all messages sharing a WaID ordered by
// timestamp, paired with the contact name of the earliest message.
type Conversation struct {
	WaID        string        `json:"-"`
	ContactName string        `json:"contact_name" example:"Ravi Kumar"`
	Messages    []MessageView `json:"messages"`
}
