package domain

// Batch is the classified form of one webhook payload. It is either a
// *MessageBatch or a *StatusBatch.
type Batch interface {
	Kind() Kind
	Len() int
}

// InboundMessage is one message as delivered by upstream, already validated.
type InboundMessage struct {
	ID        string
	From      string
	Timestamp int64
	Text      *string
	// Invalid, when set, says why the item cannot be stored. The rest of
	// the batch is still applied.
	Invalid string
}

// MessageBatch carries new messages for a single conversation.
type MessageBatch struct {
	ContactName string
	WaID        string
	Messages    []InboundMessage
}

// Kind implements Batch.
func (*MessageBatch) Kind() Kind { return KindMessages }

// Len implements Batch.
func (b *MessageBatch) Len() int { return len(b.Messages) }

// StatusEvent is an instruction to change a message's status. MetaMsgID,
// when present, takes precedence over ID when resolving the target message.
type StatusEvent struct {
	ID        string
	MetaMsgID string
	Status    Status
}

// TargetID resolves the message a status event refers to: MetaMsgID first,
// then ID.
func (e StatusEvent) TargetID() string {
	if e.MetaMsgID != "" {
		return e.MetaMsgID
	}
	return e.ID
}

// StatusBatch carries status changes for previously ingested messages.
type StatusBatch struct {
	Statuses []StatusEvent
}

// Kind implements Batch.
func (*StatusBatch) Kind() Kind { return KindStatuses }

// Len implements Batch.
func (b *StatusBatch) Len() int { return len(b.Statuses) }
