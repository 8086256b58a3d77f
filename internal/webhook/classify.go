// Package webhook parses raw WhatsApp Cloud API webhook payloads and
// classifies each one as either a batch of new messages or a batch of status
// updates. Malformed shapes are rejected here, at the boundary, so the
// ingestion pipeline only ever sees validated, tagged batches.
//
// Classification rule: a change value carrying a "statuses" section is a
// status batch regardless of whether "messages" is also present; a value with
// "messages" and no "statuses" is a message batch. Anything else is malformed.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/wa-inbox/internal/domain"
)

// ErrMalformedPayload is returned when a payload cannot be classified.
var ErrMalformedPayload = errors.New("malformed payload")

// wrapperKey is the envelope key stored payload dumps nest the webhook under.
const wrapperKey = "metaData"

type envelope struct {
	Entry []struct {
		Changes []struct {
			Value map[string]json.RawMessage `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type rawContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type rawMessage struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	Timestamp json.RawMessage `json:"timestamp"`
	Text      *struct {
		Body *string `json:"body"`
	} `json:"text"`
}

type rawStatus struct {
	ID        string `json:"id"`
	MetaMsgID string `json:"meta_msg_id"`
	Status    string `json:"status"`
}

// Parse validates raw and returns its classified batch. Only the first change
// of the first entry is considered: upstream delivers one logical change per
// payload. Errors wrap ErrMalformedPayload.
func Parse(raw []byte) (domain.Batch, error) {
	body, err := unwrap(raw)
	if err != nil {
		return nil, err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, malformed("invalid json: %v", err)
	}
	if err := payloadSchema.Validate(inst); err != nil {
		return nil, malformed("%v", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, malformed("decode: %v", err)
	}
	value := env.Entry[0].Changes[0].Value

	if rs, ok := value["statuses"]; ok {
		return parseStatuses(rs)
	}
	if rm, ok := value["messages"]; ok {
		return parseMessages(rm, value["contacts"])
	}
	return nil, malformed("change carries neither messages nor statuses")
}

// unwrap strips the optional {"metaData": {...}} wrapper.
func unwrap(raw []byte) ([]byte, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, malformed("invalid json: %v", err)
	}
	if inner, ok := top[wrapperKey]; ok {
		return inner, nil
	}
	return raw, nil
}

func parseStatuses(raw json.RawMessage) (*domain.StatusBatch, error) {
	var in []rawStatus
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, malformed("statuses: %v", err)
	}
	out := &domain.StatusBatch{Statuses: make([]domain.StatusEvent, 0, len(in))}
	for _, s := range in {
		out.Statuses = append(out.Statuses, domain.StatusEvent{
			ID:        strings.TrimSpace(s.ID),
			MetaMsgID: strings.TrimSpace(s.MetaMsgID),
			Status:    domain.Status(strings.ToLower(strings.TrimSpace(s.Status))),
		})
	}
	return out, nil
}

func parseMessages(rawMsgs, rawContacts json.RawMessage) (*domain.MessageBatch, error) {
	var contacts []rawContact
	if len(rawContacts) > 0 {
		if err := json.Unmarshal(rawContacts, &contacts); err != nil {
			return nil, malformed("contacts: %v", err)
		}
	}
	if len(contacts) == 0 {
		return nil, malformed("messages without contacts")
	}

	var in []rawMessage
	if err := json.Unmarshal(rawMsgs, &in); err != nil {
		return nil, malformed("messages: %v", err)
	}

	out := &domain.MessageBatch{
		ContactName: normalizeName(contacts[0].Profile.Name),
		WaID:        strings.TrimSpace(contacts[0].WaID),
		Messages:    make([]domain.InboundMessage, 0, len(in)),
	}
	for _, m := range in {
		ts, err := ParseTimestamp(m.Timestamp)
		if err != nil {
			out.Messages = append(out.Messages, domain.InboundMessage{
				ID:      m.ID,
				From:    m.From,
				Invalid: fmt.Sprintf("timestamp: %v", err),
			})
			continue
		}
		var text *string
		if m.Text != nil && m.Text.Body != nil {
			b := norm.NFC.String(*m.Text.Body)
			text = &b
		}
		out.Messages = append(out.Messages, domain.InboundMessage{
			ID:        m.ID,
			From:      m.From,
			Timestamp: ts,
			Text:      text,
		})
	}
	return out, nil
}

// ParseTimestamp converts an upstream timestamp to unix seconds. Accepted
// forms: a JSON integer, a string of decimal digits, or an RFC 3339 string.
func ParseTimestamp(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errors.New("missing")
	}
	if raw[0] != '"' {
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %s", raw)
		}
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return ParseTimestampString(s)
}

// ParseTimestampString is ParseTimestamp for an already-decoded string.
func ParseTimestampString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return t.Unix(), nil
}

// normalizeName trims and NFC-normalizes a contact display name.
func normalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}
