// Package services defines the business logic for ingesting webhook payloads
// and serving conversations. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrConversationNotFound indicates that no stored message belongs to the
	// requested conversation.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrInvalidMessage is returned when a message lacks a required field.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrInvalidStatus is returned when a status event carries a value outside
	// the known delivery states.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrNoStatusTarget is returned when a status event carries neither
	// meta_msg_id nor id.
	ErrNoStatusTarget = errors.New("status event has no target id")

	// ErrStoreUnavailable wraps storage failures surfaced to readers so they
	// can signal degradation instead of returning a partial answer.
	ErrStoreUnavailable = errors.New("store unavailable")
)
