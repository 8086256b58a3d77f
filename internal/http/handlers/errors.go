// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them rather
// than on messages. Every error response carries one of these codes in the
// ErrorResponse envelope (see response.go).
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "malformed_payload",
//	  "message": "change carries neither messages nor statuses"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeMalformedPayload = "malformed_payload"
	ErrCodeInvalidMessage   = "invalid_message"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeIngestFailed     = "ingest_failed"
)
