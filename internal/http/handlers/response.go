// Package handlers provides the HTTP handlers of the public API: the webhook
// receiver, the conversation read API, and raw message creation.
//
// This file defines the response helpers shared by all handlers. Every error
// is returned as an ErrorResponse with a stable code; 5xx responses are also
// logged with the request-scoped logger.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/wa-inbox/internal/http/middleware"
	"github.com/tbourn/wa-inbox/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"conversation not found"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failStore answers a read that could not reach the store. Readers never get
// a partial answer.
func failStore(c *gin.Context, err error) {
	if errors.Is(err, services.ErrStoreUnavailable) {
		fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "message store unavailable")
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
