// Message HTTP handlers.
//
//   - POST /messages  (store one fully specified message, insert-or-skip)
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/wa-inbox/internal/domain"
	"github.com/tbourn/wa-inbox/internal/http/middleware"
	"github.com/tbourn/wa-inbox/internal/services"
	"github.com/tbourn/wa-inbox/internal/webhook"
)

// CreateMessageRequest is a raw message, as an operator would backfill it.
type CreateMessageRequest struct {
	MessageID   string `json:"message_id"   binding:"required" example:"wamid.HBgMOTE5OTY3NTc4NzIwFQIAEhggMTIzQURFRjEyMzQ1Njc4OTA"`
	WaID        string `json:"wa_id"        binding:"required" example:"919937320320"`
	From        string `json:"from"         binding:"required" example:"919937320320"`
	ContactName string `json:"contact_name" example:"Ravi Kumar"`
	// Timestamp is unix seconds, as a number or numeric string, or RFC3339.
	Timestamp json.RawMessage `json:"timestamp" swaggertype:"string" example:"1754400000"`
	Text      *string         `json:"text"      example:"Hi there"`
	// Status defaults to sent.
	Status string `json:"status" example:"sent" enums:"sent,delivered,read,failed"`
}

// CreateMessageResponse echoes the stored row. Result is "inserted" or
// "already_exists"; in the latter case Message is the row that was kept.
type CreateMessageResponse struct {
	Result  string          `json:"result" example:"inserted"`
	Message *domain.Message `json:"message"`
}

// CreateMessage godoc
// @ID          createMessage
// @Summary     Create a message
// @Description Stores a message through the same insert-or-skip path as webhook
// @Description ingestion. An existing message_id is left untouched.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateMessageRequest  true  "Message"
//
// @Success     201  {object}  handlers.CreateMessageResponse  "Inserted"
// @Success     200  {object}  handlers.CreateMessageResponse  "Already existed"
// @Failure     400  {object}  handlers.ErrorResponse          "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse          "Store unavailable"
// @Router      /messages [post]
func (h *Handlers) CreateMessage(c *gin.Context) {
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message_id, wa_id and from are required")
		return
	}
	if len(req.Timestamp) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "timestamp is required")
		return
	}
	ts, err := webhook.ParseTimestamp(req.Timestamp)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "timestamp must be unix seconds or RFC3339")
		return
	}

	res, stored, err := h.store.Create(c.Request.Context(), services.CreateMessageInput{
		MessageID:   req.MessageID,
		WaID:        req.WaID,
		From:        req.From,
		ContactName: req.ContactName,
		Timestamp:   ts,
		Text:        req.Text,
		Status:      domain.Status(req.Status),
	})
	switch {
	case errors.Is(err, services.ErrInvalidMessage), errors.Is(err, services.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, ErrCodeInvalidMessage, err.Error())
		return
	case err != nil:
		middleware.LoggerFrom(c).Warn().Err(err).Str("message_id", req.MessageID).Msg("create message failed")
		fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "message store unavailable")
		return
	}

	status := http.StatusOK
	if res == services.Inserted {
		status = http.StatusCreated
	}
	ok(c, status, CreateMessageResponse{Result: res.String(), Message: stored})
}
