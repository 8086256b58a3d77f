// Conversation HTTP handlers.
//
//   - GET /messages          (all conversations keyed by wa_id, ETag support)
//   - GET /messages/{wa_id}  (one conversation in order, optional limit)
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/wa-inbox/internal/domain"
	"github.com/tbourn/wa-inbox/internal/services"
	"github.com/tbourn/wa-inbox/internal/utils"
)

const maxConversationLimit = 1000

// ConversationsResponse maps wa_id to its conversation.
type ConversationsResponse map[string]domain.Conversation

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations
// @Description Returns every conversation keyed by wa_id. Messages are ordered
// @Description by timestamp; the contact name comes from the earliest message.
// @Tags        Conversations
// @Produce     json
//
// @Param       If-None-Match  header  string  false  "ETag from a previous response"
//
// @Success     200  {object}  handlers.ConversationsResponse
// @Success     304  "Not modified"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /messages [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	if h.notModified(c, "messages", "") {
		return
	}
	convs, err := h.conv.List(c.Request.Context())
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, ConversationsResponse(convs))
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Get one conversation
// @Description Returns the messages of a conversation in timestamp order.
// @Description With limit, only the most recent messages are returned (still ascending).
// @Tags        Conversations
// @Produce     json
//
// @Param       wa_id  path   string  true   "Customer WhatsApp id"  example(919937320320)
// @Param       limit  query  int     false  "Most recent N messages"  minimum(1) maximum(1000)
//
// @Success     200  {array}   domain.MessageView
// @Success     304  "Not modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /messages/{wa_id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	waID := c.Param("wa_id")

	limit := 0
	if raw, has := c.GetQuery("limit"); has {
		limit = utils.AtoiDefault(raw, -1)
		if limit < 1 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = utils.Clamp(limit, 1, maxConversationLimit)
	}

	if h.notModified(c, fmt.Sprintf("conversation:%s:%d", waID, limit), waID) {
		return
	}
	msgs, err := h.conv.Get(c.Request.Context(), waID, limit)
	switch {
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
	case err != nil:
		failStore(c, err)
	default:
		ok(c, http.StatusOK, msgs)
	}
}

// notModified sets a weak ETag derived from the message count and latest
// updated_at, and answers 304 when If-None-Match matches. Version lookups are
// best effort: on failure no ETag is sent.
func (h *Handlers) notModified(c *gin.Context, scope, waID string) bool {
	if h.opts.Version == nil {
		return false
	}
	count, maxTS, err := h.opts.Version(c.Request.Context(), waID)
	if err != nil || (waID != "" && count == 0) {
		return false
	}
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d"`, scope, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
