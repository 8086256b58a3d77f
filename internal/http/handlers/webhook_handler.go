// Webhook HTTP handlers.
//
//   - GET  /webhook  (subscription handshake)
//   - POST /webhook  (one change notification)
//
// Once a payload is read it is always acknowledged with 200 and the ingest
// report, unless it is malformed: upstream retries non-2xx deliveries, and
// item-level failures are retried on our side from the delivery ledger.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/wa-inbox/internal/http/middleware"
	"github.com/tbourn/wa-inbox/internal/services"
	"github.com/tbourn/wa-inbox/internal/webhook"
)

// VerifyWebhook godoc
// @ID          verifyWebhook
// @Summary     Webhook verification handshake
// @Description Echoes hub.challenge when hub.mode=subscribe and hub.verify_token matches.
// @Tags        Webhook
// @Produce     plain
//
// @Param       hub.mode          query  string  true  "Must be subscribe"
// @Param       hub.verify_token  query  string  true  "Shared verify token"
// @Param       hub.challenge     query  string  true  "Challenge to echo"
//
// @Success     200  {string}  string  "The challenge"
// @Failure     403  {object}  handlers.ErrorResponse  "Verification failed"
// @Router      /webhook [get]
func (h *Handlers) VerifyWebhook(c *gin.Context) {
	token := h.opts.VerifyToken
	if token == "" || c.Query("hub.mode") != "subscribe" || c.Query("hub.verify_token") != token {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "webhook verification failed")
		return
	}
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

// ReceiveWebhook godoc
// @ID          receiveWebhook
// @Summary     Receive a webhook payload
// @Description Classifies the payload as messages or statuses and applies every item.
// @Description The payload may be wrapped in {"metaData": ...}. Replays are acknowledged
// @Description without being reapplied: a message payload with the same body or key, or a
// @Description status payload with the same Idempotency-Key whose targets were all found.
// @Tags        Webhook
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Delivery key; defaults to the body digest"
// @Param       body             body    object  true   "Webhook payload"
//
// @Success     200  {object}  services.Report         "Ingest report"
// @Failure     400  {object}  handlers.ErrorResponse  "Unreadable body"
// @Failure     413  {object}  handlers.ErrorResponse  "Body too large"
// @Failure     422  {object}  handlers.ErrorResponse  "Malformed payload"
// @Router      /webhook [post]
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "payload too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	report, err := h.ingest.Ingest(c.Request.Context(), services.IngestInput{
		Source: "webhook",
		Body:   body,
		Key:    key,
	})
	switch {
	case errors.Is(err, webhook.ErrMalformedPayload):
		fail(c, http.StatusUnprocessableEntity, ErrCodeMalformedPayload, err.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, err.Error())
		return
	}
	if report.Replay || middleware.IsReplay(c) {
		c.Header("Idempotency-Replayed", "true")
	}
	ok(c, http.StatusOK, report)
}
