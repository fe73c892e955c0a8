// Package handler provides HTTP handlers for the webhook service.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wavedesk/messaging-platform/internal/middleware"
	"github.com/wavedesk/messaging-platform/internal/model"
	"github.com/wavedesk/messaging-platform/internal/service"
	"github.com/wavedesk/messaging-platform/pkg/logger"
	"github.com/wavedesk/messaging-platform/pkg/metrics"
)

// WebhookHandler terminates WhatsApp Cloud API callbacks: the GET
// verification handshake and POST event deliveries.
type WebhookHandler struct {
	pipeline *service.Pipeline
	logger   *logger.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(pipeline *service.Pipeline, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		pipeline: pipeline,
		logger:   log,
	}
}

// Verify handles GET /webhook/whatsapp, the endpoint-ownership
// handshake. It echoes the challenge back verbatim and deliberately
// touches nothing else, so provider verification cannot fail on backend
// unavailability.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || token == "" || challenge == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("webhook verification handshake completed")
	writeChallenge(w, challenge)
}

// Preflight handles OPTIONS /webhook/whatsapp. The provider probes the
// endpoint with bare OPTIONS requests as well as browser-style
// preflights; both get an unconditional 200 with no body.
func (h *WebhookHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Receive handles POST /webhook/whatsapp. Partially skipped deliveries
// (unknown tenants, duplicate messages, stale statuses) still return
// 200; the provider only retries on 5xx, and retrying is safe because
// processing is idempotent.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.WithDelivery(middleware.GetCorrelationID(ctx))

	var payload model.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		metrics.RecordDelivery("malformed")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := h.pipeline.Process(ctx, &payload)
	if errors.Is(err, service.ErrInvalidPayload) {
		metrics.RecordDelivery("rejected")
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err != nil {
		metrics.RecordDelivery("failed")
		log.Error("webhook delivery failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.RecordDelivery("ok")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
