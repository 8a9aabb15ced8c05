// Package api exposes the relay over HTTP: the listmonk messenger endpoint,
// the provider activity webhook and health probes.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/ignite/listmonk-relay/internal/config"
	"github.com/ignite/listmonk-relay/internal/listmonk"
	"github.com/ignite/listmonk-relay/internal/mailersend"
	"github.com/ignite/listmonk-relay/internal/pkg/httputil"
	"github.com/ignite/listmonk-relay/internal/pkg/logger"
)

// maxWebhookBody bounds a provider activity payload.
const maxWebhookBody = 1 << 20

// MessageIntake buffers a listmonk campaign request.
type MessageIntake interface {
	Accept(req listmonk.MessengerRequest) (int, error)
}

// EventRouter applies one provider delivery event.
type EventRouter interface {
	Route(ctx context.Context, ev mailersend.DeliveryEvent) error
}

// Handlers contains the relay's HTTP handlers
type Handlers struct {
	intake  MessageIntake
	events  EventRouter
	webhook config.WebhookConfig
}

// NewHandlers creates a new Handlers instance
func NewHandlers(intake MessageIntake, events EventRouter, webhook config.WebhookConfig) *Handlers {
	return &Handlers{intake: intake, events: events, webhook: webhook}
}

// HandleMessenger accepts a listmonk messenger post. The response is sent
// once the emails are buffered, before any provider delivery.
//
//	POST /api/messenger
func (h *Handlers) HandleMessenger(w http.ResponseWriter, r *http.Request) {
	var req listmonk.MessengerRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	if _, err := h.intake.Accept(req); err != nil {
		logger.Warn("messenger request rejected", "campaign_uuid", req.Campaign.UUID, "error", err)
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Success(w)
}

// HandleProviderWebhook applies a MailerSend activity webhook.
//
//	POST /webhooks/service/mailersend
func (h *Handlers) HandleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httputil.Text(w, http.StatusBadRequest, "Bad Request")
		return
	}

	if h.webhook.EnforceSignature &&
		!mailersend.VerifySignature(body, r.Header.Get(mailersend.SignatureHeader), h.webhook.SigningSecret) {
		logger.Warn("webhook signature mismatch", "remote_addr", r.RemoteAddr)
		httputil.Text(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload mailersend.WebhookRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		httputil.Text(w, http.StatusBadRequest, "Bad Request")
		return
	}

	if err := h.events.Route(r.Context(), payload.DeliveryEvent()); err != nil {
		logger.Error("webhook processing failed", "type", payload.ActivityType(), "error", err)
		httputil.Text(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	httputil.Text(w, http.StatusOK, "OK")
}
