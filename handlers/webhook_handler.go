package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/payments"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/services"
)

// Stripe caps webhook bodies well below this.
const maxWebhookBytes = 65_536

// PaymentParser verifies a provider webhook and extracts the payment, if any.
type PaymentParser interface {
	Parse(payload []byte, signatureHeader string) (*payments.Notification, error)
}

type WebhookHandler struct {
	parser         PaymentParser
	webhookService services.WebhookService
	logger         *slog.Logger
}

func NewWebhookHandler(parser PaymentParser, ws services.WebhookService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{parser: parser, webhookService: ws, logger: logger}
}

func (h *WebhookHandler) received(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, jsonResponse{"received": true}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// PaymentWebhook godoc
// @Summary Stripe payment webhook
// @Tags webhooks
// @Description Records a paid checkout as a pending application. Redeliveries are acknowledged without side effects.
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature"
// @Success 200 {object} map[string]bool "received"
// @Failure 400 {object} map[string]string "Bad signature or payload"
// @Router /webhooks/payment [post]
func (h *WebhookHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		badRequestResponse(w, r, errors.New("unable to read webhook body"))
		return
	}

	notification, err := h.parser.Parse(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("rejected payment webhook", "error", err)
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if notification.Payment == nil {
		h.logger.Debug("ignoring payment webhook", "stripe_event_id", notification.ID, "type", notification.Type)
		h.received(w, r)
		return
	}

	result, err := h.webhookService.OnPaymentSucceeded(r.Context(), *notification.Payment)
	switch {
	case err == nil:
		if result.Duplicate {
			h.logger.Info("duplicate payment webhook acknowledged", "stripe_event_id", notification.ID)
		}
		h.received(w, r)
	case errors.Is(err, services.ErrParticipationConflict):
		// Retrying cannot resolve this, so it is acknowledged and left for support.
		h.logger.Warn("payment webhook conflicts with existing participation",
			"stripe_event_id", notification.ID, "transaction_id", notification.Payment.TransactionID, "error", err)
		h.received(w, r)
	default:
		mapServiceErrorToHTTP(w, r, err)
	}
}
