package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bakeway/api/internal/payments"
	"github.com/bakeway/api/internal/platform/httpx"
	"github.com/bakeway/api/internal/services"
)

const maxWebhookBodySize = 256 * 1024

type webhookAckResponse struct {
	Received bool   `json:"received"`
	Ignored  bool   `json:"ignored,omitempty"`
	OrderID  string `json:"orderId,omitempty"`
}

// PaymentWebhookHandlers receives gateway notifications and applies them to orders.
type PaymentWebhookHandlers struct {
	gateway  payments.Gateway
	payments services.PaymentService
	logger   func(event string, fields map[string]any)
}

// NewPaymentWebhookHandlers constructs webhook handlers for the configured gateway.
func NewPaymentWebhookHandlers(gateway payments.Gateway, paymentService services.PaymentService, logger func(event string, fields map[string]any)) *PaymentWebhookHandlers {
	if logger == nil {
		logger = func(string, map[string]any) {}
	}
	return &PaymentWebhookHandlers{
		gateway:  gateway,
		payments: paymentService,
		logger:   logger,
	}
}

// Routes registers the /webhooks endpoints.
func (h *PaymentWebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripeWebhook)
}

func (h *PaymentWebhookHandlers) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.gateway == nil || h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "payment webhook processing unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "webhook payload exceeds the allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "webhook payload is required", http.StatusBadRequest))
		}
		return
	}

	signature := strings.TrimSpace(r.Header.Get("Stripe-Signature"))
	event, err := h.gateway.ParseWebhookEvent(body, signature)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidSignature):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		case errors.Is(err, payments.ErrIgnoredEvent):
			// Acknowledge unknown event types so the gateway stops retrying.
			writeJSONResponse(w, http.StatusOK, webhookAckResponse{Received: true, Ignored: true})
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "webhook payload could not be parsed", http.StatusBadRequest))
		}
		return
	}

	outcome, ok := paymentOutcomeFromStatus(event.Status)
	if !ok {
		writeJSONResponse(w, http.StatusOK, webhookAckResponse{Received: true, Ignored: true})
		return
	}

	order, err := h.payments.ApplyPaymentResult(ctx, services.ApplyPaymentResultCommand{
		OrderID:    event.OrderID,
		GatewayRef: event.IntentID,
		Amount:     event.Amount,
		Outcome:    outcome,
	})
	if err != nil {
		h.logger("webhook.payment.apply.failed", map[string]any{
			"eventId": event.ID,
			"orderId": event.OrderID,
			"error":   err.Error(),
		})
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, webhookAckResponse{Received: true, OrderID: order.ID})
}

func paymentOutcomeFromStatus(status payments.Status) (services.PaymentOutcome, bool) {
	switch status {
	case payments.StatusSucceeded:
		return services.PaymentOutcomeSucceeded, true
	case payments.StatusFailed:
		return services.PaymentOutcomeFailed, true
	case payments.StatusRefunded:
		return services.PaymentOutcomeRefunded, true
	}
	return "", false
}
