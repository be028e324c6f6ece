package payments

import (
	"context"
	"errors"
	"time"
)

// Status enumerates the normalised payment states shared across gateways.
type Status string

const (
	// StatusPending indicates the payment awaits customer action or gateway confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the gateway reports the payment as captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the gateway reports a failure with no further action possible.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the captured payment has been fully refunded.
	StatusRefunded Status = "refunded"
)

// ErrInvalidSignature is returned when webhook signature verification fails.
var ErrInvalidSignature = errors.New("payments: invalid webhook signature")

// ErrIgnoredEvent is returned for webhook event types the gateway does not track.
var ErrIgnoredEvent = errors.New("payments: ignored webhook event")

// PaymentDetails normalises gateway specific intent fields.
type PaymentDetails struct {
	Provider   string
	IntentID   string
	OrderID    string
	Status     Status
	Amount     int64
	Currency   string
	CapturedAt *time.Time
}

// WebhookEvent is one verified, normalised gateway notification.
type WebhookEvent struct {
	ID         string
	Type       string
	IntentID   string
	OrderID    string
	Amount     int64
	Currency   string
	Status     Status
	OccurredAt time.Time
}

// Gateway is the contract payment service providers implement.
type Gateway interface {
	// LookupPayment retrieves the current intent state for reconciliation.
	LookupPayment(ctx context.Context, intentID string) (PaymentDetails, error)
	// ParseWebhookEvent verifies the webhook signature and normalises the
	// payload. Unknown event types return ErrIgnoredEvent.
	ParseWebhookEvent(payload []byte, signature string) (WebhookEvent, error)
}
