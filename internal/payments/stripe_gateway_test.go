package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
)

const testWebhookSecret = "whsec_test"

type stubIntentAPI struct {
	getFn func(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func (s *stubIntentAPI) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if s.getFn != nil {
		return s.getFn(id, params)
	}
	return nil, errors.New("not implemented")
}

func signPayload(t *testing.T, payload []byte) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newTestGateway(t *testing.T, intents stripePaymentIntentAPI) *StripeGateway {
	t.Helper()
	if intents == nil {
		intents = &stubIntentAPI{}
	}
	gw, err := NewStripeGateway(StripeGatewayConfig{
		WebhookSecret: testWebhookSecret,
		Intents:       intents,
	})
	if err != nil {
		t.Fatalf("new stripe gateway: %v", err)
	}
	return gw
}

func TestStripeGatewayParseSucceededEvent(t *testing.T) {
	gw := newTestGateway(t, nil)

	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"created": 1767700000,
		"data": {
			"object": {
				"id": "pi_abc",
				"amount": 15225,
				"currency": "usd",
				"metadata": {"orderId": "ord_1"}
			}
		}
	}`)

	event, err := gw.ParseWebhookEvent(payload, signPayload(t, payload))
	if err != nil {
		t.Fatalf("parse webhook event: %v", err)
	}

	if event.Status != StatusSucceeded {
		t.Fatalf("expected succeeded got %s", event.Status)
	}
	if event.IntentID != "pi_abc" || event.OrderID != "ord_1" {
		t.Fatalf("unexpected references %#v", event)
	}
	if event.Amount != 15225 || event.Currency != "USD" {
		t.Fatalf("unexpected amount %d %s", event.Amount, event.Currency)
	}
	if event.OccurredAt != time.Unix(1767700000, 0).UTC() {
		t.Fatalf("unexpected occurredAt %s", event.OccurredAt)
	}
}

func TestStripeGatewayParseFailedAndRefundedEvents(t *testing.T) {
	gw := newTestGateway(t, nil)

	failed := []byte(`{
		"id": "evt_2",
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "pi_def", "amount": 500, "currency": "usd", "metadata": {"orderId": "ord_2"}}}
	}`)
	event, err := gw.ParseWebhookEvent(failed, signPayload(t, failed))
	if err != nil {
		t.Fatalf("parse failed event: %v", err)
	}
	if event.Status != StatusFailed || event.OrderID != "ord_2" {
		t.Fatalf("unexpected event %#v", event)
	}

	refunded := []byte(`{
		"id": "evt_3",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_1", "amount_refunded": 500, "currency": "usd", "payment_intent": {"id": "pi_def"}, "metadata": {"orderId": "ord_2"}}}
	}`)
	event, err = gw.ParseWebhookEvent(refunded, signPayload(t, refunded))
	if err != nil {
		t.Fatalf("parse refunded event: %v", err)
	}
	if event.Status != StatusRefunded || event.IntentID != "pi_def" || event.Amount != 500 {
		t.Fatalf("unexpected event %#v", event)
	}
}

func TestStripeGatewayRejectsBadSignature(t *testing.T) {
	gw := newTestGateway(t, nil)
	payload := []byte(`{"id": "evt_4", "type": "payment_intent.succeeded"}`)

	if _, err := gw.ParseWebhookEvent(payload, "t=1,v1=deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected signature error got %v", err)
	}
}

func TestStripeGatewayIgnoresUnknownEventTypes(t *testing.T) {
	gw := newTestGateway(t, nil)
	payload := []byte(`{"id": "evt_5", "type": "customer.created", "data": {"object": {}}}`)

	if _, err := gw.ParseWebhookEvent(payload, signPayload(t, payload)); !errors.Is(err, ErrIgnoredEvent) {
		t.Fatalf("expected ignored event got %v", err)
	}
}

func TestStripeGatewayLookupPayment(t *testing.T) {
	intents := &stubIntentAPI{
		getFn: func(id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			if id != "pi_abc" {
				return nil, errors.New("unknown intent")
			}
			return &stripe.PaymentIntent{
				ID:       "pi_abc",
				Status:   stripe.PaymentIntentStatusSucceeded,
				Amount:   15225,
				Currency: "usd",
				Metadata: map[string]string{"orderId": "ord_1"},
			}, nil
		},
	}
	gw := newTestGateway(t, intents)

	details, err := gw.LookupPayment(context.Background(), "pi_abc")
	if err != nil {
		t.Fatalf("lookup payment: %v", err)
	}
	if details.Status != StatusSucceeded || details.OrderID != "ord_1" || details.Currency != "USD" {
		t.Fatalf("unexpected details %#v", details)
	}
}
