package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/bakeway/api/internal/domain"
	"github.com/bakeway/api/internal/platform/auth"
	"github.com/bakeway/api/internal/services"
)

type stubPaymentService struct {
	applyFn func(context.Context, services.ApplyPaymentResultCommand) (services.Order, error)
	listFn  func(context.Context, string) ([]services.PaymentRecord, error)
}

func (s *stubPaymentService) ApplyPaymentResult(ctx context.Context, cmd services.ApplyPaymentResultCommand) (services.Order, error) {
	if s.applyFn != nil {
		return s.applyFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubPaymentService) ListPayments(ctx context.Context, orderID string) ([]services.PaymentRecord, error) {
	if s.listFn != nil {
		return s.listFn(ctx, orderID)
	}
	return nil, errors.New("not implemented")
}

func newAdminRouter(orders services.OrderService, payments services.PaymentService) chi.Router {
	handler := NewAdminOrderHandlers(nil, orders, payments)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)
	return router
}

func adminRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "admin-1", Roles: []string{auth.RoleAdmin}}))
}

func TestAdminOrderHandlersAdvance(t *testing.T) {
	var captured services.AdvanceOrderCommand
	orders := &stubOrderService{
		advanceFn: func(ctx context.Context, cmd services.AdvanceOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: "ord_123", Status: domain.OrderStatusProcessing}, nil
		},
	}
	router := newAdminRouter(orders, &stubPaymentService{})

	req := adminRequest(http.MethodPost, "/admin/orders/ord_123:advance", `{"targetStatus": "processing", "note": "baking started", "expectedStatus": "submitted"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_123" || captured.TargetStatus != domain.OrderStatusProcessing {
		t.Fatalf("unexpected command %#v", captured)
	}
	if captured.Note != "baking started" {
		t.Fatalf("unexpected note %q", captured.Note)
	}
	if captured.ExpectedStatus == nil || *captured.ExpectedStatus != domain.OrderStatusSubmitted {
		t.Fatalf("unexpected expected status %#v", captured.ExpectedStatus)
	}
	if captured.Actor.ID != "admin-1" || captured.Actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %#v", captured.Actor)
	}
}

func TestAdminOrderHandlersAdvanceInvalidTarget(t *testing.T) {
	router := newAdminRouter(&stubOrderService{}, &stubPaymentService{})

	req := adminRequest(http.MethodPost, "/admin/orders/ord_123:advance", `{"targetStatus": "baked"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminOrderHandlersAdvanceConflict(t *testing.T) {
	orders := &stubOrderService{
		advanceFn: func(context.Context, services.AdvanceOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderConflict
		},
	}
	router := newAdminRouter(orders, &stubPaymentService{})

	req := adminRequest(http.MethodPost, "/admin/orders/ord_123:advance", `{"targetStatus": "processing", "expectedStatus": "submitted"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("order_conflict")) {
		t.Fatalf("expected order_conflict code, got %s", rr.Body.String())
	}
}

func TestAdminOrderHandlersDecline(t *testing.T) {
	var captured services.DeclineOrderCommand
	orders := &stubOrderService{
		declineFn: func(ctx context.Context, cmd services.DeclineOrderCommand) (services.Order, error) {
			captured = cmd
			reason := cmd.Reason
			return services.Order{ID: "ord_123", Status: domain.OrderStatusDeclined, DeclineReason: &reason}, nil
		},
	}
	router := newAdminRouter(orders, &stubPaymentService{})

	req := adminRequest(http.MethodPost, "/admin/orders/ord_123:decline", `{"reason": "out of flour"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Reason != "out of flour" {
		t.Fatalf("unexpected reason %q", captured.Reason)
	}

	var resp orderPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Status != "declined" || resp.DeclineReason != "out of flour" {
		t.Fatalf("unexpected payload %#v", resp)
	}
}

func TestAdminOrderHandlersDeclineMissingReason(t *testing.T) {
	orders := &stubOrderService{
		declineFn: func(context.Context, services.DeclineOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderMissingReason
		},
	}
	router := newAdminRouter(orders, &stubPaymentService{})

	req := adminRequest(http.MethodPost, "/admin/orders/ord_123:decline", `{"reason": ""}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("missing_decline_reason")) {
		t.Fatalf("expected missing_decline_reason code, got %s", rr.Body.String())
	}
}

func TestAdminOrderHandlersCancel(t *testing.T) {
	var captured services.CancelOrderCommand
	orders := &stubOrderService{
		cancelFn: func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: "ord_123", Status: domain.OrderStatusCancelled}, nil
		},
	}
	router := newAdminRouter(orders, &stubPaymentService{})

	req := adminRequest(http.MethodPost, "/admin/orders/ord_123:cancel", `{"reason": "duplicate order"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.Reason != "duplicate order" || captured.Actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestAdminOrderHandlersUpdateTracking(t *testing.T) {
	var captured services.UpdateTrackingCommand
	orders := &stubOrderService{
		trackingFn: func(ctx context.Context, cmd services.UpdateTrackingCommand) (services.Order, error) {
			captured = cmd
			number := cmd.TrackingNumber
			return services.Order{ID: "ord_123", Status: domain.OrderStatusShipped, TrackingNumber: &number}, nil
		},
	}
	router := newAdminRouter(orders, &stubPaymentService{})

	req := adminRequest(http.MethodPut, "/admin/orders/ord_123/tracking", `{"trackingNumber": "TRK-99", "note": "carrier picked up"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.TrackingNumber != "TRK-99" || captured.Note != "carrier picked up" {
		t.Fatalf("unexpected command %#v", captured)
	}

	var resp orderPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.TrackingNumber != "TRK-99" {
		t.Fatalf("expected tracking number in payload, got %#v", resp)
	}
}

func TestAdminOrderHandlersListPayments(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	payments := &stubPaymentService{
		listFn: func(ctx context.Context, orderID string) ([]services.PaymentRecord, error) {
			if orderID != "ord_123" {
				t.Fatalf("unexpected order id %s", orderID)
			}
			return []services.PaymentRecord{
				{ID: "pay_1", OrderID: "ord_123", GatewayRef: "pi_abc", Amount: 15225, Status: domain.PaymentStatusPaid, CreatedAt: now},
			}, nil
		},
	}
	router := newAdminRouter(&stubOrderService{}, payments)

	req := adminRequest(http.MethodGet, "/admin/orders/ord_123/payments", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp paymentListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].GatewayRef != "pi_abc" || resp.Items[0].Status != "paid" {
		t.Fatalf("unexpected payments %#v", resp.Items)
	}
}

func TestAdminOrderHandlersForbiddenMapped(t *testing.T) {
	orders := &stubOrderService{
		advanceFn: func(context.Context, services.AdvanceOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderForbidden
		},
	}
	router := newAdminRouter(orders, &stubPaymentService{})

	req := adminRequest(http.MethodPost, "/admin/orders/ord_123:advance", `{"targetStatus": "processing"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}
