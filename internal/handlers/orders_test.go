package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

type stubOrderService struct {
	createFn   func(context.Context, services.CreateOrderCommand) (services.OrderDetail, error)
	getFn      func(context.Context, services.GetOrderQuery) (services.OrderDetail, error)
	listFn     func(context.Context, services.ListOrdersQuery) (domain.CursorPage[services.OrderSummary], error)
	advanceFn  func(context.Context, services.AdvanceOrderCommand) (services.Order, error)
	declineFn  func(context.Context, services.DeclineOrderCommand) (services.Order, error)
	cancelFn   func(context.Context, services.CancelOrderCommand) (services.Order, error)
	trackingFn func(context.Context, services.UpdateTrackingCommand) (services.Order, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.OrderDetail, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.OrderDetail{}, errors.New("not implemented")
}

func (s *stubOrderService) GetOrder(ctx context.Context, query services.GetOrderQuery) (services.OrderDetail, error) {
	if s.getFn != nil {
		return s.getFn(ctx, query)
	}
	return services.OrderDetail{}, errors.New("not implemented")
}

func (s *stubOrderService) ListOrders(ctx context.Context, query services.ListOrdersQuery) (domain.CursorPage[services.OrderSummary], error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return domain.CursorPage[services.OrderSummary]{}, nil
}

func (s *stubOrderService) Advance(ctx context.Context, cmd services.AdvanceOrderCommand) (services.Order, error) {
	if s.advanceFn != nil {
		return s.advanceFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Decline(ctx context.Context, cmd services.DeclineOrderCommand) (services.Order, error) {
	if s.declineFn != nil {
		return s.declineFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) UpdateTrackingNumber(ctx context.Context, cmd services.UpdateTrackingCommand) (services.Order, error) {
	if s.trackingFn != nil {
		return s.trackingFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func newOrderRouter(service services.OrderService) chi.Router {
	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)
	return router
}

func withTestIdentity(req *http.Request, uid string, roles ...string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Roles: roles}))
}

func sampleOrderDetail(now time.Time) services.OrderDetail {
	tracking := "TRK-1"
	return services.OrderDetail{
		Order: services.Order{
			ID:            "ord_123",
			Number:        "BW-2026-000042",
			OwnerID:       "merchant-1",
			Status:        domain.OrderStatusSubmitted,
			PaymentStatus: domain.PaymentStatusPending,
			Currency:      "USD",
			Totals:        services.OrderTotals{Subtotal: 14500, Tax: 725, Total: 15225},
			Items: []services.OrderItem{
				{InventoryID: "inv-sourdough", Name: "Sourdough Loaf", Variant: "large", UnitPrice: 5000, Quantity: 2, LineTotal: 10000},
			},
			Contact:   services.OrderContact{Name: "Dana", Email: "dana@example.com"},
			Delivery:  services.DeliveryAddress{Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
			CreatedAt: now,
			UpdatedAt: now,
		},
		Tracking: []services.TrackingEntry{
			{ID: "trk_1", OrderID: "ord_123", Status: domain.OrderStatusSubmitted, TrackingNumber: &tracking, ActorID: "merchant-1", CreatedAt: now},
		},
		Cancellable:            true,
		CancelAllowanceMinutes: 10,
	}
}

func TestOrderHandlersCreateOrder(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	var captured services.CreateOrderCommand
	service := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (services.OrderDetail, error) {
			captured = cmd
			return sampleOrderDetail(now), nil
		},
	}
	router := newOrderRouter(service)

	body := `{
		"currency": "USD",
		"items": [{"inventoryId": "inv-sourdough", "variant": "large", "quantity": 2}],
		"contact": {"name": "Dana", "email": "dana@example.com"},
		"delivery": {"line1": "1 Main St", "city": "Springfield", "postalCode": "12345", "country": "US"},
		"notes": "ring the bell"
	}`
	req := httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(body))
	req = withTestIdentity(req, "merchant-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OwnerID != "merchant-1" {
		t.Fatalf("expected owner merchant-1, got %s", captured.OwnerID)
	}
	if captured.Actor.ID != "merchant-1" || captured.Actor.Role != domain.RoleMerchant {
		t.Fatalf("unexpected actor %#v", captured.Actor)
	}
	if len(captured.Items) != 1 || captured.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items %#v", captured.Items)
	}
	if captured.Notes != "ring the bell" {
		t.Fatalf("unexpected notes %q", captured.Notes)
	}

	var resp orderDetailPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.ID != "ord_123" || resp.Number != "BW-2026-000042" {
		t.Fatalf("unexpected order payload %#v", resp)
	}
	if !resp.Cancellable || resp.CancelAllowanceMinutes != 10 {
		t.Fatalf("expected cancellable detail, got %#v", resp)
	}
	if len(resp.Tracking) != 1 || resp.Tracking[0].TrackingNumber != "TRK-1" {
		t.Fatalf("unexpected tracking %#v", resp.Tracking)
	}
	if resp.Totals.Total != 15225 {
		t.Fatalf("expected total 15225, got %d", resp.Totals.Total)
	}
}

func TestOrderHandlersCreateOrderRequiresBody(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/orders/", nil)
	req = withTestIdentity(req, "merchant-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersCreateOrderMapsInvalidInput(t *testing.T) {
	service := &stubOrderService{
		createFn: func(context.Context, services.CreateOrderCommand) (services.OrderDetail, error) {
			return services.OrderDetail{}, fmt.Errorf("%w: at least one item is required", services.ErrOrderInvalidInput)
		},
	}
	router := newOrderRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(`{"items": []}`))
	req = withTestIdentity(req, "merchant-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("invalid_request")) {
		t.Fatalf("expected invalid_request code, got %s", rr.Body.String())
	}
}

func TestOrderHandlersListOrders(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	var captured services.ListOrdersQuery
	service := &stubOrderService{
		listFn: func(ctx context.Context, query services.ListOrdersQuery) (domain.CursorPage[services.OrderSummary], error) {
			captured = query
			return domain.CursorPage[services.OrderSummary]{
				Items: []services.OrderSummary{
					{
						ID:            "ord_123",
						Number:        "BW-2026-000042",
						OwnerID:       "merchant-1",
						Status:        domain.OrderStatusSubmitted,
						PaymentStatus: domain.PaymentStatusPending,
						Currency:      "USD",
						Total:         15225,
						TotalQuantity: 3,
						CreatedAt:     now,
					},
				},
				NextPageToken: "tok-next",
			}, nil
		},
	}
	router := newOrderRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/orders/?status=submitted&page_size=10&page_token=tok123", nil)
	req = withTestIdentity(req, "merchant-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Actor.ID != "merchant-1" {
		t.Fatalf("expected actor merchant-1, got %s", captured.Actor.ID)
	}
	if captured.Status == nil || *captured.Status != domain.OrderStatusSubmitted {
		t.Fatalf("expected submitted status filter, got %#v", captured.Status)
	}
	if captured.Pagination.PageSize != 10 || captured.Pagination.PageToken != "tok123" {
		t.Fatalf("unexpected pagination %#v", captured.Pagination)
	}

	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Total != 15225 || resp.Items[0].TotalQuantity != 3 {
		t.Fatalf("unexpected items %#v", resp.Items)
	}
	if resp.NextPageToken != "tok-next" {
		t.Fatalf("expected next page token, got %q", resp.NextPageToken)
	}
}

func TestOrderHandlersListOrdersInvalidStatus(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/?status=unknown", nil)
	req = withTestIdentity(req, "merchant-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersListOrdersInvalidPageSize(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/?page_size=abc", nil)
	req = withTestIdentity(req, "merchant-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	service := &stubOrderService{
		getFn: func(context.Context, services.GetOrderQuery) (services.OrderDetail, error) {
			return services.OrderDetail{}, services.ErrOrderNotFound
		},
	}
	router := newOrderRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_missing", nil)
	req = withTestIdentity(req, "merchant-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("order_not_found")) {
		t.Fatalf("expected order_not_found code, got %s", rr.Body.String())
	}
}

func TestOrderHandlersGetOrder(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	var captured services.GetOrderQuery
	service := &stubOrderService{
		getFn: func(ctx context.Context, query services.GetOrderQuery) (services.OrderDetail, error) {
			captured = query
			return sampleOrderDetail(now), nil
		},
	}
	router := newOrderRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_123", nil)
	req = withTestIdentity(req, "merchant-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.OrderID != "ord_123" {
		t.Fatalf("expected order id ord_123, got %s", captured.OrderID)
	}
}

func TestOrderHandlersCancelOrder(t *testing.T) {
	var captured services.CancelOrderCommand
	service := &stubOrderService{
		cancelFn: func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: "ord_123", Status: domain.OrderStatusCancelled}, nil
		},
	}
	router := newOrderRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123:cancel", strings.NewReader(`{"reason": "changed my mind"}`))
	req = withTestIdentity(req, "merchant-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_123" || captured.Reason != "changed my mind" {
		t.Fatalf("unexpected command %#v", captured)
	}

	var resp orderPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Status != "cancelled" {
		t.Fatalf("expected cancelled status, got %s", resp.Status)
	}
}

func TestOrderHandlersCancelOrderWithoutBody(t *testing.T) {
	var captured services.CancelOrderCommand
	service := &stubOrderService{
		cancelFn: func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: "ord_123", Status: domain.OrderStatusCancelled}, nil
		},
	}
	router := newOrderRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123:cancel", nil)
	req = withTestIdentity(req, "merchant-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.Reason != "" {
		t.Fatalf("expected empty reason, got %q", captured.Reason)
	}
}

func TestOrderHandlersCancelOrderWindowExpired(t *testing.T) {
	service := &stubOrderService{
		cancelFn: func(context.Context, services.CancelOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrCancelWindowExpired
		},
	}
	router := newOrderRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_123:cancel", strings.NewReader(`{}`))
	req = withTestIdentity(req, "merchant-1")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("cancel_window_expired")) {
		t.Fatalf("expected cancel_window_expired code, got %s", rr.Body.String())
	}
}

func TestOrderHandlersRequireIdentity(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}
