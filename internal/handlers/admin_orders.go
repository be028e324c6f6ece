package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bakeway/api/internal/platform/auth"
	"github.com/bakeway/api/internal/platform/httpx"
	"github.com/bakeway/api/internal/services"
)

const maxAdminOrderBodySize = 16 * 1024

type advanceOrderRequest struct {
	TargetStatus   string `json:"targetStatus"`
	Note           string `json:"note"`
	ExpectedStatus string `json:"expectedStatus"`
}

type declineOrderRequest struct {
	Reason string `json:"reason"`
}

type updateTrackingRequest struct {
	TrackingNumber string `json:"trackingNumber"`
	Note           string `json:"note"`
}

type paymentListResponse struct {
	Items []paymentRecordPayload `json:"items"`
}

// AdminOrderHandlers exposes back-office order management endpoints.
type AdminOrderHandlers struct {
	authn    *auth.Authenticator
	orders   services.OrderService
	payments services.PaymentService
}

// NewAdminOrderHandlers constructs a new AdminOrderHandlers instance.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService, payments services.PaymentService) *AdminOrderHandlers {
	return &AdminOrderHandlers{
		authn:    authn,
		orders:   orders,
		payments: payments,
	}
}

// Routes registers the /admin endpoints.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Post("/orders/{orderID}:advance", h.advanceOrder)
	r.Post("/orders/{orderID}:decline", h.declineOrder)
	r.Post("/orders/{orderID}:cancel", h.cancelOrder)
	r.Put("/orders/{orderID}/tracking", h.updateTracking)
	r.Get("/orders/{orderID}/payments", h.listPayments)
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	query := services.ListOrdersQuery{Actor: actorFromIdentity(identity)}

	params := r.URL.Query()
	if raw := strings.TrimSpace(params.Get("status")); raw != "" {
		status, valid := parseOrderStatus(raw)
		if !valid {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status filter is not a valid order status", http.StatusBadRequest))
			return
		}
		query.Status = &status
	}
	if raw := strings.TrimSpace(params.Get("page_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		query.Pagination.PageSize = size
	}
	query.Pagination.PageToken = strings.TrimSpace(params.Get("page_token"))

	page, err := h.orders.ListOrders(ctx, query)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	response := orderListResponse{
		Items:         make([]orderSummaryPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, summary := range page.Items {
		response.Items = append(response.Items, buildOrderSummary(summary))
	}
	writeJSONResponse(w, http.StatusOK, response)
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	detail, err := h.orders.GetOrder(ctx, services.GetOrderQuery{
		OrderID: chi.URLParam(r, "orderID"),
		Actor:   actorFromIdentity(identity),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderDetailPayload(detail))
}

func (h *AdminOrderHandlers) advanceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req advanceOrderRequest
	if !decodeJSONBody(ctx, w, r, maxAdminOrderBodySize, &req) {
		return
	}

	target, valid := parseOrderStatus(req.TargetStatus)
	if !valid {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "targetStatus is not a valid order status", http.StatusBadRequest))
		return
	}

	cmd := services.AdvanceOrderCommand{
		OrderID:      chi.URLParam(r, "orderID"),
		TargetStatus: target,
		Note:         req.Note,
		Actor:        actorFromIdentity(identity),
	}
	if raw := strings.TrimSpace(req.ExpectedStatus); raw != "" {
		expected, valid := parseOrderStatus(raw)
		if !valid {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expectedStatus is not a valid order status", http.StatusBadRequest))
			return
		}
		cmd.ExpectedStatus = &expected
	}

	order, err := h.orders.Advance(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) declineOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req declineOrderRequest
	if !decodeJSONBody(ctx, w, r, maxAdminOrderBodySize, &req) {
		return
	}

	order, err := h.orders.Decline(ctx, services.DeclineOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Reason:  req.Reason,
		Actor:   actorFromIdentity(identity),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if !decodeOptionalJSONBody(ctx, w, r, maxAdminOrderBodySize, &req) {
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Reason:  req.Reason,
		Actor:   actorFromIdentity(identity),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) updateTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req updateTrackingRequest
	if !decodeJSONBody(ctx, w, r, maxAdminOrderBodySize, &req) {
		return
	}

	order, err := h.orders.UpdateTrackingNumber(ctx, services.UpdateTrackingCommand{
		OrderID:        chi.URLParam(r, "orderID"),
		TrackingNumber: req.TrackingNumber,
		Note:           req.Note,
		Actor:          actorFromIdentity(identity),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) listPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	records, err := h.payments.ListPayments(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	response := paymentListResponse{Items: make([]paymentRecordPayload, 0, len(records))}
	for _, record := range records {
		response.Items = append(response.Items, buildPaymentRecord(record))
	}
	writeJSONResponse(w, http.StatusOK, response)
}
