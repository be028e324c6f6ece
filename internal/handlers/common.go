package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/bakeway/api/internal/domain"
	"github.com/bakeway/api/internal/platform/auth"
	"github.com/bakeway/api/internal/platform/httpx"
	"github.com/bakeway/api/internal/services"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = 64 * 1024
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	return data, nil
}

// decodeJSONBody reads a size-limited request body into dst. It writes the
// error envelope itself and returns false when the request cannot proceed.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		switch {
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds the allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

// decodeOptionalJSONBody behaves like decodeJSONBody but tolerates an absent body.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		if errors.Is(err, errEmptyBody) {
			return true
		}
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds the allowed size", http.StatusRequestEntityTooLarge))
			return false
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

// actorFromIdentity derives the service-level actor from the verified identity.
func actorFromIdentity(identity *auth.Identity) services.Actor {
	if identity == nil {
		return services.Actor{}
	}
	role := domain.RoleMerchant
	switch {
	case identity.HasRole(auth.RoleAdmin):
		role = domain.RoleAdmin
	case identity.HasRole(auth.RoleStaff):
		role = domain.RoleStaff
	}
	return services.Actor{
		ID:   strings.TrimSpace(identity.UID),
		Role: role,
	}
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput), errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", err.Error(), http.StatusForbidden))
	case errors.Is(err, services.ErrOrderMissingReason):
		httpx.WriteError(ctx, w, httpx.NewError("missing_decline_reason", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCancelWindowExpired):
		httpx.WriteError(ctx, w, httpx.NewError("cancel_window_expired", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderDependency):
		httpx.WriteError(ctx, w, httpx.NewError("dependency_unavailable", "an upstream dependency is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

type orderTotalsPayload struct {
	Subtotal    int64 `json:"subtotal"`
	Tax         int64 `json:"tax"`
	DeliveryFee int64 `json:"deliveryFee"`
	Discount    int64 `json:"discount"`
	Total       int64 `json:"total"`
}

type orderItemPayload struct {
	InventoryID string `json:"inventoryId"`
	Name        string `json:"name"`
	Variant     string `json:"variant,omitempty"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	LineTotal   int64  `json:"lineTotal"`
}

type orderContactPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type deliveryAddressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type orderInvoicePayload struct {
	Number      string `json:"number"`
	ArtifactURL string `json:"artifactUrl"`
}

type trackingEntryPayload struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	Notes          string `json:"notes,omitempty"`
	ActorID        string `json:"actorId"`
	CreatedAt      string `json:"createdAt"`
}

type orderPayload struct {
	ID             string                 `json:"id"`
	Number         string                 `json:"number"`
	OwnerID        string                 `json:"ownerId"`
	Status         string                 `json:"status"`
	PaymentStatus  string                 `json:"paymentStatus"`
	Currency       string                 `json:"currency"`
	Totals         orderTotalsPayload     `json:"totals"`
	Items          []orderItemPayload     `json:"items"`
	Contact        orderContactPayload    `json:"contact"`
	Delivery       deliveryAddressPayload `json:"delivery"`
	Notes          string                 `json:"notes,omitempty"`
	TrackingNumber string                 `json:"trackingNumber,omitempty"`
	DeclineReason  string                 `json:"declineReason,omitempty"`
	Invoice        *orderInvoicePayload   `json:"invoice,omitempty"`
	CreatedAt      string                 `json:"createdAt"`
	UpdatedAt      string                 `json:"updatedAt"`
}

type orderDetailPayload struct {
	orderPayload
	Tracking               []trackingEntryPayload `json:"tracking"`
	Cancellable            bool                   `json:"cancellable"`
	CancelAllowanceMinutes int                    `json:"cancelAllowanceMinutes"`
}

type orderSummaryPayload struct {
	ID            string `json:"id"`
	Number        string `json:"number"`
	OwnerID       string `json:"ownerId"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	Currency      string `json:"currency"`
	Total         int64  `json:"total"`
	TotalQuantity int    `json:"totalQuantity"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"nextPageToken,omitempty"`
}

type paymentRecordPayload struct {
	ID         string `json:"id"`
	OrderID    string `json:"orderId"`
	GatewayRef string `json:"gatewayRef"`
	Amount     int64  `json:"amount"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			InventoryID: item.InventoryID,
			Name:        item.Name,
			Variant:     item.Variant,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}

	payload := orderPayload{
		ID:            order.ID,
		Number:        order.Number,
		OwnerID:       order.OwnerID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Currency:      order.Currency,
		Totals: orderTotalsPayload{
			Subtotal:    order.Totals.Subtotal,
			Tax:         order.Totals.Tax,
			DeliveryFee: order.Totals.DeliveryFee,
			Discount:    order.Totals.Discount,
			Total:       order.Totals.Total,
		},
		Items: items,
		Contact: orderContactPayload{
			Name:  order.Contact.Name,
			Email: order.Contact.Email,
			Phone: order.Contact.Phone,
		},
		Delivery: deliveryAddressPayload{
			Line1:      order.Delivery.Line1,
			Line2:      order.Delivery.Line2,
			City:       order.Delivery.City,
			Region:     order.Delivery.Region,
			PostalCode: order.Delivery.PostalCode,
			Country:    order.Delivery.Country,
		},
		Notes:     order.Notes,
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}
	if order.TrackingNumber != nil {
		payload.TrackingNumber = *order.TrackingNumber
	}
	if order.DeclineReason != nil {
		payload.DeclineReason = *order.DeclineReason
	}
	if order.Invoice != nil {
		payload.Invoice = &orderInvoicePayload{
			Number:      order.Invoice.Number,
			ArtifactURL: order.Invoice.ArtifactURL,
		}
	}
	return payload
}

func buildOrderDetailPayload(detail services.OrderDetail) orderDetailPayload {
	tracking := make([]trackingEntryPayload, 0, len(detail.Tracking))
	for _, entry := range detail.Tracking {
		p := trackingEntryPayload{
			ID:        entry.ID,
			Status:    string(entry.Status),
			Notes:     entry.Notes,
			ActorID:   entry.ActorID,
			CreatedAt: formatTime(entry.CreatedAt),
		}
		if entry.TrackingNumber != nil {
			p.TrackingNumber = *entry.TrackingNumber
		}
		tracking = append(tracking, p)
	}
	return orderDetailPayload{
		orderPayload:           buildOrderPayload(detail.Order),
		Tracking:               tracking,
		Cancellable:            detail.Cancellable,
		CancelAllowanceMinutes: detail.CancelAllowanceMinutes,
	}
}

func buildOrderSummary(summary services.OrderSummary) orderSummaryPayload {
	return orderSummaryPayload{
		ID:            summary.ID,
		Number:        summary.Number,
		OwnerID:       summary.OwnerID,
		Status:        string(summary.Status),
		PaymentStatus: string(summary.PaymentStatus),
		Currency:      summary.Currency,
		Total:         summary.Total,
		TotalQuantity: summary.TotalQuantity,
		CreatedAt:     formatTime(summary.CreatedAt),
		UpdatedAt:     formatTime(summary.UpdatedAt),
	}
}

func buildPaymentRecord(record services.PaymentRecord) paymentRecordPayload {
	return paymentRecordPayload{
		ID:         record.ID,
		OrderID:    record.OrderID,
		GatewayRef: record.GatewayRef,
		Amount:     record.Amount,
		Status:     string(record.Status),
		CreatedAt:  formatTime(record.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseOrderStatus(raw string) (services.OrderStatus, bool) {
	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case domain.OrderStatusDraft, domain.OrderStatusSubmitted, domain.OrderStatusProcessing,
		domain.OrderStatusShipped, domain.OrderStatusDelivered,
		domain.OrderStatusCancelled, domain.OrderStatusDeclined:
		return status, true
	}
	return "", false
}
