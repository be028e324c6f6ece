package services

import (
	"context"
	"time"

	domain "github.com/bakeway/api/internal/domain"
)

// Type aliases keep service signatures terse while the canonical definitions
// stay in the domain package.
type (
	Pagination      = domain.Pagination
	Order           = domain.Order
	OrderItem       = domain.OrderItem
	OrderStatus     = domain.OrderStatus
	PaymentStatus   = domain.PaymentStatus
	OrderTotals     = domain.OrderTotals
	OrderContact    = domain.OrderContact
	DeliveryAddress = domain.DeliveryAddress
	OrderInvoice    = domain.OrderInvoice
	TrackingEntry   = domain.TrackingEntry
	PaymentRecord   = domain.PaymentRecord
	CatalogItem     = domain.CatalogItem
	Role            = domain.Role
)

// Actor identifies who is performing an operation.
type Actor struct {
	ID   string
	Role Role
}

// OrderItemInput describes one requested line at order creation time.
type OrderItemInput struct {
	InventoryID string
	Variant     string
	Quantity    int
}

// CreateOrderCommand captures the input for placing a new order.
type CreateOrderCommand struct {
	OwnerID  string
	Currency string
	Items    []OrderItemInput
	Contact  OrderContact
	Delivery DeliveryAddress
	Notes    string
	Actor    Actor
}

// AdvanceOrderCommand moves an order one step forward through fulfilment.
type AdvanceOrderCommand struct {
	OrderID        string
	TargetStatus   OrderStatus
	Note           string
	ExpectedStatus *OrderStatus
	Actor          Actor
}

// DeclineOrderCommand rejects a submitted order with a mandatory reason.
type DeclineOrderCommand struct {
	OrderID string
	Reason  string
	Actor   Actor
}

// CancelOrderCommand cancels an order, either by its owner within the
// cancellation window or by an admin.
type CancelOrderCommand struct {
	OrderID string
	Reason  string
	Actor   Actor
}

// UpdateTrackingCommand attaches or replaces the carrier tracking number.
type UpdateTrackingCommand struct {
	OrderID        string
	TrackingNumber string
	Note           string
	Actor          Actor
}

// GetOrderQuery scopes a single-order read to the requesting principal.
type GetOrderQuery struct {
	OrderID string
	Actor   Actor
}

// ListOrdersQuery filters the order listing; non-admin actors only see their own.
type ListOrdersQuery struct {
	Actor      Actor
	Status     *OrderStatus
	Pagination Pagination
}

// OrderDetail is the full read model for a single order.
type OrderDetail struct {
	Order                  Order
	Tracking               []TrackingEntry
	Cancellable            bool
	CancelAllowanceMinutes int
}

// OrderSummary is the listing read model.
type OrderSummary struct {
	ID            string
	Number        string
	OwnerID       string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Currency      string
	Total         int64
	TotalQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderService drives the order lifecycle from creation to terminal states.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (OrderDetail, error)
	GetOrder(ctx context.Context, query GetOrderQuery) (OrderDetail, error)
	ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[OrderSummary], error)
	Advance(ctx context.Context, cmd AdvanceOrderCommand) (Order, error)
	Decline(ctx context.Context, cmd DeclineOrderCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	UpdateTrackingNumber(ctx context.Context, cmd UpdateTrackingCommand) (Order, error)
}

// PaymentOutcome is the gateway-reported result of a payment attempt.
type PaymentOutcome string

// Gateway payment outcomes.
const (
	PaymentOutcomeSucceeded PaymentOutcome = "succeeded"
	PaymentOutcomeFailed    PaymentOutcome = "failed"
	PaymentOutcomeRefunded  PaymentOutcome = "refunded"
)

// ApplyPaymentResultCommand records a gateway outcome against an order.
type ApplyPaymentResultCommand struct {
	OrderID    string
	GatewayRef string
	Amount     int64
	Outcome    PaymentOutcome
}

// PaymentService couples gateway outcomes to order state.
type PaymentService interface {
	ApplyPaymentResult(ctx context.Context, cmd ApplyPaymentResultCommand) (Order, error)
	ListPayments(ctx context.Context, orderID string) ([]PaymentRecord, error)
}

// CatalogService resolves inventory references during order creation.
type CatalogService interface {
	ResolveItem(ctx context.Context, inventoryID string) (CatalogItem, error)
}

// Pricer computes order totals from immutable line items.
type Pricer interface {
	Compute(items []OrderItem) (OrderTotals, error)
}

// InvoiceGenerator renders an invoice artifact for a committed order.
type InvoiceGenerator interface {
	Generate(ctx context.Context, order Order) (OrderInvoice, error)
}

// OrderEventMessage is the payload published for order lifecycle events.
type OrderEventMessage struct {
	EventID        string    `json:"eventId"`
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	OwnerID        string    `json:"ownerId"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	PaymentStatus  string    `json:"paymentStatus,omitempty"`
	ActorID        string    `json:"actorId,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// SystemService reports process health for readiness probes.
type SystemService interface {
	Ready(ctx context.Context) error
}
