package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// Role tags the authenticated caller. Admin is the only privileged role; every
// other role is treated as an owner of its own orders.
type Role string

const (
	// RoleAdmin may advance, decline, cancel, and retag any order.
	RoleAdmin Role = "admin"
	// RoleMerchant places orders and manages only its own.
	RoleMerchant Role = "merchant"
	// RoleStaff is an unprivileged back-office role, owner-scoped like merchant.
	RoleStaff Role = "staff"
)

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusDraft indicates the order has not been finalised by the placing party.
	OrderStatusDraft OrderStatus = "draft"
	// OrderStatusSubmitted indicates the order has been placed and awaits fulfillment.
	OrderStatusSubmitted OrderStatus = "submitted"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has left the bakery.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before completion.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusDeclined indicates an administrator refused the order.
	OrderStatusDeclined OrderStatus = "declined"
)

// IsTerminal reports whether no further transitions are defined from the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusDeclined:
		return true
	}
	return false
}

// PaymentStatus tracks the financial state of an order independently of its
// fulfillment status.
type PaymentStatus string

const (
	// PaymentStatusPending indicates no terminal gateway result has been recorded.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid indicates the gateway confirmed the charge.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed indicates the gateway reported a failed charge.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded indicates the charge was refunded after capture.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderTotals holds the monetary breakdown in the smallest currency unit.
// Total always equals Subtotal + Tax + DeliveryFee - Discount; totals are
// computed once at creation and never recomputed.
type OrderTotals struct {
	Subtotal    int64
	Tax         int64
	DeliveryFee int64
	Discount    int64
	Total       int64
}

// OrderContact stores the contact snapshot captured at submission time.
type OrderContact struct {
	Name  string
	Email string
	Phone string
}

// DeliveryAddress is the point-in-time delivery destination for an order.
type DeliveryAddress struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// OrderInvoice references the generated invoice artifact, when one exists.
type OrderInvoice struct {
	Number      string
	ArtifactURL string
}

// Order captures one purchase transaction owned by a single merchant account.
type Order struct {
	ID             string
	Number         string
	OwnerID        string
	Status         OrderStatus
	PaymentStatus  PaymentStatus
	Currency       string
	Totals         OrderTotals
	Items          []OrderItem
	Contact        OrderContact
	Delivery       DeliveryAddress
	Notes          string
	TrackingNumber *string
	DeclineReason  *string
	Invoice        *OrderInvoice
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TotalQuantity sums item quantities for list annotations.
func (o Order) TotalQuantity() int {
	var total int
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// OrderItem is one immutable line item of an order.
type OrderItem struct {
	InventoryID string
	Name        string
	Variant     string
	UnitPrice   int64
	Quantity    int
	LineTotal   int64
}

// TrackingEntry is one append-only audit record of an order state change.
// Entries are never updated or deleted; the order's denormalised status and
// tracking number always match the most recent entry.
type TrackingEntry struct {
	ID             string
	OrderID        string
	Status         OrderStatus
	TrackingNumber *string
	Notes          string
	ActorID        string
	CreatedAt      time.Time
}

// PaymentRecord stores one terminal gateway result for an order.
type PaymentRecord struct {
	ID         string
	OrderID    string
	GatewayRef string
	Amount     int64
	Status     PaymentStatus
	CreatedAt  time.Time
}

// CatalogItem is the read-only catalog projection consumed during order
// creation. Catalog ownership lives outside this service.
type CatalogItem struct {
	ID        string
	Name      string
	UnitPrice int64
	Variants  []string
	Active    bool
}
