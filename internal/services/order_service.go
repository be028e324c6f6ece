package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/currency"

	domain "github.com/bakeway/api/internal/domain"
	"github.com/bakeway/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"

	orderIDPrefix    = "ord_"
	trackingIDPrefix = "trk_"
	eventIDPrefix    = "evt_"

	defaultCancelWindow     = 10 * time.Minute
	defaultMaxItemQuantity  = 50
	defaultMaxDistinctItems = 25
	defaultListPageSize     = 20
	defaultMaxListPageSize  = 100
	defaultInvoiceTimeout   = 30 * time.Second
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located or is not visible to the caller.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the caller lacks the role for the operation.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrCancelWindowExpired indicates the owner cancellation window has elapsed.
	ErrCancelWindowExpired = errors.New("order: cancellation window expired")
	// ErrOrderMissingReason indicates a decline was attempted without a reason.
	ErrOrderMissingReason = errors.New("order: decline reason is required")
	// ErrOrderConflict indicates optimistic concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderDependency indicates an upstream collaborator was unavailable.
	ErrOrderDependency = errors.New("order: dependency unavailable")
)

// orderStateTransitions defines every legal lifecycle edge. Terminal statuses
// carry no outgoing edges.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusDraft:      {domain.OrderStatusSubmitted, domain.OrderStatusCancelled},
	domain.OrderStatusSubmitted:  {domain.OrderStatusProcessing, domain.OrderStatusDeclined, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusDeclined, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
}

// advanceTargets are the statuses Advance may move toward; decline and cancel
// have dedicated operations with their own gates.
var advanceTargets = []domain.OrderStatus{
	domain.OrderStatusSubmitted,
	domain.OrderStatusProcessing,
	domain.OrderStatusShipped,
	domain.OrderStatusDelivered,
}

// Owners may back out while the bakery can still stop the order; admins may
// cancel anything that has not reached a terminal status.
var (
	declinableStatuses = []domain.OrderStatus{
		domain.OrderStatusSubmitted,
		domain.OrderStatusProcessing,
	}
	ownerCancellableStatuses = []domain.OrderStatus{
		domain.OrderStatusSubmitted,
		domain.OrderStatusProcessing,
	}
	adminCancellableStatuses = []domain.OrderStatus{
		domain.OrderStatusDraft,
		domain.OrderStatusSubmitted,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
	}
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	Tracking   repositories.TrackingRepository
	Counters   repositories.CounterRepository
	Catalog    CatalogService
	Pricer     Pricer
	Invoices   InvoiceGenerator
	UnitOfWork repositories.UnitOfWork

	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
	Sanitizer   *bluemonday.Policy

	CancelWindow     time.Duration
	MaxItemQuantity  int
	MaxDistinctItems int
	DefaultCurrency  string
	DefaultPageSize  int
	MaxPageSize      int
	InvoiceTimeout   time.Duration
}

type orderService struct {
	orders     repositories.OrderRepository
	tracking   repositories.TrackingRepository
	counters   repositories.CounterRepository
	catalog    CatalogService
	pricer     Pricer
	invoices   InvoiceGenerator
	unitOfWork repositories.UnitOfWork

	clock     func() time.Time
	newID     func() string
	events    OrderEventPublisher
	logger    func(context.Context, string, map[string]any)
	sanitizer *bluemonday.Policy

	cancelWindow     time.Duration
	maxItemQuantity  int
	maxDistinctItems int
	defaultCurrency  string
	defaultPageSize  int
	maxPageSize      int
	invoiceTimeout   time.Duration
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Tracking == nil {
		return nil, errors.New("order service: tracking repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog service is required")
	}
	if deps.Pricer == nil {
		return nil, errors.New("order service: pricer is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = bluemonday.StrictPolicy()
	}

	cancelWindow := deps.CancelWindow
	if cancelWindow <= 0 {
		cancelWindow = defaultCancelWindow
	}
	maxQty := deps.MaxItemQuantity
	if maxQty <= 0 {
		maxQty = defaultMaxItemQuantity
	}
	maxItems := deps.MaxDistinctItems
	if maxItems <= 0 {
		maxItems = defaultMaxDistinctItems
	}
	pageSize := deps.DefaultPageSize
	if pageSize <= 0 {
		pageSize = defaultListPageSize
	}
	maxPageSize := deps.MaxPageSize
	if maxPageSize < pageSize {
		maxPageSize = defaultMaxListPageSize
	}
	invoiceTimeout := deps.InvoiceTimeout
	if invoiceTimeout <= 0 {
		invoiceTimeout = defaultInvoiceTimeout
	}

	return &orderService{
		orders:     deps.Orders,
		tracking:   deps.Tracking,
		counters:   deps.Counters,
		catalog:    deps.Catalog,
		pricer:     deps.Pricer,
		invoices:   deps.Invoices,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:            idGen,
		events:           deps.Events,
		logger:           logger,
		sanitizer:        sanitizer,
		cancelWindow:     cancelWindow,
		maxItemQuantity:  maxQty,
		maxDistinctItems: maxItems,
		defaultCurrency:  strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency)),
		defaultPageSize:  pageSize,
		maxPageSize:      maxPageSize,
		invoiceTimeout:   invoiceTimeout,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (OrderDetail, error) {
	ownerID := strings.TrimSpace(cmd.OwnerID)
	if ownerID == "" {
		return OrderDetail{}, fmt.Errorf("%w: owner id is required", ErrOrderInvalidInput)
	}

	curr, err := s.resolveCurrency(cmd.Currency)
	if err != nil {
		return OrderDetail{}, err
	}

	if err := validateContact(cmd.Contact); err != nil {
		return OrderDetail{}, err
	}
	if err := validateDelivery(cmd.Delivery); err != nil {
		return OrderDetail{}, err
	}

	items, err := s.resolveItems(ctx, cmd.Items)
	if err != nil {
		return OrderDetail{}, err
	}

	totals, err := s.pricer.Compute(items)
	if err != nil {
		if errors.Is(err, ErrPricingInvalidInput) {
			return OrderDetail{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		return OrderDetail{}, err
	}

	now := s.now()

	order := Order{
		ID:            orderIDPrefix + s.newID(),
		OwnerID:       ownerID,
		Status:        domain.OrderStatusSubmitted,
		PaymentStatus: domain.PaymentStatusPending,
		Currency:      curr,
		Totals:        totals,
		Items:         items,
		Contact:       trimContact(cmd.Contact),
		Delivery:      trimDelivery(cmd.Delivery),
		Notes:         s.sanitizeText(cmd.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	entry := TrackingEntry{
		ID:        trackingIDPrefix + s.newID(),
		OrderID:   order.ID,
		Status:    order.Status,
		Notes:     "order submitted",
		ActorID:   ownerID,
		CreatedAt: now,
	}

	// The counter bump commits with the order write so a failed creation
	// never burns a sequence number.
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		number, err := s.generateOrderNumber(txCtx, now)
		if err != nil {
			return err
		}
		order.Number = number
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.tracking.Append(txCtx, entry); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return OrderDetail{}, err
	}

	s.publishEvent(ctx, OrderEventMessage{
		Type:        orderEventCreated,
		OrderID:     order.ID,
		OrderNumber: order.Number,
		OwnerID:     order.OwnerID,
		Status:      string(order.Status),
		ActorID:     cmd.Actor.ID,
		OccurredAt:  now,
	})

	s.attachInvoice(ctx, &order)

	return s.detail(order, []TrackingEntry{entry}, s.now()), nil
}

func (s *orderService) GetOrder(ctx context.Context, query GetOrderQuery) (OrderDetail, error) {
	orderID := strings.TrimSpace(query.OrderID)
	if orderID == "" {
		return OrderDetail{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return OrderDetail{}, s.mapRepositoryError(err)
	}

	// Other owners' orders are reported as missing, not forbidden.
	if query.Actor.Role != domain.RoleAdmin && order.OwnerID != query.Actor.ID {
		return OrderDetail{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	entries, err := s.tracking.ListByOrder(ctx, orderID)
	if err != nil {
		return OrderDetail{}, s.mapRepositoryError(err)
	}

	return s.detail(order, entries, s.now()), nil
}

func (s *orderService) ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[OrderSummary], error) {
	filter := repositories.OrderListFilter{
		Pagination: s.clampPagination(query.Pagination),
	}
	if query.Actor.Role != domain.RoleAdmin {
		if strings.TrimSpace(query.Actor.ID) == "" {
			return domain.CursorPage[OrderSummary]{}, fmt.Errorf("%w: actor id is required", ErrOrderInvalidInput)
		}
		filter.OwnerID = query.Actor.ID
	}
	if query.Status != nil {
		status := *query.Status
		if _, known := orderStateTransitions[status]; !known && !status.IsTerminal() {
			return domain.CursorPage[OrderSummary]{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
		}
		filter.Status = []string{string(status)}
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[OrderSummary]{}, s.mapRepositoryError(err)
	}

	summaries := make([]OrderSummary, 0, len(page.Items))
	for _, order := range page.Items {
		summaries = append(summaries, OrderSummary{
			ID:            order.ID,
			Number:        order.Number,
			OwnerID:       order.OwnerID,
			Status:        order.Status,
			PaymentStatus: order.PaymentStatus,
			Currency:      order.Currency,
			Total:         order.Totals.Total,
			TotalQuantity: order.TotalQuantity(),
			CreatedAt:     order.CreatedAt,
			UpdatedAt:     order.UpdatedAt,
		})
	}

	return domain.CursorPage[OrderSummary]{
		Items:         summaries,
		NextPageToken: page.NextPageToken,
	}, nil
}

func (s *orderService) Advance(ctx context.Context, cmd AdvanceOrderCommand) (Order, error) {
	if cmd.Actor.Role != domain.RoleAdmin {
		return Order{}, fmt.Errorf("%w: only admins may advance orders", ErrOrderForbidden)
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.TargetStatus
	if !slices.Contains(advanceTargets, target) {
		return Order{}, fmt.Errorf("%w: %q is not a forward status", ErrOrderInvalidInput, target)
	}

	note := s.sanitizeText(cmd.Note)
	if note == "" {
		note = fmt.Sprintf("status set to %s", target)
	}

	return s.transition(ctx, orderID, target, cmd.Actor.ID, note, cmd.ExpectedStatus, nil)
}

func (s *orderService) Decline(ctx context.Context, cmd DeclineOrderCommand) (Order, error) {
	if cmd.Actor.Role != domain.RoleAdmin {
		return Order{}, fmt.Errorf("%w: only admins may decline orders", ErrOrderForbidden)
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	reason := s.sanitizeText(cmd.Reason)
	if reason == "" {
		return Order{}, ErrOrderMissingReason
	}

	return s.transition(ctx, orderID, domain.OrderStatusDeclined, cmd.Actor.ID, reason, nil, func(order *Order) error {
		if !slices.Contains(declinableStatuses, order.Status) {
			return fmt.Errorf("%w: orders can only be declined while submitted or processing, order is %q", ErrOrderInvalidState, order.Status)
		}
		order.DeclineReason = &reason
		return nil
	})
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	reason := s.sanitizeText(cmd.Reason)
	note := reason
	if note == "" {
		note = "order cancelled"
	}

	isAdmin := cmd.Actor.Role == domain.RoleAdmin

	return s.transition(ctx, orderID, domain.OrderStatusCancelled, cmd.Actor.ID, note, nil, func(order *Order) error {
		if isAdmin {
			if !slices.Contains(adminCancellableStatuses, order.Status) {
				return fmt.Errorf("%w: order status %q cannot be cancelled", ErrOrderInvalidState, order.Status)
			}
			return nil
		}

		if order.OwnerID != cmd.Actor.ID {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, order.ID)
		}
		if !slices.Contains(ownerCancellableStatuses, order.Status) {
			return fmt.Errorf("%w: only submitted or processing orders can be cancelled, order is %q", ErrOrderInvalidState, order.Status)
		}
		if elapsed := s.now().Sub(order.CreatedAt); elapsed >= s.cancelWindow {
			return fmt.Errorf("%w: %s elapsed since submission", ErrCancelWindowExpired, elapsed.Truncate(time.Second))
		}
		return nil
	})
}

func (s *orderService) UpdateTrackingNumber(ctx context.Context, cmd UpdateTrackingCommand) (Order, error) {
	if cmd.Actor.Role != domain.RoleAdmin {
		return Order{}, fmt.Errorf("%w: only admins may update tracking numbers", ErrOrderForbidden)
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	trackingNumber := strings.TrimSpace(cmd.TrackingNumber)
	if trackingNumber == "" {
		return Order{}, fmt.Errorf("%w: tracking number is required", ErrOrderInvalidInput)
	}

	note := s.sanitizeText(cmd.Note)
	if note == "" {
		note = "tracking number updated"
	}

	now := s.now()
	var updated Order

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		// Allowed from any status: this is a ledger append without a status
		// change, e.g. recording the final courier reference after delivery.
		order.TrackingNumber = &trackingNumber
		order.UpdatedAt = now

		entry := TrackingEntry{
			ID:             trackingIDPrefix + s.newID(),
			OrderID:        order.ID,
			Status:         order.Status,
			TrackingNumber: &trackingNumber,
			Notes:          note,
			ActorID:        cmd.Actor.ID,
			CreatedAt:      now,
		}

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.tracking.Append(txCtx, entry); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	return updated, nil
}

// transition re-reads the order inside the transaction, applies the gate, and
// writes the order update plus exactly one tracking entry atomically.
func (s *orderService) transition(ctx context.Context, orderID string, target domain.OrderStatus, actorID, note string, expected *domain.OrderStatus, gate func(*Order) error) (Order, error) {
	now := s.now()
	var (
		updated    Order
		prevStatus domain.OrderStatus
	)

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		if expected != nil && order.Status != *expected {
			return fmt.Errorf("%w: expected status %q but was %q", ErrOrderConflict, *expected, order.Status)
		}
		if gate != nil {
			if err := gate(&order); err != nil {
				return err
			}
		}
		if !canTransition(order.Status, target) {
			return fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, target)
		}

		prevStatus = order.Status
		order.Status = target
		order.UpdatedAt = now

		entry := TrackingEntry{
			ID:             trackingIDPrefix + s.newID(),
			OrderID:        order.ID,
			Status:         target,
			TrackingNumber: order.TrackingNumber,
			Notes:          note,
			ActorID:        actorID,
			CreatedAt:      now,
		}

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.tracking.Append(txCtx, entry); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEventMessage{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.Number,
		OwnerID:        updated.OwnerID,
		Status:         string(updated.Status),
		PreviousStatus: string(prevStatus),
		ActorID:        actorID,
		OccurredAt:     now,
	})

	return updated, nil
}

func (s *orderService) resolveItems(ctx context.Context, inputs []OrderItemInput) ([]OrderItem, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	if len(inputs) > s.maxDistinctItems {
		return nil, fmt.Errorf("%w: at most %d distinct items per order", ErrOrderInvalidInput, s.maxDistinctItems)
	}

	items := make([]OrderItem, 0, len(inputs))
	for _, input := range inputs {
		inventoryID := strings.TrimSpace(input.InventoryID)
		if inventoryID == "" {
			return nil, fmt.Errorf("%w: item inventory id is required", ErrOrderInvalidInput)
		}
		if input.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %s quantity must be positive", ErrOrderInvalidInput, inventoryID)
		}
		if input.Quantity > s.maxItemQuantity {
			return nil, fmt.Errorf("%w: item %s quantity exceeds maximum %d", ErrOrderInvalidInput, inventoryID, s.maxItemQuantity)
		}

		catalogItem, err := s.catalog.ResolveItem(ctx, inventoryID)
		if err != nil {
			if errors.Is(err, ErrCatalogItemNotFound) {
				return nil, fmt.Errorf("%w: unknown inventory item %s", ErrOrderInvalidInput, inventoryID)
			}
			return nil, fmt.Errorf("%w: catalog lookup failed: %v", ErrOrderDependency, err)
		}
		if !catalogItem.Active {
			return nil, fmt.Errorf("%w: inventory item %s is not available", ErrOrderInvalidInput, inventoryID)
		}

		variant := strings.TrimSpace(input.Variant)
		if variant != "" && len(catalogItem.Variants) > 0 && !slices.Contains(catalogItem.Variants, variant) {
			return nil, fmt.Errorf("%w: unknown variant %q for item %s", ErrOrderInvalidInput, variant, inventoryID)
		}

		items = append(items, OrderItem{
			InventoryID: catalogItem.ID,
			Name:        catalogItem.Name,
			Variant:     variant,
			UnitPrice:   catalogItem.UnitPrice,
			Quantity:    input.Quantity,
			LineTotal:   catalogItem.UnitPrice * int64(input.Quantity),
		})
	}

	return items, nil
}

func (s *orderService) resolveCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = s.defaultCurrency
	}
	if code == "" {
		return "", fmt.Errorf("%w: currency is required", ErrOrderInvalidInput)
	}
	if _, err := currency.ParseISO(code); err != nil {
		return "", fmt.Errorf("%w: invalid currency %q", ErrOrderInvalidInput, code)
	}
	if s.defaultCurrency != "" && code != s.defaultCurrency {
		return "", fmt.Errorf("%w: currency %q is not supported, expected %s", ErrOrderInvalidInput, code, s.defaultCurrency)
	}
	return code, nil
}

func (s *orderService) clampPagination(p Pagination) Pagination {
	if p.PageSize <= 0 {
		p.PageSize = s.defaultPageSize
	}
	if p.PageSize > s.maxPageSize {
		p.PageSize = s.maxPageSize
	}
	return p
}

func (s *orderService) detail(order Order, entries []TrackingEntry, now time.Time) OrderDetail {
	allowance := cancelAllowanceMinutes(order, now, s.cancelWindow)
	return OrderDetail{
		Order:                  order,
		Tracking:               entries,
		Cancellable:            allowance > 0,
		CancelAllowanceMinutes: allowance,
	}
}

// cancelAllowanceMinutes reports the remaining owner-cancellation budget,
// truncated to whole minutes, never negative.
func cancelAllowanceMinutes(order Order, now time.Time, window time.Duration) int {
	if !slices.Contains(ownerCancellableStatuses, order.Status) {
		return 0
	}
	remaining := window - now.Sub(order.CreatedAt)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / time.Minute)
}

func (s *orderService) attachInvoice(ctx context.Context, order *Order) {
	if s.invoices == nil {
		return
	}

	invCtx, cancel := context.WithTimeout(ctx, s.invoiceTimeout)
	defer cancel()

	invoice, err := s.invoices.Generate(invCtx, *order)
	if err != nil {
		s.logger(ctx, "order.invoice.generate.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
		return
	}

	order.Invoice = &invoice
	order.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, *order); err != nil {
		s.logger(ctx, "order.invoice.attach.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
		order.Invoice = nil
	}
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, "orders", 1)
	if err != nil {
		return "", s.mapRepositoryError(err)
	}
	return fmt.Sprintf("BW-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) sanitizeText(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func (s *orderService) mapRepositoryError(err error) error {
	return mapOrderRepositoryError(err)
}

func mapOrderRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderDependency, err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEventMessage) {
	if s.events == nil {
		return
	}
	if event.EventID == "" {
		event.EventID = eventIDPrefix + s.newID()
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.Status,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func canTransition(current, target domain.OrderStatus) bool {
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}
