package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	domain "github.com/bakeway/api/internal/domain"
	"github.com/bakeway/api/internal/repositories"
)

// Registry is an in-memory repositories.Registry used by tests and local
// development. All state lives in process memory.
type Registry struct {
	mu sync.Mutex
	tx sync.Mutex

	orders   map[string]domain.Order
	tracking map[string][]domain.TrackingEntry
	payments map[string][]domain.PaymentRecord
	catalog  map[string]domain.CatalogItem
	counters map[string]int64
}

// NewRegistry constructs an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{
		orders:   make(map[string]domain.Order),
		tracking: make(map[string][]domain.TrackingEntry),
		payments: make(map[string][]domain.PaymentRecord),
		catalog:  make(map[string]domain.CatalogItem),
		counters: make(map[string]int64),
	}
}

type repoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e repoError) Error() string       { return e.msg }
func (e repoError) IsNotFound() bool    { return e.notFound }
func (e repoError) IsConflict() bool    { return e.conflict }
func (e repoError) IsUnavailable() bool { return e.unavailable }

func notFound(format string, args ...any) error {
	return repoError{msg: fmt.Sprintf(format, args...), notFound: true}
}

func conflict(format string, args ...any) error {
	return repoError{msg: fmt.Sprintf(format, args...), conflict: true}
}

// Close is a no-op for the in-memory registry.
func (r *Registry) Close(context.Context) error { return nil }

// Orders returns the in-memory order repository.
func (r *Registry) Orders() repositories.OrderRepository { return (*orderRepo)(r) }

// Tracking returns the in-memory tracking repository.
func (r *Registry) Tracking() repositories.TrackingRepository { return (*trackingRepo)(r) }

// PaymentRecords returns the in-memory payment record repository.
func (r *Registry) PaymentRecords() repositories.PaymentRecordRepository { return (*paymentRepo)(r) }

// Catalog returns the in-memory catalog repository.
func (r *Registry) Catalog() repositories.CatalogRepository { return (*catalogRepo)(r) }

// Counters returns the in-memory counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return (*counterRepo)(r) }

// Health returns an always-healthy repository.
func (r *Registry) Health() repositories.HealthRepository { return healthRepo{} }

// RunInTx serialises concurrent units of work. Writes are not rolled back on
// error, which is sufficient for the test scenarios this registry backs.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.tx.Lock()
	defer r.tx.Unlock()
	return fn(ctx)
}

// SeedCatalog inserts or replaces catalog items.
func (r *Registry) SeedCatalog(items ...domain.CatalogItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		r.catalog[item.ID] = item
	}
}

type orderRepo Registry

func (r *orderRepo) Insert(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("memory orders: order id is required")
	}
	if _, exists := r.orders[order.ID]; exists {
		return conflict("memory orders: duplicate id %s", order.ID)
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *orderRepo) Update(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; !exists {
		return notFound("memory orders: %s not found", order.ID)
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *orderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, exists := r.orders[orderID]
	if !exists {
		return domain.Order{}, notFound("memory orders: %s not found", orderID)
	}
	return cloneOrder(order), nil
}

func (r *orderRepo) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if filter.OwnerID != "" && order.OwnerID != filter.OwnerID {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, string(order.Status)) {
			continue
		}
		if filter.CreatedAt.From != nil && order.CreatedAt.Before(*filter.CreatedAt.From) {
			continue
		}
		if filter.CreatedAt.To != nil && order.CreatedAt.After(*filter.CreatedAt.To) {
			continue
		}
		matches = append(matches, cloneOrder(order))
	}

	// Newest first with the ID as tiebreaker, matching the Firestore ordering.
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	start := 0
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		for i, order := range matches {
			if order.ID == token {
				start = i + 1
				break
			}
		}
	}
	if start > len(matches) {
		start = len(matches)
	}
	matches = matches[start:]

	nextToken := ""
	if limit := filter.Pagination.PageSize; limit > 0 && len(matches) > limit {
		nextToken = matches[limit-1].ID
		matches = matches[:limit]
	}

	return domain.CursorPage[domain.Order]{
		Items:         matches,
		NextPageToken: nextToken,
	}, nil
}

type trackingRepo Registry

func (r *trackingRepo) Append(_ context.Context, entry domain.TrackingEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if strings.TrimSpace(entry.OrderID) == "" {
		return errors.New("memory tracking: order id is required")
	}
	r.tracking[entry.OrderID] = append(r.tracking[entry.OrderID], entry)
	return nil
}

func (r *trackingRepo) ListByOrder(_ context.Context, orderID string) ([]domain.TrackingEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	source := r.tracking[orderID]
	entries := make([]domain.TrackingEntry, len(source))
	copy(entries, source)
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

type paymentRepo Registry

func (r *paymentRepo) Insert(_ context.Context, record domain.PaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payments[record.OrderID] {
		if existing.GatewayRef == record.GatewayRef {
			return conflict("memory payments: duplicate gateway ref %s", record.GatewayRef)
		}
	}
	r.payments[record.OrderID] = append(r.payments[record.OrderID], record)
	return nil
}

func (r *paymentRepo) FindByGatewayRef(_ context.Context, orderID string, gatewayRef string) (domain.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.payments[orderID] {
		if record.GatewayRef == gatewayRef {
			return record, nil
		}
	}
	return domain.PaymentRecord{}, notFound("memory payments: no record for order %s ref %s", orderID, gatewayRef)
}

func (r *paymentRepo) ListByOrder(_ context.Context, orderID string) ([]domain.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	source := r.payments[orderID]
	records := make([]domain.PaymentRecord, len(source))
	copy(records, source)
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

type catalogRepo Registry

func (r *catalogRepo) FindByID(_ context.Context, inventoryID string) (domain.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, exists := r.catalog[inventoryID]
	if !exists {
		return domain.CatalogItem{}, notFound("memory catalog: %s not found", inventoryID)
	}
	return item, nil
}

type counterRepo Registry

func (r *counterRepo) Next(_ context.Context, counterID string, step int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if strings.TrimSpace(counterID) == "" {
		return 0, errors.New("memory counters: counter id is required")
	}
	if step <= 0 {
		step = 1
	}
	r.counters[counterID] += step
	return r.counters[counterID], nil
}

type healthRepo struct{}

func (healthRepo) Ping(context.Context) error { return nil }

func containsStatus(statuses []string, status string) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Items = make([]domain.OrderItem, len(order.Items))
	copy(clone.Items, order.Items)
	if order.TrackingNumber != nil {
		v := *order.TrackingNumber
		clone.TrackingNumber = &v
	}
	if order.DeclineReason != nil {
		v := *order.DeclineReason
		clone.DeclineReason = &v
	}
	if order.Invoice != nil {
		v := *order.Invoice
		clone.Invoice = &v
	}
	return clone
}

// Ensure interface compliance.
var _ repositories.Registry = (*Registry)(nil)
