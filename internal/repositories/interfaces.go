package repositories

import (
	"context"
	"time"

	domain "github.com/bakeway/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Tracking() TrackingRepository
	PaymentRecords() PaymentRecordRepository
	Catalog() CatalogRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations into one atomic boundary. Reads and
// writes issued through repositories inside fn observe and produce a single
// consistent snapshot; if fn returns an error nothing is persisted.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderListFilter scopes order listings for owners and admins.
type OrderListFilter struct {
	OwnerID    string
	Status     []string
	CreatedAt  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// OrderRepository persists order headers together with their immutable items.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// TrackingRepository owns the append-only tracking ledger. Entries are never
// updated or deleted.
type TrackingRepository interface {
	Append(ctx context.Context, entry domain.TrackingEntry) error
	// ListByOrder returns the full ledger for an order, newest first.
	ListByOrder(ctx context.Context, orderID string) ([]domain.TrackingEntry, error)
}

// PaymentRecordRepository stores terminal gateway results per order.
type PaymentRecordRepository interface {
	Insert(ctx context.Context, record domain.PaymentRecord) error
	FindByGatewayRef(ctx context.Context, orderID string, gatewayRef string) (domain.PaymentRecord, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentRecord, error)
}

// CatalogRepository is the read-only projection of the externally owned catalog.
type CatalogRepository interface {
	FindByID(ctx context.Context, inventoryID string) (domain.CatalogItem, error)
}

// CounterRepository produces monotonic sequence values for order and invoice numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// HealthRepository verifies that the backing store is reachable.
type HealthRepository interface {
	Ping(ctx context.Context) error
}
