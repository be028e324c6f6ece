package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/bakeway/api/internal/platform/firestore"
	"github.com/bakeway/api/internal/repositories"
)

// Registry wires the Firestore-backed repositories behind the repositories.Registry interface.
type Registry struct {
	provider *pfirestore.Provider

	orders   *OrderRepository
	tracking *TrackingRepository
	payments *PaymentRecordRepository
	catalog  *CatalogRepository
	counters *CounterRepository
	health   *HealthRepository
}

// NewRegistry constructs the full repository set on a shared Firestore provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	tracking, err := NewTrackingRepository(provider)
	if err != nil {
		return nil, err
	}
	payments, err := NewPaymentRecordRepository(provider)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		orders:   orders,
		tracking: tracking,
		payments: payments,
		catalog:  catalog,
		counters: counters,
		health:   &HealthRepository{provider: provider},
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Tracking returns the tracking ledger repository.
func (r *Registry) Tracking() repositories.TrackingRepository { return r.tracking }

// PaymentRecords returns the payment record repository.
func (r *Registry) PaymentRecords() repositories.PaymentRecordRepository { return r.payments }

// Catalog returns the catalog projection repository.
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

// Counters returns the sequence counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// Health returns the datastore health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn inside one Firestore transaction. Repositories invoked
// through the callback context join the transaction automatically.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		return fn(txCtx)
	})
}

// HealthRepository verifies Firestore reachability with a lightweight read.
type HealthRepository struct {
	provider *pfirestore.Provider
}

// Ping reads a well-known document. A missing document still proves the
// backend answered.
func (h *HealthRepository) Ping(ctx context.Context) error {
	client, err := h.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection("health").Doc("ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}

// Ensure interface compliance.
var _ repositories.Registry = (*Registry)(nil)
