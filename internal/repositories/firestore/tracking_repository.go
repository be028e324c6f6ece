package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/bakeway/api/internal/domain"
	pfirestore "github.com/bakeway/api/internal/platform/firestore"
	"github.com/bakeway/api/internal/repositories"
)

const trackingCollection = "order_tracking"

type trackingDocument struct {
	OrderID        string    `firestore:"orderId"`
	Status         string    `firestore:"status"`
	TrackingNumber *string   `firestore:"trackingNumber,omitempty"`
	Notes          string    `firestore:"notes,omitempty"`
	ActorID        string    `firestore:"actorId"`
	CreatedAt      time.Time `firestore:"createdAt"`
}

// TrackingRepository implements the append-only tracking ledger on Firestore.
type TrackingRepository struct {
	entries *pfirestore.BaseRepository[trackingDocument]
}

// NewTrackingRepository constructs a Firestore-backed tracking repository.
func NewTrackingRepository(provider *pfirestore.Provider) (*TrackingRepository, error) {
	if provider == nil {
		return nil, errors.New("tracking repository requires firestore provider")
	}
	return &TrackingRepository{
		entries: pfirestore.NewBaseRepository[trackingDocument](provider, trackingCollection, nil, nil),
	}, nil
}

// Append creates a new ledger entry. Entries are never updated afterwards.
func (r *TrackingRepository) Append(ctx context.Context, entry domain.TrackingEntry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("tracking repository: entry id is required")
	}
	if strings.TrimSpace(entry.OrderID) == "" {
		return errors.New("tracking repository: order id is required")
	}
	_, err := r.entries.Create(ctx, entry.ID, trackingDocument{
		OrderID:        entry.OrderID,
		Status:         string(entry.Status),
		TrackingNumber: entry.TrackingNumber,
		Notes:          entry.Notes,
		ActorID:        entry.ActorID,
		CreatedAt:      entry.CreatedAt.UTC(),
	})
	return err
}

// ListByOrder returns the full ledger for one order, newest first.
func (r *TrackingRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.TrackingEntry, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("tracking repository: order id is required")
	}

	docs, err := r.entries.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID).
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	entries := make([]domain.TrackingEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, domain.TrackingEntry{
			ID:             doc.ID,
			OrderID:        doc.Data.OrderID,
			Status:         domain.OrderStatus(doc.Data.Status),
			TrackingNumber: doc.Data.TrackingNumber,
			Notes:          doc.Data.Notes,
			ActorID:        doc.Data.ActorID,
			CreatedAt:      doc.Data.CreatedAt,
		})
	}
	return entries, nil
}

// Ensure interface compliance.
var _ repositories.TrackingRepository = (*TrackingRepository)(nil)
