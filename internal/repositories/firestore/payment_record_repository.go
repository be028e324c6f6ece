package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/bakeway/api/internal/domain"
	pfirestore "github.com/bakeway/api/internal/platform/firestore"
	"github.com/bakeway/api/internal/repositories"
)

const paymentRecordsCollection = "payment_records"

type paymentRecordDocument struct {
	OrderID    string    `firestore:"orderId"`
	GatewayRef string    `firestore:"gatewayRef"`
	Amount     int64     `firestore:"amount"`
	Status     string    `firestore:"status"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

// PaymentRecordRepository stores terminal gateway results on Firestore.
type PaymentRecordRepository struct {
	records *pfirestore.BaseRepository[paymentRecordDocument]
}

// NewPaymentRecordRepository constructs a Firestore-backed payment record repository.
func NewPaymentRecordRepository(provider *pfirestore.Provider) (*PaymentRecordRepository, error) {
	if provider == nil {
		return nil, errors.New("payment record repository requires firestore provider")
	}
	return &PaymentRecordRepository{
		records: pfirestore.NewBaseRepository[paymentRecordDocument](provider, paymentRecordsCollection, nil, nil),
	}, nil
}

// Insert creates the payment record, failing on duplicate IDs.
func (r *PaymentRecordRepository) Insert(ctx context.Context, record domain.PaymentRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return errors.New("payment record repository: record id is required")
	}
	_, err := r.records.Create(ctx, record.ID, paymentRecordDocument{
		OrderID:    record.OrderID,
		GatewayRef: record.GatewayRef,
		Amount:     record.Amount,
		Status:     string(record.Status),
		CreatedAt:  record.CreatedAt.UTC(),
	})
	return err
}

// FindByGatewayRef locates the record for one gateway reference on an order.
func (r *PaymentRecordRepository) FindByGatewayRef(ctx context.Context, orderID string, gatewayRef string) (domain.PaymentRecord, error) {
	orderID = strings.TrimSpace(orderID)
	gatewayRef = strings.TrimSpace(gatewayRef)
	if orderID == "" || gatewayRef == "" {
		return domain.PaymentRecord{}, errors.New("payment record repository: order id and gateway ref are required")
	}

	docs, err := r.records.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID).
			Where("gatewayRef", "==", gatewayRef).
			Limit(1)
	})
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	if len(docs) == 0 {
		return domain.PaymentRecord{}, pfirestore.NewNotFound("payment_records.find",
			fmt.Errorf("no record for order %s ref %s", orderID, gatewayRef))
	}
	return decodePaymentRecord(docs[0].ID, docs[0].Data), nil
}

// ListByOrder returns all records for an order, newest first.
func (r *PaymentRecordRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentRecord, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("payment record repository: order id is required")
	}

	docs, err := r.records.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID).
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	records := make([]domain.PaymentRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, decodePaymentRecord(doc.ID, doc.Data))
	}
	return records, nil
}

func decodePaymentRecord(id string, doc paymentRecordDocument) domain.PaymentRecord {
	return domain.PaymentRecord{
		ID:         id,
		OrderID:    doc.OrderID,
		GatewayRef: doc.GatewayRef,
		Amount:     doc.Amount,
		Status:     domain.PaymentStatus(doc.Status),
		CreatedAt:  doc.CreatedAt,
	}
}

// Ensure interface compliance.
var _ repositories.PaymentRecordRepository = (*PaymentRecordRepository)(nil)
