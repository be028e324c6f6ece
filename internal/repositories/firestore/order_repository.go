package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/bakeway/api/internal/domain"
	pfirestore "github.com/bakeway/api/internal/platform/firestore"
	"github.com/bakeway/api/internal/repositories"
)

const ordersCollection = "orders"

type orderDocument struct {
	Number         string              `firestore:"number"`
	OwnerID        string              `firestore:"ownerId"`
	Status         string              `firestore:"status"`
	PaymentStatus  string              `firestore:"paymentStatus"`
	Currency       string              `firestore:"currency"`
	Totals         orderTotalsDoc      `firestore:"totals"`
	Items          []orderItemDoc      `firestore:"items"`
	Contact        orderContactDoc     `firestore:"contact"`
	Delivery       deliveryAddressDoc  `firestore:"delivery"`
	Notes          string              `firestore:"notes,omitempty"`
	TrackingNumber *string             `firestore:"trackingNumber,omitempty"`
	DeclineReason  *string             `firestore:"declineReason,omitempty"`
	Invoice        *orderInvoiceDoc    `firestore:"invoice,omitempty"`
	CreatedAt      time.Time           `firestore:"createdAt"`
	UpdatedAt      time.Time           `firestore:"updatedAt"`
}

type orderTotalsDoc struct {
	Subtotal    int64 `firestore:"subtotal"`
	Tax         int64 `firestore:"tax"`
	DeliveryFee int64 `firestore:"deliveryFee"`
	Discount    int64 `firestore:"discount"`
	Total       int64 `firestore:"total"`
}

type orderItemDoc struct {
	InventoryID string `firestore:"inventoryId"`
	Name        string `firestore:"name"`
	Variant     string `firestore:"variant,omitempty"`
	UnitPrice   int64  `firestore:"unitPrice"`
	Quantity    int    `firestore:"quantity"`
	LineTotal   int64  `firestore:"lineTotal"`
}

type orderContactDoc struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
	Phone string `firestore:"phone,omitempty"`
}

type deliveryAddressDoc struct {
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	Region     string `firestore:"region,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type orderInvoiceDoc struct {
	Number      string `firestore:"number"`
	ArtifactURL string `firestore:"artifactUrl"`
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	orders *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		orders: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// Insert creates the order document, failing on duplicate IDs.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	_, err := r.orders.Create(ctx, order.ID, encodeOrder(order))
	return err
}

// Update replaces the full order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	_, err := r.orders.Set(ctx, order.ID, encodeOrder(order))
	return err
}

// FindByID loads one order by document ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// List returns orders matching the filter, newest first, with cursor paging.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}

	var fetchLimit int
	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		createdAt, docID, err := decodeOrderPageToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("orders.list: invalid page token: %w", err)
		}
		startAfter = []any{createdAt, docID}
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.OwnerID != "" {
			q = q.Where("ownerId", "==", filter.OwnerID)
		}
		if len(filter.Status) == 1 {
			q = q.Where("status", "==", filter.Status[0])
		} else if len(filter.Status) > 1 {
			q = q.Where("status", "in", filter.Status)
		}
		if filter.CreatedAt.From != nil {
			q = q.Where("createdAt", ">=", filter.CreatedAt.From.UTC())
		}
		if filter.CreatedAt.To != nil {
			q = q.Where("createdAt", "<=", filter.CreatedAt.To.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if startAfter != nil {
			q = q.StartAfter(startAfter...)
		}
		if limit > 0 {
			fetchLimit = limit + 1
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeOrderPageToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeOrder(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderItemDoc, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDoc{
			InventoryID: item.InventoryID,
			Name:        item.Name,
			Variant:     item.Variant,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}

	doc := orderDocument{
		Number:        order.Number,
		OwnerID:       order.OwnerID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Currency:      order.Currency,
		Totals: orderTotalsDoc{
			Subtotal:    order.Totals.Subtotal,
			Tax:         order.Totals.Tax,
			DeliveryFee: order.Totals.DeliveryFee,
			Discount:    order.Totals.Discount,
			Total:       order.Totals.Total,
		},
		Items: items,
		Contact: orderContactDoc{
			Name:  order.Contact.Name,
			Email: order.Contact.Email,
			Phone: order.Contact.Phone,
		},
		Delivery: deliveryAddressDoc{
			Line1:      order.Delivery.Line1,
			Line2:      order.Delivery.Line2,
			City:       order.Delivery.City,
			Region:     order.Delivery.Region,
			PostalCode: order.Delivery.PostalCode,
			Country:    order.Delivery.Country,
		},
		Notes:          order.Notes,
		TrackingNumber: order.TrackingNumber,
		DeclineReason:  order.DeclineReason,
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
	}
	if order.Invoice != nil {
		doc.Invoice = &orderInvoiceDoc{
			Number:      order.Invoice.Number,
			ArtifactURL: order.Invoice.ArtifactURL,
		}
	}
	return doc
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			InventoryID: item.InventoryID,
			Name:        item.Name,
			Variant:     item.Variant,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}

	order := domain.Order{
		ID:            id,
		Number:        doc.Number,
		OwnerID:       doc.OwnerID,
		Status:        domain.OrderStatus(doc.Status),
		PaymentStatus: domain.PaymentStatus(doc.PaymentStatus),
		Currency:      doc.Currency,
		Totals: domain.OrderTotals{
			Subtotal:    doc.Totals.Subtotal,
			Tax:         doc.Totals.Tax,
			DeliveryFee: doc.Totals.DeliveryFee,
			Discount:    doc.Totals.Discount,
			Total:       doc.Totals.Total,
		},
		Items: items,
		Contact: domain.OrderContact{
			Name:  doc.Contact.Name,
			Email: doc.Contact.Email,
			Phone: doc.Contact.Phone,
		},
		Delivery: domain.DeliveryAddress{
			Line1:      doc.Delivery.Line1,
			Line2:      doc.Delivery.Line2,
			City:       doc.Delivery.City,
			Region:     doc.Delivery.Region,
			PostalCode: doc.Delivery.PostalCode,
			Country:    doc.Delivery.Country,
		},
		Notes:          doc.Notes,
		TrackingNumber: doc.TrackingNumber,
		DeclineReason:  doc.DeclineReason,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
	if doc.Invoice != nil {
		order.Invoice = &domain.OrderInvoice{
			Number:      doc.Invoice.Number,
			ArtifactURL: doc.Invoice.ArtifactURL,
		}
	}
	return order
}

func encodeOrderPageToken(createdAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeOrderPageToken(token string) (time.Time, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid token format")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}

// Ensure interface compliance.
var _ repositories.OrderRepository = (*OrderRepository)(nil)
