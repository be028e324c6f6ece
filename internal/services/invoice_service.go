package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bakeway/api/internal/repositories"
)

const invoiceCounterID = "invoices"

// ArtifactStore persists rendered invoice documents.
type ArtifactStore interface {
	Upload(ctx context.Context, object string, contentType string, data []byte) (ArtifactUploadResult, error)
	SignedDownloadURL(ctx context.Context, object string, expiry time.Duration) (string, time.Time, error)
}

// ArtifactUploadResult describes where an uploaded artifact landed.
type ArtifactUploadResult struct {
	Bucket    string
	Object    string
	URI       string
	Size      int64
	CreatedAt time.Time
}

// InvoiceServiceDeps bundles collaborators for the invoice generator.
type InvoiceServiceDeps struct {
	Counters repositories.CounterRepository
	Store    ArtifactStore

	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type invoiceService struct {
	counters repositories.CounterRepository
	store    ArtifactStore
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewInvoiceService builds the invoice generator backed by the counter
// repository and the artifact store.
func NewInvoiceService(deps InvoiceServiceDeps) (InvoiceGenerator, error) {
	if deps.Counters == nil {
		return nil, errors.New("invoice service: counter repository is required")
	}
	if deps.Store == nil {
		return nil, errors.New("invoice service: artifact store is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &invoiceService{
		counters: deps.Counters,
		store:    deps.Store,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Generate renders the invoice document, uploads it, and returns the invoice
// reference. The artifact URL is a signed download link when signing is
// available, otherwise the storage URI.
func (s *invoiceService) Generate(ctx context.Context, order Order) (OrderInvoice, error) {
	seq, err := s.counters.Next(ctx, invoiceCounterID, 1)
	if err != nil {
		return OrderInvoice{}, mapOrderRepositoryError(err)
	}

	now := s.clock()
	number := fmt.Sprintf("INV-%04d-%06d", now.Year(), seq)
	object := fmt.Sprintf("invoices/%s/%s.txt", now.Format("2006/01"), order.ID)

	document := renderInvoice(number, order, now)
	result, err := s.store.Upload(ctx, object, "text/plain; charset=utf-8", document)
	if err != nil {
		return OrderInvoice{}, fmt.Errorf("upload invoice %s: %w", number, err)
	}

	artifactURL := result.URI
	if signed, _, err := s.store.SignedDownloadURL(ctx, object, 0); err == nil {
		artifactURL = signed
	} else {
		s.logger(ctx, "invoice.sign.failed", map[string]any{
			"order":  order.ID,
			"object": object,
			"error":  err.Error(),
		})
	}

	return OrderInvoice{
		Number:      number,
		ArtifactURL: artifactURL,
	}, nil
}

func renderInvoice(number string, order Order, issuedAt time.Time) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "INVOICE %s\n", number)
	fmt.Fprintf(&buf, "Order %s (%s)\n", order.Number, order.ID)
	fmt.Fprintf(&buf, "Issued %s\n", issuedAt.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Billed to %s <%s>\n\n", order.Contact.Name, order.Contact.Email)

	for _, item := range order.Items {
		name := item.Name
		if item.Variant != "" {
			name = fmt.Sprintf("%s (%s)", name, item.Variant)
		}
		fmt.Fprintf(&buf, "%-40s %3d x %10s %12s\n",
			name, item.Quantity,
			formatMinorUnits(item.UnitPrice, order.Currency),
			formatMinorUnits(item.LineTotal, order.Currency))
	}

	buf.WriteString(strings.Repeat("-", 70) + "\n")
	fmt.Fprintf(&buf, "%-58s %s\n", "Subtotal", formatMinorUnits(order.Totals.Subtotal, order.Currency))
	fmt.Fprintf(&buf, "%-58s %s\n", "Tax", formatMinorUnits(order.Totals.Tax, order.Currency))
	if order.Totals.DeliveryFee > 0 {
		fmt.Fprintf(&buf, "%-58s %s\n", "Delivery", formatMinorUnits(order.Totals.DeliveryFee, order.Currency))
	}
	if order.Totals.Discount > 0 {
		fmt.Fprintf(&buf, "%-58s -%s\n", "Discount", formatMinorUnits(order.Totals.Discount, order.Currency))
	}
	fmt.Fprintf(&buf, "%-58s %s\n", "Total", formatMinorUnits(order.Totals.Total, order.Currency))

	return buf.Bytes()
}

func formatMinorUnits(amount int64, currency string) string {
	value := decimal.NewFromInt(amount).Shift(-2)
	return fmt.Sprintf("%s %s", value.StringFixed(2), currency)
}
