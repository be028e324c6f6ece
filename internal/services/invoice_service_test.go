package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/bakeway/api/internal/domain"
)

type stubArtifactStore struct {
	uploadFn func(context.Context, string, string, []byte) (ArtifactUploadResult, error)
	signFn   func(context.Context, string, time.Duration) (string, time.Time, error)
}

func (s *stubArtifactStore) Upload(ctx context.Context, object, contentType string, data []byte) (ArtifactUploadResult, error) {
	if s.uploadFn != nil {
		return s.uploadFn(ctx, object, contentType, data)
	}
	return ArtifactUploadResult{URI: "gs://bucket/" + object}, nil
}

func (s *stubArtifactStore) SignedDownloadURL(ctx context.Context, object string, expiry time.Duration) (string, time.Time, error) {
	if s.signFn != nil {
		return s.signFn(ctx, object, expiry)
	}
	return "", time.Time{}, errors.New("signing unavailable")
}

func sampleOrder() Order {
	return Order{
		ID:       "ord_1",
		Number:   "BW-2026-000042",
		OwnerID:  "merchant-1",
		Currency: "USD",
		Contact:  OrderContact{Name: "Ada Baker", Email: "ada@example.com"},
		Items: []OrderItem{
			{InventoryID: "inv-1", Name: "Sourdough Loaf", Variant: "large", UnitPrice: 5000, Quantity: 2, LineTotal: 10000},
		},
		Totals: OrderTotals{Subtotal: 10000, Tax: 500, Total: 10500},
		Status: domain.OrderStatusSubmitted,
	}
}

func TestInvoiceServiceGenerate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	var uploadedObject string
	var uploadedBody []byte

	store := &stubArtifactStore{
		uploadFn: func(_ context.Context, object, contentType string, data []byte) (ArtifactUploadResult, error) {
			uploadedObject = object
			uploadedBody = data
			if contentType != "text/plain; charset=utf-8" {
				t.Fatalf("unexpected content type %s", contentType)
			}
			return ArtifactUploadResult{URI: "gs://invoices/" + object}, nil
		},
		signFn: func(_ context.Context, object string, _ time.Duration) (string, time.Time, error) {
			return "https://signed.example.com/" + object, now.Add(15 * time.Minute), nil
		},
	}
	counters := &stubCounterRepo{
		nextFn: func(_ context.Context, counterID string, step int64) (int64, error) {
			if counterID != "invoices" {
				t.Fatalf("unexpected counter id %s", counterID)
			}
			return 7, nil
		},
	}

	svc, err := NewInvoiceService(InvoiceServiceDeps{
		Counters: counters,
		Store:    store,
		Clock:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new invoice service: %v", err)
	}

	invoice, err := svc.Generate(ctx, sampleOrder())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if invoice.Number != "INV-2026-000007" {
		t.Fatalf("unexpected invoice number %s", invoice.Number)
	}
	if !strings.HasPrefix(invoice.ArtifactURL, "https://signed.example.com/") {
		t.Fatalf("expected signed url got %s", invoice.ArtifactURL)
	}
	if uploadedObject != "invoices/2026/03/ord_1.txt" {
		t.Fatalf("unexpected object path %s", uploadedObject)
	}

	body := string(uploadedBody)
	if !strings.Contains(body, "INVOICE INV-2026-000007") {
		t.Fatalf("invoice header missing:\n%s", body)
	}
	if !strings.Contains(body, "Sourdough Loaf (large)") {
		t.Fatalf("line item missing:\n%s", body)
	}
	if !strings.Contains(body, "105.00 USD") {
		t.Fatalf("total missing:\n%s", body)
	}
}

func TestInvoiceServiceFallsBackToStorageURI(t *testing.T) {
	ctx := context.Background()
	svc, err := NewInvoiceService(InvoiceServiceDeps{
		Counters: &stubCounterRepo{},
		Store:    &stubArtifactStore{},
	})
	if err != nil {
		t.Fatalf("new invoice service: %v", err)
	}

	invoice, err := svc.Generate(ctx, sampleOrder())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(invoice.ArtifactURL, "gs://bucket/invoices/") {
		t.Fatalf("expected storage uri fallback got %s", invoice.ArtifactURL)
	}
}

func TestInvoiceServiceUploadFailure(t *testing.T) {
	ctx := context.Background()
	store := &stubArtifactStore{
		uploadFn: func(context.Context, string, string, []byte) (ArtifactUploadResult, error) {
			return ArtifactUploadResult{}, errors.New("bucket gone")
		},
	}

	svc, err := NewInvoiceService(InvoiceServiceDeps{Counters: &stubCounterRepo{}, Store: store})
	if err != nil {
		t.Fatalf("new invoice service: %v", err)
	}

	if _, err := svc.Generate(ctx, sampleOrder()); err == nil {
		t.Fatalf("expected upload error")
	}
}
