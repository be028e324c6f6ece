package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/bakeway/api/internal/domain"
	"github.com/bakeway/api/internal/repositories"
)

func TestOrderRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	order := domain.Order{
		ID:        "ord_1",
		OwnerID:   "merchant-1",
		Status:    domain.OrderStatusSubmitted,
		CreatedAt: now,
	}
	if err := reg.Orders().Insert(ctx, order); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := reg.Orders().Insert(ctx, order); err == nil {
		t.Fatalf("expected conflict on duplicate insert")
	} else {
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
			t.Fatalf("expected conflict error got %v", err)
		}
	}

	found, err := reg.Orders().FindByID(ctx, "ord_1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.OwnerID != "merchant-1" {
		t.Fatalf("unexpected order %#v", found)
	}

	found.Status = domain.OrderStatusProcessing
	if err := reg.Orders().Update(ctx, found); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := reg.Orders().FindByID(ctx, "ord_missing"); err == nil {
		t.Fatalf("expected not found")
	} else {
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
			t.Fatalf("expected not-found error got %v", err)
		}
	}
}

func TestOrderRepositoryListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i, seed := range []struct {
		id     string
		owner  string
		status domain.OrderStatus
	}{
		{"ord_a", "merchant-1", domain.OrderStatusSubmitted},
		{"ord_b", "merchant-1", domain.OrderStatusProcessing},
		{"ord_c", "merchant-2", domain.OrderStatusSubmitted},
		{"ord_d", "merchant-1", domain.OrderStatusSubmitted},
	} {
		if err := reg.Orders().Insert(ctx, domain.Order{
			ID:        seed.id,
			OwnerID:   seed.owner,
			Status:    seed.status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("insert %s: %v", seed.id, err)
		}
	}

	page, err := reg.Orders().List(ctx, repositories.OrderListFilter{
		OwnerID:    "merchant-1",
		Status:     []string{"submitted"},
		Pagination: domain.Pagination{PageSize: 1},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "ord_d" {
		t.Fatalf("expected newest submitted order first got %#v", page.Items)
	}
	if page.NextPageToken == "" {
		t.Fatalf("expected next page token")
	}

	page, err = reg.Orders().List(ctx, repositories.OrderListFilter{
		OwnerID:    "merchant-1",
		Status:     []string{"submitted"},
		Pagination: domain.Pagination{PageSize: 1, PageToken: page.NextPageToken},
	})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "ord_a" {
		t.Fatalf("expected second page with ord_a got %#v", page.Items)
	}
	if page.NextPageToken != "" {
		t.Fatalf("expected exhausted listing got token %q", page.NextPageToken)
	}
}

func TestTrackingRepositoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"trk_1", "trk_2", "trk_3"} {
		if err := reg.Tracking().Append(ctx, domain.TrackingEntry{
			ID:        id,
			OrderID:   "ord_1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	entries, err := reg.Tracking().ListByOrder(ctx, "ord_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 || entries[0].ID != "trk_3" || entries[2].ID != "trk_1" {
		t.Fatalf("expected newest first got %#v", entries)
	}
}

func TestPaymentRepositoryGatewayRefUniqueness(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	record := domain.PaymentRecord{ID: "pay_1", OrderID: "ord_1", GatewayRef: "pi_abc", Amount: 100}
	if err := reg.PaymentRecords().Insert(ctx, record); err != nil {
		t.Fatalf("insert: %v", err)
	}
	record.ID = "pay_2"
	if err := reg.PaymentRecords().Insert(ctx, record); err == nil {
		t.Fatalf("expected conflict on duplicate gateway ref")
	}

	found, err := reg.PaymentRecords().FindByGatewayRef(ctx, "ord_1", "pi_abc")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != "pay_1" {
		t.Fatalf("unexpected record %#v", found)
	}

	if _, err := reg.PaymentRecords().FindByGatewayRef(ctx, "ord_1", "pi_other"); err == nil {
		t.Fatalf("expected not found")
	}
}

func TestCounterRepositoryMonotonic(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	first, err := reg.Counters().Next(ctx, "orders", 1)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	second, err := reg.Counters().Next(ctx, "orders", 1)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("expected 1 then 2 got %d %d", first, second)
	}

	other, err := reg.Counters().Next(ctx, "invoices", 1)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if other != 1 {
		t.Fatalf("counters must be independent, got %d", other)
	}
}

func TestRunInTxSerialises(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	err := reg.RunInTx(ctx, func(txCtx context.Context) error {
		return reg.Orders().Insert(txCtx, domain.Order{ID: "ord_1"})
	})
	if err != nil {
		t.Fatalf("run in tx: %v", err)
	}
	if _, err := reg.Orders().FindByID(ctx, "ord_1"); err != nil {
		t.Fatalf("expected order persisted: %v", err)
	}
}
