package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/bakeway/api/internal/domain"
)

type stubCatalogRepo struct {
	findFn func(context.Context, string) (domain.CatalogItem, error)
}

func (s *stubCatalogRepo) FindByID(ctx context.Context, itemID string) (domain.CatalogItem, error) {
	if s.findFn != nil {
		return s.findFn(ctx, itemID)
	}
	return domain.CatalogItem{}, notFoundRepoError{}
}

func TestCatalogServiceResolveItem(t *testing.T) {
	ctx := context.Background()
	repo := &stubCatalogRepo{
		findFn: func(_ context.Context, itemID string) (domain.CatalogItem, error) {
			if itemID != "inv-sourdough" {
				return domain.CatalogItem{}, notFoundRepoError{}
			}
			return domain.CatalogItem{ID: itemID, Name: "Sourdough Loaf", UnitPrice: 5000, Active: true}, nil
		},
	}

	svc, err := NewCatalogService(CatalogServiceDeps{Catalog: repo})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}

	item, err := svc.ResolveItem(ctx, "inv-sourdough")
	if err != nil {
		t.Fatalf("resolve item: %v", err)
	}
	if item.Name != "Sourdough Loaf" {
		t.Fatalf("unexpected item %#v", item)
	}

	if _, err := svc.ResolveItem(ctx, "inv-missing"); !errors.Is(err, ErrCatalogItemNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
	if _, err := svc.ResolveItem(ctx, "  "); !errors.Is(err, ErrCatalogItemNotFound) {
		t.Fatalf("expected not found for blank id got %v", err)
	}
}

func TestCatalogServicePropagatesRepositoryFailures(t *testing.T) {
	ctx := context.Background()
	repoErr := errors.New("firestore unavailable")
	repo := &stubCatalogRepo{
		findFn: func(context.Context, string) (domain.CatalogItem, error) {
			return domain.CatalogItem{}, repoErr
		},
	}

	svc, err := NewCatalogService(CatalogServiceDeps{Catalog: repo})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}

	if _, err := svc.ResolveItem(ctx, "inv-1"); !errors.Is(err, repoErr) {
		t.Fatalf("expected wrapped repo error got %v", err)
	}
}
