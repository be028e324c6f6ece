package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bakeway/api/internal/repositories"
)

// ErrCatalogItemNotFound indicates the inventory reference does not exist.
var ErrCatalogItemNotFound = errors.New("catalog: item not found")

// CatalogServiceDeps bundles collaborators for the catalog lookup service.
type CatalogServiceDeps struct {
	Catalog repositories.CatalogRepository
}

type catalogService struct {
	catalog repositories.CatalogRepository
}

// NewCatalogService constructs the read-only catalog facade used during order
// creation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog service: catalog repository is required")
	}
	return &catalogService{catalog: deps.Catalog}, nil
}

func (s *catalogService) ResolveItem(ctx context.Context, inventoryID string) (CatalogItem, error) {
	inventoryID = strings.TrimSpace(inventoryID)
	if inventoryID == "" {
		return CatalogItem{}, fmt.Errorf("%w: empty inventory id", ErrCatalogItemNotFound)
	}

	item, err := s.catalog.FindByID(ctx, inventoryID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return CatalogItem{}, fmt.Errorf("%w: %s", ErrCatalogItemNotFound, inventoryID)
		}
		return CatalogItem{}, err
	}
	return item, nil
}
