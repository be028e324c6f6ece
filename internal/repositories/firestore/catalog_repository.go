package firestore

import (
	"context"
	"errors"

	domain "github.com/bakeway/api/internal/domain"
	pfirestore "github.com/bakeway/api/internal/platform/firestore"
	"github.com/bakeway/api/internal/repositories"
)

const catalogCollection = "catalog_items"

type catalogItemDocument struct {
	Name      string   `firestore:"name"`
	UnitPrice int64    `firestore:"unitPrice"`
	Variants  []string `firestore:"variants,omitempty"`
	Active    bool     `firestore:"active"`
}

// CatalogRepository reads the externally maintained catalog projection.
type CatalogRepository struct {
	items *pfirestore.BaseRepository[catalogItemDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		items: pfirestore.NewBaseRepository[catalogItemDocument](provider, catalogCollection, nil, nil),
	}, nil
}

// FindByID loads one catalog item by inventory ID.
func (r *CatalogRepository) FindByID(ctx context.Context, inventoryID string) (domain.CatalogItem, error) {
	doc, err := r.items.Get(ctx, inventoryID)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	return domain.CatalogItem{
		ID:        doc.ID,
		Name:      doc.Data.Name,
		UnitPrice: doc.Data.UnitPrice,
		Variants:  doc.Data.Variants,
		Active:    doc.Data.Active,
	}, nil
}

// Ensure interface compliance.
var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
