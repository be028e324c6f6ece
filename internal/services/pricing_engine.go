package services

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrPricingInvalidInput signals bad pricing data such as negative prices or quantities.
var ErrPricingInvalidInput = errors.New("pricing: invalid input")

// OrderPricingEngine computes order totals in integer minor units. The tax is
// derived once from the full subtotal using decimal arithmetic with half-up
// rounding, and the grand total is the sum of already-rounded parts.
type OrderPricingEngine struct {
	taxRate     decimal.Decimal
	deliveryFee int64
	discount    int64
}

// OrderPricingEngineDeps bundles pricing configuration.
type OrderPricingEngineDeps struct {
	TaxRate     string
	DeliveryFee int64
	Discount    int64
}

// NewOrderPricingEngine parses the configured tax rate and builds the engine.
func NewOrderPricingEngine(deps OrderPricingEngineDeps) (*OrderPricingEngine, error) {
	rate := strings.TrimSpace(deps.TaxRate)
	if rate == "" {
		rate = "0"
	}
	taxRate, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("pricing engine: parse tax rate %q: %w", deps.TaxRate, err)
	}
	if taxRate.IsNegative() {
		return nil, fmt.Errorf("pricing engine: tax rate must not be negative")
	}
	if deps.DeliveryFee < 0 {
		return nil, fmt.Errorf("pricing engine: delivery fee must not be negative")
	}
	if deps.Discount < 0 {
		return nil, fmt.Errorf("pricing engine: discount must not be negative")
	}

	return &OrderPricingEngine{
		taxRate:     taxRate,
		deliveryFee: deps.DeliveryFee,
		discount:    deps.Discount,
	}, nil
}

// Compute derives the totals for the given line items. Line totals are
// recomputed from unit price and quantity; stale LineTotal values are ignored.
func (e *OrderPricingEngine) Compute(items []OrderItem) (OrderTotals, error) {
	if e == nil {
		return OrderTotals{}, errors.New("pricing engine: not initialised")
	}
	if len(items) == 0 {
		return OrderTotals{}, fmt.Errorf("%w: at least one item is required", ErrPricingInvalidInput)
	}

	var subtotal int64
	for _, item := range items {
		if item.Quantity <= 0 {
			return OrderTotals{}, fmt.Errorf("%w: item %s quantity must be positive", ErrPricingInvalidInput, item.InventoryID)
		}
		if item.UnitPrice < 0 {
			return OrderTotals{}, fmt.Errorf("%w: item %s unit price cannot be negative", ErrPricingInvalidInput, item.InventoryID)
		}

		quantity := int64(item.Quantity)
		if item.UnitPrice > 0 && item.UnitPrice > math.MaxInt64/quantity {
			return OrderTotals{}, fmt.Errorf("%w: item %s line total overflow", ErrPricingInvalidInput, item.InventoryID)
		}
		lineTotal := item.UnitPrice * quantity
		if subtotal > math.MaxInt64-lineTotal {
			return OrderTotals{}, fmt.Errorf("%w: subtotal overflow", ErrPricingInvalidInput)
		}
		subtotal += lineTotal
	}

	tax := decimal.NewFromInt(subtotal).
		Mul(e.taxRate).
		Round(0).
		IntPart()

	discount := e.discount
	if discount > subtotal {
		discount = subtotal
	}

	total := subtotal + tax + e.deliveryFee - discount

	return OrderTotals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: e.deliveryFee,
		Discount:    discount,
		Total:       total,
	}, nil
}

// PriceItems resolves line totals in place and returns the computed totals.
func (e *OrderPricingEngine) PriceItems(items []OrderItem) ([]OrderItem, OrderTotals, error) {
	totals, err := e.Compute(items)
	if err != nil {
		return nil, OrderTotals{}, err
	}
	priced := make([]OrderItem, len(items))
	for i, item := range items {
		item.LineTotal = item.UnitPrice * int64(item.Quantity)
		priced[i] = item
	}
	return priced, totals, nil
}
