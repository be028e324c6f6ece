package services

import (
	"errors"
	"testing"
)

func TestPricingEngineCompute(t *testing.T) {
	engine, err := NewOrderPricingEngine(OrderPricingEngineDeps{TaxRate: "0.05"})
	if err != nil {
		t.Fatalf("new pricing engine: %v", err)
	}

	totals, err := engine.Compute([]OrderItem{
		{InventoryID: "inv-1", UnitPrice: 5000, Quantity: 2},
		{InventoryID: "inv-2", UnitPrice: 4500, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if totals.Subtotal != 14500 {
		t.Fatalf("expected subtotal 14500 got %d", totals.Subtotal)
	}
	if totals.Tax != 725 {
		t.Fatalf("expected tax 725 got %d", totals.Tax)
	}
	if totals.Total != 15225 {
		t.Fatalf("expected total 15225 got %d", totals.Total)
	}
}

func TestPricingEngineRoundsHalfUp(t *testing.T) {
	engine, err := NewOrderPricingEngine(OrderPricingEngineDeps{TaxRate: "0.05"})
	if err != nil {
		t.Fatalf("new pricing engine: %v", err)
	}

	// 1010 * 0.05 = 50.5 rounds up to 51.
	totals, err := engine.Compute([]OrderItem{{InventoryID: "inv-1", UnitPrice: 1010, Quantity: 1}})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if totals.Tax != 51 {
		t.Fatalf("expected tax 51 got %d", totals.Tax)
	}
}

func TestPricingEngineFeesAndDiscount(t *testing.T) {
	engine, err := NewOrderPricingEngine(OrderPricingEngineDeps{TaxRate: "0.10", DeliveryFee: 300, Discount: 1000})
	if err != nil {
		t.Fatalf("new pricing engine: %v", err)
	}

	totals, err := engine.Compute([]OrderItem{{InventoryID: "inv-1", UnitPrice: 2000, Quantity: 1}})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if totals.DeliveryFee != 300 {
		t.Fatalf("expected delivery fee 300 got %d", totals.DeliveryFee)
	}
	if totals.Discount != 1000 {
		t.Fatalf("expected discount 1000 got %d", totals.Discount)
	}
	if totals.Total != 2000+200+300-1000 {
		t.Fatalf("unexpected total %d", totals.Total)
	}

	// The discount never exceeds the subtotal.
	totals, err = engine.Compute([]OrderItem{{InventoryID: "inv-1", UnitPrice: 500, Quantity: 1}})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if totals.Discount != 500 {
		t.Fatalf("expected clamped discount 500 got %d", totals.Discount)
	}
}

func TestPricingEngineRejectsBadInput(t *testing.T) {
	engine, err := NewOrderPricingEngine(OrderPricingEngineDeps{TaxRate: "0.05"})
	if err != nil {
		t.Fatalf("new pricing engine: %v", err)
	}

	if _, err := engine.Compute(nil); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected invalid input for empty items got %v", err)
	}
	if _, err := engine.Compute([]OrderItem{{InventoryID: "inv-1", UnitPrice: 100, Quantity: 0}}); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected invalid input for zero quantity got %v", err)
	}
	if _, err := engine.Compute([]OrderItem{{InventoryID: "inv-1", UnitPrice: -5, Quantity: 1}}); !errors.Is(err, ErrPricingInvalidInput) {
		t.Fatalf("expected invalid input for negative price got %v", err)
	}
}

func TestPricingEngineRejectsBadConfig(t *testing.T) {
	if _, err := NewOrderPricingEngine(OrderPricingEngineDeps{TaxRate: "not-a-rate"}); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := NewOrderPricingEngine(OrderPricingEngineDeps{TaxRate: "-0.05"}); err == nil {
		t.Fatalf("expected negative rate rejection")
	}
	if _, err := NewOrderPricingEngine(OrderPricingEngineDeps{TaxRate: "0.05", DeliveryFee: -1}); err == nil {
		t.Fatalf("expected negative delivery fee rejection")
	}
}
