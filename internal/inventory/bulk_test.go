package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestToBaseQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity int64
		unit     string
		wantBase string
		wantQty  int64
		wantOK   bool
	}{
		{"grams", 500, "g", "g", 500, true},
		{"kilograms", 5, "kg", "g", 5000, true},
		{"millilitres", 200, "ml", "ml", 200, true},
		{"litres", 2, "l", "ml", 2000, true},
		{"unknown unit", 3, "pcs", "", 0, false},
		{"empty unit", 3, "", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, qty, ok := ToBaseQuantity(tt.quantity, tt.unit)
			if ok != tt.wantOK {
				t.Fatalf("ToBaseQuantity(%d, %q) ok = %v, want %v", tt.quantity, tt.unit, ok, tt.wantOK)
			}
			if base != tt.wantBase || qty != tt.wantQty {
				t.Errorf("ToBaseQuantity(%d, %q) = (%q, %d), want (%q, %d)",
					tt.quantity, tt.unit, base, qty, tt.wantBase, tt.wantQty)
			}
		})
	}
}

func TestApplyBulkChange_CreatesRowOnFirstReceive(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()

	row, err := ApplyBulkChange(context.Background(), store, storeID, BulkChange{
		ProductID: productID,
		DeltaBase: 2000,
		BaseUnit:  "g",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.QuantityBase != 2000 {
		t.Errorf("quantity base: got %d, want 2000", row.QuantityBase)
	}
	if row.BaseUnit != "g" {
		t.Errorf("base unit: got %q, want g", row.BaseUnit)
	}
}

func TestApplyBulkChange_UnitMismatch(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()
	store.seedBulk(storeID, productID, "g", 1000)

	// The first movement fixed grams; millilitres must be refused even
	// though the upsert is a no-op on the existing row.
	_, err := ApplyBulkChange(context.Background(), store, storeID, BulkChange{
		ProductID: productID,
		DeltaBase: 500,
		BaseUnit:  "ml",
	})
	if !errors.Is(err, ErrBulkUnitMismatch) {
		t.Fatalf("expected ErrBulkUnitMismatch, got: %v", err)
	}
	if got := store.bulkQty(storeID, productID); got != 1000 {
		t.Errorf("quantity after rejected change: got %d, want 1000", got)
	}
}

func TestApplyBulkChange_InsufficientStock(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()
	store.seedBulk(storeID, productID, "g", 400)

	_, err := ApplyBulkChange(context.Background(), store, storeID, BulkChange{
		ProductID: productID,
		DeltaBase: -500,
		BaseUnit:  "g",
		Name:      "Loose Toor Dal",
	})

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if len(stockErr.Items) != 1 {
		t.Fatalf("expected 1 shortfall item, got %d", len(stockErr.Items))
	}
	item := stockErr.Items[0]
	if item.SkuID != productID || item.Available != 400 || item.Required != 500 {
		t.Errorf("shortfall: got %+v, want sku=%v available=400 required=500", item, productID)
	}
	if got := store.bulkQty(storeID, productID); got != 400 {
		t.Errorf("quantity after rejected deduction: got %d, want 400", got)
	}
}

func TestApplyBulkChange_ZeroDelta(t *testing.T) {
	store := newMemStore()
	_, err := ApplyBulkChange(context.Background(), store, uuid.New(), BulkChange{
		ProductID: uuid.New(),
		BaseUnit:  "g",
	})
	if !errors.Is(err, ErrZeroQuantity) {
		t.Fatalf("expected ErrZeroQuantity, got: %v", err)
	}
}

func TestApplyBulkDeductions_DrainsToZero(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()
	store.seedBulk(storeID, productID, "g", 500)

	// Two 250g packs against exactly 500g on hand.
	err := ApplyBulkDeductions(context.Background(), store, storeID, []BulkRequirement{
		{ProductID: productID, RequiredBase: 250, BaseUnit: "g"},
		{ProductID: productID, RequiredBase: 250, BaseUnit: "g"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.bulkQty(storeID, productID); got != 0 {
		t.Errorf("quantity after draining: got %d, want 0", got)
	}
}

func TestApplyBulkDeductions_MergedShortfall(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()
	store.seedBulk(storeID, productID, "g", 700)

	// 2x250 + 3x100 = 800 needed; each line alone would fit.
	err := ApplyBulkDeductions(context.Background(), store, storeID, []BulkRequirement{
		{ProductID: productID, RequiredBase: 500, BaseUnit: "g", Name: "Loose Rice"},
		{ProductID: productID, RequiredBase: 300, BaseUnit: "g", Name: "Loose Rice"},
	})

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if stockErr.Items[0].Available != 700 || stockErr.Items[0].Required != 800 {
		t.Errorf("shortfall: got available=%d required=%d, want 700/800",
			stockErr.Items[0].Available, stockErr.Items[0].Required)
	}
	if got := store.bulkQty(storeID, productID); got != 700 {
		t.Errorf("quantity after rejected deduction: got %d, want 700", got)
	}
}

func TestEnsureBulkAvailability_Shortfall(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()
	store.seedBulk(storeID, productID, "g", 400)

	err := EnsureBulkAvailability(context.Background(), store, storeID, []BulkRequirement{
		{ProductID: productID, RequiredBase: 500, BaseUnit: "g", Name: "Loose Sugar"},
	})

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if stockErr.Items[0].Name != "Loose Sugar" {
		t.Errorf("shortfall name: got %q, want Loose Sugar", stockErr.Items[0].Name)
	}
	if stockErr.Items[0].Message != "only 400 available, 500 required" {
		t.Errorf("shortfall message: got %q", stockErr.Items[0].Message)
	}
}

func TestEnsureBulkAvailability_MissingRowReportsZero(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()

	err := EnsureBulkAvailability(context.Background(), store, storeID, []BulkRequirement{
		{ProductID: productID, RequiredBase: 100, BaseUnit: "g"},
	})

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if stockErr.Items[0].Available != 0 || stockErr.Items[0].Required != 100 {
		t.Errorf("shortfall: got available=%d required=%d, want 0/100",
			stockErr.Items[0].Available, stockErr.Items[0].Required)
	}
}

func TestEnsureBulkAvailability_ConflictingUnitsInRequest(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()
	store.seedBulk(storeID, productID, "g", 5000)

	err := EnsureBulkAvailability(context.Background(), store, storeID, []BulkRequirement{
		{ProductID: productID, RequiredBase: 500, BaseUnit: "g"},
		{ProductID: productID, RequiredBase: 500, BaseUnit: "ml"},
	})
	if !errors.Is(err, ErrBulkUnitMismatch) {
		t.Fatalf("expected ErrBulkUnitMismatch, got: %v", err)
	}
}

func TestEnsureBulkAvailability_Enough(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()
	store.seedBulk(storeID, productID, "g", 1000)

	err := EnsureBulkAvailability(context.Background(), store, storeID, []BulkRequirement{
		{ProductID: productID, RequiredBase: 250, BaseUnit: "g"},
		{ProductID: productID, RequiredBase: 250, BaseUnit: "g"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Availability checks never mutate stock.
	if got := store.bulkQty(storeID, productID); got != 1000 {
		t.Errorf("quantity after availability check: got %d, want 1000", got)
	}
}
