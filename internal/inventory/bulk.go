package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/supermandi/api/internal/database"
)

// ErrBulkUnitMismatch is returned when a movement names a unit whose base
// differs from the one fixed by the first movement for that product.
var ErrBulkUnitMismatch = errors.New("bulk_unit_mismatch")

// BulkThresholdBase is the smallest base quantity (grams or millilitres)
// that makes a purchased item eligible for loose-quantity retailing.
const BulkThresholdBase = 1000

var unitMultipliers = map[string]int64{
	"g":  1,
	"kg": 1000,
	"ml": 1,
	"l":  1000,
}

var baseUnits = map[string]string{
	"g":  "g",
	"kg": "g",
	"ml": "ml",
	"l":  "ml",
}

// UnitScale reports the base unit and multiplier for a weighable or
// pourable purchase unit. Unknown units report ok=false.
func UnitScale(unit string) (baseUnit string, multiplier int64, ok bool) {
	mult, known := unitMultipliers[unit]
	if !known {
		return "", 0, false
	}
	return baseUnits[unit], mult, true
}

// ToBaseQuantity converts a (quantity, unit) pair into base units.
// Unknown units report ok=false; callers treat those items as unit-sized.
func ToBaseQuantity(quantity int64, unit string) (baseUnit string, quantityBase int64, ok bool) {
	base, mult, known := UnitScale(unit)
	if !known {
		return "", 0, false
	}
	return base, quantity * mult, true
}

// BulkChange is a signed adjustment to one product's loose stock.
type BulkChange struct {
	ProductID uuid.UUID
	DeltaBase int64
	BaseUnit  string
	Name      string
}

// ApplyBulkChange locks the bulk row (creating it at zero with the
// change's base unit if missing), verifies the unit matches the one the
// row was created with, and applies the signed delta. Negative balances
// are rejected as insufficient stock.
func ApplyBulkChange(ctx context.Context, store Store, storeID uuid.UUID, ch BulkChange) (database.BulkInventory, error) {
	if ch.DeltaBase == 0 {
		return database.BulkInventory{}, ErrZeroQuantity
	}

	if err := store.UpsertBulkInventoryRow(ctx, database.UpsertBulkInventoryRowParams{
		StoreID:   storeID,
		ProductID: ch.ProductID,
		BaseUnit:  ch.BaseUnit,
	}); err != nil {
		return database.BulkInventory{}, fmt.Errorf("ensure bulk row: %w", err)
	}

	row, err := store.LockBulkInventory(ctx, database.LockBulkInventoryParams{
		StoreID:   storeID,
		ProductID: ch.ProductID,
	})
	if err != nil {
		return database.BulkInventory{}, fmt.Errorf("lock bulk inventory: %w", err)
	}
	if row.BaseUnit != ch.BaseUnit {
		return database.BulkInventory{}, ErrBulkUnitMismatch
	}

	next := row.QuantityBase + ch.DeltaBase
	if next < 0 {
		return database.BulkInventory{}, &InsufficientStockError{Items: []InsufficientStockItem{
			shortfallItem(ch.ProductID, row.QuantityBase, -ch.DeltaBase, ch.Name),
		}}
	}

	updated, err := store.UpdateBulkInventoryQty(ctx, database.UpdateBulkInventoryQtyParams{
		StoreID:      storeID,
		ProductID:    ch.ProductID,
		QuantityBase: next,
	})
	if err != nil {
		return database.BulkInventory{}, fmt.Errorf("update bulk inventory: %w", err)
	}
	return updated, nil
}

// BulkRequirement is one product's share of a loose-stock availability
// check, in base units.
type BulkRequirement struct {
	ProductID    uuid.UUID
	RequiredBase int64
	BaseUnit     string
	Name         string
}

// EnsureBulkAvailability locks the bulk rows for all requirements in
// ascending product order and returns an InsufficientStockError listing
// every shortfall. Lines that share a product are summed before
// checking, so a cart of 2x250g and 3x100g needs 800 base units at once.
func EnsureBulkAvailability(ctx context.Context, store Store, storeID uuid.UUID, reqs []BulkRequirement) error {
	merged, err := mergeBulkRequirements(reqs)
	if err != nil {
		return err
	}

	var short []InsufficientStockItem
	for _, req := range merged {
		if err := store.UpsertBulkInventoryRow(ctx, database.UpsertBulkInventoryRowParams{
			StoreID:   storeID,
			ProductID: req.ProductID,
			BaseUnit:  req.BaseUnit,
		}); err != nil {
			return fmt.Errorf("ensure bulk row: %w", err)
		}
		row, err := store.LockBulkInventory(ctx, database.LockBulkInventoryParams{
			StoreID:   storeID,
			ProductID: req.ProductID,
		})
		if err != nil {
			return fmt.Errorf("lock bulk inventory: %w", err)
		}
		if row.BaseUnit != req.BaseUnit {
			return ErrBulkUnitMismatch
		}
		if row.QuantityBase < req.RequiredBase {
			short = append(short, shortfallItem(req.ProductID, row.QuantityBase, req.RequiredBase, req.Name))
		}
	}

	if len(short) > 0 {
		return &InsufficientStockError{Items: short}
	}
	return nil
}

// ApplyBulkDeductions drains the merged requirements from bulk stock.
// Callers run EnsureBulkAvailability first in the same transaction; the
// negative-balance check here re-fires only if they did not.
func ApplyBulkDeductions(ctx context.Context, store Store, storeID uuid.UUID, reqs []BulkRequirement) error {
	merged, err := mergeBulkRequirements(reqs)
	if err != nil {
		return err
	}

	for _, req := range merged {
		if req.RequiredBase == 0 {
			continue
		}
		if _, err := ApplyBulkChange(ctx, store, storeID, BulkChange{
			ProductID: req.ProductID,
			DeltaBase: -req.RequiredBase,
			BaseUnit:  req.BaseUnit,
			Name:      req.Name,
		}); err != nil {
			return err
		}
	}
	return nil
}

func mergeBulkRequirements(reqs []BulkRequirement) ([]BulkRequirement, error) {
	byProduct := make(map[uuid.UUID]*BulkRequirement, len(reqs))
	for _, r := range reqs {
		if existing, ok := byProduct[r.ProductID]; ok {
			if existing.BaseUnit != r.BaseUnit {
				return nil, ErrBulkUnitMismatch
			}
			existing.RequiredBase += r.RequiredBase
			continue
		}
		req := r
		byProduct[r.ProductID] = &req
	}

	merged := make([]BulkRequirement, 0, len(byProduct))
	for _, req := range byProduct {
		merged = append(merged, *req)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID.String() < merged[j].ProductID.String()
	})
	return merged, nil
}
