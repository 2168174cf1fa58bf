package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/database"
)

// Errors returned by inventory operations.
var (
	ErrZeroQuantity    = errors.New("invalid_quantity")
	ErrUnknownMovement = errors.New("invalid_movement_type")
)

// Store defines the DB methods needed for inventory mutations.
// Satisfied by *database.Queries (and its WithTx variant). All write
// operations assume the caller runs them inside a transaction.
type Store interface {
	UpsertStoreInventoryRow(ctx context.Context, arg database.UpsertStoreInventoryRowParams) error
	LockStoreInventory(ctx context.Context, arg database.LockStoreInventoryParams) (database.StoreInventory, error)
	UpdateStoreInventoryQty(ctx context.Context, arg database.UpdateStoreInventoryQtyParams) (database.StoreInventory, error)
	InsertLedgerMovement(ctx context.Context, arg database.InsertLedgerMovementParams) (database.InventoryLedger, error)
	SumLedgerQuantity(ctx context.Context, arg database.SumLedgerQuantityParams) (int64, error)
	UpsertBulkInventoryRow(ctx context.Context, arg database.UpsertBulkInventoryRowParams) error
	LockBulkInventory(ctx context.Context, arg database.LockBulkInventoryParams) (database.BulkInventory, error)
	UpdateBulkInventoryQty(ctx context.Context, arg database.UpdateBulkInventoryQtyParams) (database.BulkInventory, error)
}

// InsufficientStockItem describes one SKU that cannot cover a requested
// quantity.
type InsufficientStockItem struct {
	SkuID     uuid.UUID `json:"skuId"`
	Available int64     `json:"available"`
	Required  int64     `json:"required"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
}

// InsufficientStockError carries the full shortfall list so the client
// can refresh its cart in one round trip.
type InsufficientStockError struct {
	Items []InsufficientStockItem
}

func (e *InsufficientStockError) Error() string { return "insufficient_stock" }

func shortfallItem(skuID uuid.UUID, available, required int64, name string) InsufficientStockItem {
	return InsufficientStockItem{
		SkuID:     skuID,
		Available: available,
		Required:  required,
		Name:      name,
		Message:   fmt.Sprintf("only %d available, %d required", available, required),
	}
}

// Movement is a single signed change to a store's stock of one global
// product. Name is only used to label shortfall details.
type Movement struct {
	StoreID         uuid.UUID
	GlobalProductID uuid.UUID
	Type            database.MovementType
	Quantity        int64
	Name            string
	UnitCostMinor   pgtype.Int8
	UnitSellMinor   pgtype.Int8
	Reason          string
	ReferenceType   string
	ReferenceID     uuid.UUID
}

// ApplyMovement normalizes the movement's signed delta, locks the
// inventory row (creating it at zero if missing), rejects any change that
// would push availableQty below zero, and appends the ledger row. The
// ledger row and the quantity update commit or roll back together with
// the caller's transaction, which keeps SUM(ledger) equal to
// availableQty.
func ApplyMovement(ctx context.Context, store Store, m Movement) (database.InventoryLedger, error) {
	delta, err := signedDelta(m.Type, m.Quantity)
	if err != nil {
		return database.InventoryLedger{}, err
	}

	if err := store.UpsertStoreInventoryRow(ctx, database.UpsertStoreInventoryRowParams{
		StoreID:         m.StoreID,
		GlobalProductID: m.GlobalProductID,
	}); err != nil {
		return database.InventoryLedger{}, fmt.Errorf("ensure inventory row: %w", err)
	}

	row, err := store.LockStoreInventory(ctx, database.LockStoreInventoryParams{
		StoreID:         m.StoreID,
		GlobalProductID: m.GlobalProductID,
	})
	if err != nil {
		return database.InventoryLedger{}, fmt.Errorf("lock inventory: %w", err)
	}

	next := row.AvailableQty + delta
	if next < 0 {
		return database.InventoryLedger{}, &InsufficientStockError{Items: []InsufficientStockItem{
			shortfallItem(m.GlobalProductID, row.AvailableQty, -delta, m.Name),
		}}
	}

	if _, err := store.UpdateStoreInventoryQty(ctx, database.UpdateStoreInventoryQtyParams{
		StoreID:         m.StoreID,
		GlobalProductID: m.GlobalProductID,
		AvailableQty:    next,
	}); err != nil {
		return database.InventoryLedger{}, fmt.Errorf("update inventory: %w", err)
	}

	ledger, err := store.InsertLedgerMovement(ctx, database.InsertLedgerMovementParams{
		StoreID:         m.StoreID,
		GlobalProductID: m.GlobalProductID,
		MovementType:    m.Type,
		Quantity:        delta,
		UnitCostMinor:   m.UnitCostMinor,
		UnitSellMinor:   m.UnitSellMinor,
		Reason:          optionalText(m.Reason),
		ReferenceType:   optionalText(m.ReferenceType),
		ReferenceID:     optionalUUID(m.ReferenceID),
	})
	if err != nil {
		return database.InventoryLedger{}, fmt.Errorf("insert ledger movement: %w", err)
	}
	return ledger, nil
}

// Requirement is one product's share of an availability check.
type Requirement struct {
	GlobalProductID uuid.UUID
	Required        int64
	Name            string
}

// EnsureAvailability locks the inventory rows for all requirements in
// ascending product order and returns an InsufficientStockError listing
// every shortfall. Requirements for the same product are summed first.
// The row locks are held until the caller's transaction ends, so a
// following ApplyMovement cannot lose the stock it just verified.
func EnsureAvailability(ctx context.Context, store Store, storeID uuid.UUID, items []Requirement) error {
	merged := mergeRequirements(items)

	var short []InsufficientStockItem
	for _, req := range merged {
		if err := store.UpsertStoreInventoryRow(ctx, database.UpsertStoreInventoryRowParams{
			StoreID:         storeID,
			GlobalProductID: req.GlobalProductID,
		}); err != nil {
			return fmt.Errorf("ensure inventory row: %w", err)
		}
		row, err := store.LockStoreInventory(ctx, database.LockStoreInventoryParams{
			StoreID:         storeID,
			GlobalProductID: req.GlobalProductID,
		})
		if err != nil {
			return fmt.Errorf("lock inventory: %w", err)
		}
		if row.AvailableQty < req.Required {
			short = append(short, shortfallItem(req.GlobalProductID, row.AvailableQty, req.Required, req.Name))
		}
	}

	if len(short) > 0 {
		return &InsufficientStockError{Items: short}
	}
	return nil
}

// LedgerStock sums the ledger for one product, the reconciliation
// counterpart of availableQty.
func LedgerStock(ctx context.Context, store Store, storeID, globalProductID uuid.UUID) (int64, error) {
	return store.SumLedgerQuantity(ctx, database.SumLedgerQuantityParams{
		StoreID:         storeID,
		GlobalProductID: globalProductID,
	})
}

// mergeRequirements sums duplicates and orders products ascending so
// concurrent checks always lock rows in the same order.
func mergeRequirements(items []Requirement) []Requirement {
	byProduct := make(map[uuid.UUID]*Requirement, len(items))
	for _, it := range items {
		if existing, ok := byProduct[it.GlobalProductID]; ok {
			existing.Required += it.Required
			continue
		}
		req := it
		byProduct[it.GlobalProductID] = &req
	}

	merged := make([]Requirement, 0, len(byProduct))
	for _, req := range byProduct {
		merged = append(merged, *req)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].GlobalProductID.String() < merged[j].GlobalProductID.String()
	})
	return merged
}

func signedDelta(t database.MovementType, quantity int64) (int64, error) {
	if quantity == 0 {
		return 0, ErrZeroQuantity
	}
	switch t {
	case database.MovementTypeRECEIVE:
		return abs(quantity), nil
	case database.MovementTypeSELL:
		return -abs(quantity), nil
	case database.MovementTypeADJUSTMENT:
		return quantity, nil
	}
	return 0, ErrUnknownMovement
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func optionalUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}
