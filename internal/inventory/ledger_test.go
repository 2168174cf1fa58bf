package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/supermandi/api/internal/database"
)

// --- Mock implementations ---

type invKey struct {
	store   uuid.UUID
	product uuid.UUID
}

// memStore is an in-memory Store that mirrors the row lifecycle of the
// real queries: upserts create zero rows, locks read, updates write.
// Lock calls are recorded so tests can assert ordering.
type memStore struct {
	unit    map[invKey]*database.StoreInventory
	bulk    map[invKey]*database.BulkInventory
	ledger  []database.InventoryLedger
	locked  []uuid.UUID
	lockErr error
}

func newMemStore() *memStore {
	return &memStore{
		unit: make(map[invKey]*database.StoreInventory),
		bulk: make(map[invKey]*database.BulkInventory),
	}
}

func (m *memStore) UpsertStoreInventoryRow(ctx context.Context, arg database.UpsertStoreInventoryRowParams) error {
	key := invKey{arg.StoreID, arg.GlobalProductID}
	if _, ok := m.unit[key]; !ok {
		m.unit[key] = &database.StoreInventory{StoreID: arg.StoreID, GlobalProductID: arg.GlobalProductID}
	}
	return nil
}

func (m *memStore) LockStoreInventory(ctx context.Context, arg database.LockStoreInventoryParams) (database.StoreInventory, error) {
	if m.lockErr != nil {
		return database.StoreInventory{}, m.lockErr
	}
	row, ok := m.unit[invKey{arg.StoreID, arg.GlobalProductID}]
	if !ok {
		return database.StoreInventory{}, pgx.ErrNoRows
	}
	m.locked = append(m.locked, arg.GlobalProductID)
	return *row, nil
}

func (m *memStore) UpdateStoreInventoryQty(ctx context.Context, arg database.UpdateStoreInventoryQtyParams) (database.StoreInventory, error) {
	row, ok := m.unit[invKey{arg.StoreID, arg.GlobalProductID}]
	if !ok {
		return database.StoreInventory{}, pgx.ErrNoRows
	}
	row.AvailableQty = arg.AvailableQty
	return *row, nil
}

func (m *memStore) InsertLedgerMovement(ctx context.Context, arg database.InsertLedgerMovementParams) (database.InventoryLedger, error) {
	entry := database.InventoryLedger{
		ID:              uuid.New(),
		StoreID:         arg.StoreID,
		GlobalProductID: arg.GlobalProductID,
		MovementType:    arg.MovementType,
		Quantity:        arg.Quantity,
		UnitCostMinor:   arg.UnitCostMinor,
		UnitSellMinor:   arg.UnitSellMinor,
		Reason:          arg.Reason,
		ReferenceType:   arg.ReferenceType,
		ReferenceID:     arg.ReferenceID,
	}
	m.ledger = append(m.ledger, entry)
	return entry, nil
}

func (m *memStore) SumLedgerQuantity(ctx context.Context, arg database.SumLedgerQuantityParams) (int64, error) {
	var sum int64
	for _, entry := range m.ledger {
		if entry.StoreID == arg.StoreID && entry.GlobalProductID == arg.GlobalProductID {
			sum += entry.Quantity
		}
	}
	return sum, nil
}

func (m *memStore) UpsertBulkInventoryRow(ctx context.Context, arg database.UpsertBulkInventoryRowParams) error {
	key := invKey{arg.StoreID, arg.ProductID}
	if _, ok := m.bulk[key]; !ok {
		m.bulk[key] = &database.BulkInventory{StoreID: arg.StoreID, ProductID: arg.ProductID, BaseUnit: arg.BaseUnit}
	}
	return nil
}

func (m *memStore) LockBulkInventory(ctx context.Context, arg database.LockBulkInventoryParams) (database.BulkInventory, error) {
	if m.lockErr != nil {
		return database.BulkInventory{}, m.lockErr
	}
	row, ok := m.bulk[invKey{arg.StoreID, arg.ProductID}]
	if !ok {
		return database.BulkInventory{}, pgx.ErrNoRows
	}
	m.locked = append(m.locked, arg.ProductID)
	return *row, nil
}

func (m *memStore) UpdateBulkInventoryQty(ctx context.Context, arg database.UpdateBulkInventoryQtyParams) (database.BulkInventory, error) {
	row, ok := m.bulk[invKey{arg.StoreID, arg.ProductID}]
	if !ok {
		return database.BulkInventory{}, pgx.ErrNoRows
	}
	row.QuantityBase = arg.QuantityBase
	return *row, nil
}

// --- Test helpers ---

func (m *memStore) seedUnit(storeID, productID uuid.UUID, qty int64) {
	m.unit[invKey{storeID, productID}] = &database.StoreInventory{
		StoreID:         storeID,
		GlobalProductID: productID,
		AvailableQty:    qty,
	}
}

func (m *memStore) seedBulk(storeID, productID uuid.UUID, baseUnit string, qtyBase int64) {
	m.bulk[invKey{storeID, productID}] = &database.BulkInventory{
		StoreID:      storeID,
		ProductID:    productID,
		BaseUnit:     baseUnit,
		QuantityBase: qtyBase,
	}
}

func (m *memStore) unitQty(storeID, productID uuid.UUID) int64 {
	row, ok := m.unit[invKey{storeID, productID}]
	if !ok {
		return 0
	}
	return row.AvailableQty
}

func (m *memStore) bulkQty(storeID, productID uuid.UUID) int64 {
	row, ok := m.bulk[invKey{storeID, productID}]
	if !ok {
		return 0
	}
	return row.QuantityBase
}

// =====================
// Movement tests
// =====================

func TestApplyMovement_ReceiveCreatesRow(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()

	entry, err := ApplyMovement(context.Background(), store, Movement{
		StoreID:         storeID,
		GlobalProductID: productID,
		Type:            database.MovementTypeRECEIVE,
		Quantity:        5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.unitQty(storeID, productID); got != 5 {
		t.Errorf("available qty: got %d, want 5", got)
	}
	if entry.Quantity != 5 {
		t.Errorf("ledger quantity: got %d, want 5", entry.Quantity)
	}
	if entry.MovementType != database.MovementTypeRECEIVE {
		t.Errorf("movement type: got %v, want RECEIVE", entry.MovementType)
	}
}

func TestApplyMovement_SellDeducts(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()
	store.seedUnit(storeID, productID, 5)

	entry, err := ApplyMovement(context.Background(), store, Movement{
		StoreID:         storeID,
		GlobalProductID: productID,
		Type:            database.MovementTypeSELL,
		Quantity:        2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.unitQty(storeID, productID); got != 3 {
		t.Errorf("available qty after sale: got %d, want 3", got)
	}
	// The ledger keeps the signed delta, not the request quantity.
	if entry.Quantity != -2 {
		t.Errorf("ledger quantity: got %d, want -2", entry.Quantity)
	}
}

func TestApplyMovement_QuantitySignNormalized(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()
	store.seedUnit(storeID, productID, 5)

	// A client sending -2 for a sale means the same thing as 2.
	_, err := ApplyMovement(context.Background(), store, Movement{
		StoreID:         storeID,
		GlobalProductID: productID,
		Type:            database.MovementTypeSELL,
		Quantity:        -2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.unitQty(storeID, productID); got != 3 {
		t.Errorf("available qty: got %d, want 3", got)
	}
}

func TestApplyMovement_AdjustmentKeepsSign(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()
	store.seedUnit(storeID, productID, 10)

	if _, err := ApplyMovement(context.Background(), store, Movement{
		StoreID:         storeID,
		GlobalProductID: productID,
		Type:            database.MovementTypeADJUSTMENT,
		Quantity:        -3,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.unitQty(storeID, productID); got != 7 {
		t.Errorf("qty after negative adjustment: got %d, want 7", got)
	}

	if _, err := ApplyMovement(context.Background(), store, Movement{
		StoreID:         storeID,
		GlobalProductID: productID,
		Type:            database.MovementTypeADJUSTMENT,
		Quantity:        4,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.unitQty(storeID, productID); got != 11 {
		t.Errorf("qty after positive adjustment: got %d, want 11", got)
	}
}

func TestApplyMovement_InsufficientStock(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()
	store.seedUnit(storeID, productID, 1)

	_, err := ApplyMovement(context.Background(), store, Movement{
		StoreID:         storeID,
		GlobalProductID: productID,
		Type:            database.MovementTypeSELL,
		Quantity:        2,
		Name:            "Aashirvaad Atta 5kg",
	})

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if len(stockErr.Items) != 1 {
		t.Fatalf("expected 1 shortfall item, got %d", len(stockErr.Items))
	}
	item := stockErr.Items[0]
	if item.SkuID != productID {
		t.Errorf("shortfall sku: got %v, want %v", item.SkuID, productID)
	}
	if item.Available != 1 || item.Required != 2 {
		t.Errorf("shortfall: got available=%d required=%d, want 1/2", item.Available, item.Required)
	}
	if item.Message != "only 1 available, 2 required" {
		t.Errorf("shortfall message: got %q", item.Message)
	}

	// Stock must be untouched and no ledger entry written.
	if got := store.unitQty(storeID, productID); got != 1 {
		t.Errorf("qty after rejected sale: got %d, want 1", got)
	}
	if len(store.ledger) != 0 {
		t.Errorf("expected empty ledger, got %d entries", len(store.ledger))
	}
}

func TestApplyMovement_ZeroQuantity(t *testing.T) {
	store := newMemStore()
	_, err := ApplyMovement(context.Background(), store, Movement{
		StoreID:         uuid.New(),
		GlobalProductID: uuid.New(),
		Type:            database.MovementTypeSELL,
		Quantity:        0,
	})
	if !errors.Is(err, ErrZeroQuantity) {
		t.Fatalf("expected ErrZeroQuantity, got: %v", err)
	}
}

func TestApplyMovement_UnknownType(t *testing.T) {
	store := newMemStore()
	_, err := ApplyMovement(context.Background(), store, Movement{
		StoreID:         uuid.New(),
		GlobalProductID: uuid.New(),
		Type:            database.MovementType("TRANSFER"),
		Quantity:        1,
	})
	if !errors.Is(err, ErrUnknownMovement) {
		t.Fatalf("expected ErrUnknownMovement, got: %v", err)
	}
}

func TestApplyMovement_ReferencePropagated(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	refID := uuid.New()
	store := newMemStore()

	entry, err := ApplyMovement(context.Background(), store, Movement{
		StoreID:         storeID,
		GlobalProductID: productID,
		Type:            database.MovementTypeRECEIVE,
		Quantity:        10,
		Reason:          "restock",
		ReferenceType:   "PURCHASE",
		ReferenceID:     refID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !entry.Reason.Valid || entry.Reason.String != "restock" {
		t.Errorf("reason: got %v, want restock", entry.Reason)
	}
	if !entry.ReferenceType.Valid || entry.ReferenceType.String != "PURCHASE" {
		t.Errorf("reference type: got %v, want PURCHASE", entry.ReferenceType)
	}
	if !entry.ReferenceID.Valid || entry.ReferenceID.Bytes != refID {
		t.Errorf("reference id: got %v, want %v", entry.ReferenceID, refID)
	}
}

func TestApplyMovement_EmptyReferenceStaysNull(t *testing.T) {
	store := newMemStore()

	entry, err := ApplyMovement(context.Background(), store, Movement{
		StoreID:         uuid.New(),
		GlobalProductID: uuid.New(),
		Type:            database.MovementTypeRECEIVE,
		Quantity:        1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Reason.Valid || entry.ReferenceType.Valid || entry.ReferenceID.Valid {
		t.Errorf("empty reference fields should stay null: %+v", entry)
	}
}

// =====================
// Availability tests
// =====================

func TestEnsureAvailability_AllInStock(t *testing.T) {
	storeID := uuid.New()
	productA := uuid.New()
	productB := uuid.New()
	store := newMemStore()
	store.seedUnit(storeID, productA, 5)
	store.seedUnit(storeID, productB, 2)

	err := EnsureAvailability(context.Background(), store, storeID, []Requirement{
		{GlobalProductID: productA, Required: 3},
		{GlobalProductID: productB, Required: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureAvailability_MergesDuplicateLines(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()
	store.seedUnit(storeID, productID, 6)

	// 3 + 4 = 7 needed against 6 on hand, even though each line alone fits.
	err := EnsureAvailability(context.Background(), store, storeID, []Requirement{
		{GlobalProductID: productID, Required: 3, Name: "Toor Dal 1kg"},
		{GlobalProductID: productID, Required: 4, Name: "Toor Dal 1kg"},
	})

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if len(stockErr.Items) != 1 {
		t.Fatalf("expected 1 merged shortfall, got %d", len(stockErr.Items))
	}
	if stockErr.Items[0].Available != 6 || stockErr.Items[0].Required != 7 {
		t.Errorf("shortfall: got available=%d required=%d, want 6/7",
			stockErr.Items[0].Available, stockErr.Items[0].Required)
	}
}

func TestEnsureAvailability_CollectsAllShortfalls(t *testing.T) {
	storeID := uuid.New()
	productA := uuid.New()
	productB := uuid.New()
	productC := uuid.New()
	store := newMemStore()
	store.seedUnit(storeID, productA, 1)
	store.seedUnit(storeID, productB, 10)
	// productC has no row at all; it is created at zero.

	err := EnsureAvailability(context.Background(), store, storeID, []Requirement{
		{GlobalProductID: productA, Required: 2, Name: "Parle-G"},
		{GlobalProductID: productB, Required: 5, Name: "Maggi"},
		{GlobalProductID: productC, Required: 1, Name: "Tata Salt"},
	})

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if len(stockErr.Items) != 2 {
		t.Fatalf("expected 2 shortfalls, got %d: %+v", len(stockErr.Items), stockErr.Items)
	}
	for _, item := range stockErr.Items {
		switch item.SkuID {
		case productA:
			if item.Available != 1 || item.Required != 2 {
				t.Errorf("productA shortfall: got available=%d required=%d", item.Available, item.Required)
			}
		case productC:
			if item.Available != 0 || item.Required != 1 {
				t.Errorf("productC shortfall: got available=%d required=%d", item.Available, item.Required)
			}
		default:
			t.Errorf("unexpected shortfall for %v", item.SkuID)
		}
	}
}

func TestEnsureAvailability_LocksInStableOrder(t *testing.T) {
	storeID := uuid.New()
	store := newMemStore()

	products := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	reqs := make([]Requirement, 0, len(products))
	for _, id := range products {
		store.seedUnit(storeID, id, 10)
		reqs = append(reqs, Requirement{GlobalProductID: id, Required: 1})
	}
	// Present the requirements in reverse to prove the order comes from
	// the product ids, not the request.
	for i, j := 0, len(reqs)-1; i < j; i, j = i+1, j-1 {
		reqs[i], reqs[j] = reqs[j], reqs[i]
	}

	if err := EnsureAvailability(context.Background(), store, storeID, reqs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.locked) != 3 {
		t.Fatalf("expected 3 locks, got %d", len(store.locked))
	}
	for i := 1; i < len(store.locked); i++ {
		if store.locked[i-1].String() > store.locked[i].String() {
			t.Fatalf("locks not in ascending order: %v", store.locked)
		}
	}
}

func TestLedgerStock_SumsMovements(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := newMemStore()

	movements := []Movement{
		{StoreID: storeID, GlobalProductID: productID, Type: database.MovementTypeRECEIVE, Quantity: 10},
		{StoreID: storeID, GlobalProductID: productID, Type: database.MovementTypeSELL, Quantity: 3},
		{StoreID: storeID, GlobalProductID: productID, Type: database.MovementTypeADJUSTMENT, Quantity: -1},
	}
	for _, m := range movements {
		if _, err := ApplyMovement(context.Background(), store, m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := LedgerStock(context.Background(), store, storeID, productID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 6 {
		t.Errorf("ledger stock: got %d, want 6", got)
	}
	if cached := store.unitQty(storeID, productID); cached != 6 {
		t.Errorf("cached qty diverged from ledger: got %d, want 6", cached)
	}
}
