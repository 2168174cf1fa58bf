package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/admin/handler"
	"github.com/supermandi/api/internal/database"
)

// --- Mock InventoryAdminStore ---

type mockInventoryAdminStore struct {
	unitRows      []database.ListStoreInventoryRow
	bulkRows      []database.ListBulkInventoryByStoreRow
	ledgerRows    []database.ListLedgerByStoreRow
	productLedger []database.InventoryLedger
	reconcileRows []database.ReconcileInventoryRow

	ledgerParams        *database.ListLedgerByStoreParams
	productLedgerParams *database.ListLedgerByStoreProductParams
}

func (m *mockInventoryAdminStore) ListStoreInventory(_ context.Context, _ uuid.UUID) ([]database.ListStoreInventoryRow, error) {
	return m.unitRows, nil
}

func (m *mockInventoryAdminStore) ListBulkInventoryByStore(_ context.Context, _ uuid.UUID) ([]database.ListBulkInventoryByStoreRow, error) {
	return m.bulkRows, nil
}

func (m *mockInventoryAdminStore) ListLedgerByStore(_ context.Context, arg database.ListLedgerByStoreParams) ([]database.ListLedgerByStoreRow, error) {
	m.ledgerParams = &arg
	return m.ledgerRows, nil
}

func (m *mockInventoryAdminStore) ListLedgerByStoreProduct(_ context.Context, arg database.ListLedgerByStoreProductParams) ([]database.InventoryLedger, error) {
	m.productLedgerParams = &arg
	return m.productLedger, nil
}

func (m *mockInventoryAdminStore) ReconcileInventory(_ context.Context, _ uuid.UUID) ([]database.ReconcileInventoryRow, error) {
	return m.reconcileRows, nil
}

func setupInventoryRouter(store handler.InventoryAdminStore) *chi.Mux {
	h := handler.NewInventoryHandler(store)
	r := chi.NewRouter()
	r.Route("/admin", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestGetStoreInventory(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	bulkProductID := uuid.New()
	store := &mockInventoryAdminStore{
		unitRows: []database.ListStoreInventoryRow{
			{
				StoreID:          storeID,
				GlobalProductID:  productID,
				AvailableQty:     42,
				UpdatedAt:        time.Now(),
				GlobalName:       "Tata Salt 1kg",
				StoreDisplayName: pgtype.Text{String: "Salt 1kg", Valid: true},
				SellPriceMinor:   pgtype.Int8{Int64: 2800, Valid: true},
			},
		},
		bulkRows: []database.ListBulkInventoryByStoreRow{
			{
				StoreID:      storeID,
				ProductID:    bulkProductID,
				BaseUnit:     "g",
				QuantityBase: 12500,
				UpdatedAt:    time.Now(),
				ProductName:  "Basmati Rice Loose",
			},
		},
	}
	router := setupInventoryRouter(store)

	rr := doRequest(t, router, "GET", "/admin/stores/"+storeID.String()+"/inventory", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)

	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items: got %d, want 1", len(items))
	}
	item := items[0].(map[string]interface{})
	if item["globalName"] != "Tata Salt 1kg" {
		t.Errorf("globalName: got %v", item["globalName"])
	}
	if item["storeDisplayName"] != "Salt 1kg" {
		t.Errorf("storeDisplayName: got %v", item["storeDisplayName"])
	}
	if item["availableQty"] != float64(42) {
		t.Errorf("availableQty: got %v, want 42", item["availableQty"])
	}
	if item["sellPriceMinor"] != float64(2800) {
		t.Errorf("sellPriceMinor: got %v, want 2800", item["sellPriceMinor"])
	}

	bulk := resp["bulk"].([]interface{})
	if len(bulk) != 1 {
		t.Fatalf("bulk: got %d, want 1", len(bulk))
	}
	row := bulk[0].(map[string]interface{})
	if row["baseUnit"] != "g" {
		t.Errorf("baseUnit: got %v", row["baseUnit"])
	}
	if row["quantityBase"] != float64(12500) {
		t.Errorf("quantityBase: got %v, want 12500", row["quantityBase"])
	}
}

func TestGetLedger_AllProducts(t *testing.T) {
	storeID := uuid.New()
	refID := uuid.New()
	store := &mockInventoryAdminStore{
		ledgerRows: []database.ListLedgerByStoreRow{
			{
				ID:              uuid.New(),
				StoreID:         storeID,
				GlobalProductID: uuid.New(),
				MovementType:    database.MovementTypeSELL,
				Quantity:        -2,
				UnitSellMinor:   pgtype.Int8{Int64: 2800, Valid: true},
				ReferenceType:   pgtype.Text{String: "SALE", Valid: true},
				ReferenceID:     pgtype.UUID{Bytes: refID, Valid: true},
				CreatedAt:       time.Now(),
				GlobalName:      "Tata Salt 1kg",
			},
		},
	}
	router := setupInventoryRouter(store)

	rr := doRequest(t, router, "GET", "/admin/stores/"+storeID.String()+"/ledger", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if store.ledgerParams == nil {
		t.Fatal("ListLedgerByStore not called")
	}
	if store.ledgerParams.Limit != 50 {
		t.Errorf("default limit: got %d, want 50", store.ledgerParams.Limit)
	}

	resp := decodeBody(t, rr)
	entries := resp["entries"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(entries))
	}
	entry := entries[0].(map[string]interface{})
	if entry["movementType"] != "SELL" {
		t.Errorf("movementType: got %v", entry["movementType"])
	}
	if entry["quantity"] != float64(-2) {
		t.Errorf("quantity: got %v, want -2", entry["quantity"])
	}
	if entry["globalName"] != "Tata Salt 1kg" {
		t.Errorf("globalName: got %v", entry["globalName"])
	}
	if entry["referenceId"] != refID.String() {
		t.Errorf("referenceId: got %v", entry["referenceId"])
	}
}

func TestGetLedger_ByProduct(t *testing.T) {
	storeID := uuid.New()
	productID := uuid.New()
	store := &mockInventoryAdminStore{
		productLedger: []database.InventoryLedger{
			{
				ID:              uuid.New(),
				StoreID:         storeID,
				GlobalProductID: productID,
				MovementType:    database.MovementTypeRECEIVE,
				Quantity:        24,
				UnitCostMinor:   pgtype.Int8{Int64: 2100, Valid: true},
				CreatedAt:       time.Now(),
			},
		},
	}
	router := setupInventoryRouter(store)

	rr := doRequest(t, router, "GET", "/admin/stores/"+storeID.String()+"/ledger?productId="+productID.String()+"&limit=10", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if store.productLedgerParams == nil {
		t.Fatal("ListLedgerByStoreProduct not called")
	}
	if store.productLedgerParams.GlobalProductID != productID {
		t.Errorf("productId: got %v", store.productLedgerParams.GlobalProductID)
	}
	if store.productLedgerParams.Limit != 10 {
		t.Errorf("limit: got %d, want 10", store.productLedgerParams.Limit)
	}

	resp := decodeBody(t, rr)
	entries := resp["entries"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(entries))
	}
	entry := entries[0].(map[string]interface{})
	if entry["movementType"] != "RECEIVE" {
		t.Errorf("movementType: got %v", entry["movementType"])
	}
	if entry["unitCostMinor"] != float64(2100) {
		t.Errorf("unitCostMinor: got %v, want 2100", entry["unitCostMinor"])
	}
}

func TestGetLedger_InvalidLimit(t *testing.T) {
	store := &mockInventoryAdminStore{}
	router := setupInventoryRouter(store)

	rr := doRequest(t, router, "GET", "/admin/stores/"+uuid.New().String()+"/ledger?limit=0", nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestReconciliation(t *testing.T) {
	storeID := uuid.New()
	cleanID := uuid.New()
	driftedID := uuid.New()
	store := &mockInventoryAdminStore{
		reconcileRows: []database.ReconcileInventoryRow{
			{GlobalProductID: cleanID, GlobalName: "Tata Salt 1kg", AvailableQty: 42, LedgerQty: 42},
			{GlobalProductID: driftedID, GlobalName: "Maggi Noodles", AvailableQty: 10, LedgerQty: 7},
		},
	}
	router := setupInventoryRouter(store)

	rr := doRequest(t, router, "GET", "/admin/stores/"+storeID.String()+"/reconciliation", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if resp["driftedCount"] != float64(1) {
		t.Errorf("driftedCount: got %v, want 1", resp["driftedCount"])
	}
	products := resp["products"].([]interface{})
	if len(products) != 2 {
		t.Fatalf("products: got %d, want 2", len(products))
	}
	clean := products[0].(map[string]interface{})
	if clean["drift"] != float64(0) {
		t.Errorf("clean drift: got %v, want 0", clean["drift"])
	}
	drifted := products[1].(map[string]interface{})
	if drifted["drift"] != float64(-3) {
		t.Errorf("drifted drift: got %v, want -3", drifted["drift"])
	}
}
