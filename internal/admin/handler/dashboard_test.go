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

// --- Mock DashboardStore ---

type mockDashboardStore struct {
	summary     database.GetStoreSalesSummaryRow
	breakdown   []database.GetPaymentModeBreakdownRow
	topItems    []database.GetTopSellingItemsRow
	collections []database.Collection
	purchases   []database.Purchase
	pending     int64

	summaryParams *database.GetStoreSalesSummaryParams
	topParams     *database.GetTopSellingItemsParams
}

func (m *mockDashboardStore) GetStoreSalesSummary(_ context.Context, arg database.GetStoreSalesSummaryParams) (database.GetStoreSalesSummaryRow, error) {
	m.summaryParams = &arg
	return m.summary, nil
}

func (m *mockDashboardStore) GetPaymentModeBreakdown(_ context.Context, _ database.GetPaymentModeBreakdownParams) ([]database.GetPaymentModeBreakdownRow, error) {
	return m.breakdown, nil
}

func (m *mockDashboardStore) GetTopSellingItems(_ context.Context, arg database.GetTopSellingItemsParams) ([]database.GetTopSellingItemsRow, error) {
	m.topParams = &arg
	return m.topItems, nil
}

func (m *mockDashboardStore) ListCollectionsByStore(_ context.Context, _ database.ListCollectionsByStoreParams) ([]database.Collection, error) {
	return m.collections, nil
}

func (m *mockDashboardStore) ListPurchasesByStore(_ context.Context, _ database.ListPurchasesByStoreParams) ([]database.Purchase, error) {
	return m.purchases, nil
}

func (m *mockDashboardStore) CountPendingSales(_ context.Context, _ uuid.UUID) (int64, error) {
	return m.pending, nil
}

func setupDashboardRouter(store handler.DashboardStore) *chi.Mux {
	h := handler.NewDashboardHandler(store)
	r := chi.NewRouter()
	r.Route("/admin", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestGetDashboard(t *testing.T) {
	storeID := uuid.New()
	store := &mockDashboardStore{
		summary: database.GetStoreSalesSummaryRow{SaleCount: 37, TotalMinor: 845000},
		breakdown: []database.GetPaymentModeBreakdownRow{
			{Mode: database.PaymentModeCASH, PaymentCount: 25, AmountMinor: 512000},
			{Mode: database.PaymentModeUPI, PaymentCount: 12, AmountMinor: 333000},
		},
		topItems: []database.GetTopSellingItemsRow{
			{ItemName: "Tata Salt 1kg", TotalQuantity: 40, TotalMinor: 112000},
		},
		collections: []database.Collection{
			{
				ID:          uuid.New(),
				StoreID:     storeID,
				AmountMinor: 50000,
				Mode:        "CASH",
				Status:      "RECORDED",
				Reference:   pgtype.Text{String: "evening drawer", Valid: true},
				CreatedAt:   time.Now(),
			},
		},
		purchases: []database.Purchase{
			{
				ID:           uuid.New(),
				StoreID:      storeID,
				SupplierName: pgtype.Text{String: "Metro Cash & Carry", Valid: true},
				TotalMinor:   230000,
				Currency:     "INR",
				CreatedAt:    time.Now(),
			},
		},
		pending: 3,
	}
	router := setupDashboardRouter(store)

	rr := doRequest(t, router, "GET", "/admin/stores/"+storeID.String()+"/dashboard?date=2026-08-20", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)

	if resp["date"] != "2026-08-20" {
		t.Errorf("date: got %v, want 2026-08-20", resp["date"])
	}
	sales := resp["sales"].(map[string]interface{})
	if sales["saleCount"] != float64(37) {
		t.Errorf("saleCount: got %v, want 37", sales["saleCount"])
	}
	if sales["totalMinor"] != float64(845000) {
		t.Errorf("totalMinor: got %v, want 845000", sales["totalMinor"])
	}

	modes := resp["paymentModes"].([]interface{})
	if len(modes) != 2 {
		t.Fatalf("paymentModes: got %d, want 2", len(modes))
	}
	cash := modes[0].(map[string]interface{})
	if cash["mode"] != "CASH" || cash["amountMinor"] != float64(512000) {
		t.Errorf("cash breakdown: got %v", cash)
	}

	top := resp["topItems"].([]interface{})
	if len(top) != 1 {
		t.Fatalf("topItems: got %d, want 1", len(top))
	}
	if top[0].(map[string]interface{})["name"] != "Tata Salt 1kg" {
		t.Errorf("top item: got %v", top[0])
	}

	collections := resp["collections"].([]interface{})
	if len(collections) != 1 {
		t.Fatalf("collections: got %d, want 1", len(collections))
	}
	if collections[0].(map[string]interface{})["reference"] != "evening drawer" {
		t.Errorf("collection reference: got %v", collections[0])
	}

	purchases := resp["purchases"].([]interface{})
	if len(purchases) != 1 {
		t.Fatalf("purchases: got %d, want 1", len(purchases))
	}
	if purchases[0].(map[string]interface{})["supplierName"] != "Metro Cash & Carry" {
		t.Errorf("purchase supplier: got %v", purchases[0])
	}

	if resp["pendingSales"] != float64(3) {
		t.Errorf("pendingSales: got %v, want 3", resp["pendingSales"])
	}
}

func TestGetDashboard_DayBoundaries(t *testing.T) {
	storeID := uuid.New()
	store := &mockDashboardStore{}
	router := setupDashboardRouter(store)

	rr := doRequest(t, router, "GET", "/admin/stores/"+storeID.String()+"/dashboard?date=2026-08-20", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if store.summaryParams == nil {
		t.Fatal("GetStoreSalesSummary not called")
	}
	if store.summaryParams.StoreID != storeID {
		t.Errorf("storeId: got %v", store.summaryParams.StoreID)
	}
	window := store.summaryParams.EndTime.Sub(store.summaryParams.StartTime)
	if window != 24*time.Hour {
		t.Errorf("window: got %v, want 24h", window)
	}
	h, m, s := store.summaryParams.StartTime.Clock()
	if h != 0 || m != 0 || s != 0 {
		t.Errorf("start of day: got %02d:%02d:%02d, want midnight", h, m, s)
	}
	if store.topParams == nil {
		t.Fatal("GetTopSellingItems not called")
	}
	if store.topParams.Limit != 5 {
		t.Errorf("top items limit: got %d, want 5", store.topParams.Limit)
	}
}

func TestGetDashboard_InvalidDate(t *testing.T) {
	store := &mockDashboardStore{}
	router := setupDashboardRouter(store)

	rr := doRequest(t, router, "GET", "/admin/stores/"+uuid.New().String()+"/dashboard?date=20-08-2026", nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestGetDashboard_EmptyDay(t *testing.T) {
	store := &mockDashboardStore{}
	router := setupDashboardRouter(store)

	rr := doRequest(t, router, "GET", "/admin/stores/"+uuid.New().String()+"/dashboard", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if _, ok := resp["paymentModes"].([]interface{}); !ok {
		t.Errorf("paymentModes should be an empty array, got %v", resp["paymentModes"])
	}
	if _, ok := resp["topItems"].([]interface{}); !ok {
		t.Errorf("topItems should be an empty array, got %v", resp["topItems"])
	}
}
