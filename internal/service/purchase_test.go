package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/supermandi/api/internal/catalog"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/enum"
)

func newTestPurchaseService(f *fakeDB) *PurchaseService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	newStore := func(db database.DBTX) PurchaseStore { return f }
	return NewPurchaseService(pool, newStore)
}

func hasInternalBarcode(f *fakeDB, variantID uuid.UUID) bool {
	for _, b := range f.barcodes {
		if b.VariantID == variantID && b.Type == database.BarcodeTypeSupermandi {
			return true
		}
	}
	return false
}

// =====================
// Validation tests
// =====================

func TestCreatePurchase_EmptyItems(t *testing.T) {
	svc := newTestPurchaseService(newFakeDB())

	_, err := svc.Create(context.Background(), CreatePurchaseRequest{StoreID: uuid.New()})
	if !errors.Is(err, ErrItemsRequired) {
		t.Fatalf("expected ErrItemsRequired, got: %v", err)
	}
}

func TestCreatePurchase_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     CreatePurchaseRequest
		wantErr error
	}{
		{
			name: "bad purchase id",
			req: CreatePurchaseRequest{
				PurchaseID: "not-a-uuid",
				Items:      []PurchaseItemInput{{Name: "Salt", Quantity: decimal.NewFromInt(1)}},
			},
			wantErr: ErrInvalidItem,
		},
		{
			name: "zero quantity",
			req: CreatePurchaseRequest{
				Items: []PurchaseItemInput{{Name: "Salt", Quantity: decimal.Zero}},
			},
			wantErr: ErrInvalidQuantity,
		},
		{
			name: "negative cost",
			req: CreatePurchaseRequest{
				Items: []PurchaseItemInput{{Name: "Salt", Quantity: decimal.NewFromInt(1), UnitCostMinor: -1}},
			},
			wantErr: ErrInvalidItem,
		},
		{
			name: "no product identifier",
			req: CreatePurchaseRequest{
				Items: []PurchaseItemInput{{Quantity: decimal.NewFromInt(1), UnitCostMinor: 100}},
			},
			wantErr: ErrInvalidItem,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeDB()
			tc.req.StoreID = seedStore(f, "Mandi Mart", "")
			svc := newTestPurchaseService(f)

			_, err := svc.Create(context.Background(), tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreatePurchase_UnknownProductID(t *testing.T) {
	f := newFakeDB()
	storeID := seedStore(f, "Mandi Mart", "")
	svc := newTestPurchaseService(f)

	_, err := svc.Create(context.Background(), CreatePurchaseRequest{
		StoreID: storeID,
		Items: []PurchaseItemInput{{
			ProductID: uuid.NewString(),
			Quantity:  decimal.NewFromInt(1),
		}},
	})
	if !errors.Is(err, catalog.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}
	if !strings.Contains(err.Error(), "item[0]") {
		t.Errorf("expected item index in error, got: %v", err)
	}
}

// =====================
// Resolution tests
// =====================

func TestCreatePurchase_ByProductID(t *testing.T) {
	f := newFakeDB()
	storeID := seedStore(f, "Mandi Mart", "")
	globalID, productID, _ := seedUnitItem(f, storeID, "Parle-G", 2)
	svc := newTestPurchaseService(f)

	result, err := svc.Create(context.Background(), CreatePurchaseRequest{
		StoreID:      storeID,
		SupplierName: "Parle Depot",
		Items: []PurchaseItemInput{{
			ProductID:     productID.String(),
			Quantity:      decimal.NewFromInt(5),
			UnitCostMinor: 400,
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Purchase.TotalMinor != 2000 {
		t.Errorf("expected total 2000, got %d", result.Purchase.TotalMinor)
	}
	if result.Purchase.Currency != catalog.DefaultCurrency {
		t.Errorf("expected default currency, got %s", result.Purchase.Currency)
	}
	if result.Purchase.SupplierName.String != "Parle Depot" {
		t.Errorf("expected supplier name, got %v", result.Purchase.SupplierName)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	item := result.Items[0]
	if item.ProductID != productID || item.Quantity != 5 || item.LineTotalMinor != 2000 {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.VariantID.Valid {
		t.Errorf("expected no variant for a product-level receipt, got %v", item.VariantID)
	}

	if got := unitStock(f, storeID, globalID); got != 7 {
		t.Errorf("expected stock 7 after receipt, got %d", got)
	}
	if len(f.ledger) != 1 {
		t.Fatalf("expected 1 ledger movement, got %d", len(f.ledger))
	}
	entry := f.ledger[0]
	if entry.MovementType != database.MovementTypeRECEIVE || entry.Quantity != 5 {
		t.Errorf("unexpected movement: %+v", entry)
	}
	if !entry.UnitCostMinor.Valid || entry.UnitCostMinor.Int64 != 400 {
		t.Errorf("expected unit cost on movement, got %v", entry.UnitCostMinor)
	}
	if entry.ReferenceType.String != enum.ReferenceTypePurchase || uuid.UUID(entry.ReferenceID.Bytes) != result.Purchase.ID {
		t.Errorf("expected purchase reference on movement, got %+v", entry)
	}

	// Receiving lists the product and registers the purchase price.
	listing, ok := f.listings[pairKey{storeID, globalID}]
	if !ok {
		t.Fatal("expected store listing created")
	}
	if !listing.PurchasePriceMinor.Valid || listing.PurchasePriceMinor.Int64 != 400 {
		t.Errorf("expected purchase price 400 registered, got %v", listing.PurchasePriceMinor)
	}
}

func TestCreatePurchase_ByBarcode(t *testing.T) {
	f := newFakeDB()
	storeID := seedStore(f, "Mandi Mart", "")
	globalID, _, variantID := seedUnitItem(f, storeID, "Parle-G", 0)
	f.barcodes["8901234567890"] = database.Barcode{
		Barcode:   "8901234567890",
		VariantID: variantID,
		Type:      database.BarcodeTypeManufacturer,
	}
	svc := newTestPurchaseService(f)

	sellPrice := int64(600)
	result, err := svc.Create(context.Background(), CreatePurchaseRequest{
		StoreID: storeID,
		Items: []PurchaseItemInput{{
			Barcode:           "8901234567890",
			Quantity:          decimal.NewFromInt(3),
			UnitCostMinor:     400,
			SellingPriceMinor: &sellPrice,
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := result.Items[0]
	if !item.VariantID.Valid || uuid.UUID(item.VariantID.Bytes) != variantID {
		t.Errorf("expected barcode's variant on item, got %v", item.VariantID)
	}
	if got := unitStock(f, storeID, globalID); got != 3 {
		t.Errorf("expected stock 3, got %d", got)
	}

	rv, ok := f.retailer[pairKey{storeID, variantID}]
	if !ok {
		t.Fatal("expected retailer variant registered")
	}
	if !rv.SellingPriceMinor.Valid || rv.SellingPriceMinor.Int64 != 600 {
		t.Errorf("expected selling price 600, got %v", rv.SellingPriceMinor)
	}
}

func TestCreatePurchase_DigitisesUnknownBarcode(t *testing.T) {
	f := newFakeDB()
	storeID := seedStore(f, "Mandi Mart", "")
	svc := newTestPurchaseService(f)

	result, err := svc.Create(context.Background(), CreatePurchaseRequest{
		StoreID: storeID,
		Items: []PurchaseItemInput{{
			Barcode:       "8901111111111",
			Name:          "Tata Salt 1kg",
			Quantity:      decimal.NewFromInt(10),
			UnitCostMinor: 2200,
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := result.Items[0]
	product := f.products[item.ProductID]
	if product.Name != "Tata Salt 1kg" {
		t.Errorf("expected digitised product name, got %q", product.Name)
	}
	if !product.GlobalProductID.Valid {
		t.Fatal("expected digitised product to carry a global identity")
	}
	if _, ok := f.idents[identKey{"EAN", "8901111111111"}]; !ok {
		t.Error("expected identifier registered for the scanned code")
	}
	// Both the printed code and the internal label must resolve.
	if _, ok := f.barcodes["8901111111111"]; !ok {
		t.Error("expected manufacturer barcode attached")
	}
	if !item.VariantID.Valid || !hasInternalBarcode(f, item.VariantID.Bytes) {
		t.Error("expected internal barcode on the digitised variant")
	}

	globalID := uuid.UUID(product.GlobalProductID.Bytes)
	if got := unitStock(f, storeID, globalID); got != 10 {
		t.Errorf("expected stock 10, got %d", got)
	}
	if _, ok := f.listings[pairKey{storeID, globalID}]; !ok {
		t.Error("expected store listing created")
	}
}

func TestCreatePurchase_NameOnly(t *testing.T) {
	f := newFakeDB()
	storeID := seedStore(f, "Mandi Mart", "")
	svc := newTestPurchaseService(f)

	result, err := svc.Create(context.Background(), CreatePurchaseRequest{
		StoreID: storeID,
		Items: []PurchaseItemInput{{
			Name:          "Homemade Pickle",
			Quantity:      decimal.NewFromInt(4),
			UnitCostMinor: 5000,
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := result.Items[0]
	product := f.products[item.ProductID]
	if product.GlobalProductID.Valid {
		t.Error("expected no global identity for a name-only product")
	}
	if !item.VariantID.Valid || !hasInternalBarcode(f, item.VariantID.Bytes) {
		t.Error("expected internal barcode on the new variant")
	}
	if _, ok := f.retailer[pairKey{storeID, item.VariantID.Bytes}]; !ok {
		t.Error("expected retailer variant linked")
	}
	// Without a global identity there is nothing to track or list.
	if len(f.ledger) != 0 {
		t.Errorf("expected no ledger movements, got %d", len(f.ledger))
	}
	if len(f.listings) != 0 {
		t.Errorf("expected no listings, got %d", len(f.listings))
	}
	if result.Purchase.TotalMinor != 20000 {
		t.Errorf("expected total 20000, got %d", result.Purchase.TotalMinor)
	}
}

// =====================
// Bulk and quantity tests
// =====================

func TestCreatePurchase_BulkTopUpCreatesPacks(t *testing.T) {
	f := newFakeDB()
	storeID := seedStore(f, "Mandi Mart", "")
	globalID, productID, _ := seedUnitItem(f, storeID, "Toor Dal", 0)
	svc := newTestPurchaseService(f)

	_, err := svc.Create(context.Background(), CreatePurchaseRequest{
		StoreID: storeID,
		Items: []PurchaseItemInput{{
			ProductID:     productID.String(),
			Quantity:      decimal.NewFromInt(5),
			Unit:          "kg",
			UnitCostMinor: 9000,
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 5 kg lands as 5 whole units in the ledger and 5000 g of bulk.
	if got := unitStock(f, storeID, globalID); got != 5 {
		t.Errorf("expected unit stock 5, got %d", got)
	}
	if got := bulkStock(f, storeID, productID); got != 5000 {
		t.Errorf("expected 5000 base units of bulk, got %d", got)
	}

	// Standard gram packs materialize so loose sales have variants.
	for _, size := range catalog.StandardPackSizes {
		pack, err := f.GetVariantByPack(context.Background(), database.GetVariantByPackParams{
			ProductID: productID,
			UnitBase:  pgtype.Text{String: "g", Valid: true},
			SizeBase:  pgtype.Int8{Int64: size, Valid: true},
		})
		if err != nil {
			t.Errorf("expected %dg pack variant: %v", size, err)
			continue
		}
		if !hasInternalBarcode(f, pack.ID) {
			t.Errorf("expected internal barcode on %dg pack", size)
		}
	}
}

func TestCreatePurchase_FractionalQuantity(t *testing.T) {
	f := newFakeDB()
	storeID := seedStore(f, "Mandi Mart", "")
	globalID, productID, _ := seedUnitItem(f, storeID, "Toor Dal", 0)
	svc := newTestPurchaseService(f)

	result, err := svc.Create(context.Background(), CreatePurchaseRequest{
		StoreID: storeID,
		Items: []PurchaseItemInput{{
			ProductID:     productID.String(),
			Quantity:      decimal.RequireFromString("2.5"),
			Unit:          "kg",
			UnitCostMinor: 8000,
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := result.Items[0]
	if item.Quantity != 2 {
		t.Errorf("expected 2 whole units recorded, got %d", item.Quantity)
	}
	if !item.QuantityBase.Valid || item.QuantityBase.Int64 != 2500 {
		t.Errorf("expected 2500 base units on item, got %v", item.QuantityBase)
	}
	// 2.5 x 8000 rounds to the exact paisa total.
	if item.LineTotalMinor != 20000 {
		t.Errorf("expected line total 20000, got %d", item.LineTotalMinor)
	}
	if result.Purchase.TotalMinor != 20000 {
		t.Errorf("expected purchase total 20000, got %d", result.Purchase.TotalMinor)
	}

	// The ledger moves whole units; the bulk pool keeps the exact size.
	if got := unitStock(f, storeID, globalID); got != 2 {
		t.Errorf("expected unit stock 2, got %d", got)
	}
	if got := bulkStock(f, storeID, productID); got != 2500 {
		t.Errorf("expected 2500 base units of bulk, got %d", got)
	}
}

func TestCreatePurchase_FractionalUnscalableRejected(t *testing.T) {
	f := newFakeDB()
	storeID := seedStore(f, "Mandi Mart", "")
	_, productID, _ := seedUnitItem(f, storeID, "Parle-G", 0)
	svc := newTestPurchaseService(f)

	// Pieces do not split, and kilograms split no finer than one gram.
	for _, tc := range []struct {
		qty  string
		unit string
	}{
		{"1.5", "pcs"},
		{"0.0005", "kg"},
	} {
		_, err := svc.Create(context.Background(), CreatePurchaseRequest{
			StoreID: storeID,
			Items: []PurchaseItemInput{{
				ProductID:     productID.String(),
				Quantity:      decimal.RequireFromString(tc.qty),
				Unit:          tc.unit,
				UnitCostMinor: 100,
			}},
		})
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("%s %s: expected ErrInvalidQuantity, got: %v", tc.qty, tc.unit, err)
		}
	}
}

func TestCreatePurchase_SmallBulkBelowThreshold(t *testing.T) {
	f := newFakeDB()
	storeID := seedStore(f, "Mandi Mart", "")
	globalID, productID, _ := seedUnitItem(f, storeID, "Toor Dal", 0)
	svc := newTestPurchaseService(f)

	result, err := svc.Create(context.Background(), CreatePurchaseRequest{
		StoreID: storeID,
		Items: []PurchaseItemInput{{
			ProductID:     productID.String(),
			Quantity:      decimal.RequireFromString("0.5"),
			Unit:          "kg",
			UnitCostMinor: 8000,
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Half a kilo moves no whole units and stays below the bulk pool
	// threshold, but the receipt and its price still register.
	item := result.Items[0]
	if item.Quantity != 0 {
		t.Errorf("expected 0 whole units, got %d", item.Quantity)
	}
	if !item.QuantityBase.Valid || item.QuantityBase.Int64 != 500 {
		t.Errorf("expected 500 base units on item, got %v", item.QuantityBase)
	}
	if len(f.ledger) != 0 {
		t.Errorf("expected no ledger movements, got %d", len(f.ledger))
	}
	if _, ok := f.bulk[pairKey{storeID, productID}]; ok {
		t.Error("expected no bulk row below threshold")
	}
	listing, ok := f.listings[pairKey{storeID, globalID}]
	if !ok {
		t.Fatal("expected store listing created")
	}
	if !listing.PurchasePriceMinor.Valid || listing.PurchasePriceMinor.Int64 != 8000 {
		t.Errorf("expected purchase price registered, got %v", listing.PurchasePriceMinor)
	}
}

// =====================
// Idempotency tests
// =====================

func TestCreatePurchase_DuplicateClientID(t *testing.T) {
	f := newFakeDB()
	storeID := seedStore(f, "Mandi Mart", "")
	_, productID, _ := seedUnitItem(f, storeID, "Parle-G", 0)
	svc := newTestPurchaseService(f)

	req := CreatePurchaseRequest{
		StoreID:    storeID,
		PurchaseID: uuid.NewString(),
		Items: []PurchaseItemInput{{
			ProductID:     productID.String(),
			Quantity:      decimal.NewFromInt(5),
			UnitCostMinor: 400,
		}},
	}
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, ErrPurchaseExists) {
		t.Fatalf("expected ErrPurchaseExists, got: %v", err)
	}
}

func TestCreatePurchase_SkipIfExistsReplay(t *testing.T) {
	f := newFakeDB()
	storeID := seedStore(f, "Mandi Mart", "")
	globalID, productID, _ := seedUnitItem(f, storeID, "Parle-G", 0)
	svc := newTestPurchaseService(f)

	req := CreatePurchaseRequest{
		StoreID:      storeID,
		PurchaseID:   uuid.NewString(),
		SkipIfExists: true,
		Items: []PurchaseItemInput{{
			ProductID:     productID.String(),
			Quantity:      decimal.NewFromInt(5),
			UnitCostMinor: 400,
		}},
	}

	first, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Existing {
		t.Fatal("first create reported existing")
	}

	second, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Existing {
		t.Error("expected replay to report existing")
	}
	if second.Purchase.ID != first.Purchase.ID {
		t.Errorf("expected same purchase, got %s and %s", first.Purchase.ID, second.Purchase.ID)
	}
	if len(second.Items) != 1 {
		t.Errorf("expected stored items returned, got %d", len(second.Items))
	}
	// The replay must not receive the stock twice.
	if got := unitStock(f, storeID, globalID); got != 5 {
		t.Errorf("expected stock 5, got %d", got)
	}
	if len(f.ledger) != 1 {
		t.Errorf("expected 1 ledger movement, got %d", len(f.ledger))
	}
}
