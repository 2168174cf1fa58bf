package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/supermandi/api/internal/catalog"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/enum"
	"github.com/supermandi/api/internal/inventory"
	"github.com/supermandi/api/internal/scan"
)

// ErrPurchaseExists is returned when a client-generated purchase id is
// already recorded and the request did not opt into skipIfExists.
var ErrPurchaseExists = errors.New("purchase_exists")

// PurchaseStore defines the DB methods needed by the purchase pipeline.
// Satisfied by *database.Queries (and its WithTx variant).
type PurchaseStore interface {
	catalog.Store
	inventory.Store
	CreatePurchase(ctx context.Context, arg database.CreatePurchaseParams) (database.Purchase, error)
	GetPurchaseByStore(ctx context.Context, arg database.GetPurchaseByStoreParams) (database.Purchase, error)
	UpdatePurchaseTotal(ctx context.Context, arg database.UpdatePurchaseTotalParams) (database.Purchase, error)
	CreatePurchaseItem(ctx context.Context, arg database.CreatePurchaseItemParams) (database.PurchaseItem, error)
	ListPurchaseItems(ctx context.Context, purchaseID uuid.UUID) ([]database.ListPurchaseItemsRow, error)
	UpdateStoreProduct(ctx context.Context, arg database.UpdateStoreProductParams) (database.StoreProduct, error)
	UpsertRetailerVariant(ctx context.Context, arg database.UpsertRetailerVariantParams) (database.RetailerVariant, error)
}

// NewPurchaseStore creates a PurchaseStore from a DBTX (pool or tx).
type NewPurchaseStore func(db database.DBTX) PurchaseStore

// PurchaseItemInput is a single received line. The item is identified by
// an explicit productId, a barcode, or, failing both, by name alone (a
// brand-new product). Quantity is a decimal so weighed receipts like
// 2.5 kg arrive exact; fractions are only legal for scalable units.
type PurchaseItemInput struct {
	ProductID         string
	Barcode           string
	Name              string
	Quantity          decimal.Decimal
	Unit              string
	UnitCostMinor     int64
	SellingPriceMinor *int64
}

// CreatePurchaseRequest is the validated input for recording a purchase.
type CreatePurchaseRequest struct {
	StoreID      uuid.UUID
	PurchaseID   string // optional client-generated id for idempotent retries
	SupplierName string
	Currency     string
	SkipIfExists bool
	Items        []PurchaseItemInput
}

// PurchaseResult is a purchase with its recorded items.
type PurchaseResult struct {
	Purchase database.Purchase
	Items    []database.PurchaseItem
	Existing bool
}

// PurchaseService records stock received from suppliers.
type PurchaseService struct {
	pool     TxBeginner
	newStore NewPurchaseStore
}

// NewPurchaseService creates a new PurchaseService.
func NewPurchaseService(pool TxBeginner, newStore NewPurchaseStore) *PurchaseService {
	return &PurchaseService{pool: pool, newStore: newStore}
}

// Create records a purchase in a single transaction: every item is
// resolved (or digitised on the fly), received into the ledger, and
// bulk-sized items top up bulk inventory and materialize standard packs.
func (s *PurchaseService) Create(ctx context.Context, req CreatePurchaseRequest) (*PurchaseResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrItemsRequired
	}
	clientID, err := parseClientID(req.PurchaseID)
	if err != nil {
		return nil, fmt.Errorf("purchaseId: %w", err)
	}
	if err := validatePurchaseItems(req.Items); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	result, err := applyPurchase(ctx, s.newStore(tx), req, clientID)
	if err != nil {
		if isUniqueViolation(err, "purchases_pkey") {
			return nil, ErrPurchaseExists
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// applyPurchase runs the purchase pipeline inside the caller's
// transaction. The sync engine calls this directly with its own
// per-event transaction.
func applyPurchase(ctx context.Context, store PurchaseStore, req CreatePurchaseRequest, clientID pgtype.UUID) (*PurchaseResult, error) {
	if clientID.Valid && req.SkipIfExists {
		existing, err := store.GetPurchaseByStore(ctx, database.GetPurchaseByStoreParams{
			ID:      clientID.Bytes,
			StoreID: req.StoreID,
		})
		if err == nil {
			rows, err := store.ListPurchaseItems(ctx, existing.ID)
			if err != nil {
				return nil, fmt.Errorf("list purchase items: %w", err)
			}
			items := make([]database.PurchaseItem, 0, len(rows))
			for _, row := range rows {
				items = append(items, database.PurchaseItem{
					ID:             row.ID,
					PurchaseID:     row.PurchaseID,
					ProductID:      row.ProductID,
					VariantID:      row.VariantID,
					Quantity:       row.Quantity,
					Unit:           row.Unit,
					QuantityBase:   row.QuantityBase,
					UnitCostMinor:  row.UnitCostMinor,
					LineTotalMinor: row.LineTotalMinor,
				})
			}
			return &PurchaseResult{Purchase: existing, Items: items, Existing: true}, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("look up purchase: %w", err)
		}
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = catalog.DefaultCurrency
	}

	purchase, err := store.CreatePurchase(ctx, database.CreatePurchaseParams{
		ID:           clientID,
		StoreID:      req.StoreID,
		SupplierName: optionalText(req.SupplierName),
		Currency:     currency,
	})
	if err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	var totalMinor int64
	items := make([]database.PurchaseItem, 0, len(req.Items))
	for i, input := range req.Items {
		item, err := receivePurchaseItem(ctx, store, req.StoreID, purchase.ID, input)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		items = append(items, item)
		totalMinor += item.LineTotalMinor
	}

	purchase, err = store.UpdatePurchaseTotal(ctx, database.UpdatePurchaseTotalParams{
		ID:         purchase.ID,
		TotalMinor: totalMinor,
	})
	if err != nil {
		return nil, fmt.Errorf("update purchase total: %w", err)
	}
	return &PurchaseResult{Purchase: purchase, Items: items}, nil
}

// receivePurchaseItem resolves one received line and applies all of its
// side effects: the purchase item row, the RECEIVE ledger movement, the
// bulk top-up with standard packs, and the price registrations.
func receivePurchaseItem(ctx context.Context, store PurchaseStore, storeID, purchaseID uuid.UUID, input PurchaseItemInput) (database.PurchaseItem, error) {
	product, variantID, err := resolvePurchaseProduct(ctx, store, storeID, input)
	if err != nil {
		return database.PurchaseItem{}, err
	}

	whole, baseUnit, quantityBase, bulkSized, err := normalizeQuantity(input.Quantity, input.Unit)
	if err != nil {
		return database.PurchaseItem{}, err
	}
	lineTotal := input.Quantity.Mul(decimal.NewFromInt(input.UnitCostMinor)).Round(0).IntPart()

	item, err := store.CreatePurchaseItem(ctx, database.CreatePurchaseItemParams{
		PurchaseID:     purchaseID,
		ProductID:      product.ID,
		VariantID:      variantID,
		Quantity:       whole,
		Unit:           optionalText(input.Unit),
		QuantityBase:   pgtype.Int8{Int64: quantityBase, Valid: bulkSized},
		UnitCostMinor:  input.UnitCostMinor,
		LineTotalMinor: lineTotal,
	})
	if err != nil {
		return database.PurchaseItem{}, fmt.Errorf("create purchase item: %w", err)
	}

	// availableQty counts whole units; a 2.5 kg receipt moves 2 through
	// the ledger and keeps its exact size in the bulk pool below.
	if product.GlobalProductID.Valid && whole > 0 {
		if _, err := inventory.ApplyMovement(ctx, store, inventory.Movement{
			StoreID:         storeID,
			GlobalProductID: uuid.UUID(product.GlobalProductID.Bytes),
			Type:            database.MovementTypeRECEIVE,
			Quantity:        whole,
			Name:            product.Name,
			UnitCostMinor:   pgtype.Int8{Int64: input.UnitCostMinor, Valid: true},
			ReferenceType:   enum.ReferenceTypePurchase,
			ReferenceID:     purchaseID,
		}); err != nil {
			return database.PurchaseItem{}, err
		}
	}

	if bulkSized && quantityBase >= inventory.BulkThresholdBase {
		if _, err := inventory.ApplyBulkChange(ctx, store, storeID, inventory.BulkChange{
			ProductID: product.ID,
			DeltaBase: quantityBase,
			BaseUnit:  baseUnit,
			Name:      product.Name,
		}); err != nil {
			return database.PurchaseItem{}, err
		}
		if err := catalog.EnsureStandardPacks(ctx, store, storeID, product, baseUnit); err != nil {
			return database.PurchaseItem{}, err
		}
	}

	if product.GlobalProductID.Valid {
		globalID := uuid.UUID(product.GlobalProductID.Bytes)
		if _, _, err := catalog.EnsureStoreListing(ctx, store, storeID, globalID); err != nil {
			return database.PurchaseItem{}, err
		}
		if _, err := store.UpdateStoreProduct(ctx, database.UpdateStoreProductParams{
			StoreID:            storeID,
			GlobalProductID:    globalID,
			PurchasePriceMinor: pgtype.Int8{Int64: input.UnitCostMinor, Valid: true},
		}); err != nil {
			return database.PurchaseItem{}, fmt.Errorf("register purchase price: %w", err)
		}
	}

	if input.SellingPriceMinor != nil && variantID.Valid {
		if _, err := store.UpsertRetailerVariant(ctx, database.UpsertRetailerVariantParams{
			StoreID:           storeID,
			VariantID:         variantID.Bytes,
			SellingPriceMinor: pgtype.Int8{Int64: *input.SellingPriceMinor, Valid: true},
		}); err != nil {
			return database.PurchaseItem{}, fmt.Errorf("register selling price: %w", err)
		}
	}

	return item, nil
}

// resolvePurchaseProduct identifies the product for one received line:
// an explicit productId is verified, a barcode is looked up and, on a
// miss, digitised into a brand-new product with the code attached.
func resolvePurchaseProduct(ctx context.Context, store PurchaseStore, storeID uuid.UUID, input PurchaseItemInput) (database.Product, pgtype.UUID, error) {
	if id, err := parseOptionalID(input.ProductID); err != nil {
		return database.Product{}, pgtype.UUID{}, ErrInvalidItem
	} else if id != uuid.Nil {
		product, err := store.GetProduct(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Product{}, pgtype.UUID{}, catalog.ErrProductNotFound
			}
			return database.Product{}, pgtype.UUID{}, fmt.Errorf("get product: %w", err)
		}
		return product, pgtype.UUID{}, nil
	}

	barcode := strings.TrimSpace(input.Barcode)
	if barcode != "" {
		row, err := store.GetVariantByBarcode(ctx, catalog.BarcodeKey(barcode))
		if err == nil {
			product, err := store.GetProduct(ctx, row.ProductID)
			if err != nil {
				return database.Product{}, pgtype.UUID{}, fmt.Errorf("get product: %w", err)
			}
			return product, pgUUID(row.ID), nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return database.Product{}, pgtype.UUID{}, fmt.Errorf("look up barcode: %w", err)
		}
	}

	name := strings.TrimSpace(input.Name)

	if normalized := scan.Normalize("", barcode); normalized != nil {
		digitised, err := catalog.Digitise(ctx, store, storeID, catalog.IdentifierRef{
			CodeType:        normalized.CodeType,
			RawValue:        barcode,
			NormalizedValue: normalized.NormalizedValue,
		}, name)
		if err != nil {
			return database.Product{}, pgtype.UUID{}, err
		}
		if !catalog.IsInternalBarcode(barcode) {
			// Attach the supplier's printed code alongside the SM label.
			// Losing the race to another request is fine; the code is
			// registered either way.
			if _, err := catalog.AttachBarcode(ctx, store, digitised.Variant.ID, barcode); err != nil &&
				!errors.Is(err, catalog.ErrBarcodeInUse) {
				return database.Product{}, pgtype.UUID{}, err
			}
		}
		product, err := store.GetProduct(ctx, digitised.Variant.ProductID)
		if err != nil {
			return database.Product{}, pgtype.UUID{}, fmt.Errorf("get product: %w", err)
		}
		return product, pgUUID(digitised.Variant.ID), nil
	}

	// No usable barcode: a named product without a global identity.
	product, err := store.CreateProduct(ctx, database.CreateProductParams{Name: name})
	if err != nil {
		return database.Product{}, pgtype.UUID{}, fmt.Errorf("create product: %w", err)
	}
	variant, err := store.CreateVariant(ctx, database.CreateVariantParams{
		ProductID: product.ID,
		Name:      name,
		Currency:  catalog.DefaultCurrency,
	})
	if err != nil {
		return database.Product{}, pgtype.UUID{}, fmt.Errorf("create variant: %w", err)
	}
	if _, err := catalog.EnsureInternalBarcode(ctx, store, variant.ID); err != nil {
		return database.Product{}, pgtype.UUID{}, err
	}
	if err := store.LinkRetailerVariant(ctx, database.LinkRetailerVariantParams{
		StoreID:   storeID,
		VariantID: variant.ID,
	}); err != nil {
		return database.Product{}, pgtype.UUID{}, fmt.Errorf("link variant: %w", err)
	}
	return product, pgUUID(variant.ID), nil
}

// validatePurchaseItems enforces the bounds shared by the interactive
// create path and the sync replay path. Every item must carry at least
// one way to identify the product.
func validatePurchaseItems(items []PurchaseItemInput) error {
	for i, item := range items {
		if item.Quantity.Sign() <= 0 {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if item.UnitCostMinor < 0 {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidItem)
		}
		if strings.TrimSpace(item.ProductID) == "" &&
			strings.TrimSpace(item.Barcode) == "" &&
			strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidItem)
		}
	}
	return nil
}

// normalizeQuantity splits a decimal quantity into the whole-unit count
// and, for scalable units, the exact base quantity. Fractions of an
// unscalable unit, or fractions finer than one base unit, are rejected.
func normalizeQuantity(qty decimal.Decimal, unit string) (whole int64, baseUnit string, quantityBase int64, bulkSized bool, err error) {
	base, mult, scalable := inventory.UnitScale(unit)
	if qty.IsInteger() {
		whole = qty.IntPart()
		if scalable {
			return whole, base, whole * mult, true, nil
		}
		return whole, "", 0, false, nil
	}
	if !scalable {
		return 0, "", 0, false, ErrInvalidQuantity
	}
	scaled := qty.Mul(decimal.NewFromInt(mult))
	if !scaled.IsInteger() {
		return 0, "", 0, false, ErrInvalidQuantity
	}
	return qty.IntPart(), base, scaled.IntPart(), true, nil
}
