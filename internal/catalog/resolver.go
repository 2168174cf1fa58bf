package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/database"
)

// Errors returned by the catalog resolver.
var (
	ErrProductNotFound = errors.New("product_not_found")
	ErrVariantNotFound = errors.New("variant_not_found")
)

// DefaultCurrency is applied wherever a caller does not name one.
const DefaultCurrency = "INR"

// Store is the subset of database.Queries the resolver needs.
// Satisfied by *database.Queries (and its WithTx variant).
type Store interface {
	GetIdentifier(ctx context.Context, arg database.GetIdentifierParams) (database.GlobalProductIdentifier, error)
	InsertIdentifier(ctx context.Context, arg database.InsertIdentifierParams) (int64, error)
	CreateGlobalProduct(ctx context.Context, arg database.CreateGlobalProductParams) (database.GlobalProduct, error)
	GetGlobalProduct(ctx context.Context, id uuid.UUID) (database.GlobalProduct, error)
	TryInsertStoreProduct(ctx context.Context, arg database.TryInsertStoreProductParams) (database.StoreProduct, error)
	GetStoreProduct(ctx context.Context, arg database.GetStoreProductParams) (database.StoreProduct, error)
	GetStoreInventory(ctx context.Context, arg database.GetStoreInventoryParams) (database.StoreInventory, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetProductByGlobalProduct(ctx context.Context, globalProductID pgtype.UUID) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	GetVariant(ctx context.Context, id uuid.UUID) (database.Variant, error)
	GetDefaultVariantByProduct(ctx context.Context, productID uuid.UUID) (database.Variant, error)
	GetVariantByPack(ctx context.Context, arg database.GetVariantByPackParams) (database.Variant, error)
	CreateVariant(ctx context.Context, arg database.CreateVariantParams) (database.Variant, error)
	GetVariantByBarcode(ctx context.Context, barcode string) (database.GetVariantByBarcodeRow, error)
	GetBarcodeForVariant(ctx context.Context, arg database.GetBarcodeForVariantParams) (database.Barcode, error)
	CreateBarcode(ctx context.Context, arg database.CreateBarcodeParams) (database.Barcode, error)
	GetRetailerVariant(ctx context.Context, arg database.GetRetailerVariantParams) (database.RetailerVariant, error)
	LinkRetailerVariant(ctx context.Context, arg database.LinkRetailerVariantParams) error
}

// IdentifierRef names a product code the way the normalizer emits it.
type IdentifierRef struct {
	CodeType        string
	RawValue        string
	NormalizedValue string
}

// StoreListing is one store's view of a global product.
type StoreListing struct {
	Global    database.GlobalProduct
	Listed    database.StoreProduct
	Available int64
	FirstTime bool
}

// DisplayName prefers the store's own label over the catalog name.
func (l StoreListing) DisplayName() string {
	if l.Listed.StoreDisplayName.Valid && l.Listed.StoreDisplayName.String != "" {
		return l.Listed.StoreDisplayName.String
	}
	return l.Global.GlobalName
}

// ScanMatch is a resolved sell-mode scan: the listing plus the concrete
// variant when the code pointed at one, and the price the store charges.
type ScanMatch struct {
	Listing        StoreListing
	VariantID      uuid.UUID
	SellPriceMinor pgtype.Int8
}

// DigitiseResult reports what registering a scanned code produced.
// Created is false when the code was already in the catalog.
type DigitiseResult struct {
	Listing StoreListing
	Variant database.Variant
	Barcode database.Barcode
	Created bool
}

// EnsureGlobalProduct returns the global product behind an identifier,
// creating both on first sight. When two requests race on the same code
// the identifier's unique index decides; the loser adopts the winning
// row instead of failing.
func EnsureGlobalProduct(ctx context.Context, store Store, ref IdentifierRef, name string) (database.GlobalProduct, bool, error) {
	ident, err := lookupIdentifier(ctx, store, ref.CodeType, ref.NormalizedValue)
	switch {
	case err == nil:
		gp, err := store.GetGlobalProduct(ctx, ident.GlobalProductID)
		if err != nil {
			return database.GlobalProduct{}, false, fmt.Errorf("get global product: %w", err)
		}
		return gp, false, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return database.GlobalProduct{}, false, fmt.Errorf("lookup identifier: %w", err)
	}

	if name == "" {
		name = ref.NormalizedValue
	}
	gp, err := store.CreateGlobalProduct(ctx, database.CreateGlobalProductParams{GlobalName: name})
	if err != nil {
		return database.GlobalProduct{}, false, fmt.Errorf("create global product: %w", err)
	}
	rows, err := store.InsertIdentifier(ctx, database.InsertIdentifierParams{
		GlobalProductID: gp.ID,
		CodeType:        ref.CodeType,
		RawValue:        ref.RawValue,
		NormalizedValue: ref.NormalizedValue,
	})
	if err != nil {
		return database.GlobalProduct{}, false, fmt.Errorf("insert identifier: %w", err)
	}
	if rows == 0 {
		// Another request claimed the code first; adopt its product.
		winner, err := store.GetIdentifier(ctx, database.GetIdentifierParams{
			CodeType:        ref.CodeType,
			NormalizedValue: ref.NormalizedValue,
		})
		if err != nil {
			return database.GlobalProduct{}, false, fmt.Errorf("reread identifier: %w", err)
		}
		gp, err = store.GetGlobalProduct(ctx, winner.GlobalProductID)
		if err != nil {
			return database.GlobalProduct{}, false, fmt.Errorf("get global product: %w", err)
		}
		return gp, false, nil
	}
	return gp, true, nil
}

// EnsureStoreListing lists a global product for the store, reporting
// whether this was the store's first sight of it.
func EnsureStoreListing(ctx context.Context, store Store, storeID, globalProductID uuid.UUID) (database.StoreProduct, bool, error) {
	created, err := store.TryInsertStoreProduct(ctx, database.TryInsertStoreProductParams{
		StoreID:         storeID,
		GlobalProductID: globalProductID,
		Currency:        DefaultCurrency,
	})
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.StoreProduct{}, false, fmt.Errorf("insert store product: %w", err)
	}
	existing, err := store.GetStoreProduct(ctx, database.GetStoreProductParams{
		StoreID:         storeID,
		GlobalProductID: globalProductID,
	})
	if err != nil {
		return database.StoreProduct{}, false, fmt.Errorf("get store product: %w", err)
	}
	return existing, false, nil
}

// ResolveForSale resolves a normalized scan for selling. Nothing new is
// created in the global catalog; unknown codes return ErrProductNotFound
// so the client can offer digitising. Known codes are lazily listed for
// the store.
func ResolveForSale(ctx context.Context, store Store, storeID uuid.UUID, codeType, normalizedValue string) (ScanMatch, error) {
	var match ScanMatch
	globalID := uuid.Nil

	row, err := store.GetVariantByBarcode(ctx, BarcodeKey(normalizedValue))
	switch {
	case err == nil:
		if !row.GlobalProductID.Valid {
			return ScanMatch{}, ErrProductNotFound
		}
		match.VariantID = row.ID
		globalID = uuid.UUID(row.GlobalProductID.Bytes)
	case !errors.Is(err, pgx.ErrNoRows):
		return ScanMatch{}, fmt.Errorf("lookup barcode: %w", err)
	}

	if globalID == uuid.Nil {
		ident, err := lookupIdentifier(ctx, store, codeType, normalizedValue)
		if errors.Is(err, pgx.ErrNoRows) {
			return ScanMatch{}, ErrProductNotFound
		}
		if err != nil {
			return ScanMatch{}, fmt.Errorf("lookup identifier: %w", err)
		}
		globalID = ident.GlobalProductID

		// The identifier names a product, not a pack; surface the
		// default variant when the product has one.
		if product, err := store.GetProductByGlobalProduct(ctx, pgUUID(globalID)); err == nil {
			variant, err := store.GetDefaultVariantByProduct(ctx, product.ID)
			if err == nil {
				match.VariantID = variant.ID
			} else if !errors.Is(err, pgx.ErrNoRows) {
				return ScanMatch{}, fmt.Errorf("default variant: %w", err)
			}
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return ScanMatch{}, fmt.Errorf("get product: %w", err)
		}
	}

	listing, err := loadListing(ctx, store, storeID, globalID)
	if err != nil {
		return ScanMatch{}, err
	}
	match.Listing = listing

	match.SellPriceMinor, err = effectiveSellPrice(ctx, store, storeID, match.VariantID, listing.Listed)
	if err != nil {
		return ScanMatch{}, err
	}
	return match, nil
}

// Digitise registers a scanned code end to end: global product and
// identifier, a sellable product and variant, an internal barcode, and
// the store listing. Every step is get-or-create, so a retried or
// half-finished digitise simply completes the chain.
func Digitise(ctx context.Context, store Store, storeID uuid.UUID, ref IdentifierRef, name string) (DigitiseResult, error) {
	gp, created, err := EnsureGlobalProduct(ctx, store, ref, name)
	if err != nil {
		return DigitiseResult{}, err
	}

	product, err := ensureProductForGlobal(ctx, store, gp)
	if err != nil {
		return DigitiseResult{}, err
	}
	variant, err := ensureDefaultVariant(ctx, store, storeID, product)
	if err != nil {
		return DigitiseResult{}, err
	}
	barcode, err := EnsureInternalBarcode(ctx, store, variant.ID)
	if err != nil {
		return DigitiseResult{}, err
	}

	listing, err := loadListing(ctx, store, storeID, gp.ID)
	if err != nil {
		return DigitiseResult{}, err
	}
	return DigitiseResult{
		Listing: listing,
		Variant: variant,
		Barcode: barcode,
		Created: created,
	}, nil
}

// VariantSelector names a sale line's target by whichever id the client
// had on hand.
type VariantSelector struct {
	VariantID       uuid.UUID
	GlobalProductID uuid.UUID
	ProductID       uuid.UUID
}

// ResolveVariantForSale picks the variant a sale line refers to.
// Explicit variant ids are verified; global product ids fall back to
// the product's default variant, created on first sale if missing.
// A product id that matches nothing is retried as a global product id,
// which some clients send in that slot.
func ResolveVariantForSale(ctx context.Context, store Store, storeID uuid.UUID, sel VariantSelector) (database.Variant, error) {
	if sel.VariantID != uuid.Nil {
		variant, err := store.GetVariant(ctx, sel.VariantID)
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Variant{}, ErrVariantNotFound
		}
		if err != nil {
			return database.Variant{}, fmt.Errorf("get variant: %w", err)
		}
		return variant, nil
	}

	globalID := sel.GlobalProductID
	if globalID == uuid.Nil && sel.ProductID != uuid.Nil {
		product, err := store.GetProduct(ctx, sel.ProductID)
		switch {
		case err == nil:
			return ensureDefaultVariant(ctx, store, storeID, product)
		case errors.Is(err, pgx.ErrNoRows):
			globalID = sel.ProductID
		default:
			return database.Variant{}, fmt.Errorf("get product: %w", err)
		}
	}
	if globalID == uuid.Nil {
		return database.Variant{}, ErrVariantNotFound
	}

	gp, err := store.GetGlobalProduct(ctx, globalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Variant{}, ErrProductNotFound
	}
	if err != nil {
		return database.Variant{}, fmt.Errorf("get global product: %w", err)
	}
	product, err := ensureProductForGlobal(ctx, store, gp)
	if err != nil {
		return database.Variant{}, err
	}
	return ensureDefaultVariant(ctx, store, storeID, product)
}

// --- Helpers ---

func lookupIdentifier(ctx context.Context, store Store, codeType, normalizedValue string) (database.GlobalProductIdentifier, error) {
	ident, err := store.GetIdentifier(ctx, database.GetIdentifierParams{
		CodeType:        codeType,
		NormalizedValue: normalizedValue,
	})
	if err == nil || !errors.Is(err, pgx.ErrNoRows) {
		return ident, err
	}
	// Text-fallback codes may have been registered before the format
	// became recognisable; try the strongly typed twin.
	if strings.HasSuffix(codeType, "_TEXT") {
		return store.GetIdentifier(ctx, database.GetIdentifierParams{
			CodeType:        strings.TrimSuffix(codeType, "_TEXT"),
			NormalizedValue: normalizedValue,
		})
	}
	return ident, err
}

func ensureProductForGlobal(ctx context.Context, store Store, gp database.GlobalProduct) (database.Product, error) {
	product, err := store.GetProductByGlobalProduct(ctx, pgUUID(gp.ID))
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Product{}, fmt.Errorf("get product: %w", err)
	}
	product, err = store.CreateProduct(ctx, database.CreateProductParams{
		GlobalProductID: pgUUID(gp.ID),
		Name:            gp.GlobalName,
	})
	if isUniqueViolation(err, "products_global_product_id_key") {
		product, err = store.GetProductByGlobalProduct(ctx, pgUUID(gp.ID))
	}
	if err != nil {
		return database.Product{}, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

// ensureDefaultVariant returns the product's first variant, creating a
// unit-sized one linked to the store when the product has none yet.
func ensureDefaultVariant(ctx context.Context, store Store, storeID uuid.UUID, product database.Product) (database.Variant, error) {
	variant, err := store.GetDefaultVariantByProduct(ctx, product.ID)
	if err == nil {
		return variant, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Variant{}, fmt.Errorf("default variant: %w", err)
	}

	variant, err = store.CreateVariant(ctx, database.CreateVariantParams{
		ProductID: product.ID,
		Name:      product.Name,
		Currency:  DefaultCurrency,
	})
	if err != nil {
		return database.Variant{}, fmt.Errorf("create variant: %w", err)
	}
	if _, err := EnsureInternalBarcode(ctx, store, variant.ID); err != nil {
		return database.Variant{}, err
	}
	if err := store.LinkRetailerVariant(ctx, database.LinkRetailerVariantParams{
		StoreID:   storeID,
		VariantID: variant.ID,
	}); err != nil {
		return database.Variant{}, fmt.Errorf("link retailer variant: %w", err)
	}
	return variant, nil
}

func loadListing(ctx context.Context, store Store, storeID, globalProductID uuid.UUID) (StoreListing, error) {
	gp, err := store.GetGlobalProduct(ctx, globalProductID)
	if err != nil {
		return StoreListing{}, fmt.Errorf("get global product: %w", err)
	}
	listed, firstTime, err := EnsureStoreListing(ctx, store, storeID, globalProductID)
	if err != nil {
		return StoreListing{}, err
	}
	available, err := stockOnHand(ctx, store, storeID, globalProductID)
	if err != nil {
		return StoreListing{}, err
	}
	return StoreListing{
		Global:    gp,
		Listed:    listed,
		Available: available,
		FirstTime: firstTime,
	}, nil
}

func stockOnHand(ctx context.Context, store Store, storeID, globalProductID uuid.UUID) (int64, error) {
	row, err := store.GetStoreInventory(ctx, database.GetStoreInventoryParams{
		StoreID:         storeID,
		GlobalProductID: globalProductID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get store inventory: %w", err)
	}
	return row.AvailableQty, nil
}

func effectiveSellPrice(ctx context.Context, store Store, storeID, variantID uuid.UUID, listed database.StoreProduct) (pgtype.Int8, error) {
	if variantID != uuid.Nil {
		rv, err := store.GetRetailerVariant(ctx, database.GetRetailerVariantParams{
			StoreID:   storeID,
			VariantID: variantID,
		})
		switch {
		case err == nil && rv.SellingPriceMinor.Valid:
			return rv.SellingPriceMinor, nil
		case err != nil && !errors.Is(err, pgx.ErrNoRows):
			return pgtype.Int8{}, fmt.Errorf("get retailer variant: %w", err)
		}
	}
	return listed.SellPriceMinor, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
