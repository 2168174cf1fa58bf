package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createGlobalProduct = `-- name: CreateGlobalProduct :one
INSERT INTO global_products (global_name, category)
VALUES ($1, $2)
RETURNING id, global_name, category, created_at
`

type CreateGlobalProductParams struct {
	GlobalName string
	Category   pgtype.Text
}

func (q *Queries) CreateGlobalProduct(ctx context.Context, arg CreateGlobalProductParams) (GlobalProduct, error) {
	row := q.db.QueryRow(ctx, createGlobalProduct, arg.GlobalName, arg.Category)
	var i GlobalProduct
	err := row.Scan(
		&i.ID,
		&i.GlobalName,
		&i.Category,
		&i.CreatedAt,
	)
	return i, err
}

const getGlobalProduct = `-- name: GetGlobalProduct :one
SELECT id, global_name, category, created_at
FROM global_products
WHERE id = $1
`

func (q *Queries) GetGlobalProduct(ctx context.Context, id uuid.UUID) (GlobalProduct, error) {
	row := q.db.QueryRow(ctx, getGlobalProduct, id)
	var i GlobalProduct
	err := row.Scan(
		&i.ID,
		&i.GlobalName,
		&i.Category,
		&i.CreatedAt,
	)
	return i, err
}

const getIdentifier = `-- name: GetIdentifier :one
SELECT id, global_product_id, code_type, raw_value, normalized_value, created_at
FROM global_product_identifiers
WHERE code_type = $1 AND normalized_value = $2
`

type GetIdentifierParams struct {
	CodeType        string
	NormalizedValue string
}

func (q *Queries) GetIdentifier(ctx context.Context, arg GetIdentifierParams) (GlobalProductIdentifier, error) {
	row := q.db.QueryRow(ctx, getIdentifier, arg.CodeType, arg.NormalizedValue)
	var i GlobalProductIdentifier
	err := row.Scan(
		&i.ID,
		&i.GlobalProductID,
		&i.CodeType,
		&i.RawValue,
		&i.NormalizedValue,
		&i.CreatedAt,
	)
	return i, err
}

const insertIdentifier = `-- name: InsertIdentifier :execrows
INSERT INTO global_product_identifiers (global_product_id, code_type, raw_value, normalized_value)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code_type, normalized_value) DO NOTHING
`

type InsertIdentifierParams struct {
	GlobalProductID uuid.UUID
	CodeType        string
	RawValue        string
	NormalizedValue string
}

func (q *Queries) InsertIdentifier(ctx context.Context, arg InsertIdentifierParams) (int64, error) {
	result, err := q.db.Exec(ctx, insertIdentifier,
		arg.GlobalProductID,
		arg.CodeType,
		arg.RawValue,
		arg.NormalizedValue,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const tryInsertStoreProduct = `-- name: TryInsertStoreProduct :one
INSERT INTO store_products (store_id, global_product_id, store_display_name, sell_price_minor, purchase_price_minor, unit, variant, currency)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (store_id, global_product_id) DO NOTHING
RETURNING id, store_id, global_product_id, store_display_name, sell_price_minor, purchase_price_minor, unit, variant, currency, created_at, updated_at
`

type TryInsertStoreProductParams struct {
	StoreID            uuid.UUID
	GlobalProductID    uuid.UUID
	StoreDisplayName   pgtype.Text
	SellPriceMinor     pgtype.Int8
	PurchasePriceMinor pgtype.Int8
	Unit               pgtype.Text
	Variant            pgtype.Text
	Currency           string
}

// TryInsertStoreProduct returns pgx.ErrNoRows when the store already has a
// row for this global product; callers treat that as "already listed".
func (q *Queries) TryInsertStoreProduct(ctx context.Context, arg TryInsertStoreProductParams) (StoreProduct, error) {
	row := q.db.QueryRow(ctx, tryInsertStoreProduct,
		arg.StoreID,
		arg.GlobalProductID,
		arg.StoreDisplayName,
		arg.SellPriceMinor,
		arg.PurchasePriceMinor,
		arg.Unit,
		arg.Variant,
		arg.Currency,
	)
	var i StoreProduct
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.GlobalProductID,
		&i.StoreDisplayName,
		&i.SellPriceMinor,
		&i.PurchasePriceMinor,
		&i.Unit,
		&i.Variant,
		&i.Currency,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getStoreProduct = `-- name: GetStoreProduct :one
SELECT id, store_id, global_product_id, store_display_name, sell_price_minor, purchase_price_minor, unit, variant, currency, created_at, updated_at
FROM store_products
WHERE store_id = $1 AND global_product_id = $2
`

type GetStoreProductParams struct {
	StoreID         uuid.UUID
	GlobalProductID uuid.UUID
}

func (q *Queries) GetStoreProduct(ctx context.Context, arg GetStoreProductParams) (StoreProduct, error) {
	row := q.db.QueryRow(ctx, getStoreProduct, arg.StoreID, arg.GlobalProductID)
	var i StoreProduct
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.GlobalProductID,
		&i.StoreDisplayName,
		&i.SellPriceMinor,
		&i.PurchasePriceMinor,
		&i.Unit,
		&i.Variant,
		&i.Currency,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateStoreProduct = `-- name: UpdateStoreProduct :one
UPDATE store_products
SET store_display_name = COALESCE($3, store_display_name),
    sell_price_minor = COALESCE($4, sell_price_minor),
    purchase_price_minor = COALESCE($5, purchase_price_minor),
    updated_at = now()
WHERE store_id = $1 AND global_product_id = $2
RETURNING id, store_id, global_product_id, store_display_name, sell_price_minor, purchase_price_minor, unit, variant, currency, created_at, updated_at
`

type UpdateStoreProductParams struct {
	StoreID            uuid.UUID
	GlobalProductID    uuid.UUID
	StoreDisplayName   pgtype.Text
	SellPriceMinor     pgtype.Int8
	PurchasePriceMinor pgtype.Int8
}

func (q *Queries) UpdateStoreProduct(ctx context.Context, arg UpdateStoreProductParams) (StoreProduct, error) {
	row := q.db.QueryRow(ctx, updateStoreProduct,
		arg.StoreID,
		arg.GlobalProductID,
		arg.StoreDisplayName,
		arg.SellPriceMinor,
		arg.PurchasePriceMinor,
	)
	var i StoreProduct
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.GlobalProductID,
		&i.StoreDisplayName,
		&i.SellPriceMinor,
		&i.PurchasePriceMinor,
		&i.Unit,
		&i.Variant,
		&i.Currency,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listStoreProducts = `-- name: ListStoreProducts :many
SELECT sp.id, sp.store_id, sp.global_product_id, sp.store_display_name,
       sp.sell_price_minor, sp.purchase_price_minor, sp.unit, sp.variant, sp.currency,
       sp.created_at, sp.updated_at,
       gp.global_name, gp.category,
       COALESCE(si.available_qty, 0) AS available_qty
FROM store_products sp
JOIN global_products gp ON gp.id = sp.global_product_id
LEFT JOIN store_inventory si
    ON si.store_id = sp.store_id AND si.global_product_id = sp.global_product_id
WHERE sp.store_id = $1
ORDER BY gp.global_name
`

type ListStoreProductsRow struct {
	ID                 uuid.UUID
	StoreID            uuid.UUID
	GlobalProductID    uuid.UUID
	StoreDisplayName   pgtype.Text
	SellPriceMinor     pgtype.Int8
	PurchasePriceMinor pgtype.Int8
	Unit               pgtype.Text
	Variant            pgtype.Text
	Currency           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	GlobalName         string
	Category           pgtype.Text
	AvailableQty       int64
}

func (q *Queries) ListStoreProducts(ctx context.Context, storeID uuid.UUID) ([]ListStoreProductsRow, error) {
	rows, err := q.db.Query(ctx, listStoreProducts, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListStoreProductsRow
	for rows.Next() {
		var i ListStoreProductsRow
		if err := rows.Scan(
			&i.ID,
			&i.StoreID,
			&i.GlobalProductID,
			&i.StoreDisplayName,
			&i.SellPriceMinor,
			&i.PurchasePriceMinor,
			&i.Unit,
			&i.Variant,
			&i.Currency,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.GlobalName,
			&i.Category,
			&i.AvailableQty,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (global_product_id, name, unit_base)
VALUES ($1, $2, $3)
RETURNING id, global_product_id, name, unit_base, created_at
`

type CreateProductParams struct {
	GlobalProductID pgtype.UUID
	Name            string
	UnitBase        pgtype.Text
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct, arg.GlobalProductID, arg.Name, arg.UnitBase)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.GlobalProductID,
		&i.Name,
		&i.UnitBase,
		&i.CreatedAt,
	)
	return i, err
}

const getProduct = `-- name: GetProduct :one
SELECT id, global_product_id, name, unit_base, created_at
FROM products
WHERE id = $1
`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, getProduct, id)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.GlobalProductID,
		&i.Name,
		&i.UnitBase,
		&i.CreatedAt,
	)
	return i, err
}

const getProductByGlobalProduct = `-- name: GetProductByGlobalProduct :one
SELECT id, global_product_id, name, unit_base, created_at
FROM products
WHERE global_product_id = $1
`

func (q *Queries) GetProductByGlobalProduct(ctx context.Context, globalProductID pgtype.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, getProductByGlobalProduct, globalProductID)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.GlobalProductID,
		&i.Name,
		&i.UnitBase,
		&i.CreatedAt,
	)
	return i, err
}

const createVariant = `-- name: CreateVariant :one
INSERT INTO variants (product_id, name, currency, unit_base, size_base)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, product_id, name, currency, unit_base, size_base, created_at
`

type CreateVariantParams struct {
	ProductID uuid.UUID
	Name      string
	Currency  string
	UnitBase  pgtype.Text
	SizeBase  pgtype.Int8
}

func (q *Queries) CreateVariant(ctx context.Context, arg CreateVariantParams) (Variant, error) {
	row := q.db.QueryRow(ctx, createVariant,
		arg.ProductID,
		arg.Name,
		arg.Currency,
		arg.UnitBase,
		arg.SizeBase,
	)
	var i Variant
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.Name,
		&i.Currency,
		&i.UnitBase,
		&i.SizeBase,
		&i.CreatedAt,
	)
	return i, err
}

const getVariant = `-- name: GetVariant :one
SELECT id, product_id, name, currency, unit_base, size_base, created_at
FROM variants
WHERE id = $1
`

func (q *Queries) GetVariant(ctx context.Context, id uuid.UUID) (Variant, error) {
	row := q.db.QueryRow(ctx, getVariant, id)
	var i Variant
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.Name,
		&i.Currency,
		&i.UnitBase,
		&i.SizeBase,
		&i.CreatedAt,
	)
	return i, err
}

const getDefaultVariantByProduct = `-- name: GetDefaultVariantByProduct :one
SELECT id, product_id, name, currency, unit_base, size_base, created_at
FROM variants
WHERE product_id = $1
ORDER BY created_at
LIMIT 1
`

func (q *Queries) GetDefaultVariantByProduct(ctx context.Context, productID uuid.UUID) (Variant, error) {
	row := q.db.QueryRow(ctx, getDefaultVariantByProduct, productID)
	var i Variant
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.Name,
		&i.Currency,
		&i.UnitBase,
		&i.SizeBase,
		&i.CreatedAt,
	)
	return i, err
}

const getVariantByPack = `-- name: GetVariantByPack :one
SELECT id, product_id, name, currency, unit_base, size_base, created_at
FROM variants
WHERE product_id = $1 AND unit_base = $2 AND size_base = $3
`

type GetVariantByPackParams struct {
	ProductID uuid.UUID
	UnitBase  pgtype.Text
	SizeBase  pgtype.Int8
}

func (q *Queries) GetVariantByPack(ctx context.Context, arg GetVariantByPackParams) (Variant, error) {
	row := q.db.QueryRow(ctx, getVariantByPack, arg.ProductID, arg.UnitBase, arg.SizeBase)
	var i Variant
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.Name,
		&i.Currency,
		&i.UnitBase,
		&i.SizeBase,
		&i.CreatedAt,
	)
	return i, err
}

const getVariantDetail = `-- name: GetVariantDetail :one
SELECT v.id, v.product_id, v.name, v.currency, v.unit_base, v.size_base,
       p.name AS product_name, p.global_product_id
FROM variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1
`

type GetVariantDetailRow struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	Name            string
	Currency        string
	UnitBase        pgtype.Text
	SizeBase        pgtype.Int8
	ProductName     string
	GlobalProductID pgtype.UUID
}

func (q *Queries) GetVariantDetail(ctx context.Context, id uuid.UUID) (GetVariantDetailRow, error) {
	row := q.db.QueryRow(ctx, getVariantDetail, id)
	var i GetVariantDetailRow
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.Name,
		&i.Currency,
		&i.UnitBase,
		&i.SizeBase,
		&i.ProductName,
		&i.GlobalProductID,
	)
	return i, err
}

const createBarcode = `-- name: CreateBarcode :one
INSERT INTO barcodes (barcode, variant_id, type)
VALUES ($1, $2, $3)
RETURNING barcode, variant_id, type, created_at
`

type CreateBarcodeParams struct {
	Barcode   string
	VariantID uuid.UUID
	Type      BarcodeType
}

func (q *Queries) CreateBarcode(ctx context.Context, arg CreateBarcodeParams) (Barcode, error) {
	row := q.db.QueryRow(ctx, createBarcode, arg.Barcode, arg.VariantID, arg.Type)
	var i Barcode
	err := row.Scan(
		&i.Barcode,
		&i.VariantID,
		&i.Type,
		&i.CreatedAt,
	)
	return i, err
}

const getVariantByBarcode = `-- name: GetVariantByBarcode :one
SELECT v.id, v.product_id, v.name, v.currency, v.unit_base, v.size_base,
       p.name AS product_name, p.global_product_id,
       b.barcode, b.type AS barcode_type
FROM barcodes b
JOIN variants v ON v.id = b.variant_id
JOIN products p ON p.id = v.product_id
WHERE b.barcode = $1
`

type GetVariantByBarcodeRow struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	Name            string
	Currency        string
	UnitBase        pgtype.Text
	SizeBase        pgtype.Int8
	ProductName     string
	GlobalProductID pgtype.UUID
	Barcode         string
	BarcodeType     BarcodeType
}

func (q *Queries) GetVariantByBarcode(ctx context.Context, barcode string) (GetVariantByBarcodeRow, error) {
	row := q.db.QueryRow(ctx, getVariantByBarcode, barcode)
	var i GetVariantByBarcodeRow
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.Name,
		&i.Currency,
		&i.UnitBase,
		&i.SizeBase,
		&i.ProductName,
		&i.GlobalProductID,
		&i.Barcode,
		&i.BarcodeType,
	)
	return i, err
}

const getBarcodeForVariant = `-- name: GetBarcodeForVariant :one
SELECT barcode, variant_id, type, created_at
FROM barcodes
WHERE variant_id = $1 AND type = $2
`

type GetBarcodeForVariantParams struct {
	VariantID uuid.UUID
	Type      BarcodeType
}

func (q *Queries) GetBarcodeForVariant(ctx context.Context, arg GetBarcodeForVariantParams) (Barcode, error) {
	row := q.db.QueryRow(ctx, getBarcodeForVariant, arg.VariantID, arg.Type)
	var i Barcode
	err := row.Scan(
		&i.Barcode,
		&i.VariantID,
		&i.Type,
		&i.CreatedAt,
	)
	return i, err
}

const upsertRetailerVariant = `-- name: UpsertRetailerVariant :one
INSERT INTO retailer_variants (store_id, variant_id, selling_price_minor, price_updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (store_id, variant_id) DO UPDATE
SET selling_price_minor = EXCLUDED.selling_price_minor,
    price_updated_at = now(),
    updated_at = now()
RETURNING id, store_id, variant_id, selling_price_minor, price_updated_at, created_at, updated_at
`

type UpsertRetailerVariantParams struct {
	StoreID           uuid.UUID
	VariantID         uuid.UUID
	SellingPriceMinor pgtype.Int8
}

func (q *Queries) UpsertRetailerVariant(ctx context.Context, arg UpsertRetailerVariantParams) (RetailerVariant, error) {
	row := q.db.QueryRow(ctx, upsertRetailerVariant, arg.StoreID, arg.VariantID, arg.SellingPriceMinor)
	var i RetailerVariant
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.VariantID,
		&i.SellingPriceMinor,
		&i.PriceUpdatedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const linkRetailerVariant = `-- name: LinkRetailerVariant :exec
INSERT INTO retailer_variants (store_id, variant_id)
VALUES ($1, $2)
ON CONFLICT (store_id, variant_id) DO NOTHING
`

type LinkRetailerVariantParams struct {
	StoreID   uuid.UUID
	VariantID uuid.UUID
}

// LinkRetailerVariant attaches a variant to a store without touching any
// selling price already set there.
func (q *Queries) LinkRetailerVariant(ctx context.Context, arg LinkRetailerVariantParams) error {
	_, err := q.db.Exec(ctx, linkRetailerVariant, arg.StoreID, arg.VariantID)
	return err
}

const getRetailerVariant = `-- name: GetRetailerVariant :one
SELECT id, store_id, variant_id, selling_price_minor, price_updated_at, created_at, updated_at
FROM retailer_variants
WHERE store_id = $1 AND variant_id = $2
`

type GetRetailerVariantParams struct {
	StoreID   uuid.UUID
	VariantID uuid.UUID
}

func (q *Queries) GetRetailerVariant(ctx context.Context, arg GetRetailerVariantParams) (RetailerVariant, error) {
	row := q.db.QueryRow(ctx, getRetailerVariant, arg.StoreID, arg.VariantID)
	var i RetailerVariant
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.VariantID,
		&i.SellingPriceMinor,
		&i.PriceUpdatedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
