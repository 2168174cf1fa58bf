package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const upsertStoreInventoryRow = `-- name: UpsertStoreInventoryRow :exec
INSERT INTO store_inventory (store_id, global_product_id, available_qty)
VALUES ($1, $2, 0)
ON CONFLICT (store_id, global_product_id) DO NOTHING
`

type UpsertStoreInventoryRowParams struct {
	StoreID         uuid.UUID
	GlobalProductID uuid.UUID
}

func (q *Queries) UpsertStoreInventoryRow(ctx context.Context, arg UpsertStoreInventoryRowParams) error {
	_, err := q.db.Exec(ctx, upsertStoreInventoryRow, arg.StoreID, arg.GlobalProductID)
	return err
}

const lockStoreInventory = `-- name: LockStoreInventory :one
SELECT store_id, global_product_id, available_qty, updated_at
FROM store_inventory
WHERE store_id = $1 AND global_product_id = $2
FOR UPDATE
`

type LockStoreInventoryParams struct {
	StoreID         uuid.UUID
	GlobalProductID uuid.UUID
}

func (q *Queries) LockStoreInventory(ctx context.Context, arg LockStoreInventoryParams) (StoreInventory, error) {
	row := q.db.QueryRow(ctx, lockStoreInventory, arg.StoreID, arg.GlobalProductID)
	var i StoreInventory
	err := row.Scan(
		&i.StoreID,
		&i.GlobalProductID,
		&i.AvailableQty,
		&i.UpdatedAt,
	)
	return i, err
}

const updateStoreInventoryQty = `-- name: UpdateStoreInventoryQty :one
UPDATE store_inventory
SET available_qty = $3, updated_at = now()
WHERE store_id = $1 AND global_product_id = $2
RETURNING store_id, global_product_id, available_qty, updated_at
`

type UpdateStoreInventoryQtyParams struct {
	StoreID         uuid.UUID
	GlobalProductID uuid.UUID
	AvailableQty    int64
}

func (q *Queries) UpdateStoreInventoryQty(ctx context.Context, arg UpdateStoreInventoryQtyParams) (StoreInventory, error) {
	row := q.db.QueryRow(ctx, updateStoreInventoryQty, arg.StoreID, arg.GlobalProductID, arg.AvailableQty)
	var i StoreInventory
	err := row.Scan(
		&i.StoreID,
		&i.GlobalProductID,
		&i.AvailableQty,
		&i.UpdatedAt,
	)
	return i, err
}

const insertLedgerMovement = `-- name: InsertLedgerMovement :one
INSERT INTO inventory_ledger (store_id, global_product_id, movement_type, quantity, unit_cost_minor, unit_sell_minor, reason, reference_type, reference_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, store_id, global_product_id, movement_type, quantity, unit_cost_minor, unit_sell_minor, reason, reference_type, reference_id, created_at
`

type InsertLedgerMovementParams struct {
	StoreID         uuid.UUID
	GlobalProductID uuid.UUID
	MovementType    MovementType
	Quantity        int64
	UnitCostMinor   pgtype.Int8
	UnitSellMinor   pgtype.Int8
	Reason          pgtype.Text
	ReferenceType   pgtype.Text
	ReferenceID     pgtype.UUID
}

func (q *Queries) InsertLedgerMovement(ctx context.Context, arg InsertLedgerMovementParams) (InventoryLedger, error) {
	row := q.db.QueryRow(ctx, insertLedgerMovement,
		arg.StoreID,
		arg.GlobalProductID,
		arg.MovementType,
		arg.Quantity,
		arg.UnitCostMinor,
		arg.UnitSellMinor,
		arg.Reason,
		arg.ReferenceType,
		arg.ReferenceID,
	)
	var i InventoryLedger
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.GlobalProductID,
		&i.MovementType,
		&i.Quantity,
		&i.UnitCostMinor,
		&i.UnitSellMinor,
		&i.Reason,
		&i.ReferenceType,
		&i.ReferenceID,
		&i.CreatedAt,
	)
	return i, err
}

const sumLedgerQuantity = `-- name: SumLedgerQuantity :one
SELECT COALESCE(SUM(quantity), 0)::bigint
FROM inventory_ledger
WHERE store_id = $1 AND global_product_id = $2
`

type SumLedgerQuantityParams struct {
	StoreID         uuid.UUID
	GlobalProductID uuid.UUID
}

func (q *Queries) SumLedgerQuantity(ctx context.Context, arg SumLedgerQuantityParams) (int64, error) {
	row := q.db.QueryRow(ctx, sumLedgerQuantity, arg.StoreID, arg.GlobalProductID)
	var column_1 int64
	err := row.Scan(&column_1)
	return column_1, err
}

const getStoreInventory = `-- name: GetStoreInventory :one
SELECT store_id, global_product_id, available_qty, updated_at
FROM store_inventory
WHERE store_id = $1 AND global_product_id = $2
`

type GetStoreInventoryParams struct {
	StoreID         uuid.UUID
	GlobalProductID uuid.UUID
}

func (q *Queries) GetStoreInventory(ctx context.Context, arg GetStoreInventoryParams) (StoreInventory, error) {
	row := q.db.QueryRow(ctx, getStoreInventory, arg.StoreID, arg.GlobalProductID)
	var i StoreInventory
	err := row.Scan(
		&i.StoreID,
		&i.GlobalProductID,
		&i.AvailableQty,
		&i.UpdatedAt,
	)
	return i, err
}

const listStoreInventory = `-- name: ListStoreInventory :many
SELECT si.store_id, si.global_product_id, si.available_qty, si.updated_at,
       gp.global_name,
       sp.store_display_name, sp.sell_price_minor
FROM store_inventory si
JOIN global_products gp ON gp.id = si.global_product_id
LEFT JOIN store_products sp
    ON sp.store_id = si.store_id AND sp.global_product_id = si.global_product_id
WHERE si.store_id = $1
ORDER BY gp.global_name
`

type ListStoreInventoryRow struct {
	StoreID          uuid.UUID
	GlobalProductID  uuid.UUID
	AvailableQty     int64
	UpdatedAt        time.Time
	GlobalName       string
	StoreDisplayName pgtype.Text
	SellPriceMinor   pgtype.Int8
}

func (q *Queries) ListStoreInventory(ctx context.Context, storeID uuid.UUID) ([]ListStoreInventoryRow, error) {
	rows, err := q.db.Query(ctx, listStoreInventory, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListStoreInventoryRow
	for rows.Next() {
		var i ListStoreInventoryRow
		if err := rows.Scan(
			&i.StoreID,
			&i.GlobalProductID,
			&i.AvailableQty,
			&i.UpdatedAt,
			&i.GlobalName,
			&i.StoreDisplayName,
			&i.SellPriceMinor,
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

const listLowStock = `-- name: ListLowStock :many
SELECT si.global_product_id, si.available_qty, gp.global_name
FROM store_inventory si
JOIN global_products gp ON gp.id = si.global_product_id
WHERE si.store_id = $1 AND si.available_qty <= $2
ORDER BY si.available_qty, gp.global_name
`

type ListLowStockParams struct {
	StoreID      uuid.UUID
	AvailableQty int64
}

type ListLowStockRow struct {
	GlobalProductID uuid.UUID
	AvailableQty    int64
	GlobalName      string
}

func (q *Queries) ListLowStock(ctx context.Context, arg ListLowStockParams) ([]ListLowStockRow, error) {
	rows, err := q.db.Query(ctx, listLowStock, arg.StoreID, arg.AvailableQty)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListLowStockRow
	for rows.Next() {
		var i ListLowStockRow
		if err := rows.Scan(&i.GlobalProductID, &i.AvailableQty, &i.GlobalName); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listLedgerByStore = `-- name: ListLedgerByStore :many
SELECT l.id, l.store_id, l.global_product_id, l.movement_type, l.quantity,
       l.unit_cost_minor, l.unit_sell_minor, l.reason, l.reference_type, l.reference_id, l.created_at,
       gp.global_name
FROM inventory_ledger l
JOIN global_products gp ON gp.id = l.global_product_id
WHERE l.store_id = $1
ORDER BY l.created_at DESC
LIMIT $2
`

type ListLedgerByStoreParams struct {
	StoreID uuid.UUID
	Limit   int32
}

type ListLedgerByStoreRow struct {
	ID              uuid.UUID
	StoreID         uuid.UUID
	GlobalProductID uuid.UUID
	MovementType    MovementType
	Quantity        int64
	UnitCostMinor   pgtype.Int8
	UnitSellMinor   pgtype.Int8
	Reason          pgtype.Text
	ReferenceType   pgtype.Text
	ReferenceID     pgtype.UUID
	CreatedAt       time.Time
	GlobalName      string
}

func (q *Queries) ListLedgerByStore(ctx context.Context, arg ListLedgerByStoreParams) ([]ListLedgerByStoreRow, error) {
	rows, err := q.db.Query(ctx, listLedgerByStore, arg.StoreID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListLedgerByStoreRow
	for rows.Next() {
		var i ListLedgerByStoreRow
		if err := rows.Scan(
			&i.ID,
			&i.StoreID,
			&i.GlobalProductID,
			&i.MovementType,
			&i.Quantity,
			&i.UnitCostMinor,
			&i.UnitSellMinor,
			&i.Reason,
			&i.ReferenceType,
			&i.ReferenceID,
			&i.CreatedAt,
			&i.GlobalName,
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

const listLedgerByStoreProduct = `-- name: ListLedgerByStoreProduct :many
SELECT id, store_id, global_product_id, movement_type, quantity, unit_cost_minor, unit_sell_minor, reason, reference_type, reference_id, created_at
FROM inventory_ledger
WHERE store_id = $1 AND global_product_id = $2
ORDER BY created_at DESC
LIMIT $3
`

type ListLedgerByStoreProductParams struct {
	StoreID         uuid.UUID
	GlobalProductID uuid.UUID
	Limit           int32
}

func (q *Queries) ListLedgerByStoreProduct(ctx context.Context, arg ListLedgerByStoreProductParams) ([]InventoryLedger, error) {
	rows, err := q.db.Query(ctx, listLedgerByStoreProduct, arg.StoreID, arg.GlobalProductID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InventoryLedger
	for rows.Next() {
		var i InventoryLedger
		if err := rows.Scan(
			&i.ID,
			&i.StoreID,
			&i.GlobalProductID,
			&i.MovementType,
			&i.Quantity,
			&i.UnitCostMinor,
			&i.UnitSellMinor,
			&i.Reason,
			&i.ReferenceType,
			&i.ReferenceID,
			&i.CreatedAt,
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

const reconcileInventory = `-- name: ReconcileInventory :many
SELECT si.global_product_id, gp.global_name, si.available_qty,
       COALESCE(l.ledger_qty, 0)::bigint AS ledger_qty
FROM store_inventory si
JOIN global_products gp ON gp.id = si.global_product_id
LEFT JOIN (
    SELECT global_product_id, SUM(quantity) AS ledger_qty
    FROM inventory_ledger
    WHERE store_id = $1
    GROUP BY global_product_id
) l ON l.global_product_id = si.global_product_id
WHERE si.store_id = $1
ORDER BY gp.global_name
`

type ReconcileInventoryRow struct {
	GlobalProductID uuid.UUID
	GlobalName      string
	AvailableQty    int64
	LedgerQty       int64
}

func (q *Queries) ReconcileInventory(ctx context.Context, storeID uuid.UUID) ([]ReconcileInventoryRow, error) {
	rows, err := q.db.Query(ctx, reconcileInventory, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReconcileInventoryRow
	for rows.Next() {
		var i ReconcileInventoryRow
		if err := rows.Scan(
			&i.GlobalProductID,
			&i.GlobalName,
			&i.AvailableQty,
			&i.LedgerQty,
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

const upsertBulkInventoryRow = `-- name: UpsertBulkInventoryRow :exec
INSERT INTO bulk_inventory (store_id, product_id, base_unit, quantity_base)
VALUES ($1, $2, $3, 0)
ON CONFLICT (store_id, product_id) DO NOTHING
`

type UpsertBulkInventoryRowParams struct {
	StoreID   uuid.UUID
	ProductID uuid.UUID
	BaseUnit  string
}

func (q *Queries) UpsertBulkInventoryRow(ctx context.Context, arg UpsertBulkInventoryRowParams) error {
	_, err := q.db.Exec(ctx, upsertBulkInventoryRow, arg.StoreID, arg.ProductID, arg.BaseUnit)
	return err
}

const lockBulkInventory = `-- name: LockBulkInventory :one
SELECT store_id, product_id, base_unit, quantity_base, updated_at
FROM bulk_inventory
WHERE store_id = $1 AND product_id = $2
FOR UPDATE
`

type LockBulkInventoryParams struct {
	StoreID   uuid.UUID
	ProductID uuid.UUID
}

func (q *Queries) LockBulkInventory(ctx context.Context, arg LockBulkInventoryParams) (BulkInventory, error) {
	row := q.db.QueryRow(ctx, lockBulkInventory, arg.StoreID, arg.ProductID)
	var i BulkInventory
	err := row.Scan(
		&i.StoreID,
		&i.ProductID,
		&i.BaseUnit,
		&i.QuantityBase,
		&i.UpdatedAt,
	)
	return i, err
}

const updateBulkInventoryQty = `-- name: UpdateBulkInventoryQty :one
UPDATE bulk_inventory
SET quantity_base = $3, updated_at = now()
WHERE store_id = $1 AND product_id = $2
RETURNING store_id, product_id, base_unit, quantity_base, updated_at
`

type UpdateBulkInventoryQtyParams struct {
	StoreID      uuid.UUID
	ProductID    uuid.UUID
	QuantityBase int64
}

func (q *Queries) UpdateBulkInventoryQty(ctx context.Context, arg UpdateBulkInventoryQtyParams) (BulkInventory, error) {
	row := q.db.QueryRow(ctx, updateBulkInventoryQty, arg.StoreID, arg.ProductID, arg.QuantityBase)
	var i BulkInventory
	err := row.Scan(
		&i.StoreID,
		&i.ProductID,
		&i.BaseUnit,
		&i.QuantityBase,
		&i.UpdatedAt,
	)
	return i, err
}

const listBulkInventoryByStore = `-- name: ListBulkInventoryByStore :many
SELECT bi.store_id, bi.product_id, bi.base_unit, bi.quantity_base, bi.updated_at,
       p.name AS product_name
FROM bulk_inventory bi
JOIN products p ON p.id = bi.product_id
WHERE bi.store_id = $1
ORDER BY p.name
`

type ListBulkInventoryByStoreRow struct {
	StoreID      uuid.UUID
	ProductID    uuid.UUID
	BaseUnit     string
	QuantityBase int64
	UpdatedAt    time.Time
	ProductName  string
}

func (q *Queries) ListBulkInventoryByStore(ctx context.Context, storeID uuid.UUID) ([]ListBulkInventoryByStoreRow, error) {
	rows, err := q.db.Query(ctx, listBulkInventoryByStore, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListBulkInventoryByStoreRow
	for rows.Next() {
		var i ListBulkInventoryByStoreRow
		if err := rows.Scan(
			&i.StoreID,
			&i.ProductID,
			&i.BaseUnit,
			&i.QuantityBase,
			&i.UpdatedAt,
			&i.ProductName,
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
