package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const insertProcessedEvent = `-- name: InsertProcessedEvent :execrows
INSERT INTO processed_events (event_id, device_id, store_id, event_type)
VALUES ($1, $2, $3, $4)
ON CONFLICT (event_id) DO NOTHING
`

type InsertProcessedEventParams struct {
	EventID   string
	DeviceID  uuid.UUID
	StoreID   uuid.UUID
	EventType string
}

// InsertProcessedEvent returns 0 rows affected when the event id was
// already recorded, which is how replayed sync events are detected.
func (q *Queries) InsertProcessedEvent(ctx context.Context, arg InsertProcessedEventParams) (int64, error) {
	result, err := q.db.Exec(ctx, insertProcessedEvent,
		arg.EventID,
		arg.DeviceID,
		arg.StoreID,
		arg.EventType,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const createScanEvent = `-- name: CreateScanEvent :one
INSERT INTO scan_events (store_id, device_id, scan_value, mode, action, variant_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, store_id, device_id, scan_value, mode, action, variant_id, created_at
`

type CreateScanEventParams struct {
	StoreID   uuid.UUID
	DeviceID  pgtype.UUID
	ScanValue string
	Mode      string
	Action    string
	VariantID pgtype.UUID
}

func (q *Queries) CreateScanEvent(ctx context.Context, arg CreateScanEventParams) (ScanEvent, error) {
	row := q.db.QueryRow(ctx, createScanEvent,
		arg.StoreID,
		arg.DeviceID,
		arg.ScanValue,
		arg.Mode,
		arg.Action,
		arg.VariantID,
	)
	var i ScanEvent
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceID,
		&i.ScanValue,
		&i.Mode,
		&i.Action,
		&i.VariantID,
		&i.CreatedAt,
	)
	return i, err
}

const getLastScanEvent = `-- name: GetLastScanEvent :one
SELECT id, store_id, device_id, scan_value, mode, action, variant_id, created_at
FROM scan_events
WHERE store_id = $1 AND mode = $2 AND scan_value = $3
ORDER BY created_at DESC
LIMIT 1
`

type GetLastScanEventParams struct {
	StoreID   uuid.UUID
	Mode      string
	ScanValue string
}

// GetLastScanEvent returns the most recent identical scan in a store and
// mode. Backed by the (store_id, mode, scan_value, created_at DESC) index.
func (q *Queries) GetLastScanEvent(ctx context.Context, arg GetLastScanEventParams) (ScanEvent, error) {
	row := q.db.QueryRow(ctx, getLastScanEvent, arg.StoreID, arg.Mode, arg.ScanValue)
	var i ScanEvent
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceID,
		&i.ScanValue,
		&i.Mode,
		&i.Action,
		&i.VariantID,
		&i.CreatedAt,
	)
	return i, err
}

const listScanEventsByStore = `-- name: ListScanEventsByStore :many
SELECT id, store_id, device_id, scan_value, mode, action, variant_id, created_at
FROM scan_events
WHERE store_id = $1
ORDER BY created_at DESC
LIMIT $2
`

type ListScanEventsByStoreParams struct {
	StoreID uuid.UUID
	Limit   int32
}

func (q *Queries) ListScanEventsByStore(ctx context.Context, arg ListScanEventsByStoreParams) ([]ScanEvent, error) {
	rows, err := q.db.Query(ctx, listScanEventsByStore, arg.StoreID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ScanEvent
	for rows.Next() {
		var i ScanEvent
		if err := rows.Scan(
			&i.ID,
			&i.StoreID,
			&i.DeviceID,
			&i.ScanValue,
			&i.Mode,
			&i.Action,
			&i.VariantID,
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

const createPosEvent = `-- name: CreatePosEvent :one
INSERT INTO pos_events (device_id, store_id, event_name, payload)
VALUES ($1, $2, $3, $4)
RETURNING id, device_id, store_id, event_name, payload, created_at
`

type CreatePosEventParams struct {
	DeviceID  pgtype.UUID
	StoreID   pgtype.UUID
	EventName string
	Payload   []byte
}

func (q *Queries) CreatePosEvent(ctx context.Context, arg CreatePosEventParams) (PosEvent, error) {
	row := q.db.QueryRow(ctx, createPosEvent,
		arg.DeviceID,
		arg.StoreID,
		arg.EventName,
		arg.Payload,
	)
	var i PosEvent
	err := row.Scan(
		&i.ID,
		&i.DeviceID,
		&i.StoreID,
		&i.EventName,
		&i.Payload,
		&i.CreatedAt,
	)
	return i, err
}

const listPosEventsByStore = `-- name: ListPosEventsByStore :many
SELECT id, device_id, store_id, event_name, payload, created_at
FROM pos_events
WHERE store_id = $1
ORDER BY created_at DESC
LIMIT $2
`

type ListPosEventsByStoreParams struct {
	StoreID pgtype.UUID
	Limit   int32
}

func (q *Queries) ListPosEventsByStore(ctx context.Context, arg ListPosEventsByStoreParams) ([]PosEvent, error) {
	rows, err := q.db.Query(ctx, listPosEventsByStore, arg.StoreID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PosEvent
	for rows.Next() {
		var i PosEvent
		if err := rows.Scan(
			&i.ID,
			&i.DeviceID,
			&i.StoreID,
			&i.EventName,
			&i.Payload,
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
