package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createDevice = `-- name: CreateDevice :one
INSERT INTO pos_devices (store_id, device_token, label, device_type, printing_mode, app_version)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, store_id, device_token, active, label, device_type, printing_mode, app_version, last_seen_online, last_sync_at, pending_outbox_count, created_at, updated_at
`

type CreateDeviceParams struct {
	StoreID      pgtype.UUID
	DeviceToken  pgtype.Text
	Label        string
	DeviceType   string
	PrintingMode string
	AppVersion   pgtype.Text
}

func (q *Queries) CreateDevice(ctx context.Context, arg CreateDeviceParams) (PosDevice, error) {
	row := q.db.QueryRow(ctx, createDevice,
		arg.StoreID,
		arg.DeviceToken,
		arg.Label,
		arg.DeviceType,
		arg.PrintingMode,
		arg.AppVersion,
	)
	var i PosDevice
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceToken,
		&i.Active,
		&i.Label,
		&i.DeviceType,
		&i.PrintingMode,
		&i.AppVersion,
		&i.LastSeenOnline,
		&i.LastSyncAt,
		&i.PendingOutboxCount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getDevice = `-- name: GetDevice :one
SELECT id, store_id, device_token, active, label, device_type, printing_mode, app_version, last_seen_online, last_sync_at, pending_outbox_count, created_at, updated_at
FROM pos_devices
WHERE id = $1
`

func (q *Queries) GetDevice(ctx context.Context, id uuid.UUID) (PosDevice, error) {
	row := q.db.QueryRow(ctx, getDevice, id)
	var i PosDevice
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceToken,
		&i.Active,
		&i.Label,
		&i.DeviceType,
		&i.PrintingMode,
		&i.AppVersion,
		&i.LastSeenOnline,
		&i.LastSyncAt,
		&i.PendingOutboxCount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getDeviceByStoreAndLabel = `-- name: GetDeviceByStoreAndLabel :one
SELECT id, store_id, device_token, active, label, device_type, printing_mode, app_version, last_seen_online, last_sync_at, pending_outbox_count, created_at, updated_at
FROM pos_devices
WHERE store_id = $1 AND label = $2
`

type GetDeviceByStoreAndLabelParams struct {
	StoreID pgtype.UUID
	Label   string
}

func (q *Queries) GetDeviceByStoreAndLabel(ctx context.Context, arg GetDeviceByStoreAndLabelParams) (PosDevice, error) {
	row := q.db.QueryRow(ctx, getDeviceByStoreAndLabel, arg.StoreID, arg.Label)
	var i PosDevice
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceToken,
		&i.Active,
		&i.Label,
		&i.DeviceType,
		&i.PrintingMode,
		&i.AppVersion,
		&i.LastSeenOnline,
		&i.LastSyncAt,
		&i.PendingOutboxCount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getDeviceByToken = `-- name: GetDeviceByToken :one
SELECT d.id, d.store_id, d.active, d.label, d.device_type, d.printing_mode,
       d.app_version, d.last_seen_online, d.last_sync_at, d.pending_outbox_count,
       COALESCE(s.name, '') AS store_name,
       COALESCE(s.upi_vpa IS NOT NULL AND s.upi_vpa <> '', false) AS store_active,
       COALESCE(s.scan_lookup_v2_enabled, false) AS store_scan_lookup_v2_enabled
FROM pos_devices d
LEFT JOIN stores s ON s.id = d.store_id
WHERE d.device_token = $1
`

type GetDeviceByTokenRow struct {
	ID                       uuid.UUID
	StoreID                  pgtype.UUID
	Active                   bool
	Label                    string
	DeviceType               string
	PrintingMode             string
	AppVersion               pgtype.Text
	LastSeenOnline           pgtype.Timestamptz
	LastSyncAt               pgtype.Timestamptz
	PendingOutboxCount       int32
	StoreName                string
	StoreActive              bool
	StoreScanLookupV2Enabled bool
}

func (q *Queries) GetDeviceByToken(ctx context.Context, deviceToken pgtype.Text) (GetDeviceByTokenRow, error) {
	row := q.db.QueryRow(ctx, getDeviceByToken, deviceToken)
	var i GetDeviceByTokenRow
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.Active,
		&i.Label,
		&i.DeviceType,
		&i.PrintingMode,
		&i.AppVersion,
		&i.LastSeenOnline,
		&i.LastSyncAt,
		&i.PendingOutboxCount,
		&i.StoreName,
		&i.StoreActive,
		&i.StoreScanLookupV2Enabled,
	)
	return i, err
}

const listDevicesByStore = `-- name: ListDevicesByStore :many
SELECT id, store_id, device_token, active, label, device_type, printing_mode, app_version, last_seen_online, last_sync_at, pending_outbox_count, created_at, updated_at
FROM pos_devices
WHERE store_id = $1
ORDER BY created_at
`

func (q *Queries) ListDevicesByStore(ctx context.Context, storeID pgtype.UUID) ([]PosDevice, error) {
	rows, err := q.db.Query(ctx, listDevicesByStore, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PosDevice
	for rows.Next() {
		var i PosDevice
		if err := rows.Scan(
			&i.ID,
			&i.StoreID,
			&i.DeviceToken,
			&i.Active,
			&i.Label,
			&i.DeviceType,
			&i.PrintingMode,
			&i.AppVersion,
			&i.LastSeenOnline,
			&i.LastSyncAt,
			&i.PendingOutboxCount,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const setDeviceActive = `-- name: SetDeviceActive :one
UPDATE pos_devices
SET active = $2, updated_at = now()
WHERE id = $1
RETURNING id, store_id, device_token, active, label, device_type, printing_mode, app_version, last_seen_online, last_sync_at, pending_outbox_count, created_at, updated_at
`

type SetDeviceActiveParams struct {
	ID     uuid.UUID
	Active bool
}

func (q *Queries) SetDeviceActive(ctx context.Context, arg SetDeviceActiveParams) (PosDevice, error) {
	row := q.db.QueryRow(ctx, setDeviceActive, arg.ID, arg.Active)
	var i PosDevice
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceToken,
		&i.Active,
		&i.Label,
		&i.DeviceType,
		&i.PrintingMode,
		&i.AppVersion,
		&i.LastSeenOnline,
		&i.LastSyncAt,
		&i.PendingOutboxCount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const touchDeviceSeen = `-- name: TouchDeviceSeen :exec
UPDATE pos_devices
SET last_seen_online = now(), updated_at = now()
WHERE id = $1
`

func (q *Queries) TouchDeviceSeen(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, touchDeviceSeen, id)
	return err
}

const updateDeviceHeartbeat = `-- name: UpdateDeviceHeartbeat :exec
UPDATE pos_devices
SET last_seen_online = now(),
    pending_outbox_count = $2,
    app_version = COALESCE($3, app_version),
    updated_at = now()
WHERE id = $1
`

type UpdateDeviceHeartbeatParams struct {
	ID                 uuid.UUID
	PendingOutboxCount int32
	AppVersion         pgtype.Text
}

func (q *Queries) UpdateDeviceHeartbeat(ctx context.Context, arg UpdateDeviceHeartbeatParams) error {
	_, err := q.db.Exec(ctx, updateDeviceHeartbeat, arg.ID, arg.PendingOutboxCount, arg.AppVersion)
	return err
}

const updateDeviceSynced = `-- name: UpdateDeviceSynced :exec
UPDATE pos_devices
SET last_sync_at = now(),
    last_seen_online = now(),
    pending_outbox_count = $2,
    updated_at = now()
WHERE id = $1
`

type UpdateDeviceSyncedParams struct {
	ID                 uuid.UUID
	PendingOutboxCount int32
}

func (q *Queries) UpdateDeviceSynced(ctx context.Context, arg UpdateDeviceSyncedParams) error {
	_, err := q.db.Exec(ctx, updateDeviceSynced, arg.ID, arg.PendingOutboxCount)
	return err
}

const updateDeviceToken = `-- name: UpdateDeviceToken :one
UPDATE pos_devices
SET device_token = $2,
    active = true,
    app_version = COALESCE($3, app_version),
    printing_mode = COALESCE($4, printing_mode),
    updated_at = now()
WHERE id = $1
RETURNING id, store_id, device_token, active, label, device_type, printing_mode, app_version, last_seen_online, last_sync_at, pending_outbox_count, created_at, updated_at
`

type UpdateDeviceTokenParams struct {
	ID           uuid.UUID
	DeviceToken  pgtype.Text
	AppVersion   pgtype.Text
	PrintingMode pgtype.Text
}

func (q *Queries) UpdateDeviceToken(ctx context.Context, arg UpdateDeviceTokenParams) (PosDevice, error) {
	row := q.db.QueryRow(ctx, updateDeviceToken,
		arg.ID,
		arg.DeviceToken,
		arg.AppVersion,
		arg.PrintingMode,
	)
	var i PosDevice
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.DeviceToken,
		&i.Active,
		&i.Label,
		&i.DeviceType,
		&i.PrintingMode,
		&i.AppVersion,
		&i.LastSeenOnline,
		&i.LastSyncAt,
		&i.PendingOutboxCount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createEnrollmentCode = `-- name: CreateEnrollmentCode :one
INSERT INTO device_enrollment_codes (code, store_id, expires_at)
VALUES ($1, $2, $3)
RETURNING code, store_id, expires_at, used_at, created_at
`

type CreateEnrollmentCodeParams struct {
	Code      string
	StoreID   uuid.UUID
	ExpiresAt time.Time
}

func (q *Queries) CreateEnrollmentCode(ctx context.Context, arg CreateEnrollmentCodeParams) (DeviceEnrollmentCode, error) {
	row := q.db.QueryRow(ctx, createEnrollmentCode, arg.Code, arg.StoreID, arg.ExpiresAt)
	var i DeviceEnrollmentCode
	err := row.Scan(
		&i.Code,
		&i.StoreID,
		&i.ExpiresAt,
		&i.UsedAt,
		&i.CreatedAt,
	)
	return i, err
}

const getEnrollmentCodeForUpdate = `-- name: GetEnrollmentCodeForUpdate :one
SELECT code, store_id, expires_at, used_at, created_at
FROM device_enrollment_codes
WHERE code = $1
FOR UPDATE
`

func (q *Queries) GetEnrollmentCodeForUpdate(ctx context.Context, code string) (DeviceEnrollmentCode, error) {
	row := q.db.QueryRow(ctx, getEnrollmentCodeForUpdate, code)
	var i DeviceEnrollmentCode
	err := row.Scan(
		&i.Code,
		&i.StoreID,
		&i.ExpiresAt,
		&i.UsedAt,
		&i.CreatedAt,
	)
	return i, err
}

const markEnrollmentCodeUsed = `-- name: MarkEnrollmentCodeUsed :execrows
UPDATE device_enrollment_codes
SET used_at = now()
WHERE code = $1 AND used_at IS NULL
`

func (q *Queries) MarkEnrollmentCodeUsed(ctx context.Context, code string) (int64, error) {
	result, err := q.db.Exec(ctx, markEnrollmentCodeUsed, code)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listEnrollmentCodesByStore = `-- name: ListEnrollmentCodesByStore :many
SELECT code, store_id, expires_at, used_at, created_at
FROM device_enrollment_codes
WHERE store_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListEnrollmentCodesByStore(ctx context.Context, storeID uuid.UUID) ([]DeviceEnrollmentCode, error) {
	rows, err := q.db.Query(ctx, listEnrollmentCodesByStore, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DeviceEnrollmentCode
	for rows.Next() {
		var i DeviceEnrollmentCode
		if err := rows.Scan(
			&i.Code,
			&i.StoreID,
			&i.ExpiresAt,
			&i.UsedAt,
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
