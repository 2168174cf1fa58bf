package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/database"
)

// DeviceAdminStore defines the database methods needed by device admin
// handlers. Satisfied by *database.Queries.
type DeviceAdminStore interface {
	ListDevicesByStore(ctx context.Context, storeID pgtype.UUID) ([]database.PosDevice, error)
	SetDeviceActive(ctx context.Context, arg database.SetDeviceActiveParams) (database.PosDevice, error)
}

// DeviceHandler manages the device fleet from the back office.
type DeviceHandler struct {
	store DeviceAdminStore
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(store DeviceAdminStore) *DeviceHandler {
	return &DeviceHandler{store: store}
}

// RegisterRoutes registers device admin endpoints on the given Chi router.
func (h *DeviceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stores/{storeId}/devices", h.ListByStore)
	r.Post("/devices/{deviceId}/activate", h.Activate)
	r.Post("/devices/{deviceId}/deactivate", h.Deactivate)
}

// --- Response types ---

type adminDeviceResponse struct {
	DeviceID           uuid.UUID  `json:"deviceId"`
	Label              string     `json:"label"`
	DeviceType         string     `json:"deviceType"`
	PrintingMode       string     `json:"printingMode"`
	Active             bool       `json:"active"`
	AppVersion         string     `json:"appVersion,omitempty"`
	LastSeenOnline     *time.Time `json:"lastSeenOnline,omitempty"`
	LastSyncAt         *time.Time `json:"lastSyncAt,omitempty"`
	PendingOutboxCount int32      `json:"pendingOutboxCount"`
	EnrolledAt         time.Time  `json:"enrolledAt"`
}

// --- Handlers ---

// ListByStore handles GET /stores/{storeId}/devices.
func (h *DeviceHandler) ListByStore(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parseStoreID(w, r)
	if !ok {
		return
	}

	rows, err := h.store.ListDevicesByStore(r.Context(), pgtype.UUID{Bytes: storeID, Valid: true})
	if err != nil {
		log.Printf("ERROR: list devices: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	devices := make([]adminDeviceResponse, 0, len(rows))
	for _, row := range rows {
		devices = append(devices, buildDeviceResponse(row))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

// Activate handles POST /devices/{deviceId}/activate.
func (h *DeviceHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// Deactivate handles POST /devices/{deviceId}/deactivate. The device's
// token stops authenticating on its next request; nothing is revoked
// client-side.
func (h *DeviceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *DeviceHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	deviceID, err := uuid.Parse(chi.URLParam(r, "deviceId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid device ID"})
		return
	}

	device, err := h.store.SetDeviceActive(r.Context(), database.SetDeviceActiveParams{
		ID:     deviceID,
		Active: active,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "device not found"})
			return
		}
		log.Printf("ERROR: set device active: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"device": buildDeviceResponse(device)})
}

// --- Response builders ---

func buildDeviceResponse(d database.PosDevice) adminDeviceResponse {
	resp := adminDeviceResponse{
		DeviceID:           d.ID,
		Label:              d.Label,
		DeviceType:         d.DeviceType,
		PrintingMode:       d.PrintingMode,
		Active:             d.Active,
		PendingOutboxCount: d.PendingOutboxCount,
		EnrolledAt:         d.CreatedAt,
	}
	if d.AppVersion.Valid {
		resp.AppVersion = d.AppVersion.String
	}
	if d.LastSeenOnline.Valid {
		t := d.LastSeenOnline.Time
		resp.LastSeenOnline = &t
	}
	if d.LastSyncAt.Valid {
		t := d.LastSyncAt.Time
		resp.LastSyncAt = &t
	}
	return resp
}
