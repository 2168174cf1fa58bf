package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/middleware"
)

// DeviceStore defines the database methods needed by the device
// endpoints. Satisfied by *database.Queries.
type DeviceStore interface {
	UpdateDeviceHeartbeat(ctx context.Context, arg database.UpdateDeviceHeartbeatParams) error
	GetStoreStatus(ctx context.Context, id uuid.UUID) (database.GetStoreStatusRow, error)
}

// DeviceHandler serves the device identity and status endpoints.
type DeviceHandler struct {
	store DeviceStore
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(store DeviceStore) *DeviceHandler {
	return &DeviceHandler{store: store}
}

// RegisterRoutes registers the endpoints that require a fully
// authorized device.
func (h *DeviceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/devices/me", h.Me)
}

// RegisterStatusRoutes registers the permissive status endpoints; these
// answer even for inactive devices and stores so the client can show
// why it is locked out.
func (h *DeviceHandler) RegisterStatusRoutes(r chi.Router) {
	r.Get("/ui-status", h.UIStatus)
	r.Get("/stores/{storeId}/status", h.StoreStatus)
}

// --- Response types ---

type deviceMeResponse struct {
	DeviceID  uuid.UUID `json:"deviceId"`
	StoreID   uuid.UUID `json:"storeId"`
	StoreName string    `json:"storeName"`
}

type uiStatusResponse struct {
	DeviceID            uuid.UUID  `json:"deviceId"`
	StoreID             *uuid.UUID `json:"storeId,omitempty"`
	StoreName           string     `json:"storeName,omitempty"`
	DeviceActive        bool       `json:"deviceActive"`
	StoreActive         bool       `json:"storeActive"`
	Label               string     `json:"label"`
	DeviceType          string     `json:"deviceType"`
	PrintingMode        string     `json:"printingMode"`
	AppVersion          string     `json:"appVersion,omitempty"`
	LastSeenOnline      *time.Time `json:"lastSeenOnline,omitempty"`
	LastSyncAt          *time.Time `json:"lastSyncAt,omitempty"`
	PendingOutboxCount  int32      `json:"pendingOutboxCount"`
	ScanLookupV2Enabled bool       `json:"scanLookupV2Enabled"`
	ServerTime          time.Time  `json:"serverTime"`
}

type storeStatusResponse struct {
	StoreID uuid.UUID `json:"storeId"`
	Active  bool      `json:"active"`
	Name    string    `json:"name"`
}

// --- Handlers ---

// Me handles GET /devices/me.
func (h *DeviceHandler) Me(w http.ResponseWriter, r *http.Request) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	writeJSON(w, http.StatusOK, deviceMeResponse{
		DeviceID:  device.ID,
		StoreID:   uuid.UUID(device.StoreID.Bytes),
		StoreName: device.StoreName,
	})
}

// UIStatus handles GET /ui-status. The client polls this as its
// heartbeat; reporting pendingOutboxCount (and optionally appVersion)
// as query params persists them on the device row.
func (h *DeviceHandler) UIStatus(w http.ResponseWriter, r *http.Request) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	resp := uiStatusResponse{
		DeviceID:            device.ID,
		DeviceActive:        device.Active,
		StoreActive:         device.StoreActive,
		Label:               device.Label,
		DeviceType:          device.DeviceType,
		PrintingMode:        device.PrintingMode,
		PendingOutboxCount:  device.PendingOutboxCount,
		ScanLookupV2Enabled: device.StoreScanLookupV2Enabled,
		ServerTime:          time.Now().UTC(),
	}
	if device.StoreID.Valid {
		id := uuid.UUID(device.StoreID.Bytes)
		resp.StoreID = &id
		resp.StoreName = device.StoreName
	}
	if device.AppVersion.Valid {
		resp.AppVersion = device.AppVersion.String
	}
	if device.LastSeenOnline.Valid {
		t := device.LastSeenOnline.Time
		resp.LastSeenOnline = &t
	}
	if device.LastSyncAt.Valid {
		t := device.LastSyncAt.Time
		resp.LastSyncAt = &t
	}

	if raw := r.URL.Query().Get("pendingOutboxCount"); raw != "" {
		count, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || count < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pendingOutboxCount"})
			return
		}
		err = h.store.UpdateDeviceHeartbeat(r.Context(), database.UpdateDeviceHeartbeatParams{
			ID:                 device.ID,
			PendingOutboxCount: int32(count),
			AppVersion:         optionalText(r.URL.Query().Get("appVersion")),
		})
		if err != nil {
			log.Printf("ERROR: update device heartbeat: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp.PendingOutboxCount = int32(count)
	}

	writeJSON(w, http.StatusOK, resp)
}

// StoreStatus handles GET /stores/{storeId}/status.
func (h *DeviceHandler) StoreStatus(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "storeId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid store ID"})
		return
	}

	status, err := h.store.GetStoreStatus(r.Context(), storeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "store not found"})
			return
		}
		log.Printf("ERROR: get store status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, storeStatusResponse{
		StoreID: status.ID,
		Active:  status.Active,
		Name:    status.Name,
	})
}
