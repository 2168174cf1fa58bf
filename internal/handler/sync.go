package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/middleware"
	"github.com/supermandi/api/internal/service"
)

// maxSyncBatch bounds one upload so a device that hoarded events for a
// week cannot hold a connection for minutes.
const maxSyncBatch = 500

// SyncServicer defines the service methods needed by the sync handler.
// Satisfied by *service.SyncService; narrow interface for testability.
type SyncServicer interface {
	ProcessBatch(ctx context.Context, req service.SyncRequest) (*service.SyncResponse, error)
}

// TelemetryStore defines the database methods needed to record raw
// device telemetry. Satisfied by *database.Queries.
type TelemetryStore interface {
	CreatePosEvent(ctx context.Context, arg database.CreatePosEventParams) (database.PosEvent, error)
}

// SyncHandler drains device outboxes and accepts loose telemetry.
type SyncHandler struct {
	svc   SyncServicer
	store TelemetryStore
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(svc SyncServicer, store TelemetryStore) *SyncHandler {
	return &SyncHandler{svc: svc, store: store}
}

// RegisterRoutes registers the sync endpoints on the given Chi router.
func (h *SyncHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sync", h.Sync)
	r.Post("/events", h.RecordEvent)
}

// --- Request types ---

type syncRequest struct {
	Events             []service.SyncEvent `json:"events"`
	PendingOutboxCount int32               `json:"pendingOutboxCount"`
	AppVersion         string              `json:"appVersion"`
}

type telemetryRequest struct {
	EventName string          `json:"eventName"`
	Payload   json.RawMessage `json:"payload"`
}

// --- Handlers ---

// Sync handles POST /sync: the device's offline outbox, applied one
// event per transaction so a poison event cannot wedge the batch.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Events) > maxSyncBatch {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "batch_too_large"})
		return
	}

	resp, err := h.svc.ProcessBatch(r.Context(), service.SyncRequest{
		StoreID:            uuid.UUID(device.StoreID.Bytes),
		DeviceID:           device.ID,
		PendingOutboxCount: req.PendingOutboxCount,
		AppVersion:         req.AppVersion,
		Events:             req.Events,
	})
	if err != nil {
		log.Printf("ERROR: process sync batch: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// RecordEvent handles POST /events: fire-and-forget telemetry the
// device reports outside the sync pipeline (app opens, print failures).
func (h *SyncHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	device := middleware.DeviceFromContext(r.Context())
	if device == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "device_unauthorized"})
		return
	}

	var req telemetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	name := strings.TrimSpace(req.EventName)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "eventName is required"})
		return
	}

	if _, err := h.store.CreatePosEvent(r.Context(), database.CreatePosEventParams{
		DeviceID:  pgtype.UUID{Bytes: device.ID, Valid: true},
		StoreID:   device.StoreID,
		EventName: name,
		Payload:   req.Payload,
	}); err != nil {
		log.Printf("ERROR: record pos event: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}
