package handler

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/database"
)

// upiVpaPattern accepts handle@psp shapes like supermandi.fc@okaxis.
var upiVpaPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{1,255}@[a-zA-Z]{2,64}$`)

// enrollmentCodeAlphabet leaves out 0/O/1/I so codes survive being read
// over the phone.
const enrollmentCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	defaultEnrollmentTTL = 15 * time.Minute
	maxEnrollmentTTL     = 24 * time.Hour
)

// StoreAdminStore defines the database methods needed by store admin
// handlers. Satisfied by *database.Queries.
type StoreAdminStore interface {
	CreateStore(ctx context.Context, arg database.CreateStoreParams) (database.Store, error)
	ListStores(ctx context.Context) ([]database.ListStoresRow, error)
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
	UpdateStore(ctx context.Context, arg database.UpdateStoreParams) (database.Store, error)
	ListDevicesByStore(ctx context.Context, storeID pgtype.UUID) ([]database.PosDevice, error)
	CreateEnrollmentCode(ctx context.Context, arg database.CreateEnrollmentCodeParams) (database.DeviceEnrollmentCode, error)
	ListEnrollmentCodesByStore(ctx context.Context, storeID uuid.UUID) ([]database.DeviceEnrollmentCode, error)
}

// StoreHandler manages the store fleet.
type StoreHandler struct {
	store StoreAdminStore
}

// NewStoreHandler creates a new StoreHandler.
func NewStoreHandler(store StoreAdminStore) *StoreHandler {
	return &StoreHandler{store: store}
}

// RegisterRoutes registers store admin endpoints on the given Chi router.
func (h *StoreHandler) RegisterRoutes(r chi.Router) {
	r.Post("/stores", h.Create)
	r.Get("/stores", h.List)
	r.Get("/stores/{storeId}", h.Get)
	r.Patch("/stores/{storeId}", h.Update)
	r.Post("/stores/{storeId}/enrollment-codes", h.MintEnrollmentCode)
	r.Get("/stores/{storeId}/enrollment-codes", h.ListEnrollmentCodes)
}

// --- Request / Response types ---

type createStoreRequest struct {
	Name   string `json:"name"`
	UpiVpa string `json:"upiVpa"`
}

type updateStoreRequest struct {
	Name                *string `json:"name"`
	UpiVpa              *string `json:"upiVpa"`
	ScanLookupV2Enabled *bool   `json:"scanLookupV2Enabled"`
}

type storeResponse struct {
	StoreID             uuid.UUID `json:"storeId"`
	Name                string    `json:"name"`
	UpiVpa              string    `json:"upiVpa,omitempty"`
	Active              bool      `json:"active"`
	ScanLookupV2Enabled bool      `json:"scanLookupV2Enabled"`
	CreatedAt           time.Time `json:"createdAt"`
	ActiveDevices       *int64    `json:"activeDevices,omitempty"`
}

type mintCodeRequest struct {
	TTLMinutes int `json:"ttlMinutes"`
}

type enrollmentCodeResponse struct {
	Code      string    `json:"code"`
	StoreID   uuid.UUID `json:"storeId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
}

// --- Handlers ---

// Create handles POST /stores. A store goes live the moment it carries
// a UPI VPA; without one it is created inactive.
func (h *StoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "storeName_required"})
		return
	}
	vpa := strings.TrimSpace(req.UpiVpa)
	if vpa != "" && !upiVpaPattern.MatchString(vpa) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "upi_vpa_invalid"})
		return
	}

	store, err := h.store.CreateStore(r.Context(), database.CreateStoreParams{
		Name:   name,
		UpiVpa: pgtype.Text{String: vpa, Valid: vpa != ""},
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "store_exists"})
			return
		}
		log.Printf("ERROR: create store: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, buildStoreResponse(store, nil))
}

// List handles GET /stores.
func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListStores(r.Context())
	if err != nil {
		log.Printf("ERROR: list stores: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	stores := make([]storeResponse, 0, len(rows))
	for _, row := range rows {
		count := row.ActiveDevices
		resp := storeResponse{
			StoreID:             row.ID,
			Name:                row.Name,
			Active:              row.UpiVpa.Valid && row.UpiVpa.String != "",
			ScanLookupV2Enabled: row.ScanLookupV2Enabled,
			CreatedAt:           row.CreatedAt,
			ActiveDevices:       &count,
		}
		if row.UpiVpa.Valid {
			resp.UpiVpa = row.UpiVpa.String
		}
		stores = append(stores, resp)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stores": stores})
}

// Get handles GET /stores/{storeId}.
func (h *StoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parseStoreID(w, r)
	if !ok {
		return
	}

	store, err := h.store.GetStore(r.Context(), storeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "store not found"})
			return
		}
		log.Printf("ERROR: get store: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	devices, err := h.store.ListDevicesByStore(r.Context(), pgtype.UUID{Bytes: storeID, Valid: true})
	if err != nil {
		log.Printf("ERROR: list store devices: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	var active int64
	for _, d := range devices {
		if d.Active {
			active++
		}
	}

	writeJSON(w, http.StatusOK, buildStoreResponse(store, &active))
}

// Update handles PATCH /stores/{storeId}. Only the fields present in
// the body change; clearing the VPA deactivates the store.
func (h *StoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parseStoreID(w, r)
	if !ok {
		return
	}

	var req updateStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params := database.UpdateStoreParams{ID: storeID}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "storeName_required"})
			return
		}
		params.Name = pgtype.Text{String: name, Valid: true}
	}
	if req.UpiVpa != nil {
		vpa := strings.TrimSpace(*req.UpiVpa)
		if vpa != "" && !upiVpaPattern.MatchString(vpa) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "upi_vpa_invalid"})
			return
		}
		params.UpiVpa = pgtype.Text{String: vpa, Valid: true}
	}
	if req.ScanLookupV2Enabled != nil {
		params.ScanLookupV2Enabled = pgtype.Bool{Bool: *req.ScanLookupV2Enabled, Valid: true}
	}

	store, err := h.store.UpdateStore(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "store not found"})
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "store_exists"})
			return
		}
		log.Printf("ERROR: update store: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, buildStoreResponse(store, nil))
}

// MintEnrollmentCode handles POST /stores/{storeId}/enrollment-codes.
func (h *StoreHandler) MintEnrollmentCode(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parseStoreID(w, r)
	if !ok {
		return
	}

	ttl := defaultEnrollmentTTL
	if r.ContentLength != 0 {
		var req mintCodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.TTLMinutes < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ttlMinutes"})
			return
		}
		if req.TTLMinutes > 0 {
			ttl = time.Duration(req.TTLMinutes) * time.Minute
			if ttl > maxEnrollmentTTL {
				ttl = maxEnrollmentTTL
			}
		}
	}

	if _, err := h.store.GetStore(r.Context(), storeID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "store not found"})
			return
		}
		log.Printf("ERROR: get store for code: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	code, err := newEnrollmentCode()
	if err != nil {
		log.Printf("ERROR: generate enrollment code: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	row, err := h.store.CreateEnrollmentCode(r.Context(), database.CreateEnrollmentCodeParams{
		Code:      code,
		StoreID:   storeID,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		log.Printf("ERROR: create enrollment code: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, enrollmentCodeResponse{
		Code:      row.Code,
		StoreID:   row.StoreID,
		ExpiresAt: row.ExpiresAt,
	})
}

// ListEnrollmentCodes handles GET /stores/{storeId}/enrollment-codes.
func (h *StoreHandler) ListEnrollmentCodes(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parseStoreID(w, r)
	if !ok {
		return
	}

	rows, err := h.store.ListEnrollmentCodesByStore(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: list enrollment codes: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	codes := make([]enrollmentCodeResponse, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, enrollmentCodeResponse{
			Code:      row.Code,
			StoreID:   row.StoreID,
			ExpiresAt: row.ExpiresAt,
			Used:      row.UsedAt.Valid,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"codes": codes})
}

// --- Helpers ---

func buildStoreResponse(store database.Store, activeDevices *int64) storeResponse {
	resp := storeResponse{
		StoreID:             store.ID,
		Name:                store.Name,
		Active:              store.UpiVpa.Valid && store.UpiVpa.String != "",
		ScanLookupV2Enabled: store.ScanLookupV2Enabled,
		CreatedAt:           store.CreatedAt,
		ActiveDevices:       activeDevices,
	}
	if store.UpiVpa.Valid {
		resp.UpiVpa = store.UpiVpa.String
	}
	return resp
}

// newEnrollmentCode draws an 8-character code from the phone-safe
// alphabet.
func newEnrollmentCode() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("code entropy: %w", err)
	}
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = enrollmentCodeAlphabet[int(b)%len(enrollmentCodeAlphabet)]
	}
	return string(out), nil
}

func parseStoreID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "storeId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "storeId_invalid"})
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: encoding response: %v", err)
	}
}
