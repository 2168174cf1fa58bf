package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/handler"
	"github.com/supermandi/api/internal/middleware"
)

// --- Mock DeviceStore (middleware + handler) ---

type mockDeviceStore struct {
	byToken    map[string]database.GetDeviceByTokenRow
	stores     map[uuid.UUID]database.GetStoreStatusRow
	heartbeats []database.UpdateDeviceHeartbeatParams
	touched    []uuid.UUID
}

func newMockDeviceStore() *mockDeviceStore {
	return &mockDeviceStore{
		byToken: make(map[string]database.GetDeviceByTokenRow),
		stores:  make(map[uuid.UUID]database.GetStoreStatusRow),
	}
}

func (m *mockDeviceStore) GetDeviceByToken(_ context.Context, token pgtype.Text) (database.GetDeviceByTokenRow, error) {
	d, ok := m.byToken[token.String]
	if !ok {
		return database.GetDeviceByTokenRow{}, pgx.ErrNoRows
	}
	return d, nil
}

func (m *mockDeviceStore) TouchDeviceSeen(_ context.Context, id uuid.UUID) error {
	m.touched = append(m.touched, id)
	return nil
}

func (m *mockDeviceStore) UpdateDeviceHeartbeat(_ context.Context, arg database.UpdateDeviceHeartbeatParams) error {
	m.heartbeats = append(m.heartbeats, arg)
	return nil
}

func (m *mockDeviceStore) GetStoreStatus(_ context.Context, id uuid.UUID) (database.GetStoreStatusRow, error) {
	s, ok := m.stores[id]
	if !ok {
		return database.GetStoreStatusRow{}, pgx.ErrNoRows
	}
	return s, nil
}

// addDevice registers an active device bound to an active store and
// returns its token.
func (m *mockDeviceStore) addDevice(deviceID, storeID uuid.UUID) string {
	token := "token-" + deviceID.String()
	m.byToken[token] = database.GetDeviceByTokenRow{
		ID:                 deviceID,
		StoreID:            pgtype.UUID{Bytes: storeID, Valid: true},
		Active:             true,
		Label:              "counter-1",
		DeviceType:         "HANDHELD",
		PrintingMode:       "BLUETOOTH",
		AppVersion:         pgtype.Text{String: "1.4.0", Valid: true},
		LastSeenOnline:     pgtype.Timestamptz{Time: time.Now().Add(-time.Minute), Valid: true},
		PendingOutboxCount: 2,
		StoreName:          "Test Store",
		StoreActive:        true,
	}
	m.stores[storeID] = database.GetStoreStatusRow{ID: storeID, Name: "Test Store", Active: true}
	return token
}

// --- Helpers ---

func setupDeviceRouter(store *mockDeviceStore) *chi.Mux {
	h := handler.NewDeviceHandler(store)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.DeviceStatus(store))
		h.RegisterStatusRoutes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.DeviceAuth(store))
		h.RegisterRoutes(r)
	})
	return r
}

func doDeviceRequest(t *testing.T, router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("x-device-token", token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// --- /devices/me tests ---

func TestDevicesMe(t *testing.T) {
	store := newMockDeviceStore()
	deviceID := uuid.New()
	storeID := uuid.New()
	token := store.addDevice(deviceID, storeID)

	router := setupDeviceRouter(store)
	rr := doDeviceRequest(t, router, "GET", "/devices/me", token)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeBody(t, rr)
	if resp["deviceId"] != deviceID.String() {
		t.Errorf("deviceId: got %v, want %s", resp["deviceId"], deviceID)
	}
	if resp["storeId"] != storeID.String() {
		t.Errorf("storeId: got %v, want %s", resp["storeId"], storeID)
	}
	if resp["storeName"] != "Test Store" {
		t.Errorf("storeName: got %v, want Test Store", resp["storeName"])
	}
}

func TestDevicesMe_MissingToken(t *testing.T) {
	router := setupDeviceRouter(newMockDeviceStore())
	rr := doDeviceRequest(t, router, "GET", "/devices/me", "")

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	resp := decodeBody(t, rr)
	if resp["error"] != "device_unauthorized" {
		t.Errorf("error: got %v, want device_unauthorized", resp["error"])
	}
}

func TestDevicesMe_UnknownToken(t *testing.T) {
	router := setupDeviceRouter(newMockDeviceStore())
	rr := doDeviceRequest(t, router, "GET", "/devices/me", "no-such-token")

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestDevicesMe_InactiveDevice(t *testing.T) {
	store := newMockDeviceStore()
	token := store.addDevice(uuid.New(), uuid.New())
	d := store.byToken[token]
	d.Active = false
	store.byToken[token] = d

	router := setupDeviceRouter(store)
	rr := doDeviceRequest(t, router, "GET", "/devices/me", token)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
	resp := decodeBody(t, rr)
	if resp["error"] != "device_inactive" {
		t.Errorf("error: got %v, want device_inactive", resp["error"])
	}
}

func TestDevicesMe_InactiveStore(t *testing.T) {
	store := newMockDeviceStore()
	token := store.addDevice(uuid.New(), uuid.New())
	d := store.byToken[token]
	d.StoreActive = false
	store.byToken[token] = d

	router := setupDeviceRouter(store)
	rr := doDeviceRequest(t, router, "GET", "/devices/me", token)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
	resp := decodeBody(t, rr)
	if resp["error"] != "store_inactive" {
		t.Errorf("error: got %v, want store_inactive", resp["error"])
	}
}

// --- /ui-status tests ---

func TestUIStatus_InactiveStoreStillAnswers(t *testing.T) {
	store := newMockDeviceStore()
	token := store.addDevice(uuid.New(), uuid.New())
	d := store.byToken[token]
	d.StoreActive = false
	store.byToken[token] = d

	router := setupDeviceRouter(store)
	rr := doDeviceRequest(t, router, "GET", "/ui-status", token)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if resp["storeActive"] != false {
		t.Errorf("storeActive: got %v, want false", resp["storeActive"])
	}
	if resp["deviceActive"] != true {
		t.Errorf("deviceActive: got %v, want true", resp["deviceActive"])
	}
	if resp["serverTime"] == nil {
		t.Error("expected serverTime in snapshot")
	}
}

func TestUIStatus_Heartbeat(t *testing.T) {
	store := newMockDeviceStore()
	deviceID := uuid.New()
	token := store.addDevice(deviceID, uuid.New())

	router := setupDeviceRouter(store)
	rr := doDeviceRequest(t, router, "GET", "/ui-status?pendingOutboxCount=5&appVersion=1.5.0", token)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	if len(store.heartbeats) != 1 {
		t.Fatalf("expected 1 heartbeat update, got %d", len(store.heartbeats))
	}
	hb := store.heartbeats[0]
	if hb.ID != deviceID {
		t.Errorf("heartbeat device: got %s, want %s", hb.ID, deviceID)
	}
	if hb.PendingOutboxCount != 5 {
		t.Errorf("pendingOutboxCount: got %d, want 5", hb.PendingOutboxCount)
	}
	if hb.AppVersion.String != "1.5.0" {
		t.Errorf("appVersion: got %q, want 1.5.0", hb.AppVersion.String)
	}

	resp := decodeBody(t, rr)
	if resp["pendingOutboxCount"] != float64(5) {
		t.Errorf("pendingOutboxCount in response: got %v, want 5", resp["pendingOutboxCount"])
	}
}

func TestUIStatus_InvalidHeartbeatCount(t *testing.T) {
	store := newMockDeviceStore()
	token := store.addDevice(uuid.New(), uuid.New())

	router := setupDeviceRouter(store)
	rr := doDeviceRequest(t, router, "GET", "/ui-status?pendingOutboxCount=-1", token)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUIStatus_TouchesLastSeen(t *testing.T) {
	store := newMockDeviceStore()
	deviceID := uuid.New()
	token := store.addDevice(deviceID, uuid.New())

	router := setupDeviceRouter(store)
	doDeviceRequest(t, router, "GET", "/ui-status", token)

	if len(store.touched) != 1 || store.touched[0] != deviceID {
		t.Errorf("expected device %s to be touched, got %v", deviceID, store.touched)
	}
}

// --- /stores/{storeId}/status tests ---

func TestStoreStatus(t *testing.T) {
	store := newMockDeviceStore()
	storeID := uuid.New()
	token := store.addDevice(uuid.New(), storeID)

	router := setupDeviceRouter(store)
	rr := doDeviceRequest(t, router, "GET", "/stores/"+storeID.String()+"/status", token)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if resp["storeId"] != storeID.String() {
		t.Errorf("storeId: got %v, want %s", resp["storeId"], storeID)
	}
	if resp["active"] != true {
		t.Errorf("active: got %v, want true", resp["active"])
	}
	if resp["name"] != "Test Store" {
		t.Errorf("name: got %v, want Test Store", resp["name"])
	}
}

func TestStoreStatus_NotFound(t *testing.T) {
	store := newMockDeviceStore()
	token := store.addDevice(uuid.New(), uuid.New())

	router := setupDeviceRouter(store)
	rr := doDeviceRequest(t, router, "GET", "/stores/"+uuid.NewString()+"/status", token)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestStoreStatus_InvalidID(t *testing.T) {
	store := newMockDeviceStore()
	token := store.addDevice(uuid.New(), uuid.New())

	router := setupDeviceRouter(store)
	rr := doDeviceRequest(t, router, "GET", "/stores/not-a-uuid/status", token)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
