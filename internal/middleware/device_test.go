package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/middleware"
)

// --- Mock store ---

type mockDeviceStore struct {
	devices map[string]database.GetDeviceByTokenRow
	dbErr   bool
	touched []uuid.UUID
}

func newMockDeviceStore() *mockDeviceStore {
	return &mockDeviceStore{devices: make(map[string]database.GetDeviceByTokenRow)}
}

func (m *mockDeviceStore) GetDeviceByToken(_ context.Context, token pgtype.Text) (database.GetDeviceByTokenRow, error) {
	if m.dbErr {
		return database.GetDeviceByTokenRow{}, errors.New("connection refused")
	}
	d, ok := m.devices[token.String]
	if !ok {
		return database.GetDeviceByTokenRow{}, pgx.ErrNoRows
	}
	return d, nil
}

func (m *mockDeviceStore) TouchDeviceSeen(_ context.Context, id uuid.UUID) error {
	m.touched = append(m.touched, id)
	return nil
}

func enrolledDevice(storeID uuid.UUID) database.GetDeviceByTokenRow {
	return database.GetDeviceByTokenRow{
		ID:           uuid.New(),
		StoreID:      pgtype.UUID{Bytes: storeID, Valid: true},
		Active:       true,
		Label:        "counter-1",
		DeviceType:   "HANDHELD",
		PrintingMode: "BLUETOOTH",
		StoreName:    "Mandi Fresh",
		StoreActive:  true,
	}
}

// --- Helpers ---

func deviceRequest(t *testing.T, mw func(http.Handler) http.Handler, method, target, token string, body interface{}) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	var seen *http.Request
	r := chi.NewRouter()
	r.With(mw).MethodFunc(method, "/stores/{storeId}/ping", func(w http.ResponseWriter, req *http.Request) {
		seen = req
		w.WriteHeader(http.StatusOK)
	})
	r.With(mw).MethodFunc(method, "/ping", func(w http.ResponseWriter, req *http.Request) {
		seen = req
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("x-device-token", token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr, seen
}

func errorToken(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp["error"]
}

// --- DeviceAuth tests ---

func TestDeviceAuth_MissingToken(t *testing.T) {
	store := newMockDeviceStore()
	rr, _ := deviceRequest(t, middleware.DeviceAuth(store), "GET", "/ping", "", nil)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if got := errorToken(t, rr); got != "device_unauthorized" {
		t.Errorf("error: got %q, want device_unauthorized", got)
	}
}

func TestDeviceAuth_UnknownToken(t *testing.T) {
	store := newMockDeviceStore()
	rr, _ := deviceRequest(t, middleware.DeviceAuth(store), "GET", "/ping", "no-such-token", nil)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if got := errorToken(t, rr); got != "device_unauthorized" {
		t.Errorf("error: got %q, want device_unauthorized", got)
	}
}

func TestDeviceAuth_DatabaseDown(t *testing.T) {
	store := newMockDeviceStore()
	store.dbErr = true
	rr, _ := deviceRequest(t, middleware.DeviceAuth(store), "GET", "/ping", "tok", nil)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	if got := errorToken(t, rr); got != "database unavailable" {
		t.Errorf("error: got %q, want 'database unavailable'", got)
	}
}

func TestDeviceAuth_NotEnrolled(t *testing.T) {
	store := newMockDeviceStore()
	d := enrolledDevice(uuid.New())
	d.StoreID = pgtype.UUID{}
	store.devices["tok"] = d

	rr, _ := deviceRequest(t, middleware.DeviceAuth(store), "GET", "/ping", "tok", nil)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
	if got := errorToken(t, rr); got != "device_not_enrolled" {
		t.Errorf("error: got %q, want device_not_enrolled", got)
	}
}

func TestDeviceAuth_InactiveDevice(t *testing.T) {
	store := newMockDeviceStore()
	d := enrolledDevice(uuid.New())
	d.Active = false
	store.devices["tok"] = d

	rr, _ := deviceRequest(t, middleware.DeviceAuth(store), "GET", "/ping", "tok", nil)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
	if got := errorToken(t, rr); got != "device_inactive" {
		t.Errorf("error: got %q, want device_inactive", got)
	}
}

func TestDeviceAuth_InactiveStore(t *testing.T) {
	store := newMockDeviceStore()
	d := enrolledDevice(uuid.New())
	d.StoreActive = false
	store.devices["tok"] = d

	rr, _ := deviceRequest(t, middleware.DeviceAuth(store), "GET", "/ping", "tok", nil)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
	if got := errorToken(t, rr); got != "store_inactive" {
		t.Errorf("error: got %q, want store_inactive", got)
	}
}

func TestDeviceAuth_Valid(t *testing.T) {
	store := newMockDeviceStore()
	storeID := uuid.New()
	d := enrolledDevice(storeID)
	store.devices["tok"] = d

	rr, seen := deviceRequest(t, middleware.DeviceAuth(store), "GET", "/ping", "tok", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	got := middleware.DeviceFromContext(seen.Context())
	if got == nil {
		t.Fatal("expected device in context")
	}
	if got.ID != d.ID {
		t.Errorf("device ID: got %v, want %v", got.ID, d.ID)
	}
	if uuid.UUID(got.StoreID.Bytes) != storeID {
		t.Errorf("store ID: got %v, want %v", uuid.UUID(got.StoreID.Bytes), storeID)
	}
	if len(store.touched) != 1 || store.touched[0] != d.ID {
		t.Errorf("expected last-seen touch for %v, got %v", d.ID, store.touched)
	}
}

func TestDeviceAuth_PathStoreMismatch(t *testing.T) {
	store := newMockDeviceStore()
	store.devices["tok"] = enrolledDevice(uuid.New())

	rr, _ := deviceRequest(t, middleware.DeviceAuth(store), "GET", "/stores/"+uuid.New().String()+"/ping", "tok", nil)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
	if got := errorToken(t, rr); got != "store_mismatch" {
		t.Errorf("error: got %q, want store_mismatch", got)
	}
}

func TestDeviceAuth_PathStoreMatch(t *testing.T) {
	store := newMockDeviceStore()
	storeID := uuid.New()
	store.devices["tok"] = enrolledDevice(storeID)

	rr, _ := deviceRequest(t, middleware.DeviceAuth(store), "GET", "/stores/"+storeID.String()+"/ping", "tok", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestDeviceAuth_QueryStoreMismatch(t *testing.T) {
	store := newMockDeviceStore()
	store.devices["tok"] = enrolledDevice(uuid.New())

	rr, _ := deviceRequest(t, middleware.DeviceAuth(store), "GET", "/ping?storeId="+uuid.New().String(), "tok", nil)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
	if got := errorToken(t, rr); got != "store_mismatch" {
		t.Errorf("error: got %q, want store_mismatch", got)
	}
}

func TestDeviceAuth_BodyStoreMismatchNested(t *testing.T) {
	store := newMockDeviceStore()
	store.devices["tok"] = enrolledDevice(uuid.New())

	body := map[string]interface{}{
		"events": []interface{}{
			map[string]interface{}{
				"eventType": "SALE_CREATED",
				"payload":   map[string]interface{}{"storeId": uuid.New().String()},
			},
		},
	}
	rr, _ := deviceRequest(t, middleware.DeviceAuth(store), "POST", "/ping", "tok", body)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
	if got := errorToken(t, rr); got != "store_mismatch" {
		t.Errorf("error: got %q, want store_mismatch", got)
	}
}

func TestDeviceAuth_BodyStoreMatchKeepsBodyReadable(t *testing.T) {
	store := newMockDeviceStore()
	storeID := uuid.New()
	store.devices["tok"] = enrolledDevice(storeID)

	body := map[string]interface{}{"storeId": storeID.String(), "note": "keep me"}
	rr, seen := deviceRequest(t, middleware.DeviceAuth(store), "POST", "/ping", "tok", body)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	raw, err := io.ReadAll(seen.Body)
	if err != nil {
		t.Fatalf("read downstream body: %v", err)
	}
	var parsed map[string]string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("downstream body no longer parses: %v", err)
	}
	if parsed["note"] != "keep me" {
		t.Errorf("downstream body: got %v", parsed)
	}
}

// --- DeviceStatus tests ---

func TestDeviceStatus_CarriesInactiveDeviceThrough(t *testing.T) {
	store := newMockDeviceStore()
	d := enrolledDevice(uuid.New())
	d.Active = false
	d.StoreActive = false
	store.devices["tok"] = d

	rr, seen := deviceRequest(t, middleware.DeviceStatus(store), "GET", "/ping", "tok", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	got := middleware.DeviceFromContext(seen.Context())
	if got == nil {
		t.Fatal("expected device in context")
	}
	if got.Active {
		t.Error("expected raw inactive flag in context")
	}
}

func TestDeviceStatus_StillRequiresKnownToken(t *testing.T) {
	store := newMockDeviceStore()
	rr, _ := deviceRequest(t, middleware.DeviceStatus(store), "GET", "/ping", "no-such-token", nil)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
