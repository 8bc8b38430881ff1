package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"slotbook/internal/config"
	"slotbook/internal/domain"
	"slotbook/internal/models"
	"slotbook/internal/notify"
	"slotbook/internal/repository"
	"slotbook/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testDate = "2024-01-10"

type failingStore struct {
	*repository.MemoryBookingStore
	insertErr error
}

func (s *failingStore) Insert(ctx context.Context, rec models.BookingRecord) (string, error) {
	if s.insertErr != nil {
		return "", s.insertErr
	}
	return s.MemoryBookingStore.Insert(ctx, rec)
}

type testEnv struct {
	t       *testing.T
	server  *httptest.Server
	manager *service.Manager
	store   *failingStore
}

func newTestEnv(t *testing.T, cfg config.APIConfig) *testEnv {
	t.Helper()
	store := &failingStore{MemoryBookingStore: repository.NewMemoryBookingStore()}
	manager := service.NewManager(store, nil, notify.ContextNotifier{}, nil, service.Options{
		MaxCustomersPerSlot: 2,
		Catalog:             models.MustCatalog([]string{"09:00 AM", "10:00 AM"}),
	}, nil)
	require.NoError(t, manager.LoadIndex(context.Background()))

	srv := NewHTTPServer(cfg, manager, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{t: t, server: ts, manager: manager, store: store}
}

func (e *testEnv) do(method, path, session string, body any) (*http.Response, map[string]any) {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(e.t, err)
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func (e *testEnv) book(session, slot, name string) string {
	e.t.Helper()
	resp, _ := e.do(http.MethodPut, "/api/v1/selection", session, slotRequest{Date: testDate, Time: slot})
	require.Equal(e.t, http.StatusOK, resp.StatusCode)

	resp, body := e.do(http.MethodPost, "/api/v1/bookings", session, bookingRequest{
		Date: testDate, Time: slot, Name: name, Email: name + "@example.com", Phone: "555",
	})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)
	return body["booking"].(map[string]any)["id"].(string)
}

func TestHealthAndCatalog(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	resp, body := env.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	resp, body = env.do(http.MethodGet, "/api/v1/catalog", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"09:00 AM", "10:00 AM"}, body["time_slots"])
	assert.Equal(t, 2.0, body["max_customers_per_slot"])
}

func TestBookingFlow(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	id := env.book("s1", "09:00 AM", "ann")
	env.book("s2", "09:00 AM", "bob")

	t.Run("DaySlots", func(t *testing.T) {
		resp, body := env.do(http.MethodGet, "/api/v1/slots?date="+testDate, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		slots := body["slots"].([]any)
		require.Len(t, slots, 2)
		first := slots[0].(map[string]any)
		assert.Equal(t, "full", first["status"])
		assert.Equal(t, "FULL", first["label"])
		second := slots[1].(map[string]any)
		assert.Equal(t, "2 spots left", second["label"])
	})

	t.Run("SelectFullSlotConflicts", func(t *testing.T) {
		resp, _ := env.do(http.MethodPut, "/api/v1/selection", "s3", slotRequest{Date: testDate, Time: "09:00 AM"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("CreateReturnsNotice", func(t *testing.T) {
		env.do(http.MethodPut, "/api/v1/selection", "s4", slotRequest{Date: testDate, Time: "10:00 AM"})
		resp, body := env.do(http.MethodPost, "/api/v1/bookings", "s4", bookingRequest{
			Date: testDate, Time: "10:00 AM", Name: "cid", Email: "cid@example.com", Phone: "555",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		notices := body["notices"].([]any)
		require.Len(t, notices, 1)
		assert.Equal(t, "success", notices[0].(map[string]any)["severity"])
		assert.Equal(t, "limited", body["availability"].(map[string]any)["status"])
	})

	t.Run("CancelNeedsConfirm", func(t *testing.T) {
		path := "/api/v1/bookings/" + id + "?date=" + testDate + "&time=09:00%20AM"
		resp, body := env.do(http.MethodDelete, path, "", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "declined", body["error"])

		resp, body = env.do(http.MethodDelete, path+"&confirm=true", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 1.0, body["availability"].(map[string]any)["booked_count"])

		resp, _ = env.do(http.MethodDelete, path+"&confirm=true", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("ListBookings", func(t *testing.T) {
		resp, body := env.do(http.MethodGet, "/api/v1/bookings", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, body["bookings"].([]any), 2)
	})
}

func TestSelectionEndpoints(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	resp, body := env.do(http.MethodGet, "/api/v1/selection", "s1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["selection"])

	env.do(http.MethodPut, "/api/v1/selection", "s1", slotRequest{Date: testDate, Time: "10:00 AM"})
	_, body = env.do(http.MethodGet, "/api/v1/selection", "s1", nil)
	assert.Equal(t, "10:00 AM", body["selection"].(map[string]any)["time"])

	resp, _ = env.do(http.MethodDelete, "/api/v1/selection", "s1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, body = env.do(http.MethodGet, "/api/v1/selection", "s1", nil)
	assert.Nil(t, body["selection"])
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"missing date", http.MethodGet, "/api/v1/slots", nil, http.StatusBadRequest},
		{"bad date", http.MethodGet, "/api/v1/slots?date=10/01/2024", nil, http.StatusBadRequest},
		{"availability without time", http.MethodGet, "/api/v1/slots/availability?date=" + testDate, nil, http.StatusBadRequest},
		{"unknown slot", http.MethodPut, "/api/v1/selection", slotRequest{Date: testDate, Time: "03:00 AM"}, http.StatusBadRequest},
		{"no selection", http.MethodPost, "/api/v1/bookings", bookingRequest{Date: testDate, Time: "09:00 AM", Name: "a", Email: "a@b", Phone: "1"}, http.StatusBadRequest},
		{"unknown fields", http.MethodPost, "/api/v1/bookings", map[string]string{"when": "now"}, http.StatusBadRequest},
		{"wrong method", http.MethodPost, "/api/v1/catalog", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.do(tt.method, tt.path, "", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestPersistFailureIs503(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	env.store.insertErr = errors.New("disk full")

	env.do(http.MethodPut, "/api/v1/selection", "s", slotRequest{Date: testDate, Time: "09:00 AM"})
	resp, body := env.do(http.MethodPost, "/api/v1/bookings", "s", bookingRequest{
		Date: testDate, Time: "09:00 AM", Name: "ann", Email: "ann@example.com", Phone: "555",
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	notices := body["notices"].([]any)
	assert.Equal(t, models.MessageBookingSaveError, notices[0].(map[string]any)["message"])

	// the selection survives, so a retry can succeed
	env.store.insertErr = nil
	resp, _ = env.do(http.MethodPost, "/api/v1/bookings", "s", bookingRequest{
		Date: testDate, Time: "09:00 AM", Name: "ann", Email: "ann@example.com", Phone: "555",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestReloadAndExport(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	env.book("s", "09:00 AM", "ann")

	_, err := env.store.Insert(context.Background(), models.NewRecord(models.Booking{Date: testDate, Time: "10:00 AM", Name: "external"}))
	require.NoError(t, err)

	resp, body := env.do(http.MethodPost, "/api/v1/index/reload", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, body["index"].(map[string]any)["bookings"])

	httpResp, err := http.Get(env.server.URL + "/api/v1/bookings/export")
	require.NoError(t, err)
	defer httpResp.Body.Close()
	assert.Equal(t, http.StatusOK, httpResp.StatusCode)

	f, err := excelize.OpenReader(httpResp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrSlotFull))
	assert.Equal(t, http.StatusNotFound, statusFor(domain.ErrNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(errors.Join(domain.ErrLoadFailure, errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("other")))
}
