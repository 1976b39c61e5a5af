package hotel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/hotel"
	hotelService "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/hotel"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/storage/sqlite"
)

var today = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "hotel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := hotelService.NewService(store, hotel.FactSheet{Name: "Grand Plaza Hotel", WiFiPassword: "secret"}, nil)
	svc.SetClock(func() time.Time { return today })

	r := chi.NewRouter()
	New(svc, nil).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestFactsHidePassword(t *testing.T) {
	r := setupRouter(t)
	rr := do(r, http.MethodGet, "/hotel", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Grand Plaza Hotel")
	assert.NotContains(t, rr.Body.String(), "secret")
}

func TestRoomTypes(t *testing.T) {
	r := setupRouter(t)
	rr := do(r, http.MethodGet, "/room-types", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var types []hotel.RoomTypeInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &types))
	assert.Len(t, types, 4)
}

func TestAvailableRoomsQuery(t *testing.T) {
	r := setupRouter(t)

	rr := do(r, http.MethodGet, "/rooms?check_in_date=2026-10-20&check_out_date=2026-10-22&room_type=Standard", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rooms []hotel.Room
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rooms))
	assert.Len(t, rooms, 2)

	rr = do(r, http.MethodGet, "/rooms?check_in_date=2026-10-22&check_out_date=2026-10-20", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(r, http.MethodGet, "/rooms?check_in_date=2026-10-18&check_out_date=2026-10-20", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(r, http.MethodGet, "/rooms?check_out_date=2026-10-20", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBookingLifecycle(t *testing.T) {
	r := setupRouter(t)

	rr := do(r, http.MethodPost, "/guest", map[string]string{"first_name": "Grace", "last_name": "Hopper", "email": "grace@example.com"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var guest hotel.Guest
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &guest))

	rr = do(r, http.MethodPost, "/guest", map[string]string{"first_name": "Grace", "last_name": "Hopper", "email": "grace@example.com"})
	assert.Equal(t, http.StatusOK, rr.Code)

	booking := map[string]any{
		"guest_id": guest.ID, "room_id": 4,
		"check_in_date": "2026-10-19", "check_out_date": "2026-10-21", "num_guests": 3,
	}
	rr = do(r, http.MethodPost, "/booking", booking)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created hotel.Booking
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "700", created.TotalAmount.String())

	rr = do(r, http.MethodPost, "/booking", booking)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(r, http.MethodPost, fmt.Sprintf("/booking/%d/checkout", created.ID), nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(r, http.MethodPost, fmt.Sprintf("/booking/%d/checkin", created.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"status":"checked_in"`)

	rr = do(r, http.MethodPost, fmt.Sprintf("/booking/%d/checkout", created.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"checked_out"`)

	rr = do(r, http.MethodGet, fmt.Sprintf("/guest/%d/bookings", guest.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []hotel.Booking
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestBookingErrors(t *testing.T) {
	r := setupRouter(t)

	rr := do(r, http.MethodPost, "/booking", map[string]any{"guest_id": 1, "room_id": 1, "check_in_date": "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(r, http.MethodPost, "/booking", map[string]any{
		"guest_id": 999, "room_id": 1, "check_in_date": "2026-10-20", "check_out_date": "2026-10-21",
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(r, http.MethodGet, "/guest/abc/bookings", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(r, http.MethodPost, "/booking/999/checkin", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(r, http.MethodPost, "/guest", map[string]string{"first_name": "No", "email": "bad"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
