package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/hotel"
	chatService "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/chat"
	hotelService "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/hotel"
	speechService "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/speech"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/voice"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/storage/sqlite"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	chatSvc := chatService.NewService(store, nil, chatService.Config{}, nil)
	speechSvc := speechService.NewService(nil, nil, nil, nil)
	return NewRouter(Services{
		Chat:   chatSvc,
		Hotel:  hotelService.NewService(store, hotel.FactSheet{Name: "Grand Plaza Hotel"}, nil),
		Speech: speechSvc,
		Voice:  voice.NewPipeline(speechSvc, chatSvc, 0, nil),
	}, nil)
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"healthy"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestChatWithoutModelFallsBack(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"What time is checkout?"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "technical difficulties") {
		t.Fatalf("expected apology, got %s", rr.Body.String())
	}
}

func TestRoutesAreMounted(t *testing.T) {
	r := newTestRouter(t)
	for _, path := range []string{"/api/", "/api/voice/capabilities", "/api/room-types", "/api/hotel"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/text-to-speech", strings.NewReader("text=hi")))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
