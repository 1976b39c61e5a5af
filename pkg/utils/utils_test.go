package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusBadRequest, "message cannot be empty")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}
	if body := rec.Body.String(); body != "{\"error\":\"message cannot be empty\"}\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestSendSSEEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)
	if err := SendSSEEvent(rec, rec, "delta", map[string]string{"content": "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := SendSSEChunk(rec, rec, map[string]bool{"done": true}); err != nil {
		t.Fatalf("send chunk: %v", err)
	}

	want := "event: delta\ndata: {\"content\":\"hi\"}\n\ndata: {\"done\":true}\n\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected stream %q", rec.Body.String())
	}
	if !rec.Flushed {
		t.Fatal("expected flush")
	}
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatal("missing sse content type")
	}
}
