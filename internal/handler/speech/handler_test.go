package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	modelchat "github.com/zhouzirui/hotel-frontdesk/backend/internal/model/chat"
	speechmodel "github.com/zhouzirui/hotel-frontdesk/backend/internal/model/speech"
	chatservice "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/chat"
	speechsvc "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/speech"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/voice"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/storage/sqlite"
)

type fakeTranscriber struct {
	text     string
	err      error
	filename string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ []byte, filename string) (string, error) {
	f.filename = filename
	return f.text, f.err
}

type fakeSynthesizer struct {
	err error
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, text string) (speechmodel.Audio, error) {
	if f.err != nil {
		return speechmodel.Audio{}, f.err
	}
	return speechmodel.Audio{Data: []byte("mp3:" + text), Format: "mp3"}, nil
}

type stubResponder struct{ reply string }

func (s stubResponder) Generate(context.Context, []modelchat.Message, string) (string, error) {
	return s.reply, nil
}

type deps struct {
	transcriber speechsvc.Transcriber
	synthesizer speechsvc.Synthesizer
	maxBytes    int64
	store       chatservice.Store
}

func setupRouter(d deps) *chi.Mux {
	sp := speechsvc.NewService(nil, d.transcriber, d.synthesizer, nil)
	var store chatservice.Store = chatservice.NewMemoryStore()
	if d.store != nil {
		store = d.store
	}
	chatSvc := chatservice.NewService(store, stubResponder{reply: "The pool is open 6 AM to 10 PM."}, chatservice.Config{}, nil)
	pipeline := voice.NewPipeline(sp, chatSvc, d.maxBytes, nil)

	r := chi.NewRouter()
	New(sp, pipeline, chatSvc, nil).RegisterRoutes(r)
	return r
}

func audioForm(t *testing.T, contentType string, audio []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="recording.webm"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart err: %v", err)
	}
	if _, err := part.Write(audio); err != nil {
		t.Fatalf("write audio err: %v", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField err: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("writer.Close err: %v", err)
	}
	return body, w.FormDataContentType()
}

func post(r http.Handler, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestVoiceRoundTrip(t *testing.T) {
	r := setupRouter(deps{
		transcriber: &fakeTranscriber{text: "When does the pool open?"},
		synthesizer: &fakeSynthesizer{},
	})

	body, ct := audioForm(t, "audio/webm;codecs=opus", []byte("opus"), map[string]string{"session_id": "room-12"})
	rr := post(r, "/voice", body, ct)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var res speechmodel.VoiceResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.SessionID != "room-12" || res.Transcription != "When does the pool open?" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.HasAudio {
		t.Fatal("expected audio in response")
	}
	audio, _ := base64.StdEncoding.DecodeString(res.ResponseAudio)
	if string(audio) != "mp3:The pool is open 6 AM to 10 PM." {
		t.Fatalf("unexpected audio %q", audio)
	}
}

func TestVoiceUnknownGuestIs400(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "voice.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	r := setupRouter(deps{transcriber: &fakeTranscriber{text: "Any rooms tonight?"}, store: store})

	body, ct := audioForm(t, "audio/webm", []byte("opus"), map[string]string{"session_id": "v1", "guest_id": "999"})
	rr := post(r, "/voice", body, ct)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "guest not found") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestVoiceRejectsUnsupportedType(t *testing.T) {
	r := setupRouter(deps{transcriber: &fakeTranscriber{text: "hi"}})

	body, ct := audioForm(t, "text/plain", []byte("hello"), nil)
	rr := post(r, "/voice", body, ct)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rr.Code)
	}
}

func TestVoiceRejectsOversizedAudio(t *testing.T) {
	r := setupRouter(deps{transcriber: &fakeTranscriber{text: "hi"}, maxBytes: 16})

	body, ct := audioForm(t, "audio/wav", bytes.Repeat([]byte("a"), 64), nil)
	rr := post(r, "/voice", body, ct)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestVoiceMissingAudio(t *testing.T) {
	r := setupRouter(deps{})

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	_ = w.WriteField("session_id", "x")
	_ = w.Close()

	rr := post(r, "/voice", body, w.FormDataContentType())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestVoiceWithoutSpeechServicesDegrades(t *testing.T) {
	r := setupRouter(deps{})

	body, ct := audioForm(t, "audio/webm", []byte("opus"), nil)
	rr := post(r, "/voice", body, ct)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var res speechmodel.VoiceResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Degraded != speechmodel.DegradedTranscription || res.ResponseText != chatservice.ApologyMessage {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCapabilities(t *testing.T) {
	r := setupRouter(deps{transcriber: &fakeTranscriber{}})

	var bodies []string
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/voice/capabilities", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		bodies = append(bodies, strings.TrimSpace(rr.Body.String()))
	}

	if bodies[0] != `{"speech_to_text":true,"text_to_speech":false}` {
		t.Fatalf("unexpected body %s", bodies[0])
	}
	if bodies[1] != bodies[0] {
		t.Fatalf("capabilities changed between calls: %s vs %s", bodies[0], bodies[1])
	}
}

func TestSpeechToText(t *testing.T) {
	tr := &fakeTranscriber{text: "  late checkout please "}
	r := setupRouter(deps{transcriber: tr})

	body, ct := audioForm(t, "application/octet-stream", []byte("wav"), nil)
	rr := post(r, "/speech-to-text", body, ct)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"transcription":"late checkout please"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestSpeechToTextUnavailable(t *testing.T) {
	r := setupRouter(deps{})

	body, ct := audioForm(t, "audio/webm", []byte("x"), nil)
	rr := post(r, "/speech-to-text", body, ct)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestSpeechToTextFailure(t *testing.T) {
	r := setupRouter(deps{transcriber: &fakeTranscriber{err: errors.New("whisper down")}})

	body, ct := audioForm(t, "audio/webm", []byte("x"), nil)
	rr := post(r, "/speech-to-text", body, ct)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestTextToSpeech(t *testing.T) {
	r := setupRouter(deps{synthesizer: &fakeSynthesizer{}})

	req := httptest.NewRequest(http.MethodPost, "/text-to-speech", strings.NewReader("text=Welcome+to+the+Grand+Plaza"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != "attachment; filename=response.mp3" {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if rr.Body.String() != "mp3:Welcome to the Grand Plaza" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestTextToSpeechErrors(t *testing.T) {
	unavailable := setupRouter(deps{})
	req := httptest.NewRequest(http.MethodPost, "/text-to-speech", strings.NewReader("text=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	unavailable.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	r := setupRouter(deps{synthesizer: &fakeSynthesizer{}})
	req = httptest.NewRequest(http.MethodPost, "/text-to-speech", strings.NewReader("text=+"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	failing := setupRouter(deps{synthesizer: &fakeSynthesizer{err: errors.New("quota")}})
	req = httptest.NewRequest(http.MethodPost, "/text-to-speech", strings.NewReader("text=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	failing.ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
