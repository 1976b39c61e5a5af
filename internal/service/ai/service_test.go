package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/chat"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/hotel"
)

type recordingModel struct {
	reply string
	err   error
	seen  []*schema.Message
}

func (m *recordingModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.seen = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *recordingModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.seen = input
	if m.err != nil {
		return nil, m.err
	}
	parts := strings.SplitAfter(m.reply, " ")
	chunks := make([]*schema.Message, 0, len(parts))
	for _, p := range parts {
		chunks = append(chunks, schema.AssistantMessage(p, nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

func testFacts() hotel.FactSheet {
	return hotel.FactSheet{
		Name:         "Grand Plaza Hotel",
		Address:      "123 Main Street",
		Phone:        "+1-555-123-4567",
		WiFiNetwork:  "GrandPlaza-Guest",
		WiFiPassword: "GrandPlaza2024",
		CheckInTime:  "3:00 PM",
		CheckOutTime: "11:00 AM",
		Amenities:    hotel.DefaultAmenities(),
	}
}

func TestBuildSystemPromptIncludesFacts(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	prompt := BuildSystemPrompt(testFacts(), hotel.Catalogue(), now)

	for _, want := range []string{
		"Grand Plaza Hotel",
		"WiFi Password: GrandPlaza2024",
		"Presidential Suite: $750/night (6 guests max)",
		"Check-out: 11:00 AM",
		"Valet parking ($25/night)",
		"2026-10-19 08:30:00",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q\n%s", want, prompt)
		}
	}
}

func TestCleanResponseStripsThinking(t *testing.T) {
	raw := "<think>the guest wants wifi\nlook it up</think>\n\nThe password is GrandPlaza2024.\n\n\nEnjoy!<thinking>done</thinking>"
	got := CleanResponse(raw)
	want := "The password is GrandPlaza2024.\nEnjoy!"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestGenerateSendsSystemHistoryAndQuery(t *testing.T) {
	fake := &recordingModel{reply: "<think>hmm</think>Our WiFi password is GrandPlaza2024."}
	svc, err := NewService(context.Background(), fake, testFacts(), Options{})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	history := []chat.Message{
		{Role: chat.RoleUser, Content: "Hello"},
		{Role: chat.RoleAssistant, Content: "Welcome!"},
	}
	reply, err := svc.Generate(context.Background(), history, "What is the wifi password?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Our WiFi password is GrandPlaza2024." {
		t.Fatalf("unexpected reply %q", reply)
	}

	if len(fake.seen) != 4 {
		t.Fatalf("expected system + 2 history + query, got %d messages", len(fake.seen))
	}
	if fake.seen[0].Role != schema.System || !strings.Contains(fake.seen[0].Content, "GrandPlaza2024") {
		t.Fatalf("expected system prompt with wifi password, got %+v", fake.seen[0])
	}
	if fake.seen[2].Role != schema.Assistant || fake.seen[2].Content != "Welcome!" {
		t.Fatalf("unexpected history message %+v", fake.seen[2])
	}
	if fake.seen[3].Role != schema.User || fake.seen[3].Content != "What is the wifi password?" {
		t.Fatalf("unexpected query message %+v", fake.seen[3])
	}
}

func TestGeneratePropagatesModelError(t *testing.T) {
	fake := &recordingModel{err: errors.New("upstream down")}
	svc, err := NewService(context.Background(), fake, testFacts(), Options{})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	if _, err := svc.Generate(context.Background(), nil, "hi"); err == nil {
		t.Fatal("expected error from failing model")
	}
}

func TestStreamRequiresStreamingEnabled(t *testing.T) {
	fake := &recordingModel{reply: "Pool opens at six."}
	svc, _ := NewService(context.Background(), fake, testFacts(), Options{})
	if _, err := svc.Stream(context.Background(), nil, "pool?"); err == nil {
		t.Fatal("expected error when streaming disabled")
	}

	svc, _ = NewService(context.Background(), fake, testFacts(), Options{Streaming: true})
	reader, err := svc.Stream(context.Background(), nil, "pool?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer reader.Close()

	var sb strings.Builder
	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("recv failed: %v", err)
		}
		sb.WriteString(chunk.Content)
	}
	if sb.String() != "Pool opens at six." {
		t.Fatalf("unexpected streamed text %q", sb.String())
	}
}

type ollamaChatRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Options map[string]any `json:"options"`
}

// fakeOllama speaks the /api/chat protocol: one JSON object, or NDJSON chunks when streaming.
func fakeOllama(t *testing.T, chunks []string, seen *ollamaChatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if seen != nil {
			*seen = req
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		if !req.Stream {
			_ = enc.Encode(map[string]any{
				"model":   req.Model,
				"message": map[string]string{"role": "assistant", "content": strings.Join(chunks, "")},
				"done":    true,
			})
			return
		}
		for _, c := range chunks {
			_ = enc.Encode(map[string]any{
				"model":   req.Model,
				"message": map[string]string{"role": "assistant", "content": c},
				"done":    false,
			})
			w.(http.Flusher).Flush()
		}
		_ = enc.Encode(map[string]any{
			"model":   req.Model,
			"message": map[string]string{"role": "assistant", "content": ""},
			"done":    true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaGenerateMapsRolesAndOptions(t *testing.T) {
	var seen ollamaChatRequest
	srv := fakeOllama(t, []string{"The pool is on the 3rd floor."}, &seen)

	m, err := NewOllamaChatModel(srv.URL, "llama3.2")
	if err != nil {
		t.Fatalf("NewOllamaChatModel err: %v", err)
	}

	out, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("You are a front desk assistant."),
		schema.UserMessage("Hi"),
		schema.AssistantMessage("Hello!", nil),
		schema.UserMessage("Where is the pool?"),
	}, model.WithTemperature(0.5), model.WithMaxTokens(64))
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if out.Role != schema.Assistant || out.Content != "The pool is on the 3rd floor." {
		t.Fatalf("unexpected message %+v", out)
	}

	if seen.Model != "llama3.2" || seen.Stream {
		t.Fatalf("unexpected request %+v", seen)
	}
	roles := make([]string, 0, len(seen.Messages))
	for _, msg := range seen.Messages {
		roles = append(roles, msg.Role)
	}
	if strings.Join(roles, ",") != "system,user,assistant,user" {
		t.Fatalf("unexpected roles %v", roles)
	}
	if seen.Options["temperature"] != 0.5 {
		t.Fatalf("expected temperature 0.5, got %v", seen.Options["temperature"])
	}
	if seen.Options["num_predict"] != float64(64) {
		t.Fatalf("expected num_predict 64, got %v", seen.Options["num_predict"])
	}
}

func TestOllamaStreamAssemblesChunks(t *testing.T) {
	srv := fakeOllama(t, []string{"Check-out ", "is at ", "11:00 AM."}, nil)

	m, err := NewOllamaChatModel(srv.URL, "llama3.2")
	if err != nil {
		t.Fatalf("NewOllamaChatModel err: %v", err)
	}

	reader, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("When is checkout?")})
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	defer reader.Close()

	var sb strings.Builder
	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv err: %v", err)
		}
		sb.WriteString(chunk.Content)
	}
	if sb.String() != "Check-out is at 11:00 AM." {
		t.Fatalf("unexpected streamed text %q", sb.String())
	}
}

func TestOllamaStreamSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model \"llama3.2\" not found"}`))
	}))
	defer srv.Close()

	m, err := NewOllamaChatModel(srv.URL, "llama3.2")
	if err != nil {
		t.Fatalf("NewOllamaChatModel err: %v", err)
	}

	if _, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")}); err == nil {
		t.Fatal("expected Generate error")
	}

	reader, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	defer reader.Close()

	for {
		_, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			t.Fatal("expected server error before EOF")
		}
		if err != nil {
			if !strings.Contains(err.Error(), "ollama stream") {
				t.Fatalf("unexpected error %v", err)
			}
			return
		}
	}
}
