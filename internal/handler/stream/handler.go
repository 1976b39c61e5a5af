package stream

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatHandler "github.com/zhouzirui/hotel-frontdesk/backend/internal/handler/chat"
	chatService "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/chat"
	"github.com/zhouzirui/hotel-frontdesk/backend/pkg/utils"
)

// Handler manages streaming front-desk replies via Server-Sent Events
type Handler struct {
	chatSvc *chatService.Service
	logger  *slog.Logger
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{chatSvc: chatSvc, logger: logger}
}

// Event represents a streaming response chunk
type Event struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Intent    string `json:"intent,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RegisterRoutes 注册流式对话路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/stream/{sessionID}", h.handleStream)
}

// handleStream 以 start -> delta* -> message -> end 的顺序推送一轮回复
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	utils.SetupSSEHeaders(w)
	h.send(w, flusher, Event{Event: "start", SessionID: sessionID})

	reply, err := h.chatSvc.Stream(r.Context(), chatService.Input{
		SessionID: sessionID,
		Message:   userMessage,
	}, func(delta string) error {
		return h.send(w, flusher, Event{Event: "delta", SessionID: sessionID, Content: delta})
	})
	if err != nil {
		status, msg := chatHandler.StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("[stream] request failed", "session_id", sessionID, "err", err)
		}
		h.send(w, flusher, Event{Event: "error", SessionID: sessionID, Error: msg})
		return
	}

	h.send(w, flusher, Event{
		Event:     "message",
		SessionID: reply.SessionID,
		Content:   reply.Text,
		Intent:    reply.Intent,
		Fallback:  reply.Fallback,
	})
	h.send(w, flusher, Event{Event: "end", SessionID: reply.SessionID, Finished: true})

	h.logger.Info("[stream] completed response", "session_id", reply.SessionID, "intent", reply.Intent, "fallback", reply.Fallback)
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, ev Event) error {
	return utils.SendSSEChunk(w, flusher, ev)
}
