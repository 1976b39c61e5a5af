package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/chat"
	"github.com/zhouzirui/hotel-frontdesk/backend/pkg/utils"
)

// Handler 文字对话的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	logger  *slog.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{chatSvc: chatSvc, logger: logger}
}

// 请求体只含一条消息与少量字段
const maxBodyBytes = 64 << 10

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/history/{sessionID}", h.handleHistory)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	GuestID   *int64 `json:"guest_id"`
}

// handleChat 处理一条客人消息
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.chatSvc.Reply(r.Context(), chatService.Input{
		SessionID: payload.SessionID,
		Message:   payload.Message,
		GuestID:   payload.GuestID,
	})
	if err != nil {
		status, msg := StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("[chat] request failed", "session_id", payload.SessionID, "err", err)
		}
		utils.RespondError(w, status, msg)
		return
	}

	utils.RespondJSON(w, http.StatusOK, reply)
}

// handleHistory 返回会话历史，最新的在前
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	history, err := h.chatSvc.History(r.Context(), sessionID, limit)
	if err != nil {
		status, msg := StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("[chat] history failed", "session_id", sessionID, "err", err)
		}
		utils.RespondError(w, status, msg)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"history":    history,
	})
}

// StatusFor 把对话服务的错误映射为 HTTP 状态码与对外文案。
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, chatService.ErrMessageEmpty),
		errors.Is(err, chatService.ErrMessageTooLong),
		errors.Is(err, chatService.ErrSessionIDTooLong):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chatService.ErrGuestNotFound):
		return http.StatusBadRequest, chatService.ErrGuestNotFound.Error()
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
