package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chathandler "github.com/zhouzirui/hotel-frontdesk/backend/internal/handler/chat"
	chatservice "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/chat"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/voice"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// WebSocketHandler WebSocket语音处理器
type WebSocketHandler struct {
	speechSvc SpeechService
	pipeline  VoicePipeline
	chatSvc   ChatService
	upgrader  websocket.Upgrader
	logger    *slog.Logger

	readTimeout time.Duration
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(speechSvc SpeechService, pipeline VoicePipeline, chatSvc ChatService, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		speechSvc:   speechSvc,
		pipeline:    pipeline,
		chatSvc:     chatSvc,
		logger:      logger,
		readTimeout: readTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/voice/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data"`
}

// AudioMessage 音频分片，audio_data 为 base64
type AudioMessage struct {
	AudioData []byte `json:"audio_data"`
	Format    string `json:"format"`
	IsFinal   bool   `json:"is_final"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

// ConfigMessage 配置消息
type ConfigMessage struct {
	TTSEnabled *bool  `json:"tts_enabled,omitempty"`
	GuestID    *int64 `json:"guest_id,omitempty"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type connectionState struct {
	sessionID   string
	guestID     *int64
	ttsEnabled  bool
	audioFormat string
	buffer      bytes.Buffer
}

func newConnectionState(sessionID string) *connectionState {
	return &connectionState{
		sessionID:   sessionID,
		ttsEnabled:  true,
		audioFormat: "webm",
	}
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if len(sessionID) > chatservice.MaxSessionIDLength {
		http.Error(w, chatservice.ErrSessionIDTooLong.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("[websocket] upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	state := newConnectionState(sessionID)
	h.logger.Info("[websocket] new connection", "session_id", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	// gorilla 连接只允许一个并发写者，ping 与业务消息共用 writer
	out := &writer{conn: conn, logger: h.logger}

	go h.pingLoop(ctx, out)

	out.result(state.sessionID, map[string]any{
		"type":         "connected",
		"capabilities": h.speechSvc.Capabilities(),
	})

	for {
		// 处理上一条消息可能耗时超过读超时，期间 pong 无人读取
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))

		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("[websocket] read error", "session_id", state.sessionID, "err", err)
			}
			return
		}

		if msg.SessionID != "" && state.sessionID != "" && msg.SessionID != state.sessionID {
			out.fail("session mismatch")
			continue
		}

		h.handleMessage(ctx, out, state, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, out *writer, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "audio":
		h.handleAudioMessage(ctx, out, state, msg.Data)
	case "text":
		h.handleTextMessage(ctx, out, state, msg.Data)
	case "config":
		h.handleConfigMessage(out, state, msg.Data)
	default:
		out.fail("unsupported message type: " + msg.Type)
	}
}

func (h *WebSocketHandler) handleAudioMessage(ctx context.Context, out *writer, state *connectionState, raw json.RawMessage) {
	var audio AudioMessage
	if err := json.Unmarshal(raw, &audio); err != nil {
		out.fail("invalid audio payload")
		return
	}

	if int64(state.buffer.Len()+len(audio.AudioData)) > h.pipeline.MaxBytes() {
		state.buffer.Reset()
		out.fail(voice.ErrAudioTooLarge.Error())
		return
	}
	state.buffer.Write(audio.AudioData)
	if audio.Format != "" {
		state.audioFormat = audio.Format
	}

	if audio.IsFinal {
		h.processBufferedAudio(ctx, out, state)
	}
}

func (h *WebSocketHandler) processBufferedAudio(ctx context.Context, out *writer, state *connectionState) {
	clip := append([]byte(nil), state.buffer.Bytes()...)
	state.buffer.Reset()

	h.logger.Debug("[websocket] processing audio", "session_id", state.sessionID, "format", state.audioFormat, "bytes", len(clip))

	result, err := h.pipeline.Process(ctx, voice.Input{
		SessionID: state.sessionID,
		Audio:     clip,
		Filename:  "clip." + state.audioFormat,
		GuestID:   state.guestID,
	})
	if err != nil {
		_, msg := voiceStatus(err)
		out.fail(msg)
		return
	}

	// 首条消息可能由服务端生成会话 ID，之后沿用
	state.sessionID = result.SessionID
	out.result(state.sessionID, map[string]any{
		"type":   "voice",
		"result": result,
	})
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, out *writer, state *connectionState, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		out.fail("invalid text payload")
		return
	}

	reply, err := h.chatSvc.Reply(ctx, chatservice.Input{
		SessionID: state.sessionID,
		Message:   text.Text,
		GuestID:   state.guestID,
	})
	if err != nil {
		_, msg := chathandler.StatusFor(err)
		out.fail(msg)
		return
	}

	state.sessionID = reply.SessionID
	out.result(state.sessionID, map[string]any{
		"type":     "reply",
		"response": reply.Text,
		"intent":   reply.Intent,
		"fallback": reply.Fallback,
	})

	if state.ttsEnabled && h.speechSvc.Capabilities().TextToSpeech {
		h.sendTTS(ctx, out, state, reply.Text)
	}
}

func (h *WebSocketHandler) sendTTS(ctx context.Context, out *writer, state *connectionState, text string) {
	audio, err := h.speechSvc.Synthesize(ctx, text)
	if err != nil {
		h.logger.Warn("[websocket] TTS failed", "session_id", state.sessionID, "err", err)
		out.result(state.sessionID, map[string]any{
			"type":     "tts",
			"degraded": "synthesis",
		})
		return
	}

	out.result(state.sessionID, map[string]any{
		"type":       "tts",
		"audio_data": base64.StdEncoding.EncodeToString(audio.Data),
		"format":     audio.Format,
	})
}

func (h *WebSocketHandler) handleConfigMessage(out *writer, state *connectionState, raw json.RawMessage) {
	var cfg ConfigMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		out.fail("invalid config payload")
		return
	}

	applyConfig(state, cfg)

	out.result(state.sessionID, map[string]any{
		"type":        "config",
		"tts_enabled": state.ttsEnabled,
	})
}

func applyConfig(state *connectionState, cfg ConfigMessage) {
	if cfg.TTSEnabled != nil {
		state.ttsEnabled = *cfg.TTSEnabled
	}
	if cfg.GuestID != nil {
		id := *cfg.GuestID
		state.guestID = &id
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, out *writer) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := out.ping(); err != nil {
				return
			}
		}
	}
}

type writer struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *slog.Logger
}

func (w *writer) write(msg outgoingMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()

	msg.Timestamp = time.Now().Unix()
	if err := w.conn.WriteJSON(msg); err != nil {
		w.logger.Warn("[websocket] write failed", "type", msg.Type, "err", err)
	}
}

func (w *writer) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

func (w *writer) result(sessionID string, data map[string]any) {
	w.write(outgoingMessage{Type: "result", SessionID: sessionID, Data: data})
}

func (w *writer) fail(message string) {
	w.write(outgoingMessage{Type: "error", Data: map[string]string{"message": message}})
}
