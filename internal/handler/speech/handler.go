package speech

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	chathandler "github.com/zhouzirui/hotel-frontdesk/backend/internal/handler/chat"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/speech"
	chatservice "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/chat"
	speechsvc "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/speech"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/voice"
	"github.com/zhouzirui/hotel-frontdesk/backend/pkg/utils"
)

// SpeechService 抽象语音能力，便于测试与替换实现
type SpeechService interface {
	Capabilities() speech.Capabilities
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
	Synthesize(ctx context.Context, text string) (speech.Audio, error)
}

// VoicePipeline 执行一次完整的语音往返
type VoicePipeline interface {
	Process(ctx context.Context, in voice.Input) (speech.VoiceResult, error)
	MaxBytes() int64
}

// ChatService 是 WebSocket 文字消息依赖的对话能力
type ChatService interface {
	Reply(ctx context.Context, in chatservice.Input) (chatservice.Reply, error)
}

// multipart 表单里除音频外的字段留出的余量
const formOverhead = 1 << 20

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc SpeechService
	pipeline  VoicePipeline
	chatSvc   ChatService
	logger    *slog.Logger
}

// New 创建语音处理器
func New(speechSvc SpeechService, pipeline VoicePipeline, chatSvc ChatService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		speechSvc: speechSvc,
		pipeline:  pipeline,
		chatSvc:   chatSvc,
		logger:    logger,
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/voice", h.handleVoice)
	r.Get("/voice/capabilities", h.handleCapabilities)
	r.Post("/speech-to-text", h.handleSpeechToText)
	r.Post("/text-to-speech", h.handleTextToSpeech)

	ws := NewWebSocketHandler(h.speechSvc, h.pipeline, h.chatSvc, h.logger)
	ws.RegisterWebSocketRoutes(r)
}

// handleCapabilities 返回语音能力，前端据此决定是否显示麦克风
func (h *Handler) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.speechSvc.Capabilities())
}

// handleVoice 处理一次语音往返：识别 -> 对话 -> 合成
func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.readAudio(w, r, h.pipeline.MaxBytes())
	if !ok {
		return
	}

	guestID, err := parseGuestID(r.FormValue("guest_id"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "guest_id must be an integer")
		return
	}

	result, err := h.pipeline.Process(r.Context(), voice.Input{
		SessionID:   r.FormValue("session_id"),
		Audio:       upload.data,
		ContentType: upload.contentType,
		Filename:    upload.filename,
		GuestID:     guestID,
	})
	if err != nil {
		status, msg := voiceStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("[speech] voice round-trip failed", "err", err)
		}
		utils.RespondError(w, status, msg)
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// handleSpeechToText 只做识别，不进入对话
func (h *Handler) handleSpeechToText(w http.ResponseWriter, r *http.Request) {
	if !h.speechSvc.Capabilities().SpeechToText {
		utils.RespondError(w, http.StatusServiceUnavailable, "speech-to-text service unavailable")
		return
	}

	upload, ok := h.readAudio(w, r, h.pipeline.MaxBytes())
	if !ok {
		return
	}

	format := speechsvc.InferAudioFormat(upload.filename)
	if upload.contentType != "" {
		f, ok := speechsvc.AudioFormat(upload.contentType)
		if !ok {
			utils.RespondError(w, http.StatusUnsupportedMediaType, voice.ErrUnsupportedMedia.Error())
			return
		}
		format = f
	}

	text, err := h.speechSvc.Transcribe(r.Context(), upload.data, format)
	if err != nil {
		if errors.Is(err, speechsvc.ErrUnavailable) {
			utils.RespondError(w, http.StatusServiceUnavailable, "speech-to-text service unavailable")
			return
		}
		h.logger.Error("[speech] transcription failed", "err", err)
		utils.RespondError(w, http.StatusInternalServerError, "speech recognition failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"transcription": text})
}

// handleTextToSpeech 合成语音并直接返回音频字节
func (h *Handler) handleTextToSpeech(w http.ResponseWriter, r *http.Request) {
	if !h.speechSvc.Capabilities().TextToSpeech {
		utils.RespondError(w, http.StatusServiceUnavailable, "text-to-speech service unavailable")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, formOverhead)
	text := strings.TrimSpace(r.FormValue("text"))
	if text == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	audio, err := h.speechSvc.Synthesize(r.Context(), text)
	if err != nil {
		if errors.Is(err, speechsvc.ErrUnavailable) {
			utils.RespondError(w, http.StatusServiceUnavailable, "text-to-speech service unavailable")
			return
		}
		h.logger.Error("[speech] synthesis failed", "err", err)
		utils.RespondError(w, http.StatusInternalServerError, "speech synthesis failed")
		return
	}

	format := audio.Format
	if format == "" {
		format = "mp3"
	}
	w.Header().Set("Content-Type", audio.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.Header().Set("Content-Disposition", "attachment; filename=response."+format)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio.Data); err != nil {
		h.logger.Warn("[speech] failed to write audio response", "err", err)
	}
}

type audioUpload struct {
	data        []byte
	contentType string
	filename    string
}

// readAudio 读取 multipart 里的 audio 字段；失败时已写好错误响应
func (h *Handler) readAudio(w http.ResponseWriter, r *http.Request, maxBytes int64) (audioUpload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, voice.ErrAudioTooLarge.Error())
			return audioUpload{}, false
		}
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return audioUpload{}, false
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return audioUpload{}, false
	}
	defer file.Close()

	if header.Size > maxBytes {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, voice.ErrAudioTooLarge.Error())
		return audioUpload{}, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio")
		return audioUpload{}, false
	}

	// 没有声明类型的上传按文件名推断格式
	contentType := header.Header.Get("Content-Type")
	if strings.HasPrefix(strings.ToLower(contentType), "application/octet-stream") {
		contentType = ""
	}

	return audioUpload{
		data:        data,
		contentType: contentType,
		filename:    header.Filename,
	}, true
}

func parseGuestID(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// voiceStatus 先处理音频相关错误，其余沿用对话接口的映射
func voiceStatus(err error) (int, string) {
	switch {
	case errors.Is(err, voice.ErrAudioTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, voice.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType, err.Error()
	default:
		return chathandler.StatusFor(err)
	}
}
