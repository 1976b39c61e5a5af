package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/analysis/intent"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/chat"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/ai"
)

// ApologyMessage 是外部依赖失败时返回给客人的固定文案。
const ApologyMessage = "I apologize, but I'm experiencing technical difficulties. Please speak with our front desk staff for immediate assistance."

// MaxSessionIDLength bounds client-supplied session identifiers.
const MaxSessionIDLength = 100

var (
	ErrMessageEmpty     = errors.New("message cannot be empty")
	ErrMessageTooLong   = errors.New("message exceeds maximum length")
	ErrSessionIDTooLong = errors.New("session id exceeds maximum length")
	ErrSessionNotFound  = errors.New("session not found")
	ErrGuestNotFound    = errors.New("guest not found")
)

// Store 持久化会话与消息，会话只是消息表的键。
type Store interface {
	EnsureSession(ctx context.Context, sessionID string, guestID *int64) error
	AppendMessage(ctx context.Context, msg chat.Message) (chat.Message, error)
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]chat.Message, error)
	History(ctx context.Context, sessionID string, limit int) ([]chat.Message, error)
}

// GuestLookup 由知道客人档案的存储实现；未实现时不校验 guest_id。
type GuestLookup interface {
	GuestExists(ctx context.Context, guestID int64) (bool, error)
}

// Responder 生成助手回复。
type Responder interface {
	Generate(ctx context.Context, history []chat.Message, userMessage string) (string, error)
}

// StreamResponder is a Responder that can also stream.
type StreamResponder interface {
	Responder
	StreamingEnabled() bool
	Stream(ctx context.Context, history []chat.Message, userMessage string) (*schema.StreamReader[*schema.Message], error)
}

// Config 控制校验与模型调用。
type Config struct {
	MaxMessageLength int
	HistoryLimit     int
	Timeout          time.Duration
}

// Input 是一次对话请求。
type Input struct {
	SessionID string
	Message   string
	GuestID   *int64
	IsVoice   bool
}

// Reply 是一次对话的结果。Fallback 为 true 时 Text 为致歉文案。
type Reply struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"response"`
	Intent    string    `json:"intent"`
	Fallback  bool      `json:"fallback,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Service 编排一轮前台对话：校验、读取历史、调用模型、落库。
type Service struct {
	store     Store
	responder Responder
	cfg       Config
	logger    *slog.Logger
}

// NewService wires the chat orchestration. responder may be nil, in which
// case every reply is the apology message.
func NewService(store Store, responder Responder, cfg Config, logger *slog.Logger) *Service {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 1000
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, responder: responder, cfg: cfg, logger: logger}
}

// MaxMessageLength reports the configured limit in characters.
func (s *Service) MaxMessageLength() int {
	return s.cfg.MaxMessageLength
}

// StreamingEnabled reports whether Stream will stream from the model.
func (s *Service) StreamingEnabled() bool {
	sr, ok := s.responder.(StreamResponder)
	return ok && sr.StreamingEnabled()
}

// Reply 处理一条客人消息并返回助手回复。
// 只有校验失败与存储失败会返回 error；模型失败时返回致歉文案。
func (s *Service) Reply(ctx context.Context, in Input) (Reply, error) {
	tr, err := s.begin(ctx, in)
	if err != nil {
		return Reply{}, err
	}

	if s.responder == nil {
		s.logger.Warn("[chat] no language model configured", "session_id", tr.sessionID)
		return tr.fallback(), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	text, err := s.responder.Generate(callCtx, tr.history, tr.message)
	if err != nil {
		s.logger.Warn("[chat] model call failed", "session_id", tr.sessionID, "err", err)
		return tr.fallback(), nil
	}

	return s.finish(ctx, tr, text)
}

// Stream 与 Reply 语义一致，但在模型支持时逐段回调 onDelta。
// 最终返回的 Reply 是权威结果，已发送的增量可能与之不同（例如中途失败）。
func (s *Service) Stream(ctx context.Context, in Input, onDelta func(string) error) (Reply, error) {
	sr, ok := s.responder.(StreamResponder)
	if !ok || !sr.StreamingEnabled() {
		reply, err := s.Reply(ctx, in)
		if err != nil {
			return Reply{}, err
		}
		if err := onDelta(reply.Text); err != nil {
			s.logger.Info("[chat] stream consumer gone", "session_id", reply.SessionID, "err", err)
		}
		return reply, nil
	}

	tr, err := s.begin(ctx, in)
	if err != nil {
		return Reply{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	reader, err := sr.Stream(callCtx, tr.history, tr.message)
	if err != nil {
		s.logger.Warn("[chat] model stream failed", "session_id", tr.sessionID, "err", err)
		return tr.fallback(), nil
	}
	defer reader.Close()

	var sb strings.Builder
	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn("[chat] model stream interrupted", "session_id", tr.sessionID, "err", err)
			return tr.fallback(), nil
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		sb.WriteString(chunk.Content)
		if err := onDelta(chunk.Content); err != nil {
			s.logger.Info("[chat] stream consumer gone", "session_id", tr.sessionID, "err", err)
			return tr.fallback(), nil
		}
	}

	return s.finish(ctx, tr, ai.CleanResponse(sb.String()))
}

// History 返回会话最近的消息，最新的在前。
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]chat.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionNotFound
	}
	if len(sessionID) > MaxSessionIDLength {
		return nil, ErrSessionIDTooLong
	}
	msgs, err := s.store.History(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

type turn struct {
	sessionID string
	message   string
	intent    intent.Label
	isVoice   bool
	history   []chat.Message
}

func (t turn) fallback() Reply {
	return Reply{
		SessionID: t.sessionID,
		Text:      ApologyMessage,
		Intent:    string(intent.Error),
		Fallback:  true,
		Timestamp: time.Now().UTC(),
	}
}

// begin validates the input, loads history and persists the guest turn.
func (s *Service) begin(ctx context.Context, in Input) (turn, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return turn{}, ErrMessageEmpty
	}
	if utf8.RuneCountInString(message) > s.cfg.MaxMessageLength {
		return turn{}, ErrMessageTooLong
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if len(sessionID) > MaxSessionIDLength {
		return turn{}, ErrSessionIDTooLong
	}

	if err := s.checkGuest(ctx, in.GuestID); err != nil {
		return turn{}, err
	}

	if err := s.store.EnsureSession(ctx, sessionID, in.GuestID); err != nil {
		return turn{}, fmt.Errorf("ensure session: %w", err)
	}

	history, err := s.store.RecentMessages(ctx, sessionID, s.cfg.HistoryLimit)
	if err != nil {
		return turn{}, fmt.Errorf("load history: %w", err)
	}

	label := intent.Detect(message)
	if _, err := s.store.AppendMessage(ctx, chat.Message{
		SessionID: sessionID,
		Role:      chat.RoleUser,
		Content:   message,
		Intent:    string(label),
		IsVoice:   in.IsVoice,
	}); err != nil {
		return turn{}, fmt.Errorf("save user message: %w", err)
	}

	return turn{sessionID: sessionID, message: message, intent: label, isVoice: in.IsVoice, history: history}, nil
}

func (s *Service) checkGuest(ctx context.Context, guestID *int64) error {
	if guestID == nil {
		return nil
	}
	lookup, ok := s.store.(GuestLookup)
	if !ok {
		return nil
	}
	exists, err := lookup.GuestExists(ctx, *guestID)
	if err != nil {
		return fmt.Errorf("check guest: %w", err)
	}
	if !exists {
		return fmt.Errorf("guest %d: %w", *guestID, ErrGuestNotFound)
	}
	return nil
}

// finish persists a successful model reply, or falls back when it is empty.
func (s *Service) finish(ctx context.Context, t turn, raw string) (Reply, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		s.logger.Warn("[chat] model returned empty reply", "session_id", t.sessionID)
		return t.fallback(), nil
	}

	saved, err := s.store.AppendMessage(ctx, chat.Message{
		SessionID: t.sessionID,
		Role:      chat.RoleAssistant,
		Content:   text,
		Intent:    string(t.intent),
		IsVoice:   t.isVoice,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("save assistant message: %w", err)
	}

	s.logger.Info("[chat] replied", "session_id", t.sessionID, "intent", t.intent, "length", len(text))
	return Reply{
		SessionID: t.sessionID,
		Text:      text,
		Intent:    string(t.intent),
		Timestamp: saved.CreatedAt,
	}, nil
}
