package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/analysis/intent"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/speech"
	chatservice "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/chat"
	speechservice "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/speech"
)

var (
	ErrAudioTooLarge    = errors.New("audio payload exceeds maximum size")
	ErrUnsupportedMedia = errors.New("unsupported audio type")
)

// Speech 是流水线依赖的语音能力。
type Speech interface {
	Transcode(ctx context.Context, audio []byte, format string) ([]byte, string)
	TranscribeClip(ctx context.Context, audio []byte, format string) (string, error)
	Synthesize(ctx context.Context, text string) (speech.Audio, error)
}

// Chat 是流水线依赖的对话编排。
type Chat interface {
	Reply(ctx context.Context, in chatservice.Input) (chatservice.Reply, error)
}

// Input 是一次语音往返请求。
type Input struct {
	SessionID   string
	Audio       []byte
	ContentType string
	Filename    string
	GuestID     *int64
}

// Pipeline 依次执行 转码 -> 识别 -> 对话 -> 合成，每一步都可能提前结束。
type Pipeline struct {
	speech   Speech
	chat     Chat
	maxBytes int64
	logger   *slog.Logger
}

// NewPipeline wires the voice round-trip.
func NewPipeline(sp Speech, chat Chat, maxBytes int64, logger *slog.Logger) *Pipeline {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{speech: sp, chat: chat, maxBytes: maxBytes, logger: logger}
}

// MaxBytes reports the accepted payload size.
func (p *Pipeline) MaxBytes() int64 {
	return p.maxBytes
}

type outcome int

const (
	proceed outcome = iota
	halt
)

// round carries state between steps.
type round struct {
	in     Input
	format string
	audio  []byte
	text   string
	result speech.VoiceResult
}

type step struct {
	name string
	run  func(ctx context.Context, r *round) (outcome, error)
}

func (p *Pipeline) steps() []step {
	return []step{
		{name: "transcode", run: p.transcode},
		{name: "transcribe", run: p.transcribe},
		{name: "respond", run: p.respond},
		{name: "synthesize", run: p.synthesize},
	}
}

// Process 执行一次语音往返。
// 只有输入校验与对话存储失败返回 error；识别或合成失败体现在结果里。
func (p *Pipeline) Process(ctx context.Context, in Input) (speech.VoiceResult, error) {
	format, err := p.validate(in)
	if err != nil {
		return speech.VoiceResult{}, err
	}

	if strings.TrimSpace(in.SessionID) == "" {
		in.SessionID = uuid.NewString()
	}

	r := &round{in: in, format: format, audio: in.Audio}
	r.result = speech.VoiceResult{SessionID: in.SessionID}

	if len(in.Audio) == 0 {
		p.logger.Info("[voice] empty audio payload", "session_id", in.SessionID)
		apologize(r, speech.DegradedTranscription)
		return r.result, nil
	}

	for _, s := range p.steps() {
		next, err := s.run(ctx, r)
		if err != nil {
			p.logger.Error("[voice] step failed", "step", s.name, "session_id", in.SessionID, "err", err)
			return speech.VoiceResult{}, err
		}
		if next == halt {
			p.logger.Info("[voice] pipeline stopped early", "step", s.name, "session_id", in.SessionID, "degraded", r.result.Degraded)
			break
		}
	}

	if r.result.Timestamp.IsZero() {
		r.result.Timestamp = time.Now().UTC()
	}
	return r.result, nil
}

func (p *Pipeline) validate(in Input) (string, error) {
	var (
		format string
		ok     bool
	)
	if strings.TrimSpace(in.ContentType) == "" {
		format, ok = speechservice.InferAudioFormat(in.Filename), true
	} else {
		format, ok = speechservice.AudioFormat(in.ContentType)
	}
	if !ok {
		return "", ErrUnsupportedMedia
	}
	if int64(len(in.Audio)) > p.maxBytes {
		return "", ErrAudioTooLarge
	}
	if len(in.SessionID) > chatservice.MaxSessionIDLength {
		return "", chatservice.ErrSessionIDTooLong
	}
	return format, nil
}

func (p *Pipeline) transcode(ctx context.Context, r *round) (outcome, error) {
	r.audio, r.format = p.speech.Transcode(ctx, r.audio, r.format)
	return proceed, nil
}

func (p *Pipeline) transcribe(ctx context.Context, r *round) (outcome, error) {
	text, err := p.speech.TranscribeClip(ctx, r.audio, r.format)
	if err != nil {
		p.logger.Warn("[voice] transcription failed", "session_id", r.in.SessionID, "err", err)
		apologize(r, speech.DegradedTranscription)
		return halt, nil
	}
	if text == "" {
		apologize(r, speech.DegradedTranscription)
		return halt, nil
	}
	r.text = text
	r.result.Transcription = text
	return proceed, nil
}

func (p *Pipeline) respond(ctx context.Context, r *round) (outcome, error) {
	reply, err := p.chat.Reply(ctx, chatservice.Input{
		SessionID: r.in.SessionID,
		Message:   r.text,
		GuestID:   r.in.GuestID,
		IsVoice:   true,
	})
	if err != nil {
		// 转写超长或为空都属于识别质量问题，按识别失败处理
		if errors.Is(err, chatservice.ErrMessageTooLong) || errors.Is(err, chatservice.ErrMessageEmpty) {
			apologize(r, speech.DegradedTranscription)
			r.result.Transcription = ""
			return halt, nil
		}
		return halt, err
	}

	r.result.ResponseText = reply.Text
	r.result.Intent = reply.Intent
	r.result.Timestamp = reply.Timestamp
	return proceed, nil
}

func (p *Pipeline) synthesize(ctx context.Context, r *round) (outcome, error) {
	audio, err := p.speech.Synthesize(ctx, r.result.ResponseText)
	if err != nil {
		p.logger.Warn("[voice] synthesis failed, returning text only", "session_id", r.in.SessionID, "err", err)
		r.result.Degraded = speech.DegradedSynthesis
		return halt, nil
	}

	r.result.ResponseAudio = base64.StdEncoding.EncodeToString(audio.Data)
	r.result.AudioFormat = audio.Format
	r.result.HasAudio = true
	return proceed, nil
}

func apologize(r *round, stage speech.Degradation) {
	r.result.ResponseText = chatservice.ApologyMessage
	r.result.Intent = string(intent.Error)
	r.result.Degraded = stage
	r.result.Timestamp = time.Now().UTC()
}
