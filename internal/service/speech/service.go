package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/speech"
)

// ErrUnavailable 表示对应的语音能力未配置。
var ErrUnavailable = errors.New("speech service unavailable")

// Transcriber 把一段音频识别为文本。
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Synthesizer 把文本合成为音频。
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (speech.Audio, error)
}

// Transcoder 把浏览器录音转成识别服务接受的格式，返回数据与新格式。
type Transcoder interface {
	Transcode(ctx context.Context, audio []byte, format string) ([]byte, string, error)
}

// Service 组合转码、识别与合成，并在构造时确定能力。
type Service struct {
	transcoder  Transcoder
	transcriber Transcriber
	synthesizer Synthesizer
	caps        speech.Capabilities
	logger      *slog.Logger
}

// NewService 创建语音服务；transcriber 或 synthesizer 为 nil 表示该能力不可用。
func NewService(transcoder Transcoder, transcriber Transcriber, synthesizer Synthesizer, logger *slog.Logger) *Service {
	if transcoder == nil {
		transcoder = PassthroughTranscoder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		transcoder:  transcoder,
		transcriber: transcriber,
		synthesizer: synthesizer,
		caps: speech.Capabilities{
			SpeechToText: transcriber != nil,
			TextToSpeech: synthesizer != nil,
		},
		logger: logger,
	}
}

// Capabilities 返回启动时计算好的能力标志。
func (s *Service) Capabilities() speech.Capabilities {
	return s.caps
}

// Transcode 转码录音；失败时原样返回，由识别服务自行处理原始容器。
func (s *Service) Transcode(ctx context.Context, audio []byte, format string) ([]byte, string) {
	data, outFormat, err := s.transcoder.Transcode(ctx, audio, format)
	if err != nil {
		s.logger.Warn("[speech] transcode failed, sending original audio", "format", format, "err", err)
		return audio, format
	}
	return data, outFormat
}

// TranscribeClip 识别已转码的音频，返回去掉首尾空白的文本。
func (s *Service) TranscribeClip(ctx context.Context, audio []byte, format string) (string, error) {
	if s.transcriber == nil {
		return "", ErrUnavailable
	}
	text, err := s.transcriber.Transcribe(ctx, audio, "audio."+format)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Transcribe 转码后识别。
func (s *Service) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if s.transcriber == nil {
		return "", ErrUnavailable
	}
	data, outFormat := s.Transcode(ctx, audio, format)
	return s.TranscribeClip(ctx, data, outFormat)
}

// Synthesize 合成语音。
func (s *Service) Synthesize(ctx context.Context, text string) (speech.Audio, error) {
	if s.synthesizer == nil {
		return speech.Audio{}, ErrUnavailable
	}
	audio, err := s.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return speech.Audio{}, fmt.Errorf("synthesize: %w", err)
	}
	if len(audio.Data) == 0 {
		return speech.Audio{}, fmt.Errorf("synthesize: empty audio")
	}
	return audio, nil
}

var supportedAudioTypes = map[string]string{
	"audio/webm":   "webm",
	"video/webm":   "webm",
	"audio/ogg":    "ogg",
	"audio/wav":    "wav",
	"audio/wave":   "wav",
	"audio/x-wav":  "wav",
	"audio/mpeg":   "mp3",
	"audio/mp3":    "mp3",
	"audio/mp4":    "m4a",
	"audio/m4a":    "m4a",
	"audio/x-m4a":  "m4a",
	"audio/aac":    "aac",
	"audio/flac":   "flac",
	"audio/x-flac": "flac",
}

// AudioFormat maps a MIME type such as "audio/webm;codecs=opus" to a
// container format. ok is false for unsupported types.
func AudioFormat(contentType string) (format string, ok bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	format, ok = supportedAudioTypes[strings.ToLower(mediaType)]
	return format, ok
}

// InferAudioFormat guesses the container from a file name, defaulting to webm.
func InferAudioFormat(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return "wav"
	case ".mp3":
		return "mp3"
	case ".ogg", ".oga":
		return "ogg"
	case ".m4a", ".mp4":
		return "m4a"
	case ".flac":
		return "flac"
	case ".aac":
		return "aac"
	default:
		return "webm"
	}
}
