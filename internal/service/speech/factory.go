package speech

import (
	"log/slog"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/config"
)

// NewServiceFromConfig 按配置装配识别与合成客户端，缺少凭证的能力保持关闭。
func NewServiceFromConfig(cfg config.SpeechConfig, openAIBaseURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	var transcriber Transcriber
	if cfg.STTEnabled() {
		transcriber = NewWhisperClient(cfg.WhisperBaseURL, cfg.WhisperAPIKey, cfg.WhisperModel, cfg.STTTimeout)
	} else {
		logger.Info("[speech] WHISPER_API_KEY not set, speech-to-text disabled")
	}

	var synthesizer Synthesizer
	switch {
	case !cfg.TTSEnabled():
		logger.Info("[speech] text-to-speech credentials not set, synthesis disabled", "provider", cfg.TTSProvider)
	case cfg.TTSProvider == "openai":
		synthesizer = NewOpenAITTSClient(openAIBaseURL, cfg.OpenAITTSAPIKey, cfg.OpenAITTSModel, cfg.OpenAITTSVoice, cfg.TTSTimeout)
	default:
		synthesizer = NewElevenLabsClient(cfg.ElevenLabsBaseURL, cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModelID, cfg.TTSTimeout)
	}

	transcoder := NewTranscoder(cfg.FFmpegPath)
	if _, ok := transcoder.(PassthroughTranscoder); ok && transcriber != nil {
		logger.Warn("[speech] ffmpeg not found, browser audio is sent to Whisper untranscoded", "bin", cfg.FFmpegPath)
	}

	svc := NewService(transcoder, transcriber, synthesizer, logger)
	caps := svc.Capabilities()
	logger.Info("[speech] capabilities", "speech_to_text", caps.SpeechToText, "text_to_speech", caps.TextToSpeech)
	return svc
}
