package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/hotel"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Speech   SpeechConfig
	Chat     ChatConfig
	Hotel    HotelConfig
	Log      LogConfig
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// DatabaseConfig 描述 SQLite 存储位置。
type DatabaseConfig struct {
	Path string
}

// LLMConfig 描述大模型相关配置。
type LLMConfig struct {
	Provider       string
	Model          string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	ArkAPIKey      string
	ArkBaseURL     string
	ArkRegion      string
	DeepSeekAPIKey string
	OllamaHost     string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	Timeout        time.Duration
	StreamResponse bool
}

// Enabled 表示当前 provider 是否具备必需的凭证。
func (c LLMConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey != ""
	case ProviderArk:
		return c.ArkAPIKey != ""
	case ProviderDeepSeek:
		return c.DeepSeekAPIKey != ""
	case ProviderOllama:
		return c.OllamaHost != ""
	default:
		return false
	}
}

// Supported LLM providers.
const (
	ProviderOpenAI   = "openai"
	ProviderArk      = "ark"
	ProviderDeepSeek = "deepseek"
	ProviderOllama   = "ollama"
)

// SpeechConfig 描述语音识别与合成配置。
type SpeechConfig struct {
	WhisperAPIKey     string
	WhisperBaseURL    string
	WhisperModel      string
	TTSProvider       string
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsVoiceID string
	ElevenLabsModelID string
	OpenAITTSAPIKey   string
	OpenAITTSModel    string
	OpenAITTSVoice    string
	FFmpegPath        string
	STTTimeout        time.Duration
	TTSTimeout        time.Duration
	MaxAudioBytes     int64
}

// STTEnabled reports whether speech-to-text credentials are present.
func (c SpeechConfig) STTEnabled() bool {
	return c.WhisperAPIKey != ""
}

// TTSEnabled reports whether the selected synthesis provider has credentials.
func (c SpeechConfig) TTSEnabled() bool {
	switch c.TTSProvider {
	case "openai":
		return c.OpenAITTSAPIKey != ""
	default:
		return c.ElevenLabsAPIKey != ""
	}
}

// ChatConfig 控制对话校验与上下文长度。
type ChatConfig struct {
	MaxMessageLength int
	HistoryLimit     int
}

// HotelConfig 是注入系统提示词的酒店事实。
type HotelConfig struct {
	Name         string
	Address      string
	Phone        string
	WiFiNetwork  string
	WiFiPassword string
	CheckInTime  string
	CheckOutTime string
	LateCheckOut string
}

// FactSheet 转换为提示词与 /api/hotel 使用的酒店资料。
func (c HotelConfig) FactSheet() hotel.FactSheet {
	return hotel.FactSheet{
		Name:         c.Name,
		Address:      c.Address,
		Phone:        c.Phone,
		WiFiNetwork:  c.WiFiNetwork,
		WiFiPassword: c.WiFiPassword,
		CheckInTime:  c.CheckInTime,
		CheckOutTime: c.CheckOutTime,
		LateCheckOut: c.LateCheckOut,
		Amenities:    hotel.DefaultAmenities(),
	}
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level string
	File  string
}

// Load 从环境变量（以及可选的 YAML 文件）加载配置。
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith builds the configuration from an existing viper instance.
func LoadWith(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("FRONTDESK_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	llm, err := loadLLMConfig(v)
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig(v)
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Database: DatabaseConfig{Path: v.GetString("DATABASE_PATH")},
		LLM:      llm,
		Speech:   speech,
		Chat:     chat,
		Hotel: HotelConfig{
			Name:         v.GetString("HOTEL_NAME"),
			Address:      v.GetString("HOTEL_ADDRESS"),
			Phone:        v.GetString("HOTEL_PHONE"),
			WiFiNetwork:  v.GetString("WIFI_NETWORK"),
			WiFiPassword: v.GetString("WIFI_PASSWORD"),
			CheckInTime:  v.GetString("CHECK_IN_TIME"),
			CheckOutTime: v.GetString("CHECK_OUT_TIME"),
			LateCheckOut: v.GetString("LATE_CHECK_OUT"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
			File:  strings.TrimSpace(v.GetString("LOG_FILE")),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8000")
	v.SetDefault("DATABASE_PATH", "data/hotel_assistant.db")

	v.SetDefault("LLM_PROVIDER", ProviderOpenAI)
	v.SetDefault("LLM_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ARK_REGION", "cn-beijing")
	v.SetDefault("LLM_TIMEOUT", "30s")
	v.SetDefault("LLM_STREAM", true)

	v.SetDefault("WHISPER_MODEL", "whisper-1")
	v.SetDefault("TTS_PROVIDER", "elevenlabs")
	v.SetDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io")
	v.SetDefault("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("ELEVENLABS_MODEL_ID", "eleven_monolingual_v1")
	v.SetDefault("OPENAI_TTS_MODEL", "tts-1")
	v.SetDefault("OPENAI_TTS_VOICE", "alloy")
	v.SetDefault("FFMPEG_PATH", "ffmpeg")
	v.SetDefault("STT_TIMEOUT", "30s")
	v.SetDefault("TTS_TIMEOUT", "30s")
	v.SetDefault("VOICE_MAX_AUDIO_BYTES", 10<<20)

	v.SetDefault("CHAT_MAX_MESSAGE_LENGTH", 1000)
	v.SetDefault("CHAT_HISTORY_LIMIT", 10)

	v.SetDefault("HOTEL_NAME", "Grand Plaza Hotel")
	v.SetDefault("HOTEL_ADDRESS", "123 Main Street, City, State")
	v.SetDefault("HOTEL_PHONE", "+1-555-123-4567")
	v.SetDefault("WIFI_NETWORK", "GrandPlaza-Guest")
	v.SetDefault("WIFI_PASSWORD", "GrandPlaza2024")
	v.SetDefault("CHECK_IN_TIME", "3:00 PM")
	v.SetDefault("CHECK_OUT_TIME", "11:00 AM")
	v.SetDefault("LATE_CHECK_OUT", "available until 2:00 PM ($50 fee)")

	v.SetDefault("LOG_LEVEL", "info")
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	port := strings.TrimSpace(v.GetString("PORT"))
	host := strings.TrimSpace(v.GetString("HOST"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return ServerConfig{Addr: port}, nil
	}

	if port == "" || strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: host + ":" + port}, nil
}

func loadLLMConfig(v *viper.Viper) (LLMConfig, error) {
	temperature, err := optionalFloat(v, "LLM_TEMPERATURE")
	if err != nil {
		return LLMConfig{}, err
	}

	topP, err := optionalFloat(v, "LLM_TOP_P")
	if err != nil {
		return LLMConfig{}, err
	}

	maxTokens, err := optionalInt(v, "LLM_MAX_TOKENS")
	if err != nil {
		return LLMConfig{}, err
	}

	timeout, err := duration(v, "LLM_TIMEOUT")
	if err != nil {
		return LLMConfig{}, err
	}

	stream, err := boolean(v, "LLM_STREAM")
	if err != nil {
		return LLMConfig{}, err
	}

	provider := strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER")))
	switch provider {
	case ProviderOpenAI, ProviderArk, ProviderDeepSeek, ProviderOllama:
	default:
		return LLMConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", provider)
	}

	return LLMConfig{
		Provider:       provider,
		Model:          strings.TrimSpace(v.GetString("LLM_MODEL")),
		OpenAIAPIKey:   strings.TrimSpace(v.GetString("OPENAI_API_KEY")),
		OpenAIBaseURL:  strings.TrimSpace(v.GetString("OPENAI_BASE_URL")),
		ArkAPIKey:      strings.TrimSpace(v.GetString("ARK_API_KEY")),
		ArkBaseURL:     strings.TrimSpace(v.GetString("ARK_BASE_URL")),
		ArkRegion:      strings.TrimSpace(v.GetString("ARK_REGION")),
		DeepSeekAPIKey: strings.TrimSpace(v.GetString("DEEPSEEK_API_KEY")),
		OllamaHost:     strings.TrimSpace(v.GetString("OLLAMA_HOST")),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		Timeout:        timeout,
		StreamResponse: stream,
	}, nil
}

func loadSpeechConfig(v *viper.Viper) (SpeechConfig, error) {
	sttTimeout, err := duration(v, "STT_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}

	ttsTimeout, err := duration(v, "TTS_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}

	maxBytes, err := positiveInt(v, "VOICE_MAX_AUDIO_BYTES")
	if err != nil {
		return SpeechConfig{}, err
	}

	openAIKey := strings.TrimSpace(v.GetString("OPENAI_API_KEY"))

	// Whisper 与 OpenAI TTS 未单独配置密钥时复用 OPENAI_API_KEY
	whisperKey := strings.TrimSpace(v.GetString("WHISPER_API_KEY"))
	if whisperKey == "" {
		whisperKey = openAIKey
	}
	whisperBase := strings.TrimSpace(v.GetString("WHISPER_BASE_URL"))
	if whisperBase == "" {
		whisperBase = strings.TrimSpace(v.GetString("OPENAI_BASE_URL"))
	}

	ttsProvider := strings.ToLower(strings.TrimSpace(v.GetString("TTS_PROVIDER")))
	if ttsProvider != "elevenlabs" && ttsProvider != "openai" {
		return SpeechConfig{}, fmt.Errorf("invalid TTS_PROVIDER value %q", ttsProvider)
	}

	return SpeechConfig{
		WhisperAPIKey:     whisperKey,
		WhisperBaseURL:    whisperBase,
		WhisperModel:      v.GetString("WHISPER_MODEL"),
		TTSProvider:       ttsProvider,
		ElevenLabsAPIKey:  strings.TrimSpace(v.GetString("ELEVENLABS_API_KEY")),
		ElevenLabsBaseURL: v.GetString("ELEVENLABS_BASE_URL"),
		ElevenLabsVoiceID: v.GetString("ELEVENLABS_VOICE_ID"),
		ElevenLabsModelID: v.GetString("ELEVENLABS_MODEL_ID"),
		OpenAITTSAPIKey:   openAIKey,
		OpenAITTSModel:    v.GetString("OPENAI_TTS_MODEL"),
		OpenAITTSVoice:    v.GetString("OPENAI_TTS_VOICE"),
		FFmpegPath:        v.GetString("FFMPEG_PATH"),
		STTTimeout:        sttTimeout,
		TTSTimeout:        ttsTimeout,
		MaxAudioBytes:     int64(maxBytes),
	}, nil
}

func loadChatConfig(v *viper.Viper) (ChatConfig, error) {
	maxLen, err := positiveInt(v, "CHAT_MAX_MESSAGE_LENGTH")
	if err != nil {
		return ChatConfig{}, err
	}

	history, err := positiveInt(v, "CHAT_HISTORY_LIMIT")
	if err != nil {
		return ChatConfig{}, err
	}

	return ChatConfig{MaxMessageLength: maxLen, HistoryLimit: history}, nil
}
