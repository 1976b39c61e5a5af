package speech

import "time"

// Capabilities 描述语音功能可用性，启动时计算一次后只读。
type Capabilities struct {
	SpeechToText bool `json:"speech_to_text"`
	TextToSpeech bool `json:"text_to_speech"`
}

// Degradation marks which voice stage failed when a round-trip is partial.
type Degradation string

const (
	DegradedNone          Degradation = ""
	DegradedTranscription Degradation = "transcription"
	DegradedSynthesis     Degradation = "synthesis"
)

// VoiceResult 是一次语音往返的结果。
// Transcription 为空表示识别失败；HasAudio 为 false 表示合成失败或不可用。
type VoiceResult struct {
	SessionID     string      `json:"session_id"`
	Transcription string      `json:"transcription,omitempty"`
	ResponseText  string      `json:"response_text"`
	Intent        string      `json:"intent"`
	ResponseAudio string      `json:"response_audio,omitempty"` // base64
	AudioFormat   string      `json:"audio_format,omitempty"`
	HasAudio      bool        `json:"has_audio"`
	Degraded      Degradation `json:"degraded,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// Audio is a synthesized clip.
type Audio struct {
	Data   []byte
	Format string
}

// ContentType returns the MIME type for the clip.
func (a Audio) ContentType() string {
	if a.Format == "" {
		return "audio/mpeg"
	}
	if a.Format == "mp3" {
		return "audio/mpeg"
	}
	return "audio/" + a.Format
}
