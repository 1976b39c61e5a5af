package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/model/speech"
)

// ElevenLabsClient 调用 ElevenLabs 文本转语音接口，输出 mp3。
type ElevenLabsClient struct {
	client  *resty.Client
	voiceID string
	modelID string
	timeout time.Duration
}

// NewElevenLabsClient creates a synthesis client.
func NewElevenLabsClient(baseURL, apiKey, voiceID, modelID string, timeout time.Duration) *ElevenLabsClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("xi-api-key", apiKey)
	client.SetTimeout(timeout)

	return &ElevenLabsClient{client: client, voiceID: voiceID, modelID: modelID, timeout: timeout}
}

type elevenLabsRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id,omitempty"`
	VoiceSettings elevenLabsSettings `json:"voice_settings"`
}

type elevenLabsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize implements Synthesizer.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string) (speech.Audio, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "audio/mpeg").
		SetBody(elevenLabsRequest{
			Text:          text,
			ModelID:       c.modelID,
			VoiceSettings: elevenLabsSettings{Stability: 0.5, SimilarityBoost: 0.5},
		}).
		SetPathParam("voiceID", c.voiceID).
		Post("/v1/text-to-speech/{voiceID}")
	if err != nil {
		return speech.Audio{}, fmt.Errorf("elevenlabs request: %w", err)
	}
	if resp.IsError() {
		return speech.Audio{}, fmt.Errorf("elevenlabs returned status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	return speech.Audio{Data: resp.Body(), Format: "mp3"}, nil
}

// OpenAITTSClient 调用 OpenAI 兼容的 /audio/speech 接口。
type OpenAITTSClient struct {
	client  *resty.Client
	model   string
	voice   string
	timeout time.Duration
}

// NewOpenAITTSClient creates a synthesis client.
func NewOpenAITTSClient(baseURL, apiKey, model, voice string, timeout time.Duration) *OpenAITTSClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetAuthToken(apiKey)
	client.SetTimeout(timeout)

	return &OpenAITTSClient{client: client, model: model, voice: voice, timeout: timeout}
}

// Synthesize implements Synthesizer.
func (c *OpenAITTSClient) Synthesize(ctx context.Context, text string) (speech.Audio, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"model":           c.model,
			"input":           text,
			"voice":           c.voice,
			"response_format": "mp3",
		}).
		Post("/audio/speech")
	if err != nil {
		return speech.Audio{}, fmt.Errorf("openai tts request: %w", err)
	}
	if resp.IsError() {
		return speech.Audio{}, fmt.Errorf("openai tts returned status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	return speech.Audio{Data: resp.Body(), Format: "mp3"}, nil
}
