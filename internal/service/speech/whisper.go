package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WhisperClient 调用 OpenAI 兼容的 /audio/transcriptions 接口。
type WhisperClient struct {
	client  *resty.Client
	model   string
	timeout time.Duration
}

// NewWhisperClient creates a transcription client.
func NewWhisperClient(baseURL, apiKey, model string, timeout time.Duration) *WhisperClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetAuthToken(apiKey)
	client.SetTimeout(timeout)

	return &WhisperClient{client: client, model: model, timeout: timeout}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the clip as multipart form data.
func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(audio)).
		SetFormData(map[string]string{
			"model":           c.model,
			"response_format": "json",
		}).
		Post("/audio/transcriptions")
	if err != nil {
		return "", fmt.Errorf("whisper request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("whisper returned status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	var out transcriptionResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode whisper response: %w", err)
	}
	return out.Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
