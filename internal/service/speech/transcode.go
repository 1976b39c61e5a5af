package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFmpegTranscoder 用 ffmpeg 把任意录音转成 16kHz 单声道 WAV。
type FFmpegTranscoder struct {
	bin string
}

// NewTranscoder returns an ffmpeg transcoder when the binary is on PATH,
// otherwise a pass-through one.
func NewTranscoder(bin string) Transcoder {
	if strings.TrimSpace(bin) == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return PassthroughTranscoder{}
	}
	return &FFmpegTranscoder{bin: path}
}

// Transcode pipes the clip through ffmpeg.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, audio []byte, format string) ([]byte, string, error) {
	if format == "wav" {
		return audio, format, nil
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, t.bin, args...)
	cmd.Stdin = bytes.NewReader(audio)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, "", fmt.Errorf("ffmpeg %s->wav: %w: %s", format, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), "wav", nil
}

// PassthroughTranscoder leaves audio untouched.
type PassthroughTranscoder struct{}

// Transcode implements Transcoder.
func (PassthroughTranscoder) Transcode(_ context.Context, audio []byte, format string) ([]byte, string, error) {
	return audio, format, nil
}
