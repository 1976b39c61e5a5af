package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/ai"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/chat"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/speech"
)

func newASRCmd() *cobra.Command {
	var audioPath, format string

	cmd := &cobra.Command{
		Use:   "asr",
		Short: "Transcribe an audio file with Whisper",
		RunE: func(cmd *cobra.Command, args []string) error {
			if audioPath == "" {
				return errors.New("--audio is required")
			}
			data, err := os.ReadFile(audioPath)
			if err != nil {
				return fmt.Errorf("read audio: %w", err)
			}
			if format == "" {
				format = speech.InferAudioFormat(audioPath)
			}

			svc := speech.NewServiceFromConfig(cfg.Speech, cfg.LLM.OpenAIBaseURL, logger)
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			text, err := svc.Transcribe(ctx, data, format)
			if err != nil {
				return fmt.Errorf("transcribe: %w", err)
			}

			fmt.Println(render("ASR",
				field{"file", audioPath},
				field{"format", format},
				field{"elapsed", time.Since(start).Round(time.Millisecond).String()},
				field{"text", text},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&audioPath, "audio", "", "input audio file")
	cmd.Flags().StringVar(&format, "format", "", "input format, inferred from the extension when empty")
	return cmd
}

func newTTSCmd() *cobra.Command {
	var text, outPath string

	cmd := &cobra.Command{
		Use:   "tts",
		Short: "Synthesize text with the configured TTS provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(text) == "" {
				return errors.New("--text is required")
			}

			svc := speech.NewServiceFromConfig(cfg.Speech, cfg.LLM.OpenAIBaseURL, logger)
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			audio, err := svc.Synthesize(ctx, text)
			if err != nil {
				return fmt.Errorf("synthesize: %w", err)
			}

			if outPath == "" {
				outPath = fmt.Sprintf("tts-output-%d.%s", time.Now().Unix(), audio.Format)
			}
			if err := os.WriteFile(outPath, audio.Data, 0o644); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}

			fmt.Println(render("TTS",
				field{"provider", cfg.Speech.TTSProvider},
				field{"output", outPath},
				field{"bytes", fmt.Sprint(len(audio.Data))},
				field{"elapsed", time.Since(start).Round(time.Millisecond).String()},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "text to synthesize")
	cmd.Flags().StringVar(&outPath, "out", "", "output file, generated from the format when empty")
	return cmd
}

func newChatCmd() *cobra.Command {
	var message, session string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send one message through the front desk assistant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var responder chat.Responder
			if cfg.LLM.Enabled() {
				chatModel, err := ai.NewChatModel(ctx, cfg.LLM)
				if err != nil {
					return fmt.Errorf("create chat model: %w", err)
				}
				svc, err := ai.NewService(ctx, chatModel, cfg.Hotel.FactSheet(), ai.Options{Logger: logger})
				if err != nil {
					return fmt.Errorf("init ai service: %w", err)
				}
				responder = svc
			} else {
				fmt.Println(warnStyle.Render("LLM 未配置，回复将是兜底文案"))
			}

			// 会话只保存在内存中，不写数据库
			chatSvc := chat.NewService(chat.NewMemoryStore(), responder, chat.Config{
				MaxMessageLength: cfg.Chat.MaxMessageLength,
				HistoryLimit:     cfg.Chat.HistoryLimit,
				Timeout:          cfg.LLM.Timeout,
			}, logger)

			start := time.Now()
			reply, err := chatSvc.Reply(ctx, chat.Input{SessionID: session, Message: message})
			if err != nil {
				return err
			}

			fmt.Println(render("Chat",
				field{"session", reply.SessionID},
				field{"intent", reply.Intent},
				field{"fallback", fmt.Sprint(reply.Fallback)},
				field{"elapsed", time.Since(start).Round(time.Millisecond).String()},
				field{"reply", reply.Text},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "guest message")
	cmd.Flags().StringVar(&session, "session", "", "session id, generated when empty")
	return cmd
}
