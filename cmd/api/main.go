package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/config"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/handler"
	hotelmodel "github.com/zhouzirui/hotel-frontdesk/backend/internal/model/hotel"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/ai"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/chat"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/hotel"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/speech"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/voice"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, continuing with system environment variables only", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg.Log)
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "err", err)
		_ = closeLog()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("[storage] database ready", "path", cfg.Database.Path)

	facts := cfg.Hotel.FactSheet()

	chatSvc := chat.NewService(store, newResponder(ctx, cfg, facts, logger), chat.Config{
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		HistoryLimit:     cfg.Chat.HistoryLimit,
		Timeout:          cfg.LLM.Timeout,
	}, logger)

	speechSvc := speech.NewServiceFromConfig(cfg.Speech, cfg.LLM.OpenAIBaseURL, logger)

	router := handler.NewRouter(handler.Services{
		Chat:   chatSvc,
		Hotel:  hotel.NewService(store, facts, logger),
		Speech: speechSvc,
		Voice:  voice.NewPipeline(speechSvc, chatSvc, cfg.Speech.MaxAudioBytes, logger),
	}, logger)

	return startServer(ctx, cfg.Server, router, logger)
}

// newResponder 返回 nil 时所有回复降级为致歉文案
func newResponder(ctx context.Context, cfg *config.Config, facts hotelmodel.FactSheet, logger *slog.Logger) chat.Responder {
	if !cfg.LLM.Enabled() {
		logger.Warn("[ai] LLM credentials not configured, replies will use the fallback message", "provider", cfg.LLM.Provider)
		return nil
	}

	chatModel, err := ai.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		logger.Warn("[ai] failed to create chat model, continuing without AI", "provider", cfg.LLM.Provider, "err", err)
		return nil
	}

	svc, err := ai.NewService(ctx, chatModel, facts, ai.Options{Streaming: cfg.LLM.StreamResponse, Logger: logger})
	if err != nil {
		logger.Warn("[ai] failed to initialize AI service, continuing without AI", "err", err)
		return nil
	}

	logger.Info("[ai] AI service initialized", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model, "streaming", svc.StreamingEnabled())
	return svc
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *slog.Logger) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("hotel front desk backend listening", "addr", addr)
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
