package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vanhieptech/sigma-sub000/internal/ai"
	"github.com/vanhieptech/sigma-sub000/internal/config"
	"github.com/vanhieptech/sigma-sub000/internal/dedup"
	"github.com/vanhieptech/sigma-sub000/internal/gate"
	"github.com/vanhieptech/sigma-sub000/internal/logging"
	"github.com/vanhieptech/sigma-sub000/internal/registry"
	"github.com/vanhieptech/sigma-sub000/internal/respond"
	"github.com/vanhieptech/sigma-sub000/internal/server"
	"github.com/vanhieptech/sigma-sub000/internal/upstream"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, redisURL string) *goredis.Client {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		slog.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	// Dedup store: Redis when configured, in-process otherwise.
	dedupTTL := gate.DedupWindowSeconds * time.Second
	var store dedup.Store = dedup.NewMemory(clock, dedupTTL)
	var redisPing func(context.Context) error
	if cfg.RedisURL != "" {
		redisClient := setupRedis(context.Background(), cfg.RedisURL)
		defer func() { _ = redisClient.Close() }()
		store = dedup.NewRedis(redisClient, dedupTTL)
		redisPing = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	completion := ai.NewChatService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel, slog.Default())
	speech, err := ai.NewSpeechSynthesizer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.SpeechModel, cfg.AudioCacheDir, slog.Default())
	if err != nil {
		slog.Error("Failed to set up speech synthesizer", "error", err)
		os.Exit(1)
	}
	generator := respond.NewGenerator(completion, speech, slog.Default())

	dialer := upstream.NewGatewayDialer(cfg.UpstreamGatewayURL)
	admission := registry.NewAdmission(
		int64(cfg.MaxGlobalSessions),
		cfg.MaxSessionsPerOrigin,
		cfg.ConnectRatePerSec,
		cfg.ConnectBurst,
	)
	reg := registry.New(dialer, generator, store, clock, admission, slog.Default())

	srv := server.NewServer(cfg, reg, redisPing, slog.Default())
	done := runGracefulShutdown(srv)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
