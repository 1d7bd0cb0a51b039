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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"consultassist/internal/app"
	"consultassist/internal/config"
	"consultassist/internal/ratelimit"
	"consultassist/internal/server"
	"consultassist/internal/util"
	"consultassist/pkg/ai"
	"consultassist/pkg/booking"
	"consultassist/pkg/mail"
	"consultassist/pkg/schedule"
	"consultassist/pkg/store"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	defer dataStore.Close()

	engine := schedule.New(dataStore)
	bookingSvc := booking.NewService(dataStore, engine)
	oracle := ai.NewOpenAICompatOracle(cfg.OracleBaseURL, cfg.OracleAPIKey, cfg.OracleModel)

	var notifier mail.Notifier = mail.NopNotifier{}
	if cfg.EmailAddress != "" {
		host := cfg.SMTPHost
		if host == "" {
			host = "smtp.gmail.com"
		}
		port := cfg.SMTPPort
		if port == 0 {
			port = 587
		}
		notifier = mail.NewSMTPNotifier(host, port, cfg.EmailAddress, cfg.EmailPass, bookingSvc)
	} else {
		slog.Warn("email notifications disabled: no sender configured")
	}

	appCore, err := app.New(app.Config{
		Store:    dataStore,
		Engine:   engine,
		Booking:  bookingSvc,
		Oracle:   oracle,
		Notifier: notifier,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	limiter, err := ratelimit.NewRedisFixedWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "consult:ratelimit:chat",
		cfg.ChatRateLimitPerMinute, time.Minute)
	if err != nil {
		log.Fatalf("failed to init rate limiter: %v", err)
	}

	httpServer := server.New(server.Config{
		App:          appCore,
		Store:        dataStore,
		Limiter:      limiter,
		HistoryLimit: cfg.HistoryLimit,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("assistant server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
	}
}
