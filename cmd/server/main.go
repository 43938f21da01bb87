package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veda-wellness/nutricert/internal/ai"
	"github.com/veda-wellness/nutricert/internal/assignment"
	"github.com/veda-wellness/nutricert/internal/auth"
	"github.com/veda-wellness/nutricert/internal/catalog"
	"github.com/veda-wellness/nutricert/internal/httpapi"
	"github.com/veda-wellness/nutricert/internal/platform/cache"
	"github.com/veda-wellness/nutricert/internal/platform/config"
	"github.com/veda-wellness/nutricert/internal/platform/database"
	"github.com/veda-wellness/nutricert/internal/progress"
	"github.com/veda-wellness/nutricert/internal/quiz"
	"github.com/veda-wellness/nutricert/internal/records"
	"github.com/veda-wellness/nutricert/internal/simulation"
	"github.com/veda-wellness/nutricert/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	setupLogging(cfg.Log)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.ApplySchema(ctx, database.Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	redis, err := cache.New(ctx, cfg.Cache.URL)
	if err != nil {
		return fmt.Errorf("connect cache: %w", err)
	}
	defer redis.Close()

	loader, err := catalog.NewLoader(cfg.SyllabusDir)
	if err != nil {
		return fmt.Errorf("load syllabus: %w", err)
	}

	router := ai.NewRouter()
	if cfg.AI.Anthropic.APIKey != "" {
		provider, err := ai.NewAnthropicProvider(cfg.AI.Anthropic.APIKey)
		if err != nil {
			return fmt.Errorf("anthropic provider: %w", err)
		}
		router.Register("anthropic", provider)
		slog.Info("AI provider registered", "provider", "anthropic")
	}
	if cfg.AI.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.AI.OpenAI.APIKey))
		slog.Info("AI provider registered", "provider", "openai")
	}
	router.SetBudget(ai.NewInMemoryBudget())

	userStore, err := auth.NewPostgresUserStore(db.Pool)
	if err != nil {
		return fmt.Errorf("user store: %w", err)
	}
	authSvc, err := auth.NewService(userStore, auth.NewCacheRevoker(redis), auth.Config{
		JWTSecret:   cfg.Auth.JWTSecret,
		TokenTTL:    time.Duration(cfg.Auth.AccessTokenTTL) * time.Minute,
		AllowSignup: cfg.Auth.AllowSignup,
	})
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	progStore, err := progress.NewPostgresStore(db.Pool)
	if err != nil {
		return fmt.Errorf("progress store: %w", err)
	}
	recordStore, err := records.NewPostgresStore(db.Pool)
	if err != nil {
		return fmt.Errorf("record store: %w", err)
	}
	submissionStore, err := assignment.NewPostgresSubmissionStore(db.Pool)
	if err != nil {
		return fmt.Errorf("submission store: %w", err)
	}
	sessionStore, err := simulation.NewPostgresSessionStore(db.Pool)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	server := httpapi.New(httpapi.Config{
		Catalog:     loader,
		Auth:        authSvc,
		Progress:    progStore,
		Records:     recordStore,
		Submissions: submissionStore,
		Generator: quiz.NewGenerator(router, redis, cfg.Quiz.QuestionCount,
			time.Duration(cfg.Quiz.CacheTTLSecs)*time.Second),
		Grader: quiz.NewGrader(router),
		Simulation: simulation.NewEngine(simulation.EngineConfig{
			AIRouter: router,
			Store:    sessionStore,
			Records:  recordStore,
		}),
		Telemetry:    telemetry.NewPostgresLogger(db.Pool),
		QuizDuration: cfg.Quiz.DurationSecs,
		HealthChecks: []httpapi.HealthChecker{db, redis},
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func setupLogging(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
