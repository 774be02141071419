package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"examguard/internal/app"
	"examguard/internal/auth"
	"examguard/internal/config"
	"examguard/internal/domain"
	"examguard/internal/store"
	httpTransport "examguard/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   string
		hashPassword string
	)

	flagSet := pflag.NewFlagSet("examguard", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", os.Getenv("EXAM_CONFIG"), "path to TOML config file (env EXAM_CONFIG)")
	flagSet.StringVar(&hashPassword, "hash-password", "", "print a bcrypt hash for admin.password_hash and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if hashPassword != "" {
		hash, err := auth.HashPassword(hashPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		fmt.Println(hash)
		return nil
	}

	// Load configuration
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	// Set up logger
	var logger *slog.Logger
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, logOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, logOpts))
	}

	slog.SetDefault(logger)

	logger.Info("starting exam integrity server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"storeDriver", cfg.Store.Driver,
	)

	questions := domain.DefaultQuestionBank()
	if cfg.Exam.QuestionsFile != "" {
		questions, err = domain.LoadQuestionBank(cfg.Exam.QuestionsFile)
		if err != nil {
			return fmt.Errorf("load questions: %w", err)
		}
	}
	logger.Info("question bank loaded", "questions", questions.Len())

	submissions, err := store.Open(cfg.Store.Driver, cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer submissions.Close()

	settings := app.DefaultSessionSettings()
	settings.Duration = cfg.ExamDuration()
	settings.ReentryDelay = cfg.Exam.FullscreenReentryDelay
	settings.ExitThreshold = cfg.Exam.FullscreenExitThreshold

	// Create exam hub; closed before the store so pending handoffs land
	hub := app.NewExamHub(questions, submissions, settings, cfg.Exam.SessionRetention, logger)
	defer hub.Close()

	admins := auth.NewRegistry(cfg.Admin.SessionTTL, logger)
	defer admins.Close()

	// Create HTTP server
	server := httpTransport.NewServer(cfg, hub, submissions, admins, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
