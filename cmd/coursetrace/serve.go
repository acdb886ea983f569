package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ganot/coursetrace/internal/config"
	"github.com/ganot/coursetrace/internal/domain/progress"
	"github.com/ganot/coursetrace/internal/domain/state"
	"github.com/ganot/coursetrace/internal/domain/statement"
	"github.com/ganot/coursetrace/internal/domain/verbs"
	"github.com/ganot/coursetrace/internal/httpapi"
	"github.com/ganot/coursetrace/internal/retry"
	sqlitetable "github.com/ganot/coursetrace/internal/storage/sqlite"
	"github.com/ganot/coursetrace/internal/worker"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the record store server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return fmt.Errorf("preparing database path: %w", err)
	}

	table, err := sqlitetable.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("opening table: %w", err)
	}
	defer table.Close()
	if err := table.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		Jitter:      0.1,
	}

	registry := verbs.NewRegistry(table, cfg.Verbs.UsageCacheCap, policy, logger)
	if err := registry.LoadCustom(context.Background()); err != nil {
		return fmt.Errorf("loading custom verbs: %w", err)
	}

	queue := worker.NewQueue(cfg.Worker.QueueSize, cfg.Worker.Workers, logger)

	// The engine reads through a store without a scheduler so derivation
	// fetches can never re-enter the queue.
	stmtReader := statement.NewStore(table, registry, nil, policy, logger)
	engine := progress.NewEngine(table, stmtReader, registry, progress.Options{
		MaxStatements:               cfg.Derive.MaxStatements,
		IdleGapCeiling:              time.Duration(cfg.Derive.IdleGapCeilingSeconds) * time.Second,
		ExpectedStatementsPerCourse: cfg.Derive.ExpectedStatementsPerCourse,
		MinDeriveInterval:           time.Duration(cfg.Derive.MinIntervalSeconds) * time.Second,
	}, policy, logger)
	scheduler := progress.NewScheduler(engine, queue, nil)
	statements := statement.NewStore(table, registry, scheduler, policy, logger)
	states := state.NewStore(table, policy, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)

	handler := httpapi.NewHandler(httpapi.Services{
		Statements: statements,
		State:      states,
		Progress:   engine,
		Verbs:      registry,
	}, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Drain in-flight derivation work before exiting.
	queue.Close()
	return nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
