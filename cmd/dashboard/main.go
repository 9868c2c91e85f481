// Package main запускает HTTP-сервер дашборда панели SMM-сервисов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/smm-dashboard/internal/config"
	"github.com/mmeshcher/smm-dashboard/internal/handler"
	"github.com/mmeshcher/smm-dashboard/internal/metrics"
	"github.com/mmeshcher/smm-dashboard/internal/middleware"
	"github.com/mmeshcher/smm-dashboard/internal/panel"
	"github.com/mmeshcher/smm-dashboard/internal/repository"
	"github.com/mmeshcher/smm-dashboard/internal/session"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}
	if cfg.PanelAPIAddress == "" {
		sugar.Fatalw("configuration error", "error", "panel API address is not set")
	}

	var store session.Store
	if cfg.DatabaseURI != "" {
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		defer repo.Close()
		store = repo
	} else {
		sugar.Infow("database URI is not set, sessions are kept in memory")
		store = repository.NewMemoryStore()
	}

	reg := metrics.NewRegistry()

	client := panel.NewClient(cfg.PanelAPIAddress, panel.Options{
		Timeout: cfg.RequestTimeout,
		Retries: cfg.RequestRetries,
		Metrics: reg,
	})

	sessions := session.NewManager(client, store, session.Config{
		Pricing:            cfg.Pricing,
		Search:             cfg.Search(),
		FallbackCategories: cfg.FallbackCategories,
	}, logger, reg)
	defer sessions.Shutdown()

	authMiddleware := middleware.NewAuthMiddleware(cfg.SessionSecret)
	h := handler.NewHandler(sessions, logger, authMiddleware, reg)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting dashboard server",
			"addr", cfg.RunAddress,
			"panel", cfg.PanelAPIAddress,
			"pricing", string(cfg.Pricing),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
