// Package main запускает HTTP-сервер панели учёта ОП.
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

	"github.com/mmeshcher/op-system/internal/config"
	"github.com/mmeshcher/op-system/internal/dashboard"
	"github.com/mmeshcher/op-system/internal/handler"
	"github.com/mmeshcher/op-system/internal/middleware"
	"github.com/mmeshcher/op-system/internal/repository"
	"github.com/mmeshcher/op-system/internal/service"
	"github.com/mmeshcher/op-system/internal/sheets"
	"github.com/mmeshcher/op-system/internal/ws"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := buildRepository(cfg, sugar)
	if err != nil {
		sugar.Fatalw("repository initialization error", "error", err.Error())
	}
	defer repo.Close()

	svc := service.NewService(repo, logger)
	defer svc.Close()

	board := dashboard.NewController(svc, logger)

	hub := ws.NewHub(logger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, board, hub, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Первичное наполнение кэша панели
	if err := board.Refresh(ctx); err != nil {
		sugar.Warnw("initial sync failed", "error", err.Error())
	}
	board.StartSync(ctx, cfg.SyncInterval)

	// Рассылка обновлений панели подключённым клиентам
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		snapshots, cancel := board.Subscribe()
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case snap, ok := <-snapshots:
				if !ok {
					return nil
				}
				hub.BroadcastJSON(snap)
			}
		}
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting op-system server", "addr", cfg.RunAddress)
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

// buildRepository выбирает хранилище ОП по конфигурации: PostgreSQL при
// заданном DATABASE_URI, иначе удалённая таблица, иначе хранилище в памяти.
func buildRepository(cfg *config.Config, sugar *zap.SugaredLogger) (service.Repository, error) {
	if cfg.DatabaseURI != "" {
		sugar.Infow("using postgres repository")
		return repository.NewPostgresRepository(cfg.DatabaseURI)
	}

	if cfg.SpreadsheetID != "" {
		sugar.Infow("using sheet repository", "spreadsheet", cfg.SpreadsheetID)
		client := sheets.NewClient(cfg.SheetsAPIURL, cfg.SpreadsheetID, cfg.SheetsToken)
		return repository.NewSheetRepository(client), nil
	}

	sugar.Warnw("no storage configured, using in-memory repository")
	return repository.NewMemoryRepository(), nil
}
