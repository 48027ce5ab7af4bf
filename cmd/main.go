// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/library-management/internal/config"
	"github.com/Shivanand-hulikatti/library-management/internal/database"
	"github.com/Shivanand-hulikatti/library-management/internal/handler"
	"github.com/Shivanand-hulikatti/library-management/internal/logger"
	"github.com/Shivanand-hulikatti/library-management/internal/ratelimit"
	"github.com/Shivanand-hulikatti/library-management/internal/repository/postgres"
	"github.com/Shivanand-hulikatti/library-management/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/library-management/internal/service"
	"github.com/Shivanand-hulikatti/library-management/internal/validation"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(logger.Config{
		Format:      cfg.Logger.Format,
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   !cfg.IsProduction(),
	})
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Open the store ─────────────────────────────────────────────────
	stores, closeStores, err := openStores(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer closeStores()

	// ── 2. Wire up layers ────────────────────────────────────────────────
	opts := []service.Option{service.WithValidator(validation.New())}
	svc := handler.Services{
		Books:      service.NewBookService(stores, log, opts...),
		Borrowers:  service.NewBorrowerService(stores, log, opts...),
		Loans:      service.NewLoanService(stores, log, opts...),
		Reconciler: service.NewReconciler(stores, log, opts...),
	}

	if _, err := svc.Reconciler.Run(ctx); err != nil {
		return fmt.Errorf("startup reconcile: %w", err)
	}

	routerCfg := handler.RouterConfig{AllowedOrigins: cfg.Server.AllowedOrigins}
	if cfg.RateLimit.RPS > 0 {
		limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		defer limiter.Stop()
		routerCfg.Limiter = limiter
	}

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.NewRouter(svc, routerCfg, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening",
			slog.String("addr", srv.Addr),
			slog.String("env", cfg.App.Environment),
			slog.String("db_driver", cfg.Database.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	if cfg.Reconcile.Interval > 0 {
		g.Go(func() error {
			return svc.Reconciler.RunEvery(gctx, cfg.Reconcile.Interval)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		log.Info("server stopped")
		return nil
	})

	return g.Wait()
}

// openStores connects to the configured backend and applies its schema.
func openStores(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (service.Stores, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		conn, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return service.Stores{}, nil, err
		}
		db := sqlite.New(conn)
		if err := db.Migrate(ctx); err != nil {
			conn.Close()
			return service.Stores{}, nil, err
		}
		log.Info("opened sqlite database", slog.String("path", cfg.SQLitePath))
		return db.Stores(), func() { conn.Close() }, nil

	default:
		pool, err := database.NewPool(ctx, cfg, log)
		if err != nil {
			return service.Stores{}, nil, fmt.Errorf("database: %w", err)
		}
		db := postgres.New(pool)
		if err := db.Migrate(ctx); err != nil {
			pool.Close()
			return service.Stores{}, nil, err
		}
		log.Info("connected to postgres", slog.String("host", cfg.Host), slog.String("db", cfg.Name))
		return db.Stores(), pool.Close, nil
	}
}
