package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"karne/internal/config"
	"karne/internal/feed"
	apphttp "karne/internal/http"
	"karne/internal/ledger"
	"karne/internal/log"
	"karne/internal/remote"
	"karne/internal/remote/memory"
	"karne/internal/remote/postgres"
	"karne/internal/services"
	"karne/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		// Logging is not configured yet; write straight to stderr.
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := log.Setup(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting karne server", "port", cfg.Port, "remote_backend", cfg.RemoteBackend, "feed_backend", cfg.FeedBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rem remote.Store
	switch cfg.RemoteBackend {
	case "postgres":
		pg, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Error("Failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		rem = pg
	default:
		rem = memory.New()
		logger.Warn("Using in-memory remote store; data will not survive restarts")
	}

	var local *storage.Local
	if cfg.SQLiteDBPath != "" {
		var err error
		local, err = storage.NewLocal(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to open local mirror", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer local.Close()
	}

	store := ledger.NewStore()
	if err := services.NewLoader(rem, local, store).Load(ctx); err != nil {
		logger.Error("Failed to load ledger", "error", err)
		os.Exit(1)
	}

	var (
		publisher  feed.Publisher = feed.Nop{}
		subscriber feed.Subscriber
	)
	switch cfg.FeedBackend {
	case "amqp":
		f, err := feed.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		// The AMQP queue belongs to the mirror worker; the server only
		// publishes on it.
		publisher = f
	case "redis":
		f, err := feed.NewRedis(cfg.RedisAddr, "", cfg.RedisChannel)
		if err != nil {
			logger.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		publisher = f
		subscriber = f
	}

	svc := services.NewLedgerService(store, rem, publisher, services.Options{
		IDPrefix:             cfg.ClientIDPrefix,
		IDWidth:              cfg.ClientIDWidth,
		InferBottlesOnDebt:   cfg.InferBottlesOnDebt,
		ReturnAudit:          cfg.ReturnAudit,
		ResetBottlesOnSettle: cfg.ResetBottlesOnSettle,
	})

	srv := apphttp.NewServer(":"+cfg.Port, store, svc, rem)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if subscriber != nil {
		bridge := services.NewSyncBridge(store, subscriber)
		g.Go(func() error {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
