// karne-mirror consumes the change feed and keeps the local SQLite
// mirror current, so a server starting while the remote store is down
// still serves recent data.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"karne/internal/config"
	"karne/internal/feed"
	"karne/internal/log"
	"karne/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := log.Setup(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentMirror)
	logger.Info("Starting karne-mirror", "feed_backend", cfg.FeedBackend, "db_path", cfg.SQLiteDBPath)

	local, err := storage.NewLocal(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open local mirror", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer local.Close()

	var subscriber feed.Subscriber
	switch cfg.FeedBackend {
	case "amqp":
		f, err := feed.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		subscriber = f
	case "redis":
		f, err := feed.NewRedis(cfg.RedisAddr, "", cfg.RedisChannel)
		if err != nil {
			logger.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		subscriber = f
	default:
		logger.Error("karne-mirror needs FEED_BACKEND set to amqp or redis")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = subscriber.Subscribe(ctx, func(ev feed.Event) error {
		return local.ApplyEvent(ctx, ev)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Feed consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Mirror stopped gracefully")
}
