package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shrimpsizemoose/trekker/logger"

	"cohort/internal/config"
	"cohort/internal/loginlog"
	"cohort/internal/queue"
	"cohort/internal/store"
)

// Worker drains the job queue and stores login events.
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error.Fatalf("invalid config: %v", err)
	}
	if cfg.QueueBackend == "memory" {
		logger.Error.Fatalf("worker needs QUEUE_BACKEND=redis, the memory queue lives inside the api process")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	rdb, err := store.NewRedis(cfg.RedisAddr)
	if err != nil {
		logger.Error.Fatalf("redis config failed: %v", err)
	}
	defer rdb.Close()
	if !rdb.Healthy(ctx) {
		logger.Info.Printf("Redis at %s not reachable yet, consumer will keep retrying", cfg.RedisAddr)
	}

	q, err := queue.New(cfg.QueueBackend, rdb.Client, cfg.QueueKey)
	if err != nil {
		logger.Error.Fatalf("queue init failed: %v", err)
	}

	logins := loginlog.NewRepository(db)
	logger.Info.Println("worker started, waiting for messages...")
	if err := logins.Serve(ctx, q); err != nil {
		logger.Error.Fatalf("worker failed: %v", err)
	}
	logger.Info.Println("worker stopped")
}
