package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/microblog/microblog/internal/config"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/internal/workers"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	logger.Info("Starting microblog worker...")

	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	consumer := queue.NewKafkaConsumer(
		cfg.Kafka.Brokers,
		[]string{cfg.Kafka.Topics.UserEvents, cfg.Kafka.Topics.PostEvents},
		cfg.Kafka.GroupID,
		logger,
	)
	defer consumer.Close()

	feedWorker := workers.NewFeedWorker(consumer, repository.NewUserRepository(db.DB), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := feedWorker.Start(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("Feed worker stopped with error")
	}

	logger.Info("Worker exited")
}
