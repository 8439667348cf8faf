package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"presale-backend/internal/bootstrap"
	"presale-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	app, err := bootstrap.BuildWorker(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.DB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started concurrency=%d poll=%s", cfg.WorkerConcurrency, cfg.WorkerPollInterval)
	app.Runner.Run(ctx)
}
