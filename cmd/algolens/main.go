package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/algolens/algolens/internal/api"
	"github.com/algolens/algolens/internal/bus"
	"github.com/algolens/algolens/internal/config"
	"github.com/algolens/algolens/internal/dispatch"
	"github.com/algolens/algolens/internal/gateway"
	"github.com/algolens/algolens/internal/registry"
	"github.com/algolens/algolens/internal/store"
)

func main() {
	// Local development reads settings from a .env file; a missing file is fine.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("algolens: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"redis_addr", cfg.RedisAddr,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	kv, err := registry.NewRedisKV(context.Background(), cfg.RedisAddr)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer kv.Close()

	reg := registry.New(db, kv, cfg.CorrelationTTL, logger)
	eventBus := bus.New()

	// Sandbox executors are linked in by the deployment; a bare build serves
	// only the builtin instrumented algorithms.
	executors := dispatch.NewExecutorRegistry()

	dispatcher := dispatch.New(reg, db, eventBus, executors, logger, cfg.ExecTimeout, cfg.StepDelay)

	hub := gateway.NewHub(reg, eventBus, logger)
	hub.Start()

	srv := api.NewServer(cfg.ListenAddr, reg, db, dispatcher, executors, hub, logger)

	err = srv.Run()

	// Let in-flight executions finish before tearing down their outlets.
	dispatcher.Wait()
	hub.Shutdown()
	eventBus.Close()

	if err != nil {
		log.Fatalf("server error: %v", err)
	}
}
