// Package main is the entry point for the game console event relay.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oremus-labs/ol-game-console/config"
	"github.com/oremus-labs/ol-game-console/internal/api"
	"github.com/oremus-labs/ol-game-console/internal/events"
	"github.com/oremus-labs/ol-game-console/internal/handlers"
	"github.com/oremus-labs/ol-game-console/internal/logutil"
	"github.com/oremus-labs/ol-game-console/internal/queue"
	"github.com/oremus-labs/ol-game-console/internal/redisx"
	"github.com/oremus-labs/ol-game-console/internal/worker"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 5 * time.Second
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting game console relay v%s", version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	logger := logutil.Default()
	logger.Info("relay_bootstrap", map[string]interface{}{
		"version":   version,
		"port":      cfg.ServerPort,
		"redisAddr": cfg.RedisAddr,
		"channel":   cfg.EventsChannel,
		"logStream": cfg.EventLogStream,
		"auth":      cfg.APIToken != "",
	})

	redisClient, err := redisx.NewClient(ctx, redisx.Config{
		Addr:        cfg.RedisAddr,
		Username:    cfg.RedisUsername,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		TLSEnabled:  cfg.RedisTLSEnabled,
		TLSInsecure: cfg.RedisTLSInsecure,
	})
	if err != nil {
		log.Fatalf("relay: failed to connect to redis: %v", err)
	}

	var (
		eventLog queue.Log
		ping     func(context.Context) error
	)
	if redisClient != nil {
		defer redisClient.Close()
		eventLog = queue.NewStreamLog(redisClient, cfg.EventLogStream, cfg.EventLogMaxLen)
		ping = func(ctx context.Context) error { return redisx.Ping(ctx, redisClient) }
	} else {
		log.Println("REDIS_ADDR not set; event log and fan-out run in memory")
		eventLog = queue.NewMemoryLog(int(cfg.EventLogMaxLen))
	}

	bus, err := events.NewBus(ctx, events.Options{
		Client:  redisClient,
		Logger:  logger,
		Channel: cfg.EventsChannel,
	})
	if err != nil {
		log.Fatalf("relay: failed to start event bus: %v", err)
	}
	defer bus.Close()

	h := handlers.New(bus, eventLog, logger, handlers.Options{
		Heartbeat:   cfg.StreamHeartbeat,
		ReplayLimit: cfg.ReplayLimit,
		Version:     version,
		Ping:        ping,
	})

	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(h, api.Options{APIToken: cfg.APIToken, Logger: logger})
	srv := server.Start(":"+cfg.ServerPort, logger)
	log.Printf("Relay listening on :%s", cfg.ServerPort)

	maintenance := worker.New(worker.Options{
		Log:       eventLog,
		Logger:    logger,
		Interval:  cfg.MaintenanceInterval,
		Retention: cfg.EventLogRetention,
	})
	go func() {
		if err := maintenance.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("maintenance worker stopped", err, nil)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down relay...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Relay forced to shutdown: %v", err)
	}
	log.Println("Relay stopped")
}
