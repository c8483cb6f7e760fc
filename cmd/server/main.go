package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/argenomics/arg_go_server/config"
	"github.com/argenomics/arg_go_server/internal/api"
	"github.com/argenomics/arg_go_server/internal/api/handler"
	"github.com/argenomics/arg_go_server/internal/database"
	"github.com/argenomics/arg_go_server/internal/pipeline"
	"github.com/argenomics/arg_go_server/internal/pkg/pubsub"
	"github.com/argenomics/arg_go_server/internal/pkg/ws"
	"github.com/argenomics/arg_go_server/internal/repository"
	"github.com/argenomics/arg_go_server/internal/service"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	if rdb != nil {
		log.Println("Redis connected")
	}

	launcher, err := pipeline.NewLauncher(cfg.Pipeline.Script, cfg.Pipeline.WorkDir, cfg.Pipeline.CondaInitScript)
	if err != nil {
		log.Fatalf("Failed to init pipeline launcher: %v", err)
	}

	jobRepo := repository.NewJobRepository(db)
	publisher := pubsub.NewPublisher(rdb)
	jobService := service.NewJobService(jobRepo, launcher, publisher, cfg.Pipeline.DefaultThreads)

	// One-time sweep: jobs left RUNNING by a crashed server are failed here.
	// There is no periodic reaper.
	staleAge := time.Duration(cfg.Pipeline.StaleJobHours) * time.Hour
	if err := jobService.ReapStale(staleAge); err != nil {
		log.Printf("Warning: stale job sweep failed: %v", err)
	}

	wsHub := ws.NewHub()

	// Bridge Redis progress events to WebSocket watchers
	if rdb != nil {
		subscriber := pubsub.NewSubscriber(rdb)
		go func() {
			err := subscriber.Subscribe(context.Background(), func(msg *pubsub.ProgressMessage) {
				wsHub.Broadcast(msg.JobID, &ws.Message{Type: msg.Type, Data: msg})
			})
			if err != nil && err != context.Canceled {
				log.Printf("Progress subscriber stopped: %v", err)
			}
		}()
	}

	jobHandler := handler.NewJobHandler(jobService)
	fileHandler := handler.NewFileHandler(jobService)
	websocketHandler := handler.NewWebSocketHandler(wsHub)

	router := api.NewRouter(jobHandler, fileHandler, websocketHandler, cfg)
	engine := router.Setup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
