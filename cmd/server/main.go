package main

import (
	"context"
	"flag"
	"log"
	"strconv"

	"sparhub/config"
	"sparhub/db"
	"sparhub/routes"
	"sparhub/services"
	"sparhub/utils"
)

func main() {
	configPath := flag.String("config", "./config/config.yml", "path to config file")
	memory := flag.Bool("memory", false, "run against the in-memory store (development only)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var store services.Store
	if *memory {
		log.Println("Running with in-memory store; nothing will be persisted")
		memStore := db.NewMemoryStore()
		utils.SeedCounterparts(context.Background(), memStore)
		store = memStore
	} else {
		mongoStore, err := db.ConnectMongoDB(cfg.Database.URI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		log.Println("Connected to MongoDB")
		utils.SeedCounterparts(context.Background(), mongoStore)
		store = mongoStore
	}

	gen, err := services.NewGeminiGenerator(cfg.Gemini.ApiKey, cfg.ReplyTimeout(), cfg.VerdictTimeout())
	if err != nil {
		log.Fatalf("Failed to initialize generator: %v", err)
	}

	var tracker services.ActivityTracker
	if cfg.Redis.Addr != "" {
		tracker = services.NewRedisActivityTracker(cfg.Redis.Addr, cfg.Redis.Password, cfg.ReaperThreshold())
		log.Printf("Activity tracking via Redis at %s", cfg.Redis.Addr)
	} else {
		tracker = services.NewMemoryActivityTracker()
	}

	svc := services.NewSessionService(store, gen, tracker,
		cfg.Session.AllowedRounds, cfg.Session.DefaultRounds, cfg.Session.GuestOpen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reaper := services.NewReaper(svc, tracker, cfg.ReaperSweep(), cfg.ReaperThreshold())
	go reaper.Run(ctx)

	router := routes.NewRouter(cfg, svc, store)
	port := strconv.Itoa(cfg.Server.Port)
	log.Printf("Server starting on port %s", port)

	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
