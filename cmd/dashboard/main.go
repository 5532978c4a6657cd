package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/greenops/inference-energy/internal/cache"
	"github.com/greenops/inference-energy/internal/dataset"
	"github.com/greenops/inference-energy/internal/server"
	"github.com/greenops/inference-energy/internal/store"
	"github.com/greenops/inference-energy/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Energy Dashboard Server...")

	opts := dataset.Options{
		ScaleFactor:      cfg.Energy.ScaleFactor,
		EmissionFactor:   cfg.Energy.EmissionFactor,
		StrictTimestamps: cfg.Dataset.StrictTimestamps,
	}

	// The dataset is loaded once and memoized for the process lifetime.
	dsCache := dataset.NewCache()
	var ds *dataset.Dataset

	switch cfg.Dataset.Source {
	case "postgres":
		db, err := store.Connect(cfg.Database.ConnectionString())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		fmt.Println("Connected to database")

		ds, err = dsCache.Load(store.SourceIdentity, func() (*dataset.Dataset, error) {
			return db.LoadDataset(context.Background(), opts)
		})
		if err != nil {
			log.Fatalf("Failed to load dataset: %v", err)
		}
	default:
		ds, err = dsCache.Load(cfg.Dataset.CSVPath, func() (*dataset.Dataset, error) {
			return dataset.LoadCSV(cfg.Dataset.CSVPath, opts)
		})
		if err != nil {
			log.Fatalf("Failed to load dataset: %v", err)
		}
	}

	fmt.Printf("Loaded %d observations (%d models, %d devices, %d features)\n",
		len(ds.Observations), len(ds.Models), len(ds.Devices), len(ds.Features))

	// Optional Redis response cache
	var viewCache *cache.ViewCache
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			fmt.Printf("Note: Redis unavailable, caching disabled: %v\n", err)
		} else {
			viewCache = cache.NewViewCache(redisClient, cfg.Redis.TTL)
			fmt.Printf("View cache enabled (ttl=%s)\n", cfg.Redis.TTL)
		}
	}

	srv := server.New(&cfg.HTTP, ds, viewCache)
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start HTTP server: %v", err)
	}
	defer srv.Stop()

	fmt.Println("\n✓ Energy Dashboard Server is running")
	fmt.Printf("✓ HTTP API listening on port %d\n", cfg.HTTP.Port)
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
}
