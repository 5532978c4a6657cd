package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/greenops/inference-energy/internal/queue"
	"github.com/greenops/inference-energy/internal/store"
	"github.com/greenops/inference-energy/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Ingest Service...")
	db, err := store.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create the events topic if it does not exist yet
	if err := queue.CreateTopic(
		cfg.Kafka.Brokers,
		cfg.Kafka.TopicEvents,
		cfg.Kafka.NumPartitions,
		1, // replication factor
	); err != nil {
		fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
	}

	// Create Kafka consumer
	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.GroupID)
	defer consumer.Close()
	fmt.Println("Kafka consumer created (registering with broker...)")

	batchWriter := queue.NewBatchWriter(consumer, db, cfg.Ingest.BatchSize, cfg.Ingest.FlushInterval)
	ctx := context.Background()
	if err := batchWriter.Start(ctx); err != nil {
		log.Fatalf("Failed to start batch writer: %v", err)
	}
	fmt.Println("Batch writer started")

	// Print consumer stats periodically
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := consumer.Stats()
			count, err := db.CountObservations(context.Background())
			if err != nil {
				fmt.Printf("Failed to count observations: %v\n", err)
				continue
			}
			fmt.Printf("Consumer stats: Messages=%d, Bytes=%d, Errors=%d | Stored observations: %d\n",
				stats.Messages, stats.Bytes, stats.Errors, count)
		}
	}()

	fmt.Println("\n✓ Ingest Service is running")
	fmt.Println("✓ Consuming inference events from Kafka and writing to PostgreSQL")
	fmt.Printf("✓ Batch size: %d events | Flush interval: %s\n", cfg.Ingest.BatchSize, cfg.Ingest.FlushInterval)
	fmt.Println("✓ Press Ctrl+C to stop")
	fmt.Println("\nWaiting for events...")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	batchWriter.Stop()
	fmt.Println("Ingest Service stopped")
}
