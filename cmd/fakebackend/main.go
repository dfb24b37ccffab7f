// Command fakebackend serves a local stand-in for the hosted backend so the
// gateway can run without it.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"synerthree/internal/config"
	"synerthree/internal/database"
	"synerthree/internal/fakebackend"
	"synerthree/internal/observability"
	"synerthree/internal/seed"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.Configure(cfg.Env, cfg.LogLevel)

	db, err := database.Connect(cfg.FakeBackendDSN, fakebackend.AllModels()...)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err = seed.Run(ctx, db, cfg.FakeBackendSeed)
	cancel()
	if err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	app := fakebackend.NewServer(fakebackend.NewStore(db), cfg.FakeBackendSecret, cfg.InsightAPIKey).NewApp()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down fake backend...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	log.Printf("Fake backend starting on port %s...", cfg.FakeBackendPort)
	if err := app.Listen(":" + cfg.FakeBackendPort); err != nil {
		log.Fatal(err)
	}
}
