// Package main provides the entry point of the TV slot pool service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirphl/tv-slot-pool/app/container"
	"github.com/amirphl/tv-slot-pool/app/handlers"
	"github.com/amirphl/tv-slot-pool/app/middleware"
	"github.com/amirphl/tv-slot-pool/app/router"
	"github.com/amirphl/tv-slot-pool/config"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	container *container.Container
}

func main() {
	log.Println("Starting TV slot pool service...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := initializeApplication(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.container.Close()

	// Startup tasks finish before the first request is served
	if _, err := app.container.Bootstrap.Run(ctx); err != nil {
		log.Fatalf("Pool bootstrap failed: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func initializeApplication(ctx context.Context, cfg *config.ProductionConfig) (*Application, error) {
	c, err := container.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	slotHandler := handlers.NewSlotHandler(c.Allocator, c.Query)
	adminHandler := handlers.NewSlotAdminHandler(c.Allocator, c.Query)
	authMiddleware := middleware.NewAuthMiddleware(c.Tokens)

	return &Application{
		router:    router.NewFiberRouter(cfg, slotHandler, adminHandler, authMiddleware),
		config:    cfg,
		container: c,
	}, nil
}
