// Package main implements the SantaCam sensor console entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Moinster/SantaCam/internal/api"
	"github.com/Moinster/SantaCam/internal/config"
	"github.com/Moinster/SantaCam/internal/console"
)

const Version = api.Version

func main() {
	log.Printf("Starting SantaCam sensor console v%s", Version)

	// Step 1: Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully")

	// Step 2: Route process logs to the rotated file as well
	if closer := setupLogging(cfg.Logging); closer != nil {
		defer closer.Close()
		log.Printf("Process log teed to %s", cfg.Logging.File)
	}

	// Step 3: Build the console (log sink, camera, pairing, telemetry, vault, audit)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc, err := console.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize console: %v", err)
	}
	log.Printf("Console initialized (camera mode %s)", cfg.Camera.Mode)

	// Step 4: Start telemetry
	runErr := make(chan error, 1)
	go func() {
		runErr <- sc.Run(ctx)
	}()
	log.Println("Telemetry generator running")

	// Step 5: Create API server
	server := api.NewServer(sc, sc.Sink(), sc.Vault(), sc.Hub(),
		config.Millis(cfg.Network.ReadTimeoutMs),
		config.Millis(cfg.Network.WriteTimeoutMs),
		config.Millis(cfg.Network.IdleTimeoutMs))
	if cfg.Network.StaticDir != "" {
		server.SetStaticDir(cfg.Network.StaticDir)
		log.Printf("Serving UI assets from %s", cfg.Network.StaticDir)
	}

	// Step 6: Start HTTP server
	addr := cfg.Network.Addr
	log.Printf("Starting HTTP server on %s", addr)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	log.Printf("SantaCam started successfully")
	log.Printf("Health endpoint: http://localhost%s/api/v1/health", addr)
	log.Printf("Log stream: http://localhost%s/api/v1/telemetry", addr)

	// Set up graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		log.Printf("Server error: %v", err)
	case err := <-runErr:
		log.Printf("Telemetry stopped unexpectedly: %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	// Close the console first so SSE streams end before the server drains
	cancel()
	if err := sc.Close(); err != nil {
		log.Printf("Error closing console: %v", err)
	}
	log.Println("Console closed")

	if err := server.Stop(stopCtx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	} else {
		log.Println("HTTP server stopped gracefully")
	}

	log.Println("SantaCam shutdown complete")
}

// setupLogging tees the standard logger into a rotated file when one is
// configured.
func setupLogging(cfg config.LoggingConfig) io.Closer {
	if cfg.File == "" {
		return nil
	}
	rotated := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotated))
	return rotated
}
