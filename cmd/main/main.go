package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daq-observer/src/acquisition"
	"daq-observer/src/config"
	"daq-observer/src/interfaces"
	"daq-observer/src/logger"
	"daq-observer/src/pipeline"
	"daq-observer/src/server"
	"daq-observer/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.Name)

	// 2. Setup Storage (optional)
	var store interfaces.ISampleStore

	if cfg.Storage.Enabled {
		switch cfg.Storage.DBType {
		case "postgres":
			store, err = storage.NewPostgresStore(cfg.MConfig, appLogger)
		default:
			// Default to SQLite
			store, err = storage.NewSQLiteStore(cfg.MConfig, appLogger)
		}

		if err != nil {
			appLogger.Critical("Failed to init store: %v", err)
		}
		if err := store.Initialize(); err != nil {
			appLogger.Critical("Failed to migrate store: %v", err)
		}
		defer store.Close()
	}

	// 3. Setup Components
	srv := server.NewDisplayServer(cfg.MConfig, appLogger)
	source := acquisition.NewSimulatedSource(true)

	pipe, err := pipeline.NewPipeline(cfg, source, srv, store, appLogger)
	if err != nil {
		appLogger.Critical("Failed to build pipeline: %v", err)
	}
	srv.AttachPipeline(pipe)

	// 4. Start Server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 5. Start Acquisition Run
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pipe.Start(ctx); err != nil {
		appLogger.Critical("Failed to start pipeline: %v", err)
	}

	// 6. Periodic storage cleanup
	if store != nil {
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := store.CleanupOldData(); err != nil {
						appLogger.Error("Storage cleanup failed: %v", err)
					}
				}
			}
		}()
	}

	// 7. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutdown signal received, stopping...")
	pipe.Stop()
	srv.Stop()
	appLogger.Info("Goodbye.")
}
