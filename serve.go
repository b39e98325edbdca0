package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/yeremiapane/backoffice/config"
	"github.com/yeremiapane/backoffice/database"
	"github.com/yeremiapane/backoffice/realtime"
	"github.com/yeremiapane/backoffice/router"
	"github.com/yeremiapane/backoffice/services"
	"github.com/yeremiapane/backoffice/utils"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP server until SIGINT or SIGTERM.

Open event streams are closed before the server stops accepting
connections, so clients reconnect to the next instance with their
Last-Event-ID.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	switch cfg.GinMode {
	case gin.ReleaseMode, gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.GinMode)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		if err := database.Migrate(db, cfg.EventBusTable); err != nil {
			return err
		}
	}

	bus, err := realtime.Open(realtime.Options{
		Driver:        cfg.EventBusDriver,
		Table:         cfg.EventBusTable,
		File:          cfg.EventBusFile,
		Retention:     cfg.EventBusRetention,
		Buffer:        cfg.EventBusBuffer,
		SnowflakeNode: cfg.SnowflakeNode,
	}, db)
	if err != nil {
		return fmt.Errorf("failed to open event bus: %w", err)
	}

	orders := services.NewOrderService(db, nil)
	hub := realtime.NewHub(bus, orders.Enrich, realtime.HubOptions{
		PollInterval: cfg.EventBusPoll,
		PingInterval: cfg.SSEPingInterval,
		Retry:        cfg.SSERetry,
		BatchLimit:   cfg.EventBusBatch,
	})
	orders.Events = orderEvents(db, hub)

	if cfg.EventBusDriver == realtime.DriverTable {
		janitor := services.NewBusJanitor(db, cfg.EventBusTable, cfg.EventBusRetention)
		janitor.Start()
		defer janitor.Stop()
	}

	r := router.SetupRouter(router.Deps{Config: cfg, DB: db, Hub: hub, Orders: orders})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// streams stay open; no write timeout
		WriteTimeout: 0,
		IdleTimeout:  2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		utils.InfoLogger.Printf("%s %s listening on port %s (db=%s, bus=%s)",
			config.AppName, config.AppVersion, cfg.Port, cfg.DBDriver, cfg.EventBusDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	utils.InfoLogger.Println("shutting down")
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Warnf("shutdown timed out: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	utils.InfoLogger.Println("shutdown complete")
	return nil
}

// orderEvents returns the publisher for order writes. When the table bus is
// fed by the os triggers, those rows already carry every write and the
// service must not append a second event.
func orderEvents(db *gorm.DB, hub *realtime.Hub) services.Publisher {
	if cfg.EventBusDriver != realtime.DriverTable {
		return hub
	}
	installed, err := database.TriggersInstalled(db, cfg.EventBusTable)
	if err != nil {
		utils.ErrorLogger.Warnf("could not check os triggers, publishing from the API: %v", err)
		return hub
	}
	if installed {
		utils.InfoLogger.Printf("os triggers feed %s; order writes do not publish", cfg.EventBusTable)
		return nil
	}
	return hub
}
