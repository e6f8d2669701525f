package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/minqi/freedom/internal/api"
	"github.com/minqi/freedom/internal/api/handlers"
	"github.com/minqi/freedom/internal/backtest"
	"github.com/minqi/freedom/pkg/redis"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the REST API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health                   - Health check
  GET  /api/stocks               - Search the symbol catalog
  GET  /api/stocks/industries    - List industries
  GET  /api/stocks/{tsCode}      - Symbol metadata
  GET  /api/daily/{tsCode}       - Stored daily bars
  GET  /api/adj-factors/{tsCode} - Stored adjustment factors
  GET  /api/limits/{tsCode}      - Stored price limits
  GET  /api/indicators/{tsCode}  - Stored indicators
  GET  /api/signals/{tsCode}     - Model prediction for a date
  POST /api/backtest             - Run a single-symbol backtest

Example:
  go run ./cmd/freedom api
  go run ./cmd/freedom api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== freedom API Server ===")

	rt, err := initRuntime()
	if err != nil {
		return err
	}
	if apiPort != "" {
		rt.cfg.Port = apiPort
	}

	db, cat, err := rt.openCatalog()
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := redis.New(rt.cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "freedom:stocks")

	engine := backtest.NewEngine(rt.store, rt.log)

	stockHandler := handlers.NewStockHandler(cat, cache, rt.log)
	marketHandler := handlers.NewMarketDataHandler(rt.store, rt.log)
	signalHandler := handlers.NewSignalHandler(engine, rt.log)

	router := api.NewRouter(stockHandler, marketHandler, signalHandler, rt.log)
	server := api.New(rt.cfg, rt.log, router)

	go func() {
		if err := server.Start(); err != nil {
			rt.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\nServer running on http://localhost:%s\n", rt.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
