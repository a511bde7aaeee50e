// Package main is the entry point for the channel manager sync worker.
// It consumes the channel manager's CBOR feed over WebSocket and applies
// availability and rate updates to the shared cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lodgeline/lodgeline/internal/channel"
	"github.com/lodgeline/lodgeline/internal/config"
	"github.com/lodgeline/lodgeline/internal/db"
	"github.com/lodgeline/lodgeline/internal/middleware"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to optional YAML config file")
	metricsPort := flag.Int("metrics-port", 9091, "port for the Prometheus metrics endpoint")
	flag.Parse()

	if *help {
		fmt.Println("Lodgeline Channel Sync Worker")
		fmt.Println()
		fmt.Println("Usage: channelsync [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.LoadChannelSync(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store: Redis when reachable, in-memory otherwise.
	var store channel.Store
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancelPing := context.WithTimeout(ctx, 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory store", "error", err)
		store = channel.NewInMemoryStore()
	} else {
		store = channel.NewRedisStore(redisClient, channel.DefaultEntryTTL)
	}
	cancelPing()

	// Cursor: Postgres when configured, in-memory otherwise.
	var tracker channel.SequenceTracker
	if cfg.DatabaseURL != "" {
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close()
		tracker = channel.NewPostgresSequenceTracker(database)
	} else {
		logger.Warn("no database configured, cursor will not survive restarts")
		tracker = channel.NewInMemorySequenceTracker()
	}

	registry := prometheus.NewRegistry()
	metrics := channel.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	processor := channel.NewProcessor(store, tracker, metrics, logger)

	feedCfg := channel.DefaultConfig(cfg.ChannelFeedURL)
	feedCfg.Token = cfg.ChannelFeedToken
	client, err := channel.NewClient(feedCfg, tracker.GetLastSequence, processor.Handle, logger)
	if err != nil {
		logger.Error("invalid feed configuration", "error", err)
		os.Exit(1)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:         ":" + strconv.Itoa(*metricsPort),
		Handler:      metricsMux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info("starting metrics endpoint", "port", *metricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("starting channel sync", "feed_url", cfg.ChannelFeedURL)
		if err := client.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("channel sync stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server forced to shutdown", "error", err)
	}

	logger.Info("channel sync stopped")
}
