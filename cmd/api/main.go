// Package main is the entry point for the Lodgeline API server.
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

	"github.com/lodgeline/lodgeline/internal/api"
	"github.com/lodgeline/lodgeline/internal/archive"
	"github.com/lodgeline/lodgeline/internal/audit"
	"github.com/lodgeline/lodgeline/internal/auth"
	"github.com/lodgeline/lodgeline/internal/billing"
	"github.com/lodgeline/lodgeline/internal/booking"
	"github.com/lodgeline/lodgeline/internal/config"
	"github.com/lodgeline/lodgeline/internal/db"
	"github.com/lodgeline/lodgeline/internal/health"
	"github.com/lodgeline/lodgeline/internal/idempotency"
	"github.com/lodgeline/lodgeline/internal/jobs"
	"github.com/lodgeline/lodgeline/internal/ledger"
	"github.com/lodgeline/lodgeline/internal/middleware"
	"github.com/lodgeline/lodgeline/internal/pricing"
	"github.com/lodgeline/lodgeline/internal/tenant"
	"github.com/lodgeline/lodgeline/internal/tracing"
)

const serviceName = "lodgeline-api"

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Lodgeline API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	ctx := context.Background()

	// Tracing is opt-in via TRACING_ENABLED.
	tracerProvider, err := tracing.NewProvider(tracingConfig(cfg.Env))
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	// Redis backs the shared rate limit buckets. When unavailable the
	// server falls back to per-instance in-memory buckets.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	var rateLimitStore middleware.RateLimitStore
	var redisChecker api.HealthChecker
	pingCtx, cancelPing := context.WithTimeout(ctx, 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory rate limits", "error", err)
		rateLimitStore = middleware.NewInMemoryRateLimitStore()
	} else {
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient)
		redisChecker = health.NewRedisChecker(redisClient)
	}
	cancelPing()

	// Repositories
	tenantRepo := tenant.NewPostgresRepository(database)
	bookingRepo := booking.NewPostgresRepository(database)
	ledgerRepo := ledger.NewPostgresRepository(database)
	auditRepo := audit.NewPostgresRepository(database)
	pricingRepo := pricing.NewPostgresRepository(database)
	invoiceRepo := billing.NewPostgresRepository(database)
	webhookRepo := billing.NewPostgresWebhookRepository(database)
	idempotencyRepo := idempotency.NewPostgresRepository(database)

	// Services
	bookingSvc := booking.NewService(bookingRepo, ledgerRepo, auditRepo, tenantRepo, logger, cfg.HoldTTL())
	billingSvc := billing.NewService(invoiceRepo, ledgerRepo, bookingRepo, bookingSvc, auditRepo, logger)
	stripeClient := billing.NewStripeClient(cfg.StripeAPIKey)

	var jwtSvc *auth.JWTService
	if cfg.JWTPreviousSecret != "" {
		jwtSvc = auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	} else {
		jwtSvc = auth.NewJWTService(cfg.JWTSecret)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	jobMetrics := jobs.NewMetrics()
	if err := jobMetrics.Register(registry); err != nil {
		logger.Error("failed to register job metrics", "error", err)
		os.Exit(1)
	}

	// Background jobs
	runner := jobs.NewRunner(logger, jobMetrics)
	runner.Every(time.Minute, jobs.JobTypeHoldExpiry, jobs.HoldExpiryJob(bookingSvc, 100))
	runner.Every(time.Hour, jobs.JobTypeChainVerify, jobs.ChainVerifyJob(tenantRepo, auditRepo))
	runner.Every(time.Hour, jobs.JobTypeIdempotencyCleanup, jobs.IdempotencyCleanupJob(idempotencyRepo, 24*time.Hour))
	runner.Every(24*time.Hour, jobs.JobTypeIPAnonymization, jobs.AnonymizationJob(
		audit.NewAnonymizationJob(audit.AnonymizationJobConfig{Anonymizer: auditRepo, Logger: logger})))

	if cfg.ArchiveBucketName != "" {
		archiveSvc, err := archive.NewService(archive.ServiceConfig{
			BucketName:      cfg.ArchiveBucketName,
			AccessKeyID:     cfg.ArchiveAccessKeyID,
			SecretAccessKey: cfg.ArchiveSecretAccessKey,
			Endpoint:        cfg.ArchiveEndpoint,
		})
		if err != nil {
			logger.Error("failed to initialize archive storage", "error", err)
			os.Exit(1)
		}
		runner.Every(24*time.Hour, jobs.JobTypeArchiveUpload, jobs.ArchiveUploadJob(tenantRepo, auditRepo, archiveSvc))
	}

	// Handlers
	bookingHandlers := api.NewBookingHandlers(bookingSvc, bookingRepo, ledgerRepo)
	pricingHandlers := api.NewPricingHandlers(pricingRepo, auditRepo)
	tenantHandlers := api.NewTenantHandlers(tenantRepo, auditRepo)
	auditHandlers := api.NewAuditHandlers(auditRepo)
	ledgerHandlers := api.NewLedgerHandlers(ledgerRepo)
	billingHandlers := api.NewBillingHandlers(billingSvc, stripeClient, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)
	webhookHandlers := api.NewWebhookHandlers(cfg.StripeWebhookSecret, billingSvc, webhookRepo)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    health.NewDBChecker(database),
		RedisChecker: redisChecker,
	})

	// Per-route middleware. Auth runs first so tenant-keyed rate limits
	// and idempotency see the authenticated tenant.
	authMW := middleware.Auth(jwtSvc)
	adminMW := middleware.RequireRole(auth.RoleAdmin)
	idemMW := middleware.Idempotency(idempotencyRepo, []string{"/v1/bookings", "/v1/invoices"})
	bookingLimitMW := middleware.RateLimiter(rateLimitStore, middleware.DefaultBookingLimit(), middleware.TenantKeyFunc())
	exportLimitMW := middleware.RateLimiter(rateLimitStore, middleware.DefaultExportLimit(), middleware.TenantKeyFunc())

	protected := func(h http.HandlerFunc) http.Handler {
		return authMW(h)
	}
	mutating := func(h http.HandlerFunc) http.Handler {
		return authMW(bookingLimitMW(idemMW(h)))
	}

	mux := http.NewServeMux()

	mux.Handle("/v1/bookings", mutating(bookingHandlers.HandleBookings))
	mux.Handle("/v1/bookings/", mutating(bookingHandlers.HandleBookingByID))
	mux.Handle("/v1/quotes", protected(pricingHandlers.Quote))
	mux.Handle("/v1/rate-plans", protected(pricingHandlers.HandleRatePlans))
	mux.Handle("/v1/rate-plans/", protected(pricingHandlers.HandleRatePlanByRoomType))
	mux.Handle("/v1/tenants", authMW(adminMW(http.HandlerFunc(tenantHandlers.HandleTenants))))
	mux.Handle("/v1/tenants/", authMW(adminMW(http.HandlerFunc(tenantHandlers.HandleTenantByID))))
	mux.Handle("/v1/invoices", mutating(billingHandlers.CreateInvoice))
	mux.Handle("/v1/invoices/", mutating(billingHandlers.HandleInvoiceByID))
	mux.Handle("/v1/audit", protected(auditHandlers.Query))
	mux.Handle("/v1/audit/verify", protected(auditHandlers.VerifyChain))
	mux.Handle("/v1/audit/export", authMW(exportLimitMW(http.HandlerFunc(auditHandlers.Export))))
	mux.Handle("/v1/ledger/trial-balance", protected(ledgerHandlers.TrialBalance))

	// Stripe authenticates webhooks by signature, not bearer token.
	mux.HandleFunc("/v1/webhooks/stripe", webhookHandlers.HandleStripeWebhook)

	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"lodgeline-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Global chain: RequestID -> Tracing -> Logging -> Metrics -> IP rate limit
	globalLimitMW := middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc())
	handler := middleware.RequestID(
		middleware.Tracing(serviceName)(
			middleware.Logging(logger)(
				middleware.HTTPMetrics(httpMetrics)(
					globalLimitMW(mux)))))

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	runner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down tracing", "error", err)
	}

	logger.Info("server stopped")
}

// tracingConfig builds the tracing setup from environment variables so
// deployments without a collector run with tracing disabled.
func tracingConfig(env string) tracing.Config {
	samplingRate := 1.0
	if v := os.Getenv("TRACING_SAMPLING_RATE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			samplingRate = parsed
		}
	}
	return tracing.Config{
		ServiceName:  serviceName,
		Enabled:      os.Getenv("TRACING_ENABLED") == "true",
		Environment:  env,
		ExporterType: os.Getenv("TRACING_EXPORTER"),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
		SamplingRate: samplingRate,
		InsecureMode: os.Getenv("OTLP_INSECURE") == "true",
	}
}
