// Package main is the entry point for the authorization API server.
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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/quorumgate/internal/action"
	"github.com/onnwee/quorumgate/internal/api"
	"github.com/onnwee/quorumgate/internal/audit"
	"github.com/onnwee/quorumgate/internal/auth"
	"github.com/onnwee/quorumgate/internal/config"
	"github.com/onnwee/quorumgate/internal/db"
	"github.com/onnwee/quorumgate/internal/emergency"
	"github.com/onnwee/quorumgate/internal/health"
	"github.com/onnwee/quorumgate/internal/middleware"
	"github.com/onnwee/quorumgate/internal/policy"
	"github.com/onnwee/quorumgate/internal/signer"
	"github.com/onnwee/quorumgate/internal/sigverify"
	"github.com/onnwee/quorumgate/internal/tracing"
)

const serviceName = "quorumgate-api"

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to YAML config file (environment variables take precedence)")
	flag.Parse()

	if *help {
		fmt.Println("Quorumgate API Server")
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
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := cfg.LogSummary()
	attrs := make([]any, 0, len(summary)*2)
	for k, v := range summary {
		attrs = append(attrs, k, v)
	}
	logger.Info("configuration loaded", attrs...)

	tracerProvider, err := tracing.NewProvider(tracingConfigFromEnv(cfg.Env))
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Storage backends. Empty DATABASE_URL keeps everything in memory,
	// which is only acceptable for development.
	var (
		auditRepo     audit.Repository
		signerRepo    signer.Repository
		emergencyRepo emergency.Repository
		actionRepo    action.Repository
		dbChecker     api.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		auditRepo = audit.NewPostgresRepository(conn, logger)
		signerRepo = signer.NewPostgresRepository(conn)
		emergencyRepo = emergency.NewPostgresRepository(conn)
		actionRepo = action.NewPostgresRepository(conn, logger)
		dbChecker = health.NewDBChecker(conn)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
		auditRepo = audit.NewInMemoryRepository()
		signerRepo = signer.NewInMemoryRepository(cfg.MinThreshold)
		emergencyRepo = emergency.NewInMemoryRepository()
		actionRepo = action.NewInMemoryRepository()
	}

	var (
		usageStore     action.UsageStore
		rateLimitStore middleware.RateLimitStore
		redisChecker   api.HealthChecker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		usageStore = action.NewRedisUsageStore(client)
		rateLimitStore = middleware.NewRedisRateLimitStore(client)
		redisChecker = health.NewRedisChecker(client)
	} else {
		logger.Warn("REDIS_URL not set, using in-memory usage and rate limit stores")
		memUsage := action.NewInMemoryUsageStore()
		memRate := middleware.NewInMemoryRateLimitStore()
		usageStore = memUsage
		rateLimitStore = memRate
		go cleanupLoop(memUsage, memRate)
	}

	registry := signer.NewRegistry(signerRepo, auditRepo, signer.Config{
		MinSigners:   cfg.MinSigners,
		MaxSigners:   cfg.MaxSigners,
		MinThreshold: cfg.MinThreshold,
		MaxThreshold: cfg.MaxThreshold,
	}, logger)
	emergencyMetrics := emergency.NewMetrics()
	controller := emergency.NewController(emergencyRepo, registry, auditRepo, cfg.BaseDelay, emergencyMetrics, logger)
	quorum := policy.NewQuorumEvaluator(registry, controller)
	delay := policy.NewTimeDelayPolicy(controller, cfg.BaseDelay)

	verifier := sigverify.NewEd25519Verifier()
	collector := action.NewCollector(actionRepo, registry, verifier, auditRepo, cfg.DomainTag, logger)

	actionMetrics := action.NewMetrics()
	httpMetrics := middleware.NewMetrics()
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := actionMetrics.Register(promRegistry); err != nil {
		logger.Error("failed to register action metrics", "error", err)
		os.Exit(1)
	}
	if err := httpMetrics.Register(promRegistry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	if err := emergencyMetrics.Register(promRegistry); err != nil {
		logger.Error("failed to register emergency metrics", "error", err)
		os.Exit(1)
	}
	registerStateGauges(promRegistry, actionRepo, registry, controller)

	ledger := action.NewLedger(action.LedgerOptions{
		Repo:       actionRepo,
		Registry:   registry,
		Quorum:     quorum,
		Delay:      delay,
		Collector:  collector,
		Usage:      usageStore,
		Limits:     action.UsageLimits{MaxActions: cfg.DailyMaxActions, MaxValue: cfg.DailyMaxValue},
		Dispatcher: action.NewWebhookDispatcher(cfg.DispatchTimeout),
		Audit:      auditRepo,
		Metrics:    actionMetrics,
		DomainTag:  cfg.DomainTag,
		MaxHorizon: cfg.MaxHorizon,
	}, logger)

	var jwtService *auth.JWTService
	if cfg.JWTPreviousSecret != "" {
		jwtService = auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	} else {
		jwtService = auth.NewJWTService(cfg.JWTSecret)
	}

	signerHandlers := api.NewSignerHandlers(registry)
	txHandlers := api.NewTransactionHandlers(ledger)
	emergencyHandlers := api.NewEmergencyHandlers(controller)
	auditHandlers := api.NewAuditHandlers(auditRepo)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    dbChecker,
		RedisChecker: redisChecker,
	})

	authenticate := middleware.Authenticate(jwtService)
	mutationLimit := middleware.RateLimiter(rateLimitStore, middleware.DefaultMutationLimit(), middleware.ActorKeyFunc())

	// protected wraps a handler with authentication and, when capability is
	// non-empty, a capability check. Mutating handlers additionally pass
	// through the per-actor mutation rate limit.
	protected := func(h http.HandlerFunc, capability string, mutating bool) http.Handler {
		var handler http.Handler = h
		if mutating {
			handler = mutationLimit(handler)
		}
		if capability != "" {
			handler = middleware.RequireCapability(capability)(handler)
		}
		return authenticate(handler)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandlers.Health)
	mux.HandleFunc("GET /ready", healthHandlers.Ready)
	mux.Handle("GET /metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	mux.Handle("POST /signers", protected(signerHandlers.AddSigner, auth.CapabilityRegistryAdmin, true))
	mux.Handle("DELETE /signers/{identity}", protected(signerHandlers.RemoveSigner, auth.CapabilityRegistryAdmin, true))
	mux.Handle("GET /signers", protected(signerHandlers.ListSigners, "", false))
	mux.Handle("GET /threshold", protected(signerHandlers.GetThreshold, "", false))
	mux.Handle("PUT /threshold", protected(signerHandlers.UpdateThreshold, auth.CapabilityRegistryAdmin, true))

	mux.Handle("POST /transactions", protected(txHandlers.Submit, auth.CapabilitySigner, true))
	mux.Handle("GET /transactions/{id}", protected(txHandlers.Get, "", false))
	mux.Handle("POST /transactions/{id}/signatures", protected(txHandlers.Sign, auth.CapabilitySigner, true))
	mux.Handle("POST /transactions/{id}/execute", protected(txHandlers.Execute, auth.CapabilitySigner, true))
	mux.Handle("POST /transactions/{id}/cancel", protected(txHandlers.Cancel, auth.CapabilitySigner, true))

	mux.Handle("POST /emergency", protected(emergencyHandlers.Activate, auth.CapabilityEmergencyActivator, true))
	mux.Handle("DELETE /emergency", protected(emergencyHandlers.Deactivate, auth.CapabilityEmergencyActivator, true))
	mux.Handle("GET /emergency", protected(emergencyHandlers.Current, "", false))

	mux.Handle("GET /audit", protected(auditHandlers.List, auth.CapabilityAuditReader, false))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"quorumgate-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// RequestID -> Tracing -> Logging -> HTTPMetrics -> global rate limit.
	handler := middleware.RequestID(
		middleware.Tracing(serviceName)(
			middleware.Logging(logger)(
				middleware.HTTPMetrics(httpMetrics)(
					middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc())(mux),
				),
			),
		),
	)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer provider", "error", err)
	}

	logger.Info("server stopped")
}

// registerStateGauges exposes current engine state as gauges sampled at
// scrape time. Backend errors read as zero rather than failing the scrape.
func registerStateGauges(reg prometheus.Registerer, actionRepo action.Repository, registry *signer.Registry, controller *emergency.Controller) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ledger_transactions_pending",
		Help: "Number of transactions currently pending",
	}, func() float64 {
		n, err := actionRepo.CountPending(context.Background())
		if err != nil {
			return 0
		}
		return float64(n)
	}))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "registry_active_signers",
		Help: "Number of active signers in the registry",
	}, func() float64 {
		signers, err := registry.ActiveSigners(context.Background())
		if err != nil {
			return 0
		}
		return float64(len(signers))
	}))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "registry_active_weight",
		Help: "Combined weight of all active signers",
	}, func() float64 {
		weight, err := registry.ActiveWeight(context.Background())
		if err != nil {
			return 0
		}
		return float64(weight)
	}))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "emergency_level",
		Help: "Current emergency level, zero when operating normally",
	}, func() float64 {
		state, err := controller.Current(context.Background())
		if err != nil || !state.Active {
			return 0
		}
		return float64(state.Level)
	}))
}

// cleanupLoop periodically evicts expired in-memory rate limit buckets and
// usage counters from previous days.
func cleanupLoop(usage *action.InMemoryUsageStore, rate *middleware.InMemoryRateLimitStore) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rate.Cleanup()
		usage.Cleanup(action.UsageDay(time.Now()))
	}
}

// tracingConfigFromEnv reads the tracing settings. Tracing stays opt-in so a
// bare deployment does not need an OTLP endpoint.
func tracingConfigFromEnv(env string) tracing.Config {
	samplingRate := 1.0
	if raw := os.Getenv("TRACING_SAMPLING_RATE"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
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
		InsecureMode: os.Getenv("TRACING_INSECURE") == "true",
	}
}
