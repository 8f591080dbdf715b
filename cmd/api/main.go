package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"borderfleet/internal/api"
	"borderfleet/internal/buildinfo"
	"borderfleet/internal/config"
	"borderfleet/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", os.Getenv("CONFIG"), "path to config yaml")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	srv, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	defer func() { _ = srv.Store.Close() }()

	metrics.RegisterDefault()
	metrics.BuildInfo.WithLabelValues(buildinfo.Version).Set(1)

	mux := http.NewServeMux()

	// Plans
	mux.HandleFunc("/v1/plans", srv.PlansHandler)
	mux.HandleFunc("/v1/plans/", srv.PlanByIDHandler) // includes /report, /artifacts, /events/stream

	// Topology and solver
	mux.HandleFunc("/v1/locations", srv.LocationsHandler)
	mux.HandleFunc("/v1/solver/config", srv.SolverConfigHandler)

	// Webhook subscriptions
	mux.HandleFunc("/v1/subscriptions", srv.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", srv.SubscriptionByIDHandler)

	// Admin
	mux.HandleFunc("/v1/admin/webhook-deliveries", srv.WebhookDeliveriesHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries/", srv.WebhookDeliveryRetryHandler)
	mux.HandleFunc("/v1/admin/plan-metrics", srv.PlanMetricsHandler)
	mux.HandleFunc("/debug/config", srv.DebugJSON)

	// GraphQL: queries over HTTP, subscriptions over WebSocket, plus an
	// SSE bridge for clients without WebSocket.
	mux.HandleFunc("/graphql", srv.GraphQLHTTPHandler)
	mux.HandleFunc("/graphql/ws", srv.GraphQLWSHandler)
	mux.HandleFunc("/graphql/subscriptions/plan-events", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("planId")
		if id == "" {
			http.Error(w, "planId required", http.StatusBadRequest)
			return
		}
		r.URL.Path = "/v1/plans/" + id + "/events/stream"
		srv.PlanByIDHandler(w, r)
	})

	// Docs
	mux.HandleFunc("/openapi.yaml", srv.OpenAPIHandler)
	mux.HandleFunc("/docs", srv.DocsHandler)
	mux.HandleFunc("/console", srv.SwaggerHandler)

	// Health and introspection
	mux.HandleFunc("/healthz", srv.HealthHandler)
	mux.HandleFunc("/readyz", srv.ReadyHandler)
	mux.HandleFunc("/version", srv.VersionHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           logMiddleware(srv.Instrument(srv.RateLimit(mux))),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderSec) * time.Second,
	}

	// Start webhook worker
	if cfg.Webhooks.Enabled {
		worker := srv.NewWebhookWorker()
		worker.Start()
		defer close(worker.Stop)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("API listening on %s", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSec)*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
	})
}
