// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/engagecast/internal/api"
	"github.com/tomtom215/engagecast/internal/auth"
	"github.com/tomtom215/engagecast/internal/authz"
	"github.com/tomtom215/engagecast/internal/config"
	"github.com/tomtom215/engagecast/internal/database"
	"github.com/tomtom215/engagecast/internal/eventprocessor"
	"github.com/tomtom215/engagecast/internal/ingest"
	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/store"
	"github.com/tomtom215/engagecast/internal/supervisor"
	"github.com/tomtom215/engagecast/internal/supervisor/services"
	ws "github.com/tomtom215/engagecast/internal/websocket"
)

const storeOpenTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("store_backend", cfg.Store.Backend).
		Str("queue_backend", cfg.Queue.Backend).
		Str("auth_mode", cfg.Security.AuthMode).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Engagecast")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Engagecast stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // sequential wiring of every component
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === AGGREGATE STORE ===
	openCtx, openCancel := context.WithTimeout(ctx, storeOpenTimeout)
	st, err := database.Open(openCtx, cfg.Store)
	openCancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing aggregate store")
		}
	}()
	logging.Info().Str("backend", cfg.Store.Backend).Msg("Aggregate store opened")

	// === BROADCAST ===
	hub := ws.NewHub(ws.ConfigFromBroadcast(cfg.Broadcast), st)

	// === DELIVERY QUEUE AND PROCESSOR ===
	settings := eventprocessor.SettingsFromConfig(cfg.Queue, cfg.Processor)
	pipeline, err := eventprocessor.NewPipeline(ctx, settings, st, hub)
	if err != nil {
		return err
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event pipeline")
		}
	}()

	pipeline.Health.RegisterOptional("hub", eventprocessor.HubHealth{Hub: hub})

	// === INGESTION ===
	verifier, err := auth.NewVerifier(&cfg.Security)
	if err != nil {
		return err
	}
	warnInsecureSettings(cfg)

	ingestOpts := []ingest.Option{ingest.WithMaxCommentLength(cfg.Ingest.MaxCommentLength)}
	if cfg.Ingest.IncludeSnapshot {
		ingestOpts = append(ingestOpts, ingest.WithSnapshotReader(st))
	}
	ingestor := ingest.NewService(verifier, pipeline.Enqueuer, ingestOpts...)

	// === HTTP ===
	handler := api.NewHandler(api.HandlerDeps{
		Ingest:      ingestor,
		Reader:      st,
		Hub:         hub,
		Health:      pipeline.Health,
		DLQ:         pipeline.DLQ,
		Store:       st,
		BaseContext: ctx,
	})
	chiMW := api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security))
	enforcer, err := authz.NewEnforcer(authz.ConfigFromSettings(cfg))
	if err != nil {
		return err
	}
	router := api.NewRouter(handler, chiMW, verifier, enforcer)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	// === SUPERVISOR TREE ===
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	if gc := garbageCollector(st); gc != nil && cfg.Store.BadgerGCInterval > 0 {
		tree.AddDataService(services.NewStoreGCService(gc, cfg.Store.BadgerGCInterval))
		logging.Info().Dur("interval", cfg.Store.BadgerGCInterval).Msg("Store GC service added")
	}

	tree.AddMessagingService(pipeline.Router)
	tree.AddMessagingService(hub)
	if pipeline.Watcher != nil {
		tree.AddMessagingService(pipeline.Watcher)
	}
	if sub, topic := pipeline.SnapshotSource(); sub != nil {
		tree.AddMessagingService(ws.NewSnapshotSubscriber(hub, sub, topic))
	}

	// Submissions are accepted only once the router consumes.
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout).
		WaitFor(pipeline.Running()))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === RUN ===
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Msg("Starting supervisor tree...")
	var runErr error
	if err := <-tree.ServeBackground(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree error")
		runErr = err
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}
	return runErr
}

// garbageCollector returns the Badger store behind the instrumentation
// wrapper, or nil for SQL backends.
func garbageCollector(st store.AggregateStore) services.GarbageCollector {
	if inst, ok := st.(*store.Instrumented); ok {
		st = inst.Unwrap()
	}
	gc, ok := st.(services.GarbageCollector)
	if !ok {
		return nil
	}
	return gc
}

func warnInsecureSettings(cfg *config.Config) {
	if cfg.Security.AuthMode == "none" {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("  The bearer value is trusted as the caller id.")
		logging.Warn().Msg("  Use only for local development and tests.")
		logging.Warn().Msg("============================================================")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*); set explicit origins in production")
	}
	if cfg.Queue.Backend == eventprocessor.BackendMemory {
		logging.Warn().Msg("Queue backend is memory: queued events are lost on restart")
	}
	if len(cfg.Security.AdminUsers) == 0 && len(cfg.Security.OperatorUsers) == 0 && cfg.Casbin.PolicyPath == "" {
		logging.Info().Msg("No ADMIN_USERS or OPERATOR_USERS configured; admin endpoints will refuse every caller")
	}
}
