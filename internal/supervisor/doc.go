// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

/*
Package supervisor provides process supervision for Engagecast using suture v4.

The tree groups long-running services into three layers:

	RootSupervisor ("engagecast")
	├── DataSupervisor ("data-layer")
	│   └── StoreGCService (badger backend only)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── eventprocessor.Router ("engagement-router")
	│   ├── eventprocessor.MaxDeliveriesWatcher (nats backend only)
	│   ├── websocket.Hub ("websocket-hub")
	│   └── websocket.SnapshotSubscriber (nats backend only)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (waits for the router to consume)

Each layer counts failures independently. A service that keeps failing
pushes only its own layer into backoff.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(pipeline.Router)
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second).
	    WaitFor(pipeline.Running()))

	errCh := tree.ServeBackground(ctx)

Supervisor events (start, stop, panic, backoff) are logged through
sutureslog, bridged into zerolog by logging.NewSlogLogger.

# Configuration

DefaultTreeConfig mirrors suture's defaults: 5 failures before backoff,
30s decay, 15s backoff and a 10s per-service shutdown timeout. Zero fields
of a TreeConfig take these values.

# Debugging Shutdown

	report, _ := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}
*/
package supervisor
