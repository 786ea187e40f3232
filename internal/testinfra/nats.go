// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

//go:build integration

package testinfra

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultNATSImage is the NATS server image used by integration tests.
	DefaultNATSImage = "nats:2.10-alpine"

	// DefaultNATSPort is the client port inside the container.
	DefaultNATSPort = "4222"
)

// NATSContainer is a standalone JetStream-enabled NATS server, used to run
// the delivery queue against an external broker instead of the embedded one.
type NATSContainer struct {
	testcontainers.Container
	URL string
}

// NewNATSContainer starts nats-server with JetStream enabled.
func NewNATSContainer(ctx context.Context) (*NATSContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        DefaultNATSImage,
		ExposedPorts: []string{DefaultNATSPort + "/tcp"},
		Cmd:          []string{"-js"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultNATSPort+"/tcp"),
			wait.ForLog("Server is ready"),
		).WithStartupTimeout(30 * time.Second),
	}

	container, endpoint, err := start(ctx, req)
	if err != nil {
		return nil, err
	}
	return &NATSContainer{Container: container, URL: "nats://" + endpoint}, nil
}
