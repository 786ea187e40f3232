// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package websocket

import (
	"time"

	"github.com/tomtom215/engagecast/internal/config"
)

// Config holds hub and connection settings.
type Config struct {
	SendBuffer       int
	HubBuffer        int
	WriteWait        time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration
	MaxMessageSize   int64
	MaxSubscriptions int

	// ControlRate is the sustained rate of inbound control messages per
	// connection, ControlBurst its burst.
	ControlRate  float64
	ControlBurst int

	// AllowedOrigins for the upgrade. "*" allows any origin.
	AllowedOrigins []string

	// LatestCacheSize bounds the per-content latest snapshot cache.
	LatestCacheSize int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SendBuffer:       64,
		HubBuffer:        1024,
		WriteWait:        10 * time.Second,
		PongWait:         60 * time.Second,
		PingPeriod:       54 * time.Second,
		MaxMessageSize:   1024,
		MaxSubscriptions: 32,
		ControlRate:      5,
		ControlBurst:     10,
		AllowedOrigins:   []string{"*"},
		LatestCacheSize:  10000,
	}
}

// ConfigFromBroadcast maps the broadcast config section.
func ConfigFromBroadcast(b config.BroadcastConfig) Config {
	cfg := DefaultConfig()
	cfg.SendBuffer = b.SendBuffer
	cfg.HubBuffer = b.HubBuffer
	cfg.WriteWait = b.WriteWait
	cfg.PongWait = b.PongWait
	cfg.PingPeriod = b.PingPeriod
	cfg.MaxMessageSize = b.MaxMessageSize
	cfg.MaxSubscriptions = b.MaxSubscriptions
	cfg.ControlRate = b.ControlRate
	cfg.ControlBurst = b.ControlBurst
	cfg.AllowedOrigins = b.AllowedOrigins
	return cfg.withDefaults()
}

// withDefaults fills zero values so a partially built Config is usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.HubBuffer <= 0 {
		c.HubBuffer = d.HubBuffer
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.ControlRate <= 0 {
		c.ControlRate = d.ControlRate
	}
	if c.ControlBurst <= 0 {
		c.ControlBurst = d.ControlBurst
	}
	if c.LatestCacheSize <= 0 {
		c.LatestCacheSize = d.LatestCacheSize
	}
	return c
}
