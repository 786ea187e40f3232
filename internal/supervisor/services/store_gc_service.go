// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package services

import (
	"context"
	"time"

	"github.com/tomtom215/engagecast/internal/logging"
)

// GarbageCollector is implemented by stores with reclaimable space, such
// as store.BadgerStore.
type GarbageCollector interface {
	RunGC() error
}

// StoreGCService runs value log garbage collection on a fixed interval.
// GC errors are logged and the loop continues; only cancellation stops it.
type StoreGCService struct {
	gc       GarbageCollector
	interval time.Duration
	name     string
}

// NewStoreGCService creates the service. A non-positive interval falls
// back to 10 minutes.
func NewStoreGCService(gc GarbageCollector, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StoreGCService{
		gc:       gc,
		interval: interval,
		name:     "store-gc",
	}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.gc.RunGC(); err != nil {
				logging.Warn().Err(err).Str("service", s.name).Msg("Store GC failed")
				continue
			}
			logging.Debug().Dur("duration", time.Since(start)).Msg("Store GC complete")
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *StoreGCService) String() string {
	return s.name
}
