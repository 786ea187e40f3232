// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordIngest(t *testing.T) {
	before := testutil.ToFloat64(IngestRequestsTotal.WithLabelValues("LIKE", "accepted"))
	RecordIngest("LIKE", "accepted")
	RecordIngest("LIKE", "accepted")

	if got := testutil.ToFloat64(IngestRequestsTotal.WithLabelValues("LIKE", "accepted")) - before; got != 2 {
		t.Errorf("accepted delta = %v, want 2", got)
	}
}

func TestRecordEventProcessed(t *testing.T) {
	tests := []struct {
		kind    string
		outcome string
	}{
		{"LIKE", "applied"},
		{"LIKE", "duplicate"},
		{"COMMENT", "applied"},
		{"VIEW", "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"_"+tt.outcome, func(t *testing.T) {
			c := EventsProcessedTotal.WithLabelValues(tt.kind, tt.outcome)
			before := testutil.ToFloat64(c)
			RecordEventProcessed(tt.kind, tt.outcome, 3*time.Millisecond)
			if got := testutil.ToFloat64(c) - before; got != 1 {
				t.Errorf("delta = %v, want 1", got)
			}
		})
	}
}

func histogramCount(t *testing.T, kind string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	h, err := EventProcessingDuration.GetMetricWithLabelValues(kind)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.(interface{ Write(*dto.Metric) error }).Write(m); err != nil {
		t.Fatal(err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestEventProcessingDuration_Observed(t *testing.T) {
	before := histogramCount(t, "UNLIKE")
	RecordEventProcessed("UNLIKE", "applied", 20*time.Millisecond)
	if got := histogramCount(t, "UNLIKE") - before; got != 1 {
		t.Errorf("sample count delta = %d, want 1", got)
	}
}

func TestRecordStoreOperation(t *testing.T) {
	errs := StoreOperationErrors.WithLabelValues("badger", "apply_like")
	before := testutil.ToFloat64(errs)

	RecordStoreOperation("badger", "apply_like", time.Millisecond, nil)
	RecordStoreOperation("badger", "apply_like", time.Millisecond, errors.New("conflict"))

	if got := testutil.ToFloat64(errs) - before; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

func TestRecordBroadcast(t *testing.T) {
	ok := BroadcastPublishedTotal.WithLabelValues("ok")
	failed := BroadcastPublishedTotal.WithLabelValues("error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordBroadcast(nil)
	RecordBroadcast(errors.New("nats down"))

	if testutil.ToFloat64(ok)-okBefore != 1 || testutil.ToFloat64(failed)-failedBefore != 1 {
		t.Error("expected one ok and one error broadcast")
	}
}

func TestRecordDLQEvent(t *testing.T) {
	c := DLQEventsTotal.WithLabelValues("malformed")
	before := testutil.ToFloat64(c)
	RecordDLQEvent("malformed")
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("delta = %v, want 1", got)
	}
}

func TestTrackActiveRequest_Concurrent(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			TrackActiveRequest(true)
			TrackActiveRequest(false)
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("gauge = %v, want %v", got, before)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	c := APIRequestsTotal.WithLabelValues("POST", "/api/v1/content/{contentID}/like", "202")
	before := testutil.ToFloat64(c)
	RecordAPIRequest("POST", "/api/v1/content/{contentID}/like", "202", 2*time.Millisecond)
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("delta = %v, want 1", got)
	}
}

func TestRecordAuthzDecision(t *testing.T) {
	tests := []struct {
		allowed, cached bool
		result, source  string
	}{
		{true, false, "allowed", "enforcer"},
		{false, false, "denied", "enforcer"},
		{true, true, "allowed", "cache"},
	}
	for _, tt := range tests {
		c := AuthzDecisionsTotal.WithLabelValues(tt.result, tt.source)
		before := testutil.ToFloat64(c)
		RecordAuthzDecision(tt.allowed, tt.cached)
		if got := testutil.ToFloat64(c) - before; got != 1 {
			t.Errorf("%s/%s delta = %v, want 1", tt.result, tt.source, got)
		}
	}
}
