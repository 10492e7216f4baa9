package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	first := CommandsTotal
	Init()
	if CommandsTotal != first {
		t.Error("Init re-registered metrics")
	}
	if ControlCallDuration == nil || RosterSizeGauge == nil || SceneCacheSizeGauge == nil {
		t.Error("metrics not initialized")
	}
}

func TestRecordCommand(t *testing.T) {
	Init()
	before := promtest.ToFloat64(CommandsTotal.WithLabelValues("scene", "success"))
	RecordCommand("scene", "success")
	RecordCommand("scene", "success")
	if got := promtest.ToFloat64(CommandsTotal.WithLabelValues("scene", "success")) - before; got != 2 {
		t.Errorf("commands counter delta = %v, want 2", got)
	}
}

func TestGauges(t *testing.T) {
	Init()
	SetRosterSize(3)
	if got := promtest.ToFloat64(RosterSizeGauge); got != 3 {
		t.Errorf("roster gauge = %v, want 3", got)
	}
	RecordSceneRefresh(true, 7)
	if got := promtest.ToFloat64(SceneCacheSizeGauge); got != 7 {
		t.Errorf("scene gauge = %v, want 7", got)
	}
	RecordSceneRefresh(false, 0)
	if got := promtest.ToFloat64(SceneCacheSizeGauge); got != 7 {
		t.Errorf("failed refresh changed scene gauge to %v", got)
	}
	UpdateChatGauge(true)
	if got := promtest.ToFloat64(ChatConnectedGauge); got != 1 {
		t.Errorf("chat gauge = %v, want 1", got)
	}
	UpdateChatGauge(false)
	if got := promtest.ToFloat64(ChatConnectedGauge); got != 0 {
		t.Errorf("chat gauge = %v, want 0", got)
	}
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_duration_seconds", Help: "Test duration"})
	executed := false
	d := TimeFunc(h, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})
	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if d < 10*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 10ms", d)
	}
	if n := promtest.CollectAndCount(h); n != 1 {
		t.Errorf("CollectAndCount = %d, want 1", n)
	}
	// nil observer is allowed
	TimeFunc(nil, func() {})
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if GetCorrelation(ctx) != "" {
		t.Error("empty context should have no correlation id")
	}
	ctx, id := EnsureCorrelation(ctx)
	if id == "" || GetCorrelation(ctx) != id {
		t.Errorf("EnsureCorrelation id = %q, stored %q", id, GetCorrelation(ctx))
	}
	ctx2, id2 := EnsureCorrelation(ctx)
	if id2 != id || ctx2 != ctx {
		t.Error("EnsureCorrelation replaced an existing id")
	}
	if LoggerWithCorr(WithCorrelation(context.Background(), "abc")) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx := WithCorrelation(context.Background(), "corr-1")
	_, span := StartSpan(ctx, TracerName, "test")
	RecordError(span, nil)
	SetSpanSuccess(span)
	span.End()
	if IsTracingEnabled() {
		t.Error("tracing should be disabled without InitTracing")
	}
}
