// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommandsTotal    *prometheus.CounterVec // labels: command, outcome
	ChatMessagesSeen *prometheus.CounterVec // labels: platform
	PersistFailures  prometheus.Counter
	SceneRefreshes   *prometheus.CounterVec // labels: result

	// Histograms (seconds)
	ControlCallDuration *prometheus.HistogramVec // labels: request

	// Gauges
	RosterSizeGauge     prometheus.Gauge
	SceneCacheSizeGauge prometheus.Gauge
	ChatConnectedGauge  prometheus.Gauge // 1=connected,0=disconnected
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "streamcast_commands_total", Help: "Chat commands handled, by command and outcome"}, []string{"command", "outcome"})
		ChatMessagesSeen = promauto.NewCounterVec(prometheus.CounterOpts{Name: "streamcast_chat_messages_total", Help: "Chat messages received by the gateway"}, []string{"platform"})
		PersistFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "streamcast_persist_failures_total", Help: "Failed writes of the encrypted credentials file"})
		SceneRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "streamcast_scene_refreshes_total", Help: "Scene list refresh attempts"}, []string{"result"})
		ControlCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "streamcast_control_call_duration_seconds", Help: "OBS control call duration seconds", Buckets: prometheus.DefBuckets}, []string{"request"})
		RosterSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "streamcast_moderators", Help: "Current number of moderators on the roster"})
		SceneCacheSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "streamcast_scene_cache_size", Help: "Number of cached scene names"})
		ChatConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "streamcast_chat_connected", Help: "Chat gateway connected=1 disconnected=0"})
	})
}

// RecordCommand counts one handled command.
func RecordCommand(command, outcome string) {
	if CommandsTotal != nil {
		CommandsTotal.WithLabelValues(command, outcome).Inc()
	}
}

// RecordChatMessage counts one inbound chat message.
func RecordChatMessage(platform string) {
	if ChatMessagesSeen != nil {
		ChatMessagesSeen.WithLabelValues(platform).Inc()
	}
}

// RecordPersistFailure counts a failed credentials write.
func RecordPersistFailure() {
	if PersistFailures != nil {
		PersistFailures.Inc()
	}
}

// RecordSceneRefresh counts a refresh attempt and updates the cache size gauge on success.
func RecordSceneRefresh(ok bool, size int) {
	result := "ok"
	if !ok {
		result = "error"
	}
	if SceneRefreshes != nil {
		SceneRefreshes.WithLabelValues(result).Inc()
	}
	if ok && SceneCacheSizeGauge != nil {
		SceneCacheSizeGauge.Set(float64(size))
	}
}

// SetRosterSize records the current moderator count.
func SetRosterSize(n int) {
	if RosterSizeGauge != nil {
		RosterSizeGauge.Set(float64(n))
	}
}

// UpdateChatGauge sets gauge to 1 if connected else 0.
func UpdateChatGauge(connected bool) {
	if ChatConnectedGauge != nil {
		if connected {
			ChatConnectedGauge.Set(1)
		} else {
			ChatConnectedGauge.Set(0)
		}
	}
}

// ControlCallObserver returns the duration observer for one control request
// type, or nil before Init.
func ControlCallObserver(request string) prometheus.Observer {
	if ControlCallDuration == nil {
		return nil
	}
	return ControlCallDuration.WithLabelValues(request)
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// EnsureCorrelation returns ctx unchanged if it already carries an id, else
// attaches a fresh UUID.
func EnsureCorrelation(ctx context.Context) (context.Context, string) {
	if id := GetCorrelation(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelation(ctx, id), id
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
