// Package metrics exposes Prometheus counters for client sessions.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the client-side counters. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsFailed    *prometheus.CounterVec
	FramesSent        *prometheus.CounterVec
	BytesSent         prometheus.Counter
	TerminalEvents    *prometheus.CounterVec
	SessionDuration   prometheus.Histogram
}

// NewMetrics creates the metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asr_client_sessions_started_total",
			Help: "Total number of WebSocket sessions opened",
		}),
		SessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asr_client_sessions_completed_total",
			Help: "Total number of files delivered and acknowledged",
		}),
		SessionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asr_client_sessions_failed_total",
			Help: "Total number of files that failed, by stage",
		}, []string{"stage"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asr_client_frames_sent_total",
			Help: "Total number of WebSocket frames sent, by frame type",
		}, []string{"type"}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asr_client_audio_bytes_sent_total",
			Help: "Total number of audio bytes sent",
		}),
		TerminalEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asr_client_terminal_events_total",
			Help: "Terminal events that ended a session, by kind",
		}, []string{"kind"}),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "asr_client_session_duration_seconds",
			Help:    "Time from connect to terminal event",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	reg.MustRegister(
		m.SessionsStarted,
		m.SessionsCompleted,
		m.SessionsFailed,
		m.FramesSent,
		m.BytesSent,
		m.TerminalEvents,
		m.SessionDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

func (m *Metrics) FrameSent(frameType string, n int) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(frameType).Inc()
	if frameType == "binary" {
		m.BytesSent.Add(float64(n))
	}
}

func (m *Metrics) SessionEnded(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.TerminalEvents.WithLabelValues(kind).Inc()
	m.SessionDuration.Observe(d.Seconds())
}

func (m *Metrics) FileCompleted() {
	if m == nil {
		return
	}
	m.SessionsCompleted.Inc()
}

// FileFailed records a failure at stage: decode, connect, send or wait.
func (m *Metrics) FileFailed(stage string) {
	if m == nil {
		return
	}
	m.SessionsFailed.WithLabelValues(stage).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", slog.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
