package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/pkg/utils"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ONIONS_SENT      = "onionsSent"
	ONIONS_RECEIVED  = "onionsReceived"
	ONIONS_ABORTED   = "onionsAborted"
	ONIONS_COMPLETED = "onionsCompleted"
	ONION_SIZE       = "onionSizeBytes"
	ROUND_TRIP_TIME  = "onionRoundTripSeconds"
	HANDSHAKES       = "handshakesReceived"
)

var collectors = map[string]prometheus.Collector{
	ONIONS_SENT: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: ONIONS_SENT,
			Help: "Number of onion transmissions, labeled by sending node",
		},
		[]string{"node"},
	),
	ONIONS_RECEIVED: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: ONIONS_RECEIVED,
			Help: "Number of onions received, labeled by receiving node",
		},
		[]string{"node"},
	),
	ONIONS_ABORTED: prometheus.NewCounter(prometheus.CounterOpts{
		Name: ONIONS_ABORTED,
		Help: "Number of watchdog aborts",
	}),
	ONIONS_COMPLETED: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: ONIONS_COMPLETED,
			Help: "Number of onions that returned to the sink, labeled by path length",
		},
		[]string{"path_length"},
	),
	ONION_SIZE: prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ONION_SIZE,
		Help:    "Size of transmitted onion packets in bytes",
		Buckets: prometheus.ExponentialBuckets(64, 2, 10),
	}),
	ROUND_TRIP_TIME: prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ROUND_TRIP_TIME,
		Help:    "Simulated time between issuing an onion and its return, in seconds",
		Buckets: prometheus.DefBuckets,
	}),
	HANDSHAKES: prometheus.NewCounter(prometheus.CounterOpts{
		Name: HANDSHAKES,
		Help: "Number of public keys announced to the sink",
	}),
}

// CollectorIds lists every collector, for ServeMetrics.
func CollectorIds() []string {
	return []string{ONIONS_SENT, ONIONS_RECEIVED, ONIONS_ABORTED, ONIONS_COMPLETED, ONION_SIZE, ROUND_TRIP_TIME, HANDSHAKES}
}

func Observe(id string, value float64) {
	if collector, ok := collectors[id].(prometheus.Observer); ok {
		collector.Observe(value)
	} else {
		slog.Error("Failed to find observer", "id", id)
	}
}

func Inc(id string, labels ...any) {
	if len(labels) == 0 {
		if collector, ok := collectors[id].(prometheus.Counter); ok {
			collector.Inc()
		} else {
			slog.Error("Failed to find counter", "id", id)
		}
		return
	}
	if collector, ok := collectors[id].(*prometheus.CounterVec); ok {
		collector.WithLabelValues(utils.Map(labels, func(label any) string {
			return fmt.Sprintf("%v", label)
		})...).Inc()
	} else {
		slog.Error("Failed to find counterVec", "id", id)
	}
}

// Register adds the given collectors to the default registry. Collectors already
// registered are skipped.
func Register(collectorIds ...string) {
	for _, id := range collectorIds {
		collector, ok := collectors[id]
		if !ok {
			slog.Error("Failed to find collector", "id", id)
			continue
		}
		if err := prometheus.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				slog.Error("Failed to register collector", "id", id, "err", err)
			}
		}
	}
}

// StatusHandler serves the recorder's per-node counters as JSON.
func StatusHandler(r *Recorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Nodes       map[string]NodeCounters `json:"nodes"`
			Completions int                     `json:"completions"`
			Aborts      int                     `json:"aborts"`
		}{
			Nodes:       r.Counters(),
			Completions: len(r.Completions()),
			Aborts:      len(r.Aborts()),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			slog.Error("Failed to encode status", "err", err)
		}
	})
}

// ServeMetrics exposes /metrics and /status on prometheusPort until the returned
// shutdown function is called.
func ServeMetrics(prometheusPort int, status http.Handler, collectorIds ...string) (shutdown func()) {
	Register(collectorIds...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if status != nil {
		mux.Handle("/status", status)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", prometheusPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func(server *http.Server) {
		slog.Info("Starting Prometheus server", "Addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start Prometheus server", "err", err)
		}
	}(server)

	return func() {
		slog.Info("Shutting down Prometheus server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Prometheus server forced to shutdown", "err", err)
		} else {
			slog.Info("Prometheus server gracefully stopped")
		}
	}
}
