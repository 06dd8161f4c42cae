package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bloomctl"

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "state_transitions_total",
			Help:      "Number of supervisor state transitions.",
		}, []string{"name", "from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "current_state",
			Help:      "Current supervisor state (1 = active state, 0 = inactive).",
		}, []string{"name", "state"},
	)
	stops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Stops that ended the process, by the mode that ended it.",
		}, []string{"name", "mode"},
	)
	conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "port",
			Name:      "conflicts_total",
			Help:      "Starts refused because a foreign or unknown process held the port.",
		}, []string{"name"},
	)
	staleCleared = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "stale_cleared_total",
			Help:      "Stale lifecycle records removed before a start.",
		}, []string{"name"},
	)
	dependencyWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dependency",
			Name:      "waits_total",
			Help:      "Dependency waits by probe kind and outcome.",
		}, []string{"name", "kind", "result"},
	)
	dependencyWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dependency",
			Name:      "wait_duration_seconds",
			Help:      "Time spent waiting for the dependency.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"name", "kind"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{stateTransitions, currentState, stops, conflicts, staleCleared, dependencyWaits, dependencyWaitSeconds}
}

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	for _, c := range collectors() {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// WriteTextfile writes everything gathered by g in the node-exporter
// textfile collector format. The write is atomic.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func RecordStateTransition(name, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(name, from, to).Inc()
	}
}

// SetCurrentState marks state as the only active state for name.
func SetCurrentState(name, state string, all []string) {
	if !regOK.Load() {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		currentState.WithLabelValues(name, s).Set(v)
	}
}

func IncStop(name, mode string) {
	if regOK.Load() {
		stops.WithLabelValues(name, mode).Inc()
	}
}

func IncConflict(name string) {
	if regOK.Load() {
		conflicts.WithLabelValues(name).Inc()
	}
}

func IncStaleCleared(name string) {
	if regOK.Load() {
		staleCleared.WithLabelValues(name).Inc()
	}
}

func ObserveDependencyWait(name, kind string, ready bool, seconds float64) {
	if !regOK.Load() {
		return
	}
	result := "unavailable"
	if ready {
		result = "ready"
	}
	dependencyWaits.WithLabelValues(name, kind, result).Inc()
	dependencyWaitSeconds.WithLabelValues(name, kind).Observe(seconds)
}
