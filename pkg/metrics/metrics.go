package metrics

import (
	"time"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/biometricErrors"
	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "biosigner"

// Result label value for operations that returned no error.
const ResultOK = "ok"

// Metrics holds the signer's Prometheus collectors. A nil *Metrics is valid and
// records nothing, so tests and library callers can skip metrics entirely.
type Metrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	challenges        *prometheus.CounterVec
	gateWaiters       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of signer operations by operation and result kind.",
		}, []string{"operation", "result"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall time of signer operations, including time spent waiting on the user.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation"}),
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "biometric_challenges_total",
			Help:      "Biometric challenges by terminal outcome.",
		}, []string{"outcome"}),
		gateWaiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "challenge_gate_waiters",
			Help:      "Operations queued behind the in-flight biometric challenge.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.operations, m.operationDuration, m.challenges, m.gateWaiters} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// RecordOperation counts one completed operation labelled by its error kind.
func (m *Metrics) RecordOperation(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = string(biometricErrors.KindOf(err))
		if result == "" {
			result = "unknown"
		}
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordChallenge(outcome types.ChallengeOutcome) {
	if m == nil {
		return
	}
	m.challenges.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) GateWaiting(delta float64) {
	if m == nil {
		return
	}
	m.gateWaiters.Add(delta)
}
