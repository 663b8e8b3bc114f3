package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors exposed on /metrics. No code in
// this module updates them, so they stay at zero unless a caller does.
type Metrics struct {
	EventsIngested  *prometheus.CounterVec
	AlarmsRaised    *prometheus.CounterVec
	ActiveAnalyzers prometheus.Gauge
	RuleFaults      *prometheus.CounterVec
}

// NewMetrics registers and returns the engine's prometheus collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventwatch_events_ingested_total",
			Help: "Total SystemEvents ingested, by application.",
		}, []string{"application"}),
		AlarmsRaised: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventwatch_alarms_raised_total",
			Help: "Total AlarmMessages dispatched, by application and level.",
		}, []string{"application", "level"}),
		ActiveAnalyzers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eventwatch_active_analyzers",
			Help: "Number of currently registered program analyzers.",
		}),
		RuleFaults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventwatch_rule_faults_total",
			Help: "Total rule evaluation panics recovered, by application.",
		}, []string{"application"}),
	}
}
