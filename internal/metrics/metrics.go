package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set groups the collectors exported by the ledger core.
type Set struct {
	Commands      *prometheus.CounterVec
	Queries       *prometheus.CounterVec
	Events        prometheus.Counter
	Compensations prometheus.Counter
	QueueDepth    prometheus.Gauge
}

// New registers the collectors against the given registerer.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_commands_total",
			Help: "Commands dispatched, by command name and outcome.",
		}, []string{"command", "status"}),
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_queries_total",
			Help: "Queries served, by query name and source.",
		}, []string{"query", "source"}),
		Events: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_events_appended_total",
			Help: "Events appended to the event log.",
		}),
		Compensations: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_workflow_compensations_total",
			Help: "Workflow compensation actions executed.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_queue_depth",
			Help: "Jobs waiting in the durable queue.",
		}),
	}
}

// CommandResult records one dispatch outcome. Nil-safe.
func (s *Set) CommandResult(command, status string) {
	if s == nil {
		return
	}
	s.Commands.WithLabelValues(command, status).Inc()
}

// QueryResult records one query outcome. Nil-safe.
func (s *Set) QueryResult(query, source string) {
	if s == nil {
		return
	}
	s.Queries.WithLabelValues(query, source).Inc()
}

// EventsAppended counts persisted events. Nil-safe.
func (s *Set) EventsAppended(n int) {
	if s == nil {
		return
	}
	s.Events.Add(float64(n))
}

// QueueSize records the durable queue depth. Nil-safe.
func (s *Set) QueueSize(n int) {
	if s == nil {
		return
	}
	s.QueueDepth.Set(float64(n))
}

// CompensationRun counts one executed compensation. Nil-safe.
func (s *Set) CompensationRun() {
	if s == nil {
		return
	}
	s.Compensations.Inc()
}
