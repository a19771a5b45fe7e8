package echoapi

import "github.com/prometheus/client_golang/prometheus"

const (
	statusOK    = "ok"
	statusError = "error"
)

// Metrics counts the message API operations by outcome.
type Metrics struct {
	MessagesSent    *prometheus.CounterVec
	HistoryFetches  *prometheus.CounterVec
	MarkReadUpdates *prometheus.CounterVec
}

// NewMetrics creates the API counters and registers them with reg, when not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "madrasa",
				Name:      "messages_sent_total",
				Help:      "Total number of messages sent",
			},
			[]string{"status"},
		),
		HistoryFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "madrasa",
				Name:      "history_fetches_total",
				Help:      "Total number of thread history fetches",
			},
			[]string{"status"},
		),
		MarkReadUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "madrasa",
				Name:      "mark_read_total",
				Help:      "Total number of mark-read requests",
			},
			[]string{"status"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.MessagesSent, m.HistoryFetches, m.MarkReadUpdates)
	}
	return m
}

func observe(vec *prometheus.CounterVec, err error) {
	status := statusOK
	if err != nil {
		status = statusError
	}
	vec.WithLabelValues(status).Inc()
}
