package metrics

import (
	"canvassync/internal/events"

	"github.com/prometheus/client_golang/prometheus"
)

// Live reports the current room and participant totals. The gauges read it
// at scrape time, so they never depend on bus events arriving.
type Live interface {
	Len() int
	ParticipantCount() int
}

type Metrics struct {
	Rooms        prometheus.GaugeFunc
	Participants prometheus.GaugeFunc
	Committed    prometheus.Counter
	Removed      prometheus.Counter
	Dropped      *prometheus.CounterVec
}

// New creates the sync server collectors and registers them with reg.
func New(reg prometheus.Registerer, live Live) *Metrics {
	m := &Metrics{
		Rooms: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "canvassync",
			Name:      "rooms_active",
			Help:      "Rooms with at least one participant.",
		}, func() float64 { return float64(live.Len()) }),
		Participants: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "canvassync",
			Name:      "participants_active",
			Help:      "Participants joined across all rooms.",
		}, func() float64 { return float64(live.ParticipantCount()) }),
		Committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "canvassync",
			Name:      "strokes_committed_total",
			Help:      "Strokes appended to a room log.",
		}),
		Removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "canvassync",
			Name:      "strokes_removed_total",
			Help:      "Strokes removed by undo.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canvassync",
			Name:      "requests_dropped_total",
			Help:      "Client requests silently ignored, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.Rooms, m.Participants, m.Committed, m.Removed, m.Dropped)
	return m
}

// Observe feeds the counters. A counter missing an event the bus dropped
// only under-reports.
func (m *Metrics) Observe(ev events.Event) {
	switch ev.Kind {
	case events.StrokeCommitted:
		m.Committed.Inc()
	case events.StrokeRemoved:
		m.Removed.Inc()
	case events.MessageDropped:
		m.Dropped.WithLabelValues(ev.Reason).Inc()
	}
}
