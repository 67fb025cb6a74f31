package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/contacts/internal/importer"
)

// importMetrics holds Prometheus metrics for import runs.
type importMetrics struct {
	rows     *prometheus.CounterVec   // by outcome: created, duplicate, invalid
	runs     *prometheus.CounterVec   // by status: succeeded, failed
	duration prometheus.Histogram     // whole-run wall time
	active   prometheus.GaugeFunc     // imports holding a limiter slot
	saved    *prometheus.CounterVec   // by kind: contacts, tags, links
}

// newImportMetrics creates the import metrics and registers them with reg.
// A nil reg leaves the metrics unregistered, which is what tests use.
func newImportMetrics(reg prometheus.Registerer, limiter *Limiter) (*importMetrics, error) {
	m := &importMetrics{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contacts",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Rows processed by outcome",
		}, []string{"outcome"}),

		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contacts",
			Subsystem: "import",
			Name:      "runs_total",
			Help:      "Import runs by final status",
		}, []string{"status"}),

		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contacts",
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Import run duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}),

		active: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "contacts",
			Subsystem: "import",
			Name:      "active",
			Help:      "Imports currently running",
		}, func() float64 { return float64(limiter.Status().Active) }),

		saved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contacts",
			Subsystem: "store",
			Name:      "inserted_total",
			Help:      "Rows inserted into the contact store by kind",
		}, []string{"kind"}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.rows, m.runs, m.duration, m.active, m.saved} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRow counts one row outcome. It satisfies importer.Observer.
func (m *importMetrics) ObserveRow(outcome importer.Outcome) {
	m.rows.WithLabelValues(outcome.String()).Inc()
}

func (m *importMetrics) observeRun(took time.Duration, err error) {
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	m.runs.WithLabelValues(status).Inc()
	m.duration.Observe(took.Seconds())
}

func (m *importMetrics) observeSave(contacts, tags, links int64) {
	m.saved.WithLabelValues("contacts").Add(float64(contacts))
	m.saved.WithLabelValues("tags").Add(float64(tags))
	m.saved.WithLabelValues("links").Add(float64(links))
}
