package posting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts posting attempts.
type Metrics struct {
	// Postings counts attempts by event and outcome.
	Postings *prometheus.CounterVec
	// Duration measures handler latency by event.
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the posting metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Postings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "freightbooks",
			Name:      "postings_total",
			Help:      "Accounting posting attempts by business event and outcome",
		}, []string{"event", "outcome"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "freightbooks",
			Name:      "posting_duration_seconds",
			Help:      "Time to turn a business event into a committed journal entry",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"event"}),
	}
}
