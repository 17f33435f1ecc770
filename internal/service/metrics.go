package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts document writes by outcome. A nil *Metrics records nothing.
type Metrics struct {
	generations *prometheus.CounterVec
}

// NewMetrics creates the service collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "documents_written_total",
			Help: "Document generations and uploads by outcome.",
		}, []string{"outcome"}),
	}
	if err := reg.Register(m.generations); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) incGeneration(outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
}
