package collector

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is a Collector which exports the latest value of each
// metric as a gauge labelled with the metric name
type Prometheus struct {
	gauges *prometheus.GaugeVec
}

// NewPrometheus returns a new Prometheus collector whose gauges are
// registered with reg under namespace
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus,
	error) {
	gauges := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "agent_diagnostic",
		Help:      "Latest value of an agent diagnostic reported after an update.",
	}, []string{"metric"})

	if err := reg.Register(gauges); err != nil {
		return nil, err
	}
	return &Prometheus{gauges: gauges}, nil
}

// Collect implements the Collector interface
func (p *Prometheus) Collect(name string, value float64) {
	p.gauges.WithLabelValues(name).Set(value)
}
