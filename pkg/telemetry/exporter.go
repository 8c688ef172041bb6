package telemetry

import (
	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/prometheus"
)

// newPrometheusReader creates the metric reader behind the /metrics endpoint.
// Without a registerer the exporter registers on the Prometheus default
// registry, which only accepts one exporter per process.
func newPrometheusReader(reg promclient.Registerer) (*prometheus.Exporter, error) {
	if reg == nil {
		return prometheus.New()
	}
	return prometheus.New(prometheus.WithRegisterer(reg))
}
