package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

func TestTelemetrySetup(t *testing.T) {
	var traces bytes.Buffer
	reg := promclient.NewRegistry()

	tel, err := Setup("test-service", Options{TraceWriter: &traces, Registerer: reg})
	if err != nil {
		t.Fatalf("Failed to setup telemetry: %v", err)
	}

	// Verify providers are set
	if otel.GetTracerProvider() == nil {
		t.Error("Tracer provider not set")
	}
	if otel.GetMeterProvider() == nil {
		t.Error("Meter provider not set")
	}

	_, span := GetTracer("test-tracer").Start(context.Background(), "simulate")
	span.End()

	GetGlobalMetrics().RecordSimulation(context.Background(), "single", time.Millisecond, 0)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == MetricSimulationsTotal {
			found = true
		}
	}
	if !found {
		t.Errorf("%s not exported to the registry", MetricSimulationsTotal)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if !bytes.Contains(traces.Bytes(), []byte(`"Name": "simulate"`)) {
		t.Error("span was not written to the trace writer")
	}
}
