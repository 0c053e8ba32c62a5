package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitStdoutExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{
		ServiceName: "nftmarket-test",
		Environment: "test",
		Exporter:    "STDOUT",
		Writer:      &buf,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("init-test").Start(context.Background(), "marketplace.list")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	require.Contains(t, out, "marketplace.list")
	require.Contains(t, out, "nftmarket-test")
}

func TestInitNoneLeavesGlobalProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	shutdown, err := Init(context.Background(), Config{Exporter: ExporterNone})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	require.Equal(t, prev, otel.GetTracerProvider())
}

func TestInitRejectsBadConfig(t *testing.T) {
	_, err := Init(context.Background(), Config{ServiceName: "svc", Exporter: "zipkin"})
	require.ErrorContains(t, err, "unknown trace exporter")

	_, err = Init(context.Background(), Config{Exporter: ExporterStdout})
	require.ErrorContains(t, err, "service name required")

	_, err = Init(context.Background(), Config{ServiceName: "svc", Exporter: ExporterStdout, SampleRatio: 1.5})
	require.ErrorContains(t, err, "sample ratio")

	require.True(t, ValidExporter(" otlp "))
	require.True(t, ValidExporter(""))
	require.False(t, ValidExporter("jaeger"))
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = secret ,broken, =skip,tenant=market ")
	require.Equal(t, map[string]string{"api-key": "secret", "tenant": "market"}, got)
	require.Empty(t, ParseHeaders(""))
}
