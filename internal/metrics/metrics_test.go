package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "signoz-ingestion-key=abc", map[string]string{"signoz-ingestion-key": "abc"}},
		{"spaces and multiple", " a = 1 , b=2=3", map[string]string{"a": "1", "b": "2=3"}},
		{"malformed pair skipped", "novalue,k=v", map[string]string{"k": "v"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseHeaders(tt.in))
		})
	}
}

func TestNewAppMetrics(t *testing.T) {
	m, err := NewAppMetrics(noop.NewMeterProvider().Meter("test"), "storefront")
	require.NoError(t, err)

	assert.NotNil(t, m.CheckoutsInitiated)
	assert.NotNil(t, m.RevenueTotal)

	attrs := m.WithServiceName(nil)
	require.Len(t, attrs, 1)
	assert.Equal(t, "storefront", attrs[0].Value.AsString())

	// recording on noop instruments must not panic
	m.RecordDBQuery(context.Background(), "SELECT", "cart", "SELECT 1", time.Now(), true)
	m.Outcome(context.Background(), m.PaymentsVerified, "success")
}
