package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRelayMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRelayMetrics(reg)

	m.MessagesReceived.WithLabelValues("action").Inc()
	m.ActiveConnections.Set(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesReceived.WithLabelValues("action")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveConnections))
	assert.Panics(t, func() { NewRelayMetrics(reg) }, "double registration must fail loudly")
}
