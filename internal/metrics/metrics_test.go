package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMetricsSingleton(t *testing.T) {
	require.Same(t, GetMetrics(), GetMetrics())
}

func TestCountersIsolatedRegistry(t *testing.T) {
	m := newCreditMetrics(prometheus.NewRegistry())
	m.DeductTotal.WithLabelValues("success").Inc()
	m.DeductTotal.WithLabelValues("success").Inc()
	m.PackRaceRecoveries.Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.DeductTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PackRaceRecoveries))
}
