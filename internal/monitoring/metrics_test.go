package monitoring_test

import (
	"errors"
	"testing"

	"github.com/paveg/adxql/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := monitoring.NewMetrics(reg)

	m.AggregatorRequests.Inc()
	m.ObserveCache("schema", true)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "adxql_aggregator_requests_total")
	assert.Contains(t, names, "adxql_cache_hits_total")
}

func TestNewMetrics_NilRegisterer(t *testing.T) {
	m := monitoring.NewMetrics(nil)
	require.NotNil(t, m)

	// Two unregistered sets must not collide.
	other := monitoring.NewMetrics(nil)
	m.AggregatorRetries.Inc()
	assert.InDelta(t, 1, testutil.ToFloat64(m.AggregatorRetries), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(other.AggregatorRetries), 0)
}

func TestObserveCache(t *testing.T) {
	m := monitoring.NewMetrics(nil)

	m.ObserveCache("schema", true)
	m.ObserveCache("schema", false)
	m.ObserveCache("schema", false)

	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheHits.WithLabelValues("schema")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.CacheMisses.WithLabelValues("schema")), 0)
}

func TestRecordOperation(t *testing.T) {
	m := monitoring.NewMetrics(nil)

	calls := 0
	err := m.RecordOperation("compile", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = m.RecordOperation("compile", func() error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, testutil.CollectAndCount(m.OperationDuration))
}
