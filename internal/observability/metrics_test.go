package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch("network", time.Second)
		m.SetRequestsLastHour(3)
		m.SetBreakerOpen(true)
		m.ObserveCycle(time.Second, nil)
		m.ObserveIndicator("nvis", "GOOD", 80, 40, 12)
	})
}

func TestObserveFetch(t *testing.T) {
	m := NewMetricsForTesting()

	m.ObserveFetch("cache", 0)
	m.ObserveFetch("network", 2*time.Second)
	m.ObserveFetch("network", time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.FetchTotal.WithLabelValues("cache")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.FetchTotal.WithLabelValues("network")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FetchDuration))
}

func TestObserveCycle(t *testing.T) {
	m := NewMetricsForTesting()

	m.ObserveCycle(time.Second, nil)
	m.ObserveCycle(time.Second, errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CyclesTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CyclesTotal.WithLabelValues("error")))
}

func TestObserveIndicatorReplacesStatus(t *testing.T) {
	m := NewMetricsForTesting()

	m.ObserveIndicator("mainland", "CLOSED", 12, 5, 3)
	m.ObserveIndicator("mainland", "OPEN", 72, 61, 40)

	assert.Equal(t, 1, testutil.CollectAndCount(m.Status))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Status.WithLabelValues("mainland", "OPEN")))
	assert.Equal(t, float64(72), testutil.ToFloat64(m.Score.WithLabelValues("mainland")))
	assert.Equal(t, float64(61), testutil.ToFloat64(m.VaraScore.WithLabelValues("mainland")))
	assert.Equal(t, float64(40), testutil.ToFloat64(m.Records.WithLabelValues("mainland")))
}

func TestSetBreakerOpen(t *testing.T) {
	m := NewMetricsForTesting()
	m.SetBreakerOpen(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BreakerOpen))
	m.SetBreakerOpen(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.BreakerOpen))
}
