package buffer

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MailerSuite/Final-sub009/errors"
	"github.com/MailerSuite/Final-sub009/metric"
)

func TestNewRing_InvalidCapacity(t *testing.T) {
	_, err := NewRing[int](0)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRing_FIFOOrder(t *testing.T) {
	r, err := NewRing[int](5)
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		assert.True(t, r.Write(i))
	}
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, 5, r.Capacity())

	assert.Equal(t, []int{1, 2, 3, 4}, r.Drain())
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.Drain())
}

func TestRing_WrapAround(t *testing.T) {
	r, err := NewRing[int](3)
	require.NoError(t, err)

	r.Write(1)
	r.Write(2)
	assert.Equal(t, []int{1, 2}, r.Drain())
	r.Write(3)
	r.Write(4)
	r.Write(5)
	assert.False(t, r.Write(6))

	assert.Equal(t, []int{4, 5, 6}, r.Drain())
}

func TestRing_DropOldest(t *testing.T) {
	var dropped []int
	r, err := NewRing[int](3, WithDropCallback[int](func(item int) {
		dropped = append(dropped, item)
	}))
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		r.Write(i)
	}

	assert.Equal(t, []int{1, 2}, dropped)
	assert.Equal(t, []int{3, 4, 5}, r.Drain())
	assert.Equal(t, int64(2), r.Stats().Drops())
}

func TestRing_Statistics(t *testing.T) {
	r, err := NewRing[int](2)
	require.NoError(t, err)

	r.Write(1)
	r.Write(2)
	r.Write(3)
	r.Drain()

	s := r.Stats().Summary()
	assert.Equal(t, int64(3), s.Writes)
	assert.Equal(t, int64(2), s.Reads)
	assert.Equal(t, int64(1), s.Drops)
	assert.Equal(t, int64(0), s.CurrentSize)
	assert.Equal(t, int64(2), s.MaxSize)
}

func TestRing_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	r, err := NewRing[int](2, WithMetrics[int](registry, "pause"))
	require.NoError(t, err)

	r.Write(1)
	r.Write(2)
	r.Write(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.rec.metrics.writes))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rec.metrics.drops))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rec.metrics.utilization))

	_, err = NewRing[int](2, WithMetrics[int](registry, "pause"))
	assert.Error(t, err, "duplicate prefix should fail registration")
}

func TestRing_CloseReleasesMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	first, err := NewRing[int](2, WithMetrics[int](registry, "pause:logs"))
	require.NoError(t, err)
	first.Write(1)

	first.Close()
	first.Close()
	first.Write(2)
	assert.Equal(t, []int{1, 2}, first.Drain(), "items survive Close")

	second, err := NewRing[int](2, WithMetrics[int](registry, "pause:logs"))
	require.NoError(t, err, "name is free after Close")
	second.Write(7)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.rec.metrics.writes))
}

func TestRing_FailedRegistrationKeepsOwnerMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	owner, err := NewRing[int](2, WithMetrics[int](registry, "pause"))
	require.NoError(t, err)

	_, err = NewRing[int](2, WithMetrics[int](registry, "pause"))
	require.Error(t, err)

	owner.Write(1)
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	exported := map[string]bool{}
	for _, mf := range families {
		exported[mf.GetName()] = true
	}
	for _, name := range []string{"writes_total", "reads_total", "drops_total", "size", "utilization_ratio"} {
		assert.True(t, exported["mailstream_buffer_"+name], name)
	}
}

func TestRing_ConcurrentWritersPreserveCount(t *testing.T) {
	r, err := NewRing[int](1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Write(i)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, r.Drain(), 1000)
	assert.Equal(t, int64(0), r.Stats().Drops())
}
