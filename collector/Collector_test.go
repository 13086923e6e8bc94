package collector

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestWindowKeepsLastN(t *testing.T) {
	w := NewWindow(3)
	for i := 1; i <= 5; i++ {
		w.Collect("loss", float64(i))
	}

	require.Equal(t, []float64{3, 4, 5}, w.Values("loss"))
	mean, ok := w.Mean("loss")
	require.True(t, ok)
	require.InDelta(t, 4.0, mean, 1e-12)

	_, ok = w.Mean("rmse")
	require.False(t, ok)
	require.Nil(t, w.Values("rmse"))
	require.Equal(t, []string{"loss"}, w.Names())
}

func TestMulti(t *testing.T) {
	first, second := NewWindow(1), NewWindow(2)
	m := Multi{first, second, Null{}}

	m.Collect("updates", 1)
	m.Collect("updates", 2)

	require.Equal(t, []float64{2}, first.Values("updates"))
	require.Equal(t, []float64{1, 2}, second.Values("updates"))
}

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg, "qrclearn")
	require.NoError(t, err)

	p.Collect("loss", 0.5)
	p.Collect("loss", 0.25)
	require.Equal(t, 0.25, testutil.ToFloat64(p.gauges.WithLabelValues("loss")))

	_, err = NewPrometheus(reg, "qrclearn")
	require.Error(t, err)
}
