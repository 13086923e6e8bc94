package expreplay

import (
	"testing"

	"github.com/samuelfneumann/qrclearn/timestep"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func transition(i float64) timestep.Transition {
	state := mat.NewVecDense(2, []float64{i, -i})
	next := mat.NewVecDense(2, []float64{i + 1, -(i + 1)})
	return timestep.NewTransition(state, int(i)%3, next, i, 0.9)
}

func TestNewValidation(t *testing.T) {
	_, err := New(NewUniformSelector(4, 1), 0, 2)
	require.Error(t, err)

	_, err = New(NewUniformSelector(4, 1), 10, 0)
	require.Error(t, err)

	_, err = New(NewUniformSelector(11, 1), 10, 2)
	require.Error(t, err)

	_, err = CreateSelector("Prioritized", 4, 1)
	require.Error(t, err)
}

func TestSampleEmpty(t *testing.T) {
	buffer, err := New(NewUniformSelector(4, 1), 10, 2)
	require.NoError(t, err)

	_, err = buffer.Sample()
	require.Error(t, err)
	require.True(t, IsEmptyBuffer(err))
}

func TestAddShapeMismatch(t *testing.T) {
	buffer, err := New(NewUniformSelector(1, 1), 10, 3)
	require.NoError(t, err)

	require.Error(t, buffer.Add(transition(0)))
	require.Equal(t, 0, buffer.Size())
}

func TestSizeSaturates(t *testing.T) {
	const capacity = 8
	buffer, err := New(NewUniformSelector(1, 1), capacity, 2)
	require.NoError(t, err)

	for i := 0; i < capacity; i++ {
		require.NoError(t, buffer.Add(transition(float64(i))))
		require.Equal(t, i+1, buffer.Size())
	}

	for i := capacity; i < capacity+5; i++ {
		require.NoError(t, buffer.Add(transition(float64(i))))
		require.Equal(t, capacity, buffer.Size())
	}
}

func TestOverwritesOldest(t *testing.T) {
	const (
		capacity = 5
		extra    = 3
		samples  = 200
	)
	buffer, err := New(NewUniformSelector(capacity, 7), capacity, 2)
	require.NoError(t, err)

	for i := 0; i < capacity+extra; i++ {
		require.NoError(t, buffer.Add(transition(float64(i))))
	}
	require.Equal(t, capacity, buffer.Size())

	seen := map[float64]bool{}
	for n := 0; n < samples; n++ {
		batch, err := buffer.Sample()
		require.NoError(t, err)
		require.Equal(t, capacity, batch.Size)

		for i, r := range batch.Rewards {
			seen[r] = true
			require.GreaterOrEqual(t, r, float64(extra))

			// Columns of one transition must stay aligned
			require.Equal(t, r, batch.States[2*i])
			require.Equal(t, r+1, batch.NextStates[2*i])
			require.Equal(t, int(r)%3, batch.Actions[i])
			require.Equal(t, 0.9, batch.Discounts[i])
		}
	}
	require.Equal(t, map[float64]bool{3: true, 4: true, 5: true, 6: true,
		7: true}, seen)
}

func TestUniformSampling(t *testing.T) {
	const (
		size    = 10
		samples = 100_000
	)
	buffer, err := New(NewUniformSelector(samples, 42), samples, 2)
	require.NoError(t, err)
	for i := 0; i < size; i++ {
		require.NoError(t, buffer.Add(transition(float64(i))))
	}

	batch, err := buffer.Sample()
	require.NoError(t, err)

	counts := make([]float64, size)
	for _, r := range batch.Rewards {
		counts[int(r)]++
	}
	for _, c := range counts {
		freq := c / samples
		require.InDelta(t, 1.0/size, freq, 0.01)
	}
}

func TestSamplingIsSeeded(t *testing.T) {
	newFilled := func() ExperienceReplayer {
		buffer, err := New(NewUniformSelector(16, 3), 32, 2)
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			require.NoError(t, buffer.Add(transition(float64(i))))
		}
		return buffer
	}

	b1, err := newFilled().Sample()
	require.NoError(t, err)
	b2, err := newFilled().Sample()
	require.NoError(t, err)
	require.Equal(t, b1, b2)
}

func TestOneHotActions(t *testing.T) {
	b := Batch{Actions: []int{2, 0}, Size: 2}
	require.Equal(t, []float64{0, 0, 1, 1, 0, 0}, b.OneHotActions(3))
}

func TestConfigCreate(t *testing.T) {
	c := Config{SampleSize: 4, MaxReplayCapacity: 16}
	buffer, err := c.Create(3, 1)
	require.NoError(t, err)
	require.Equal(t, 4, buffer.BatchSize())
	require.Equal(t, 16, buffer.MaxCapacity())
	require.Equal(t, 0, buffer.Size())
}

func BenchmarkSample(b *testing.B) {
	buffer, _ := New(NewUniformSelector(32, 1), 10_000, 4)
	for i := 0; i < 10_000; i++ {
		s := mat.NewVecDense(4, []float64{1, 2, 3, 4})
		buffer.Add(timestep.NewTransition(s, 0, s, 1, 1))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buffer.Sample()
	}
}
