package cartpole

import (
	"testing"

	env "github.com/samuelfneumann/qrclearn/environment"
	ts "github.com/samuelfneumann/qrclearn/timestep"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// fixedStarter always starts from the same state
type fixedStarter []float64

func (f fixedStarter) Start() mat.Vector {
	return mat.NewVecDense(len(f), append([]float64(nil), f...))
}

func TestResetDeterministic(t *testing.T) {
	first, step := New(NewDefaultBalance(10, 3), 0.99)
	second, _ := New(NewDefaultBalance(10, 3), 0.99)

	require.True(t, step.First())
	require.True(t, mat.Equal(step.Observation, second.lastStep.Observation))
	for i := 0; i < ObservationDims; i++ {
		require.LessOrEqual(t, step.Observation.AtVec(i), StartBound)
		require.GreaterOrEqual(t, step.Observation.AtVec(i), -StartBound)
	}

	require.Equal(t, 2, first.ActionSpec().Actions())
	require.Equal(t, ObservationDims, first.ObservationSpec().Features())
}

func TestStepDynamics(t *testing.T) {
	task := NewBalance(fixedStarter{0, 0, 0, 0}, 0)
	c, _ := New(task, 0.9)

	step, done := c.Step(1)
	require.False(t, done)
	require.Equal(t, 1.0, step.Reward)
	require.Equal(t, 0.9, step.BootstrapDiscount())

	// From rest, only the velocities change on the first step
	require.Equal(t, 0.0, step.Observation.AtVec(0))
	require.Greater(t, step.Observation.AtVec(1), 0.0)
	require.Equal(t, 0.0, step.Observation.AtVec(2))
	require.Less(t, step.Observation.AtVec(3), 0.0)

	require.Panics(t, func() { c.Step(2) })
}

func TestTimeout(t *testing.T) {
	c, _ := New(NewBalance(fixedStarter{0, 0, 0, 0}, 2), 0.9)

	_, done := c.Step(0)
	require.False(t, done)
	step, done := c.Step(1)
	require.True(t, done)
	require.Equal(t, ts.Timeout, step.EndType)
	require.Equal(t, 0.9, step.BootstrapDiscount())
}

func TestPoleFalls(t *testing.T) {
	c, _ := New(NewBalance(fixedStarter{0, 0, FailAngle - 1e-3, 1}, 100),
		0.9)

	step, done := c.Step(1)
	require.True(t, done)
	require.True(t, step.Terminal())
	require.Equal(t, ts.TerminalStateReached, step.EndType)
	require.Equal(t, 0.0, step.BootstrapDiscount())

	step = c.Reset()
	require.True(t, step.First())
	require.Equal(t, 0, step.Number)
}

func TestSpecValidation(t *testing.T) {
	require.Panics(t, func() {
		env.NewSpec(mat.NewVecDense(2, nil), env.Observation,
			mat.NewVecDense(1, nil), mat.NewVecDense(2, nil), env.Continuous)
	})
}
