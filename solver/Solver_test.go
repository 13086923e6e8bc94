package solver

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/samuelfneumann/qrclearn/network"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func params(data ...float64) network.Params {
	return network.Params{
		"q/fc0/w": tensor.New(tensor.WithShape(1, len(data)),
			tensor.WithBacking(data)),
	}
}

func TestAdamFirstStep(t *testing.T) {
	s, err := NewDefaultAdam(0.1)
	require.NoError(t, err)

	p := params(1, 1, 1)
	state := s.Init(p)
	require.Equal(t, 0, state.Count)

	grads := params(2, -0.5, 0)
	updates, next, err := s.Update(grads, state, p)
	require.NoError(t, err)
	require.Equal(t, 1, next.Count)

	// Bias correction makes the first step -α sign(g)
	require.InDeltaSlice(t, []float64{-0.1, 0.1, 0}, updates.Data("q/fc0/w"),
		1e-6)
	require.InDeltaSlice(t, []float64{0.2, -0.05, 0}, next.M.Data("q/fc0/w"),
		1e-12)
	require.InDeltaSlice(t, []float64{0.004, 0.00025, 0},
		next.V.Data("q/fc0/w"), 1e-12)

	// The previous state is untouched
	require.Equal(t, 0.0, state.M.Norm())
	require.Equal(t, 0.0, state.V.Norm())
}

func TestAdamMatchesClosedForm(t *testing.T) {
	const alpha, b1, b2, eps = 0.01, 0.8, 0.9, 1e-8
	s, err := NewAdam(alpha, eps, b1, b2)
	require.NoError(t, err)

	p := params(0)
	state := s.Init(p)
	gs := []float64{1, -2, 0.5}

	var m, v float64
	for i, g := range gs {
		var updates network.Params
		updates, state, err = s.Update(params(g), state, p)
		require.NoError(t, err)

		m = b1*m + (1-b1)*g
		v = b2*v + (1-b2)*g*g
		mHat := m / (1 - math.Pow(b1, float64(i+1)))
		vHat := v / (1 - math.Pow(b2, float64(i+1)))
		want := -alpha * mHat / (math.Sqrt(vHat) + eps)

		require.InDelta(t, want, updates.Data("q/fc0/w")[0], 1e-12)
	}
	require.Equal(t, len(gs), state.Count)
}

func TestAdamMismatchedGradients(t *testing.T) {
	s, err := NewDefaultAdam(0.1)
	require.NoError(t, err)

	state := s.Init(params(1))
	grads := network.Params{"h/fc0/w": tensor.New(tensor.WithShape(1, 1),
		tensor.WithBacking([]float64{1}))}
	_, _, err = s.Update(grads, state, params(1))
	require.Error(t, err)
}

func TestVanilla(t *testing.T) {
	s, err := NewVanilla(0.5)
	require.NoError(t, err)

	updates, state, err := s.Update(params(2, -4), s.Init(nil), nil)
	require.NoError(t, err)
	require.Equal(t, []float64{-1, 2}, updates.Data("q/fc0/w"))
	require.Equal(t, 1, state.Count)
}

func TestValidation(t *testing.T) {
	_, err := NewDefaultAdam(0)
	require.Error(t, err)

	_, err = NewAdam(0.1, 1e-8, 1, 0.999)
	require.Error(t, err)

	_, err = NewVanilla(-1)
	require.Error(t, err)
}

func TestFromMap(t *testing.T) {
	s, err := FromMap(map[string]interface{}{"alpha": 0.001, "beta1": 0.5})
	require.NoError(t, err)
	require.Equal(t, Adam, s.Type)

	config := s.Config.(AdamConfig)
	require.Equal(t, 0.001, config.StepSize)
	require.Equal(t, 0.5, config.Beta1)
	require.Equal(t, 0.999, config.Beta2)
	require.Equal(t, 1e-8, config.Epsilon)
	require.Equal(t, 0.001, s.StepSize())

	s, err = FromMap(map[string]interface{}{"type": "Vanilla", "alpha": 1})
	require.NoError(t, err)
	require.Equal(t, Vanilla, s.Type)

	_, err = FromMap(map[string]interface{}{"type": "RMSProp", "alpha": 1})
	require.Error(t, err)

	_, err = FromMap(map[string]interface{}{"alpha": 1, "momentum": 0.9})
	require.Error(t, err)
}

func TestUnmarshalJSON(t *testing.T) {
	data := []byte(`{"Type": "Adam", "Config": {"StepSize": 0.01}}`)

	var s Solver
	require.NoError(t, json.Unmarshal(data, &s))
	require.Equal(t, Adam, s.Type)
	require.Equal(t, 0.01, s.StepSize())
	require.Equal(t, 0.9, s.Config.(AdamConfig).Beta1)
}
