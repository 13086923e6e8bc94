package deepq

import (
	"testing"

	"github.com/samuelfneumann/qrclearn/agent"
	"github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/valuebased"
	"github.com/samuelfneumann/qrclearn/collector"
	"github.com/samuelfneumann/qrclearn/expreplay"
	"github.com/samuelfneumann/qrclearn/network"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// linearParams returns the parameters of a single linear action value
// q(x) = w x + b over one feature and one action
func linearParams(w, b float64) network.Params {
	return network.Params{
		"q/fc0/w": tensor.New(tensor.WithShape(1, 1),
			tensor.WithBacking([]float64{w})),
		"q/fc0/b": tensor.New(tensor.WithShape(1, 1),
			tensor.WithBacking([]float64{b})),
	}
}

func newTestLoss(t *testing.T, batch int, tau float64,
	refresh int) *loss {
	vf, err := valuebased.NewValueFunction(valuebased.Representation{}, 1, 1)
	require.NoError(t, err)

	l, err := newLoss(vf, batch, tau, refresh)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func testParams(extra map[string]interface{}) map[string]interface{} {
	params := map[string]interface{}{
		"epsilon":     0.0,
		"buffer_size": 10,
		"batch":       1,
		"optimizer":   map[string]interface{}{"alpha": 0.01},
		"representation": map[string]interface{}{
			"init": map[string]interface{}{"type": "Zeroes"},
		},
	}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

func newTestAgent(t *testing.T, extra map[string]interface{},
	col collector.Collector) *DeepQ {
	config, err := agent.NewConfig(agent.DQN, testParams(extra))
	require.NoError(t, err)

	a, err := config.CreateAgent(1, 1, 0, col)
	require.NoError(t, err)
	t.Cleanup(func() { a.(*DeepQ).Close() })
	return a.(*DeepQ)
}

func TestHuber(t *testing.T) {
	require.InDelta(t, 0.125, Huber(0.5, 1), 1e-12)
	require.InDelta(t, 0.5, Huber(1, 1), 1e-12)
	require.InDelta(t, 2.5, Huber(3, 1), 1e-12)
	require.InDelta(t, 2.5, Huber(-3, 1), 1e-12)
	require.InDelta(t, 0.875, Huber(2, 0.5), 1e-12)
}

func TestLossQuadraticAndLinearRegions(t *testing.T) {
	l := newTestLoss(t, 2, 1, 1)
	params := linearParams(0, 0)
	s := valuebased.State{Params: params, Target: params.Clone()}

	// Terminal transitions with TD errors 0.5 and 3
	b := expreplay.Batch{
		States:     []float64{1, 1},
		Actions:    []int{0, 0},
		NextStates: []float64{1, 1},
		Rewards:    []float64{0.5, 3},
		Discounts:  []float64{0, 0},
		Size:       2,
	}

	cost, grads, err := l.Loss(s, b)
	require.NoError(t, err)
	require.InDelta(t, (Huber(0.5, 1)+Huber(3, 1))/2, cost, 1e-9)

	// dL/dq is -clip(d, -τ, τ) / batch
	require.Equal(t, params.Names(), grads.Names())
	require.InDelta(t, -0.75, grads.Data("q/fc0/w")[0], 1e-9)
	require.InDelta(t, -0.75, grads.Data("q/fc0/b")[0], 1e-9)
}

func TestTerminalTargetIsReward(t *testing.T) {
	l := newTestLoss(t, 1, 1, 1)
	params := linearParams(0.25, 0)
	s := valuebased.State{Params: params, Target: linearParams(100, 100)}

	b := expreplay.Batch{
		States:     []float64{1},
		Actions:    []int{0},
		NextStates: []float64{50},
		Rewards:    []float64{0.5},
		Discounts:  []float64{0},
		Size:       1,
	}

	cost, _, err := l.Loss(s, b)
	require.NoError(t, err)
	require.InDelta(t, Huber(0.5-0.25, 1), cost, 1e-9)
}

func TestTargetParametersReceiveNoGradient(t *testing.T) {
	l := newTestLoss(t, 1, 1, 1)
	params := linearParams(0, 0)
	target := linearParams(2, 0)
	s := valuebased.State{Params: params, Target: target}

	b := expreplay.Batch{
		States:     []float64{1},
		Actions:    []int{0},
		NextStates: []float64{1},
		Rewards:    []float64{0},
		Discounts:  []float64{0.25},
		Size:       1,
	}

	// target = 0 + 0.25 * 2 = 0.5
	cost, grads, err := l.Loss(s, b)
	require.NoError(t, err)
	require.InDelta(t, Huber(0.5, 1), cost, 1e-9)
	require.InDelta(t, -0.5, grads.Data("q/fc0/w")[0], 1e-9)
	require.InDelta(t, -0.5, grads.Data("q/fc0/b")[0], 1e-9)

	// The target enters the loss only as a constant
	require.True(t, target.EqualApprox(linearParams(2, 0), 0))
	require.True(t, params.EqualApprox(linearParams(0, 0), 0))

	// Gradients are cleared between runs
	_, again, err := l.Loss(s, b)
	require.NoError(t, err)
	require.True(t, grads.EqualApprox(again, 1e-12))
}

func TestRefreshCadence(t *testing.T) {
	l := newTestLoss(t, 1, 1, 3)
	old := linearParams(0, 0)
	s := valuebased.State{Target: old}

	for updates := 1; updates <= 9; updates++ {
		next := linearParams(float64(updates), 0)
		target := l.Refresh(s, next, updates)
		if updates%3 == 0 {
			require.True(t, target.EqualApprox(next, 0), "update %v", updates)
		} else {
			require.True(t, target.EqualApprox(old, 0), "update %v", updates)
		}
	}
}

func TestAgentRefreshesTarget(t *testing.T) {
	a := newTestAgent(t, map[string]interface{}{"target_refresh": 2}, nil)

	x := mat.NewVecDense(1, []float64{1})
	previous := a.State()
	for i := 0; i < 12; i++ {
		require.NoError(t, a.Update(x, 0, x, 1, 0.9))

		s := a.State()
		if s.Updates == previous.Updates {
			continue
		}
		if s.Updates%2 == 0 {
			require.True(t, s.Target.EqualApprox(s.Params, 0))
		} else {
			require.True(t, s.Target.EqualApprox(previous.Target, 0))
			require.False(t, s.Target.EqualApprox(s.Params, 1e-12))
		}
		previous = s
	}
	require.Greater(t, previous.Updates, 4)
}

func TestTargetRefreshCountsUpdates(t *testing.T) {
	a := newTestAgent(t, map[string]interface{}{
		"target_refresh": 2,
		"update_freq":    2,
	}, nil)

	x := mat.NewVecDense(1, []float64{1})
	for step := 1; step <= 16; step++ {
		require.NoError(t, a.Update(x, 0, x, 1, 0.9))

		s := a.State()
		require.Equal(t, step/2, s.Updates)
		if step%2 != 0 {
			continue
		}

		// Every second update, so every fourth step, refreshes
		refreshed := s.Target.EqualApprox(s.Params, 0)
		require.Equal(t, step%4 == 0, refreshed, "step %v", step)
	}
}

func TestLossDecreases(t *testing.T) {
	window := collector.NewWindow(100)
	a := newTestAgent(t, nil, window)

	// Constant reward from a single feature and action
	x := mat.NewVecDense(1, []float64{1})
	for i := 0; i < 40; i++ {
		require.NoError(t, a.Update(x, 0, x, 10, 0))
	}

	losses := window.Values(valuebased.LossMetric)
	require.Len(t, losses, 39)
	for i := 1; i < len(losses); i++ {
		require.Less(t, losses[i], losses[i-1])
	}

	updates := window.Values(valuebased.UpdatesMetric)
	require.Equal(t, 39.0, updates[len(updates)-1])
	require.Greater(t, a.Values(x).AtVec(0), 0.0)
}

func TestNewConfigDefaults(t *testing.T) {
	config, err := agent.NewConfig(agent.DQN, testParams(nil))
	require.NoError(t, err)

	c := config.(Config)
	require.Equal(t, 1, c.TargetRefresh)
	require.Equal(t, 1.0, c.HuberTau)
	require.Equal(t, 1, c.UpdateFreq)
	require.Equal(t, agent.DQN, c.Type())

	_, err = agent.NewConfig(agent.DQN,
		testParams(map[string]interface{}{"target_refresh": 0}))
	require.Error(t, err)

	params := testParams(nil)
	delete(params, "epsilon")
	_, err = agent.NewConfig(agent.DQN, params)
	require.Error(t, err)

	_, err = agent.NewConfig(agent.DQN,
		testParams(map[string]interface{}{"beta": 1}))
	require.Error(t, err)
}

func TestHiddenRepresentation(t *testing.T) {
	params := testParams(map[string]interface{}{
		"representation": map[string]interface{}{
			"hidden":      []interface{}{8, 4},
			"activations": []interface{}{"relu", "tanh"},
			"init": map[string]interface{}{
				"type":   "GlorotU",
				"config": map[string]interface{}{"gain": 1.0},
			},
		},
	})
	config, err := agent.NewConfig(agent.DQN, params)
	require.NoError(t, err)

	a, err := config.CreateAgent(3, 2, 1, nil)
	require.NoError(t, err)
	d := a.(*DeepQ)
	defer d.Close()

	require.ElementsMatch(t, []string{"phi/fc0/w", "phi/fc0/b", "phi/fc1/w",
		"phi/fc1/b", "q/fc0/w", "q/fc0/b"}, d.State().Params.Names())

	obs := mat.NewDense(4, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		1, 2, 3,
	})
	batch := d.BatchValues(obs)
	rows, cols := batch.Dims()
	require.Equal(t, 4, rows)
	require.Equal(t, 2, cols)

	// Single and batched queries agree
	for i := 0; i < rows; i++ {
		single := d.Values(obs.RowView(i))
		require.InDeltaSlice(t, mat.Row(nil, i, batch),
			single.RawVector().Data, 1e-12)
	}

	require.Panics(t, func() { d.Values(mat.NewVecDense(2, nil)) })
}
