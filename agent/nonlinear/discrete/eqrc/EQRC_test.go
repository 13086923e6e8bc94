package eqrc

import (
	"testing"

	"github.com/samuelfneumann/qrclearn/agent"
	"github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/valuebased"
	"github.com/samuelfneumann/qrclearn/collector"
	"github.com/samuelfneumann/qrclearn/expreplay"
	"github.com/samuelfneumann/qrclearn/initwfn"
	"github.com/samuelfneumann/qrclearn/network"
	"github.com/samuelfneumann/qrclearn/solver"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

func scalar(v float64) *tensor.Dense {
	return tensor.New(tensor.WithShape(1, 1), tensor.WithBacking([]float64{v}))
}

// linearParams returns the parameters of q(x) = wq x + bq and
// h(x) = wh x + bh over one feature and one action
func linearParams(wq, bq, wh, bh float64) network.Params {
	return network.Params{
		"q/fc0/w": scalar(wq),
		"q/fc0/b": scalar(bq),
		"h/fc0/w": scalar(wh),
		"h/fc0/b": scalar(bh),
	}
}

func newTestLoss(t *testing.T, r valuebased.Representation, features,
	actions, batch int, epsilon float64) (*loss, *valuebased.ValueFunction,
	*network.MLP) {
	vf, err := valuebased.NewValueFunction(r, features, actions)
	require.NoError(t, err)

	correction, err := network.NewLinear(correctionPrefix,
		vf.Encoder.Outputs(), actions)
	require.NoError(t, err)

	l, err := newLoss(vf, correction, batch, epsilon, 0.01, 1)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, vf, correction
}

func TestLossTerminal(t *testing.T) {
	l, _, _ := newTestLoss(t, valuebased.Representation{}, 1, 1, 1, 0)
	params := linearParams(0.5, 0, 0.25, 0)
	s := valuebased.State{Params: params, Target: params}

	// q = 1, δ = 3 - 1 = 2, h = 0.5
	b := expreplay.Batch{
		States:     []float64{2},
		Actions:    []int{0},
		NextStates: []float64{0},
		Rewards:    []float64{3},
		Discounts:  []float64{0},
		Size:       1,
	}

	cost, grads, err := l.Loss(s, b)
	require.NoError(t, err)
	require.InDelta(t, 0.5*4+0.5*1.5*1.5, cost, 1e-9)

	require.InDelta(t, -4.0, grads.Data("q/fc0/w")[0], 1e-9)
	require.InDelta(t, -2.0, grads.Data("q/fc0/b")[0], 1e-9)
	require.InDelta(t, -3.0, grads.Data("h/fc0/w")[0], 1e-9)
	require.InDelta(t, -1.5, grads.Data("h/fc0/b")[0], 1e-9)
}

func TestLossBootstrapped(t *testing.T) {
	l, _, _ := newTestLoss(t, valuebased.Representation{}, 1, 1, 1, 0)
	params := linearParams(0.5, 0, 0.25, 0)
	s := valuebased.State{Params: params, Target: params}

	// q(s) = 1, q(s') = 0.5, target = 0.25, δ = -0.75, δ̂ = 0.5
	b := expreplay.Batch{
		States:     []float64{2},
		Actions:    []int{0},
		NextStates: []float64{1},
		Rewards:    []float64{0},
		Discounts:  []float64{0.5},
		Size:       1,
	}

	cost, grads, err := l.Loss(s, b)
	require.NoError(t, err)

	valueLoss := 0.5*0.75*0.75 + 0.5*0.5*0.5
	correctionLoss := 0.5 * 1.25 * 1.25
	require.InDelta(t, valueLoss+correctionLoss, cost, 1e-9)

	// The target is constant but v(s') in the correction term is not
	require.InDelta(t, 0.75*2+0.5*0.5*1, grads.Data("q/fc0/w")[0], 1e-9)
	require.InDelta(t, 0.75+0.5*0.5, grads.Data("q/fc0/b")[0], 1e-9)
	require.InDelta(t, 1.25*2, grads.Data("h/fc0/w")[0], 1e-9)
	require.InDelta(t, 1.25, grads.Data("h/fc0/b")[0], 1e-9)
}

func TestCorrectionDoesNotReachEncoder(t *testing.T) {
	r := valuebased.Representation{
		Hidden:      []int{3},
		Biases:      []bool{true},
		Activations: []*network.Activation{network.ReLU()},
	}
	l, vf, correction := newTestLoss(t, r, 2, 2, 2, 0.1)

	first, err := initwfn.NewConstant(0.3)
	require.NoError(t, err)
	second, err := initwfn.NewConstant(-0.7)
	require.NoError(t, err)

	value := vf.Init(5)
	paramsA := value.Merge(correction.Init(first.InitWFn(0)))
	paramsB := value.Merge(correction.Init(second.InitWFn(0)))

	// With γ = 0 the correction head only enters the correction loss
	b := expreplay.Batch{
		States:     []float64{1, 0.5, -0.5, 2},
		Actions:    []int{0, 1},
		NextStates: []float64{0, 0, 0, 0},
		Rewards:    []float64{1, -1},
		Discounts:  []float64{0, 0},
		Size:       2,
	}

	_, gradsA, err := l.Loss(valuebased.State{Params: paramsA}, b)
	require.NoError(t, err)
	_, gradsB, err := l.Loss(valuebased.State{Params: paramsB}, b)
	require.NoError(t, err)

	require.True(t, gradsA.Filter("phi/").EqualApprox(gradsB.Filter("phi/"),
		1e-12))
	require.True(t, gradsA.Filter("q/").EqualApprox(gradsB.Filter("q/"),
		1e-12))
	require.False(t, gradsA.Filter("h/").EqualApprox(gradsB.Filter("h/"),
		1e-6))
	require.Len(t, gradsA, len(paramsA))
}

func TestAdjustDecaysCorrectionUpdates(t *testing.T) {
	l, _, _ := newTestLoss(t, valuebased.Representation{}, 1, 1, 1, 0)
	s := valuebased.State{Params: linearParams(1, 1, 2, -1)}
	updates := linearParams(0.3, 0.3, 0.1, 0.1)

	adjusted := l.Adjust(s, updates)

	// α β = 0.01
	require.InDelta(t, 0.3, adjusted.Data("q/fc0/w")[0], 1e-12)
	require.InDelta(t, 0.3, adjusted.Data("q/fc0/b")[0], 1e-12)
	require.InDelta(t, 0.1-0.02, adjusted.Data("h/fc0/w")[0], 1e-12)
	require.InDelta(t, 0.1+0.01, adjusted.Data("h/fc0/b")[0], 1e-12)

	// The updates given are not modified
	require.True(t, updates.EqualApprox(linearParams(0.3, 0.3, 0.1, 0.1), 0))
}

func TestDecayFollowsOptimizer(t *testing.T) {
	l, _, _ := newTestLoss(t, valuebased.Representation{}, 1, 1, 1, 0)
	adam, err := solver.NewDefaultAdam(0.01)
	require.NoError(t, err)

	params := linearParams(0.5, 0, 0.25, 0)
	s := valuebased.State{
		Params:    params,
		Target:    params,
		Optimizer: adam.Init(params),
	}
	b := expreplay.Batch{
		States:     []float64{2},
		Actions:    []int{0},
		NextStates: []float64{1},
		Rewards:    []float64{1},
		Discounts:  []float64{0.9},
		Size:       1,
	}

	next, _, err := valuebased.Step(l, adam, s, b)
	require.NoError(t, err)

	// params + adam(grads) - α β h
	_, grads, err := l.Loss(s, b)
	require.NoError(t, err)
	updates, _, err := adam.Update(grads, s.Optimizer, params)
	require.NoError(t, err)

	for _, name := range params.Names() {
		want := params.Data(name)[0] + updates.Data(name)[0]
		if name[0] == 'h' {
			want -= 0.01 * params.Data(name)[0]
		}
		require.InDelta(t, want, next.Params.Data(name)[0], 1e-12, name)
	}

	require.Equal(t, 1, next.Updates)
	require.True(t, next.Target.EqualApprox(next.Params, 0))
}

func testParams(extra map[string]interface{}) map[string]interface{} {
	params := map[string]interface{}{
		"epsilon":     0.1,
		"buffer_size": 10,
		"batch":       1,
		"optimizer": map[string]interface{}{
			"alpha": 0.01,
			"beta1": 0.9,
			"beta2": 0.999,
		},
		"representation": map[string]interface{}{
			"init": map[string]interface{}{"type": "Zeroes"},
		},
	}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

func TestLossDecreases(t *testing.T) {
	config, err := agent.NewConfig(agent.EQRC, testParams(nil))
	require.NoError(t, err)
	require.Equal(t, 1.0, config.(Config).Beta)

	window := collector.NewWindow(100)
	a, err := config.CreateAgent(1, 1, 0, window)
	require.NoError(t, err)
	e := a.(*EQRC)
	defer e.Close()

	require.Equal(t, []string{"h/fc0/b", "h/fc0/w", "q/fc0/b", "q/fc0/w"},
		e.State().Params.Names())
	require.Equal(t, 0.0, e.State().Params.Filter("h/").Norm())

	// Constant reward from a single feature and action
	x := mat.NewVecDense(1, []float64{1})
	for i := 0; i < 40; i++ {
		require.NoError(t, e.Update(x, 0, x, 10, 0))
	}

	losses := window.Values(valuebased.LossMetric)
	require.Len(t, losses, 39)
	for i := 1; i < len(losses); i++ {
		require.Less(t, losses[i], losses[i-1])
	}
	require.Greater(t, e.State().Params.Filter("h/").Norm(), 0.0)
}

func TestConfigValidation(t *testing.T) {
	_, err := agent.NewConfig(agent.EQRC,
		testParams(map[string]interface{}{"beta": -1}))
	require.Error(t, err)

	_, err = agent.NewConfig(agent.EQRC,
		testParams(map[string]interface{}{"target_refresh": 2}))
	require.Error(t, err)

	config, err := agent.NewConfig(agent.EQRC,
		testParams(map[string]interface{}{"beta": 0.5, "update_freq": 4}))
	require.NoError(t, err)
	require.Equal(t, 0.5, config.(Config).Beta)
	require.Equal(t, 4, config.(Config).UpdateFreq)
}
