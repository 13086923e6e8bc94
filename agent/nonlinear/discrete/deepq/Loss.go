package deepq

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/valuebased"
	"github.com/samuelfneumann/qrclearn/expreplay"
	"github.com/samuelfneumann/qrclearn/network"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// loss implements the DQN loss. The update target
//
//	r + γ max_a' Q_target(s', a')
//
// is computed by a separate forward pass under the target parameters
// and enters the training graph through an input node, so no gradient
// flows into the target parameters.
type loss struct {
	batch      int
	numActions int
	refresh    int

	// Forward pass under the target parameters on the next states
	targetNet *network.Evaluator

	// Training graph
	g         *G.ExprGraph
	vm        G.VM
	encoder   *network.Model
	head      *network.Model
	lossVal   G.Value
	states    *G.Node
	actions   *G.Node // One-hot selected actions
	rewards   *G.Node
	discounts *G.Node

	// nextStateActionValues is the input node in the training graph
	// given the target network's action values of the next states
	nextStateActionValues *G.Node
}

// newLoss returns the DQN loss for batches of batch transitions
func newLoss(vf *valuebased.ValueFunction, batch int, tau float64,
	refresh int) (*loss, error) {
	targetNet, err := network.NewEvaluator(batch, vf.Encoder, vf.Head)
	if err != nil {
		return nil, fmt.Errorf("newLoss: could not create target network: %v",
			err)
	}

	numActions := vf.Actions()
	g := G.NewGraph()
	l := &loss{
		batch:      batch,
		numActions: numActions,
		refresh:    refresh,
		targetNet:  targetNet,
		g:          g,
		encoder:    vf.Encoder.Instantiate(g),
		head:       vf.Head.Instantiate(g),
	}

	l.states = G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, vf.Features()), G.WithName("states"),
		G.WithInit(G.Zeroes()))
	l.actions = G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, numActions), G.WithName("actionSelected"),
		G.WithInit(G.Zeroes()))
	l.nextStateActionValues = G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, numActions), G.WithName("targetActionVals"),
		G.WithInit(G.Zeroes()))
	l.rewards = G.NewVector(g, tensor.Float64, G.WithShape(batch),
		G.WithName("reward"), G.WithInit(G.Zeroes()))
	l.discounts = G.NewVector(g, tensor.Float64, G.WithShape(batch),
		G.WithName("discount"), G.WithInit(G.Zeroes()))

	features, err := l.encoder.Fwd(l.states)
	if err != nil {
		return nil, fmt.Errorf("newLoss: %v", err)
	}
	actionValues, err := l.head.Fwd(features)
	if err != nil {
		return nil, fmt.Errorf("newLoss: %v", err)
	}

	// Compute the update target: r + γ * max[Q(s', a')]
	updateTarget := G.Must(G.Max(l.nextStateActionValues, 1))
	updateTarget = G.Must(G.HadamardProd(updateTarget, l.discounts))
	updateTarget = G.Must(G.Add(updateTarget, l.rewards))

	// Value of the action taken in each state
	selectedActionsValue := G.Must(G.HadamardProd(actionValues, l.actions))
	selectedActionsValue = G.Must(G.Sum(selectedActionsValue, 1))

	tdErrors := G.Must(G.Sub(updateTarget, selectedActionsValue))
	cost, err := huberNode(tdErrors, tau)
	if err != nil {
		return nil, fmt.Errorf("newLoss: %v", err)
	}
	G.Read(cost, &l.lossVal)

	learnables := append(G.Nodes{}, l.encoder.Learnables()...)
	learnables = append(learnables, l.head.Learnables()...)
	if _, err := G.Grad(cost, learnables...); err != nil {
		return nil, fmt.Errorf("newLoss: could not compute gradient: %v", err)
	}

	l.vm = G.NewTapeMachine(g, G.BindDualValues(learnables...))
	return l, nil
}

// huberNode adds the mean Huber loss of the errors d to the graph:
//
//	q = min(|d|, τ)
//	L = 0.5 q² + τ (|d| - q)
func huberNode(d *G.Node, tau float64) (*G.Node, error) {
	tauNode := G.NewConstant(tau)
	half := G.NewConstant(0.5)

	abs, err := G.Abs(d)
	if err != nil {
		return nil, fmt.Errorf("huber: %v", err)
	}

	// min(|d|, τ) = |d| - relu(|d| - τ)
	excess := G.Must(G.Rectify(G.Must(G.Sub(abs, tauNode))))
	quadratic := G.Must(G.Sub(abs, excess))

	quadTerm := G.Must(G.Mul(half, G.Must(G.Square(quadratic))))
	linTerm := G.Must(G.Mul(tauNode, excess))
	return G.Mean(G.Must(G.Add(quadTerm, linTerm)))
}

// Huber returns the Huber loss of the error d with threshold tau
func Huber(d, tau float64) float64 {
	quadratic := math.Min(math.Abs(d), tau)
	return 0.5*quadratic*quadratic + tau*(math.Abs(d)-quadratic)
}

// Loss implements the valuebased.LossStrategy interface
func (l *loss) Loss(s valuebased.State, b expreplay.Batch) (float64,
	network.Params, error) {
	if b.Size != l.batch {
		return 0, nil, fmt.Errorf("loss: invalid batch size \n\twant(%v)"+
			"\n\thave(%v)", l.batch, b.Size)
	}

	// Action values of the next states under the target parameters
	_, outputs, err := l.targetNet.Run(s.Target, b.NextStates)
	if err != nil {
		return 0, nil, fmt.Errorf("loss: target network: %v", err)
	}

	inputs := []struct {
		node  *G.Node
		value []float64
	}{
		{l.states, b.States},
		{l.actions, b.OneHotActions(l.numActions)},
		{l.nextStateActionValues, outputs[0]},
		{l.rewards, b.Rewards},
		{l.discounts, b.Discounts},
	}
	for _, in := range inputs {
		t := tensor.New(tensor.WithShape(in.node.Shape().Clone()...),
			tensor.WithBacking(append([]float64(nil), in.value...)))
		if err := G.Let(in.node, t); err != nil {
			return 0, nil, fmt.Errorf("loss: could not set %v: %v",
				in.node.Name(), err)
		}
	}

	if err := l.encoder.Set(s.Params); err != nil {
		return 0, nil, fmt.Errorf("loss: %v", err)
	}
	if err := l.head.Set(s.Params); err != nil {
		return 0, nil, fmt.Errorf("loss: %v", err)
	}

	defer l.vm.Reset()
	if err := l.vm.RunAll(); err != nil {
		return 0, nil, fmt.Errorf("loss: %v", err)
	}

	cost, err := network.Scalar(l.lossVal)
	if err != nil {
		return 0, nil, fmt.Errorf("loss: %v", err)
	}

	encoderGrads, err := l.encoder.Grads()
	if err != nil {
		return 0, nil, fmt.Errorf("loss: %v", err)
	}
	headGrads, err := l.head.Grads()
	if err != nil {
		return 0, nil, fmt.Errorf("loss: %v", err)
	}

	return cost, encoderGrads.Merge(headGrads), nil
}

// Adjust implements the valuebased.LossStrategy interface. DQN applies
// the optimizer's updates unchanged.
func (l *loss) Adjust(_ valuebased.State, updates network.Params) network.Params {
	return updates
}

// Refresh implements the valuebased.LossStrategy interface. The target
// parameters are set to the newly learned parameters every refresh
// updates. updates counts completed gradient updates, not environment
// steps, so with update_freq > 1 the target is refreshed every
// refresh * update_freq steps.
func (l *loss) Refresh(s valuebased.State, next network.Params,
	updates int) network.Params {
	if updates%l.refresh == 0 {
		return next.Clone()
	}
	return s.Target
}

// Close releases the resources held by the loss's VMs
func (l *loss) Close() error {
	err := l.targetNet.Close()
	if vmErr := l.vm.Close(); err == nil {
		err = vmErr
	}
	return err
}
