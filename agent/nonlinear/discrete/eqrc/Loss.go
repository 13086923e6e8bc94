package eqrc

import (
	"fmt"

	"github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/policy"
	"github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/valuebased"
	"github.com/samuelfneumann/qrclearn/expreplay"
	"github.com/samuelfneumann/qrclearn/network"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// loss implements the EQRC loss in two phases. First, a forward pass
// under the live parameters computes every quantity whose gradient is
// stopped. These enter the training graph through input nodes, so the
// single gradient of the training graph never flows through them.
type loss struct {
	batch      int
	numActions int
	epsilon    float64
	decay      float64 // α β

	// Forward pass of the features, action values, and corrections
	evaluator *network.Evaluator

	// Training graph
	g          *G.ExprGraph
	vm         G.VM
	encoder    *network.Model
	head       *network.Model
	correction *network.Model
	lossVal    G.Value

	states     *G.Node
	nextStates *G.Node
	actions    *G.Node // One-hot selected actions
	pi         *G.Node // Target policy at the next states
	targets    *G.Node
	discounts  *G.Node
	deltas     *G.Node // TD errors
	deltaHats  *G.Node // Corrections of the selected actions
	features   *G.Node // Features of the states
}

// newLoss returns the EQRC loss for batches of batch transitions.
// Correction updates are decayed by stepSize * beta.
func newLoss(vf *valuebased.ValueFunction, correction *network.MLP,
	batch int, epsilon, stepSize, beta float64) (*loss, error) {
	if correction.Inputs() != vf.Encoder.Outputs() {
		return nil, fmt.Errorf("newLoss: correction head expects %v "+
			"features but encoder produces %v", correction.Inputs(),
			vf.Encoder.Outputs())
	}

	evaluator, err := network.NewEvaluator(batch, vf.Encoder, vf.Head,
		correction)
	if err != nil {
		return nil, fmt.Errorf("newLoss: %v", err)
	}

	numActions := vf.Actions()
	numFeatures := vf.Encoder.Outputs()
	g := G.NewGraph()
	l := &loss{
		batch:      batch,
		numActions: numActions,
		epsilon:    epsilon,
		decay:      stepSize * beta,
		evaluator:  evaluator,
		g:          g,
		encoder:    vf.Encoder.Instantiate(g),
		head:       vf.Head.Instantiate(g),
		correction: correction.Instantiate(g),
	}

	matrix := func(cols int, name string) *G.Node {
		return G.NewMatrix(g, tensor.Float64, G.WithShape(batch, cols),
			G.WithName(name), G.WithInit(G.Zeroes()))
	}
	vector := func(name string) *G.Node {
		return G.NewVector(g, tensor.Float64, G.WithShape(batch),
			G.WithName(name), G.WithInit(G.Zeroes()))
	}
	l.states = matrix(vf.Features(), "states")
	l.nextStates = matrix(vf.Features(), "nextStates")
	l.actions = matrix(numActions, "actionSelected")
	l.pi = matrix(numActions, "targetPolicy")
	l.features = matrix(numFeatures, "features")
	l.targets = vector("target")
	l.discounts = vector("discount")
	l.deltas = vector("delta")
	l.deltaHats = vector("deltaHat")

	cost, err := l.build()
	if err != nil {
		return nil, fmt.Errorf("newLoss: %v", err)
	}
	G.Read(cost, &l.lossVal)

	learnables := append(G.Nodes{}, l.encoder.Learnables()...)
	learnables = append(learnables, l.head.Learnables()...)
	learnables = append(learnables, l.correction.Learnables()...)
	if _, err := G.Grad(cost, learnables...); err != nil {
		return nil, fmt.Errorf("newLoss: could not compute gradient: %v", err)
	}

	l.vm = G.NewTapeMachine(g, G.BindDualValues(learnables...))
	return l, nil
}

// build adds the combined value and correction loss to the graph
func (l *loss) build() (*G.Node, error) {
	half := G.NewConstant(0.5)

	// q(s, ·) and q(s', ·) share weights
	phi, err := l.encoder.Fwd(l.states)
	if err != nil {
		return nil, err
	}
	q, err := l.head.Fwd(phi)
	if err != nil {
		return nil, err
	}
	phiNext, err := l.encoder.Fwd(l.nextStates)
	if err != nil {
		return nil, err
	}
	qNext, err := l.head.Fwd(phiNext)
	if err != nil {
		return nil, err
	}

	// 0.5 (target - q(s, a))² + γ δ̂ v(s')
	qa := G.Must(G.Sum(G.Must(G.HadamardProd(q, l.actions)), 1))
	vNext := G.Must(G.Sum(G.Must(G.HadamardProd(qNext, l.pi)), 1))
	td := G.Must(G.Sub(l.targets, qa))
	valueLoss := G.Must(G.Mul(half, G.Must(G.Square(td))))
	correctionTerm := G.Must(G.HadamardProd(l.discounts,
		G.Must(G.HadamardProd(l.deltaHats, vNext))))
	valueLoss = G.Must(G.Add(valueLoss, correctionTerm))

	// 0.5 (δ - h(φ(s), a))², where φ(s) is an input
	h, err := l.correction.Fwd(l.features)
	if err != nil {
		return nil, err
	}
	ha := G.Must(G.Sum(G.Must(G.HadamardProd(h, l.actions)), 1))
	correctionErr := G.Must(G.Sub(l.deltas, ha))
	correctionLoss := G.Must(G.Mul(half, G.Must(G.Square(correctionErr))))

	return G.Add(G.Must(G.Mean(valueLoss)), G.Must(G.Mean(correctionLoss)))
}

// constants holds the stopped-gradient quantities of a batch
type constants struct {
	features  []float64
	pi        []float64
	targets   []float64
	deltas    []float64
	deltaHats []float64
}

// constants runs the forward pass under the live parameters and
// computes:
//
//	π = (1 - ε) greedy(q(s', ·)) + ε / |A|
//	target = r + γ q(s', ·) · π
//	δ = target - q(s, a)
//	δ̂ = h(s, a)
func (l *loss) constants(s valuebased.State, b expreplay.Batch) (constants,
	error) {
	features, outputs, err := l.evaluator.Run(s.Params, b.States)
	if err != nil {
		return constants{}, err
	}
	q, h := outputs[0], outputs[1]

	_, outputs, err = l.evaluator.Run(s.Params, b.NextStates)
	if err != nil {
		return constants{}, err
	}
	qNext := outputs[0]

	pi := policy.BatchDistribution(qNext, l.numActions, l.epsilon)
	c := constants{
		features:  features,
		pi:        pi,
		targets:   make([]float64, b.Size),
		deltas:    make([]float64, b.Size),
		deltaHats: make([]float64, b.Size),
	}

	for i := 0; i < b.Size; i++ {
		row := i * l.numActions
		var vNext float64
		for j := 0; j < l.numActions; j++ {
			vNext += qNext[row+j] * pi[row+j]
		}

		a := b.Actions[i]
		c.targets[i] = b.Rewards[i] + b.Discounts[i]*vNext
		c.deltas[i] = c.targets[i] - q[row+a]
		c.deltaHats[i] = h[row+a]
	}
	return c, nil
}

// Loss implements the valuebased.LossStrategy interface
func (l *loss) Loss(s valuebased.State, b expreplay.Batch) (float64,
	network.Params, error) {
	if b.Size != l.batch {
		return 0, nil, fmt.Errorf("loss: invalid batch size \n\twant(%v)"+
			"\n\thave(%v)", l.batch, b.Size)
	}

	c, err := l.constants(s, b)
	if err != nil {
		return 0, nil, fmt.Errorf("loss: %v", err)
	}

	inputs := []struct {
		node  *G.Node
		value []float64
	}{
		{l.states, b.States},
		{l.nextStates, b.NextStates},
		{l.actions, b.OneHotActions(l.numActions)},
		{l.discounts, b.Discounts},
		{l.features, c.features},
		{l.pi, c.pi},
		{l.targets, c.targets},
		{l.deltas, c.deltas},
		{l.deltaHats, c.deltaHats},
	}
	for _, in := range inputs {
		t := tensor.New(tensor.WithShape(in.node.Shape().Clone()...),
			tensor.WithBacking(append([]float64(nil), in.value...)))
		if err := G.Let(in.node, t); err != nil {
			return 0, nil, fmt.Errorf("loss: could not set %v: %v",
				in.node.Name(), err)
		}
	}

	models := []*network.Model{l.encoder, l.head, l.correction}
	for _, m := range models {
		if err := m.Set(s.Params); err != nil {
			return 0, nil, fmt.Errorf("loss: %v", err)
		}
	}

	defer l.vm.Reset()
	if err := l.vm.RunAll(); err != nil {
		return 0, nil, fmt.Errorf("loss: %v", err)
	}

	cost, err := network.Scalar(l.lossVal)
	if err != nil {
		return 0, nil, fmt.Errorf("loss: %v", err)
	}

	grads := make(network.Params)
	for _, m := range models {
		g, err := m.Grads()
		if err != nil {
			return 0, nil, fmt.Errorf("loss: %v", err)
		}
		for name, t := range g {
			grads[name] = t
		}
	}
	return cost, grads, nil
}

// Adjust implements the valuebased.LossStrategy interface. The
// correction weights' updates are decayed:
//
//	u_h ← u_h - α β h
func (l *loss) Adjust(s valuebased.State, updates network.Params) network.Params {
	prefix := correctionPrefix + "/"
	decayed, err := updates.Filter(prefix).AddScaled(-l.decay,
		s.Params.Filter(prefix))
	if err != nil {
		panic(fmt.Sprintf("adjust: %v", err))
	}
	return updates.Merge(decayed)
}

// Refresh implements the valuebased.LossStrategy interface. EQRC uses
// no target network, so the target tracks the live parameters.
func (l *loss) Refresh(_ valuebased.State, next network.Params,
	_ int) network.Params {
	return next
}

// Close releases the resources held by the loss's VMs
func (l *loss) Close() error {
	err := l.evaluator.Close()
	if vmErr := l.vm.Close(); err == nil {
		err = vmErr
	}
	return err
}
