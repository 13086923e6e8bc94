// Package network implements feed forward networks over Gorgonia whose
// weights are held outside of any computational graph in Params.
//
// An MLP describes an architecture. Instantiating an MLP on a graph
// returns a Model, whose weight nodes are bound from Params before
// each run of the graph's VM. This allows a single set of Params to
// drive any number of graphs: fixed-batch forward passes for action
// selection, target computations, and training graphs.
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MLP describes a multi-layered perceptron whose weights are named
// under a common prefix
type MLP struct {
	prefix string
	inputs int
	layers []layerSpec
}

// NewMLP returns a new MLP with len(hiddenSizes) layers. For index i,
// hiddenSizes[i] is the number of nodes in layer i, biases[i] is true
// if layer i has a bias unit, and activations[i] is the activation of
// layer i. An MLP with no layers is the identity function.
func NewMLP(prefix string, inputs int, hiddenSizes []int, biases []bool,
	activations []*Activation) (*MLP, error) {
	if inputs < 1 {
		return nil, fmt.Errorf("newMLP: inputs must be positive \n\t"+
			"want(>0)\n\thave(%v)", inputs)
	}

	// Ensure we have one activation per layer
	if len(hiddenSizes) != len(activations) {
		msg := "newMLP: invalid number of activations\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}

	// Ensure one bias bool per layer
	if len(hiddenSizes) != len(biases) {
		msg := "newMLP: invalid number of biases\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}

	layers := make([]layerSpec, len(hiddenSizes))
	in := inputs
	for i, out := range hiddenSizes {
		if out < 1 {
			return nil, fmt.Errorf("newMLP: layer %v must have positive "+
				"size \n\twant(>0)\n\thave(%v)", i, out)
		}
		layers[i] = layerSpec{
			name: fmt.Sprintf("%v/fc%d", prefix, i),
			in:   in,
			out:  out,
			bias: biases[i],
			act:  activations[i],
		}
		in = out
	}

	return &MLP{prefix: prefix, inputs: inputs, layers: layers}, nil
}

// NewLinear returns a single linear layer with a bias unit
func NewLinear(prefix string, inputs, outputs int) (*MLP, error) {
	return NewMLP(prefix, inputs, []int{outputs}, []bool{true},
		[]*Activation{Identity()})
}

// Prefix returns the prefix under which the MLP's weights are named
func (m *MLP) Prefix() string {
	return m.prefix
}

// Inputs returns the number of input features
func (m *MLP) Inputs() int {
	return m.inputs
}

// Outputs returns the number of outputs of the final layer
func (m *MLP) Outputs() int {
	if len(m.layers) == 0 {
		return m.inputs
	}
	return m.layers[len(m.layers)-1].out
}

// Init returns newly initialized weights for the MLP. Weight matrices
// are drawn from init and biases are set to zero.
func (m *MLP) Init(init G.InitWFn) Params {
	params := make(Params, 2*len(m.layers))
	for _, l := range m.layers {
		weights := init(tensor.Float64, l.in, l.out).([]float64)
		params[l.weightName()] = tensor.New(
			tensor.WithShape(l.in, l.out),
			tensor.WithBacking(weights),
		)

		if l.bias {
			params[l.biasName()] = tensor.New(
				tensor.WithShape(1, l.out),
				tensor.Of(tensor.Float64),
			)
		}
	}
	return params
}

// Instantiate adds the MLP's weight nodes to the graph g and returns
// the resulting Model
func (m *MLP) Instantiate(g *G.ExprGraph) *Model {
	layers := make([]*fcLayer, len(m.layers))
	nodes := make(map[string]*G.Node, 2*len(m.layers))
	learnables := make(G.Nodes, 0, 2*len(m.layers))

	for i, spec := range m.layers {
		layers[i] = newfcLayer(g, spec)

		nodes[spec.weightName()] = layers[i].Weights()
		learnables = append(learnables, layers[i].Weights())
		if bias := layers[i].Bias(); bias != nil {
			nodes[spec.biasName()] = bias
			learnables = append(learnables, bias)
		}
	}

	return &Model{
		mlp:        m,
		layers:     layers,
		nodes:      nodes,
		learnables: learnables,
	}
}

// Model is an MLP instantiated on a computational graph
type Model struct {
	mlp        *MLP
	layers     []*fcLayer
	nodes      map[string]*G.Node
	learnables G.Nodes
}

// Fwd adds the forward pass of the Model on input x to the graph.
// Calling Fwd on several inputs shares the same weight nodes.
func (m *Model) Fwd(x *G.Node) (*G.Node, error) {
	if !x.IsMatrix() {
		return nil, fmt.Errorf("fwd: input must be a matrix node")
	}
	if features := x.Shape()[1]; features != m.mlp.Inputs() {
		return nil, fmt.Errorf("fwd: invalid shape for input to neural "+
			"net: \n\twant(%v) \n\thave(%v)", m.mlp.Inputs(), features)
	}

	pred := x
	var err error
	for i, l := range m.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}
	return pred, nil
}

// Learnables returns the weight nodes of the Model
func (m *Model) Learnables() G.Nodes {
	return m.learnables
}

// Set binds the Model's weight nodes to copies of the matching
// tensors in p
func (m *Model) Set(p Params) error {
	for name, node := range m.nodes {
		t, ok := p[name]
		if !ok {
			return fmt.Errorf("set: missing parameter %v", name)
		}
		if !t.Shape().Eq(node.Shape()) {
			return fmt.Errorf("set: invalid shape for %v \n\twant(%v)"+
				"\n\thave(%v)", name, node.Shape(), t.Shape())
		}

		if err := G.Let(node, cloneDense(t)); err != nil {
			return fmt.Errorf("set: could not set %v: %v", name, err)
		}
	}
	return nil
}

// Grads returns the gradients accumulated in the Model's weight nodes
// after running a VM with bound dual values, then zeroes them.
func (m *Model) Grads() (Params, error) {
	grads := make(Params, len(m.nodes))
	for name, node := range m.nodes {
		grad, err := node.Grad()
		if err != nil {
			return nil, fmt.Errorf("grads: could not read gradient of %v: %v",
				name, err)
		}

		grads[name] = newDense(node.Shape(), copyValue(grad))

		if dense, ok := grad.(*tensor.Dense); ok {
			dense.Zero()
		}
	}
	return grads, nil
}
