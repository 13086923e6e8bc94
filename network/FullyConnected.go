package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// layerSpec describes a fully connected layer independently of any
// computational graph
type layerSpec struct {
	name string
	in   int
	out  int
	bias bool
	act  *Activation
}

func (l layerSpec) weightName() string { return l.name + "/w" }
func (l layerSpec) biasName() string   { return l.name + "/b" }

// fcLayer implements a fully connected layer of a feed forward neural
// network, instantiated on a computational graph
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// newfcLayer adds the weight nodes of the layer described by spec to
// the graph g. Weight values are bound later with G.Let.
func newfcLayer(g *G.ExprGraph, spec layerSpec) *fcLayer {
	weights := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(spec.in, spec.out),
		G.WithName(spec.weightName()),
		G.WithInit(G.Zeroes()),
	)

	var bias *G.Node
	if spec.bias {
		bias = G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(1, spec.out),
			G.WithName(spec.biasName()),
			G.WithInit(G.Zeroes()),
		)
	}

	return &fcLayer{weights: weights, bias: bias, act: spec.act}
}

// fwd adds the forward pass of the fcLayer to the computational graph.
// Calling fwd more than once shares the layer's weights between the
// resulting outputs.
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.Weights())
	if err != nil {
		return nil, fmt.Errorf("fwd: could not multiply weights: %v", err)
	}

	if f.Bias() != nil {
		// Broadcast the bias weights to all samples along the batch
		// dimension
		x, err = G.BroadcastAdd(x, f.Bias(), nil, []byte{0})
		if err != nil {
			return nil, fmt.Errorf("fwd: could not add bias: %v", err)
		}
	}

	if f.act == nil {
		return x, nil
	}
	return f.act.fwd(x)
}

// Activation returns the activation of the layer
func (f *fcLayer) Activation() *Activation {
	return f.act
}

// Bias returns the bias node of the layer, nil if the layer has no bias
func (f *fcLayer) Bias() *G.Node {
	return f.bias
}

// Weights returns the weight node of the layer
func (f *fcLayer) Weights() *G.Node {
	return f.weights
}
