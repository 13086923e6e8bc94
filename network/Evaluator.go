package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Evaluator is a compiled forward pass over a fixed batch size. An
// encoder maps the input to features and each head maps the features
// to its outputs. Evaluators never compute gradients.
type Evaluator struct {
	g     *G.ExprGraph
	vm    G.VM
	input *G.Node
	batch int

	encoder *Model
	heads   []*Model

	featureVal G.Value
	outputVals []G.Value
	outputs    []int
}

// NewEvaluator compiles a forward pass of encoder followed by heads for
// inputs of batch rows
func NewEvaluator(batch int, encoder *MLP, heads ...*MLP) (*Evaluator,
	error) {
	if batch < 1 {
		return nil, fmt.Errorf("newEvaluator: batch must be positive "+
			"\n\twant(>0)\n\thave(%v)", batch)
	}

	g := G.NewGraph()
	input := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, encoder.Inputs()), G.WithName("input"),
		G.WithInit(G.Zeroes()))

	e := &Evaluator{
		g:          g,
		input:      input,
		batch:      batch,
		encoder:    encoder.Instantiate(g),
		heads:      make([]*Model, len(heads)),
		outputVals: make([]G.Value, len(heads)),
		outputs:    make([]int, len(heads)),
	}

	features, err := e.encoder.Fwd(input)
	if err != nil {
		return nil, fmt.Errorf("newEvaluator: encoder: %v", err)
	}
	G.Read(features, &e.featureVal)

	for i, head := range heads {
		if head.Inputs() != encoder.Outputs() {
			return nil, fmt.Errorf("newEvaluator: head %v expects %v "+
				"features but encoder produces %v", head.Prefix(),
				head.Inputs(), encoder.Outputs())
		}

		e.heads[i] = head.Instantiate(g)
		e.outputs[i] = head.Outputs()
		out, err := e.heads[i].Fwd(features)
		if err != nil {
			return nil, fmt.Errorf("newEvaluator: head %v: %v",
				head.Prefix(), err)
		}
		G.Read(out, &e.outputVals[i])
	}

	e.vm = G.NewTapeMachine(g)
	return e, nil
}

// BatchSize returns the number of rows the Evaluator takes as input
func (e *Evaluator) BatchSize() int {
	return e.batch
}

// Run computes the features and head outputs for input, a row-major
// BatchSize() x features matrix, using the weights in p. All returned
// slices are row-major and owned by the caller.
func (e *Evaluator) Run(p Params, input []float64) ([]float64, [][]float64,
	error) {
	features := e.input.Shape()[1]
	if len(input) != e.batch*features {
		return nil, nil, fmt.Errorf("run: invalid number of inputs "+
			"\n\twant(%v)\n\thave(%v)", e.batch*features, len(input))
	}

	if err := e.encoder.Set(p); err != nil {
		return nil, nil, fmt.Errorf("run: %v", err)
	}
	for _, head := range e.heads {
		if err := head.Set(p); err != nil {
			return nil, nil, fmt.Errorf("run: %v", err)
		}
	}

	inputTensor := tensor.New(
		tensor.WithShape(e.batch, features),
		tensor.WithBacking(append([]float64(nil), input...)),
	)
	if err := G.Let(e.input, inputTensor); err != nil {
		return nil, nil, fmt.Errorf("run: could not set input: %v", err)
	}

	defer e.vm.Reset()
	if err := e.vm.RunAll(); err != nil {
		return nil, nil, fmt.Errorf("run: %v", err)
	}

	phi := copyValue(e.featureVal)
	outputs := make([][]float64, len(e.heads))
	for i := range e.heads {
		outputs[i] = copyValue(e.outputVals[i])
	}
	return phi, outputs, nil
}

// Close releases the resources held by the Evaluator's VM
func (e *Evaluator) Close() error {
	return e.vm.Close()
}

// copyValue copies the float64 data out of a Gorgonia Value
func copyValue(v G.Value) []float64 {
	switch data := v.Data().(type) {
	case []float64:
		out := make([]float64, len(data))
		copy(out, data)
		return out
	case float64:
		return []float64{data}
	}
	panic(fmt.Sprintf("copyValue: unsupported value type %T", v.Data()))
}

// Scalar returns the float64 held by a scalar Gorgonia Value
func Scalar(v G.Value) (float64, error) {
	switch data := v.Data().(type) {
	case float64:
		return data, nil
	case []float64:
		if len(data) == 1 {
			return data[0], nil
		}
	}
	return 0, fmt.Errorf("scalar: value %v is not a float64 scalar", v)
}
