package network

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
)

// Params is a named collection of parameter tensors. Names are
// hierarchical, separated by "/", e.g. "phi/fc0/w".
//
// Params has value semantics: every method returns a new collection
// and never modifies its receiver, with the exception of Filter, which
// returns a view sharing the receiver's tensors.
type Params map[string]*tensor.Dense

// Names returns the sorted parameter names
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Data returns the backing data of the named parameter
func (p Params) Data(name string) []float64 {
	t, ok := p[name]
	if !ok {
		return nil
	}
	return t.Data().([]float64)
}

// Clone returns a deep copy of the Params
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for name, t := range p {
		out[name] = cloneDense(t)
	}
	return out
}

// Filter returns the parameters whose names begin with prefix. The
// returned Params shares tensors with p.
func (p Params) Filter(prefix string) Params {
	out := make(Params)
	for name, t := range p {
		if strings.HasPrefix(name, prefix) {
			out[name] = t
		}
	}
	return out
}

// Merge returns a new Params holding the union of p and other. Names
// present in both take other's value.
func (p Params) Merge(other Params) Params {
	out := make(Params, len(p)+len(other))
	for name, t := range p {
		out[name] = cloneDense(t)
	}
	for name, t := range other {
		out[name] = cloneDense(t)
	}
	return out
}

// ZerosLike returns a Params with the same names and shapes as p,
// filled with zeros
func (p Params) ZerosLike() Params {
	out := make(Params, len(p))
	for name, t := range p {
		out[name] = tensor.New(
			tensor.WithShape(t.Shape().Clone()...),
			tensor.Of(tensor.Float64),
		)
	}
	return out
}

// Add returns p + other. Both collections must hold the same names
// and shapes.
func (p Params) Add(other Params) (Params, error) {
	return p.combine(other, "add", func(dst, a, b []float64) {
		floats.AddTo(dst, a, b)
	})
}

// Sub returns p - other. Both collections must hold the same names
// and shapes.
func (p Params) Sub(other Params) (Params, error) {
	return p.combine(other, "sub", func(dst, a, b []float64) {
		floats.SubTo(dst, a, b)
	})
}

// AddScaled returns p + alpha * other
func (p Params) AddScaled(alpha float64, other Params) (Params, error) {
	return p.combine(other, "addScaled", func(dst, a, b []float64) {
		copy(dst, a)
		floats.AddScaled(dst, alpha, b)
	})
}

// Scale returns c * p
func (p Params) Scale(c float64) Params {
	out := p.Clone()
	for _, t := range out {
		floats.Scale(c, t.Data().([]float64))
	}
	return out
}

// Norm returns the L2 norm of all parameters taken together
func (p Params) Norm() float64 {
	var sum float64
	for _, t := range p {
		data := t.Data().([]float64)
		sum += floats.Dot(data, data)
	}
	return math.Sqrt(sum)
}

// EqualApprox returns whether p and other hold the same names and
// shapes with all elements within tol of each other
func (p Params) EqualApprox(other Params, tol float64) bool {
	if len(p) != len(other) {
		return false
	}
	for name, t := range p {
		o, ok := other[name]
		if !ok || !t.Shape().Eq(o.Shape()) {
			return false
		}
		if !floats.EqualApprox(t.Data().([]float64),
			o.Data().([]float64), tol) {
			return false
		}
	}
	return true
}

// combine applies op elementwise to each pair of matching tensors
func (p Params) combine(other Params, opName string,
	op func(dst, a, b []float64)) (Params, error) {
	if len(p) != len(other) {
		return nil, fmt.Errorf("%v: mismatched parameter sets \n\twant(%v)"+
			"\n\thave(%v)", opName, p.Names(), other.Names())
	}

	out := make(Params, len(p))
	for name, t := range p {
		o, ok := other[name]
		if !ok {
			return nil, fmt.Errorf("%v: missing parameter %v", opName, name)
		}
		if !t.Shape().Eq(o.Shape()) {
			return nil, fmt.Errorf("%v: invalid shape for %v \n\twant(%v)"+
				"\n\thave(%v)", opName, name, t.Shape(), o.Shape())
		}

		dst := make([]float64, t.Shape().TotalSize())
		op(dst, t.Data().([]float64), o.Data().([]float64))
		out[name] = newDense(t.Shape(), dst)
	}
	return out, nil
}

// gobParam is the gob wire format of a single named tensor
type gobParam struct {
	Name  string
	Shape []int
	Data  []float64
}

// GobEncode implements the gob.GobEncoder interface
func (p Params) GobEncode() ([]byte, error) {
	encoded := make([]gobParam, 0, len(p))
	for _, name := range p.Names() {
		t := p[name]
		encoded = append(encoded, gobParam{
			Name:  name,
			Shape: []int(t.Shape().Clone()),
			Data:  t.Data().([]float64),
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(encoded); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode params: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (p *Params) GobDecode(encoded []byte) error {
	var decoded []gobParam
	dec := gob.NewDecoder(bytes.NewReader(encoded))
	if err := dec.Decode(&decoded); err != nil {
		return fmt.Errorf("gobdecode: could not decode params: %v", err)
	}

	out := make(Params, len(decoded))
	for _, param := range decoded {
		out[param.Name] = newDense(tensor.Shape(param.Shape), param.Data)
	}
	*p = out
	return nil
}

// newDense returns a new float64 tensor with its own copy of data
func newDense(shape tensor.Shape, data []float64) *tensor.Dense {
	backing := make([]float64, len(data))
	copy(backing, data)
	return tensor.New(
		tensor.WithShape(shape.Clone()...),
		tensor.WithBacking(backing),
	)
}

// cloneDense returns a deep copy of a float64 tensor
func cloneDense(t *tensor.Dense) *tensor.Dense {
	return newDense(t.Shape(), t.Data().([]float64))
}
