package solver

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/qrclearn/network"
	"gonum.org/v1/gonum/floats"
)

// AdamConfig describes a configuration of the Adam solver
type AdamConfig struct {
	StepSize float64 `mapstructure:"alpha"`
	Epsilon  float64 `mapstructure:"eps"` // Smoothing factor
	Beta1    float64 `mapstructure:"beta1"`
	Beta2    float64 `mapstructure:"beta2"`
}

// NewDefaultAdam returns a new Adam Solver with default hyperparameters
func NewDefaultAdam(stepSize float64) (*Solver, error) {
	return NewAdam(stepSize, 1e-8, 0.9, 0.999)
}

// NewAdam returns a new Adam Solver
func NewAdam(stepSize, epsilon, beta1, beta2 float64) (*Solver, error) {
	adam := AdamConfig{
		StepSize: stepSize,
		Epsilon:  epsilon,
		Beta1:    beta1,
		Beta2:    beta2,
	}

	return newSolver(Adam, adam)
}

// setDefaults sets the usual moment decay rates and smoothing factor
func (a *AdamConfig) setDefaults() {
	a.Epsilon = 1e-8
	a.Beta1 = 0.9
	a.Beta2 = 0.999
}

// Create returns a new Adam optimizer as described by the AdamConfig
func (a AdamConfig) Create() Optimizer {
	return &adam{config: a}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (a AdamConfig) ValidType(t Type) bool {
	return t == Adam
}

// Validate checks that the AdamConfig describes a legal optimizer
func (a AdamConfig) Validate() error {
	if a.StepSize <= 0 {
		return fmt.Errorf("validate: step size must be positive "+
			"\n\twant(>0)\n\thave(%v)", a.StepSize)
	}
	if a.Beta1 < 0 || a.Beta1 >= 1 {
		return fmt.Errorf("validate: beta1 must be in [0, 1) "+
			"\n\thave(%v)", a.Beta1)
	}
	if a.Beta2 < 0 || a.Beta2 >= 1 {
		return fmt.Errorf("validate: beta2 must be in [0, 1) "+
			"\n\thave(%v)", a.Beta2)
	}
	if a.Epsilon < 0 {
		return fmt.Errorf("validate: epsilon must be non-negative "+
			"\n\thave(%v)", a.Epsilon)
	}
	return nil
}

// adam implements Adam with bias-corrected moment estimates:
//
//	m ← β1 m + (1 - β1) g
//	v ← β2 v + (1 - β2) g²
//	u = -α m̂ / (sqrt(v̂) + ε)
type adam struct {
	config AdamConfig
}

// StepSize returns the learning rate
func (o *adam) StepSize() float64 {
	return o.config.StepSize
}

// Init returns zeroed moments and a zero step count
func (o *adam) Init(params network.Params) State {
	return State{
		M:     params.ZerosLike(),
		V:     params.ZerosLike(),
		Count: 0,
	}
}

// Update computes the Adam update
func (o *adam) Update(grads network.Params, s State, _ network.Params) (
	network.Params, State, error) {
	if len(grads) != len(s.M) {
		return nil, State{}, fmt.Errorf("update: gradients do not match "+
			"optimizer state \n\twant(%v)\n\thave(%v)", s.M.Names(),
			grads.Names())
	}

	c := o.config
	count := s.Count + 1
	mCorrection := 1 - math.Pow(c.Beta1, float64(count))
	vCorrection := 1 - math.Pow(c.Beta2, float64(count))

	m := s.M.Clone()
	v := s.V.Clone()
	updates := grads.ZerosLike()

	for _, name := range grads.Names() {
		g := grads.Data(name)
		mData, vData := m.Data(name), v.Data(name)
		if mData == nil || len(mData) != len(g) {
			return nil, State{}, fmt.Errorf("update: no moment for "+
				"parameter %v", name)
		}

		floats.Scale(c.Beta1, mData)
		floats.AddScaled(mData, 1-c.Beta1, g)

		u := updates.Data(name)
		for i, gi := range g {
			vData[i] = c.Beta2*vData[i] + (1-c.Beta2)*gi*gi

			mHat := mData[i] / mCorrection
			vHat := vData[i] / vCorrection
			u[i] = -c.StepSize * mHat / (math.Sqrt(vHat) + c.Epsilon)
		}
	}

	return updates, State{M: m, V: v, Count: count}, nil
}
