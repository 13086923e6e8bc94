package solver

import (
	"fmt"

	"github.com/samuelfneumann/qrclearn/network"
)

// VanillaConfig describes a configuration of the vanilla gradient
// descent solver.
type VanillaConfig struct {
	StepSize float64 `mapstructure:"alpha"`
}

// NewVanilla returns a new Vanilla Solver
func NewVanilla(stepSize float64) (*Solver, error) {
	return newSolver(Vanilla, VanillaConfig{StepSize: stepSize})
}

// Create returns a vanilla gradient descent optimizer as described by
// the VanillaConfig
func (v VanillaConfig) Create() Optimizer {
	return &vanilla{config: v}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (v VanillaConfig) ValidType(t Type) bool {
	return t == Vanilla
}

// Validate checks that the VanillaConfig describes a legal optimizer
func (v VanillaConfig) Validate() error {
	if v.StepSize <= 0 {
		return fmt.Errorf("validate: step size must be positive "+
			"\n\twant(>0)\n\thave(%v)", v.StepSize)
	}
	return nil
}

// vanilla implements stochastic gradient descent: u = -α g
type vanilla struct {
	config VanillaConfig
}

// StepSize returns the learning rate
func (v *vanilla) StepSize() float64 {
	return v.config.StepSize
}

// Init returns a State holding only the step count
func (v *vanilla) Init(network.Params) State {
	return State{}
}

// Update computes the gradient descent update
func (v *vanilla) Update(grads network.Params, s State, _ network.Params) (
	network.Params, State, error) {
	return grads.Scale(-v.config.StepSize), State{Count: s.Count + 1},
		nil
}
