// Package environment outlines the interfaces and structs needed to
// implement concrete environments with discrete actions
package environment

import (
	"github.com/samuelfneumann/qrclearn/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() mat.Vector
}

// Ender determines when episodes end. If End returns true, it has
// marked the TimeStep as the last in its episode along with the reason
// the episode ended.
type Ender interface {
	End(t *timestep.TimeStep) bool
}

// Task implements the reward scheme and episode boundaries for taking
// actions in some environment
type Task interface {
	Starter
	Ender
	GetReward(state mat.Vector, a int, nextState mat.Vector) float64
}

// Environment implements a simulated environment with discrete actions
type Environment interface {
	Reset() timestep.TimeStep // Resets between episodes
	Step(a int) (timestep.TimeStep, bool)
	ObservationSpec() Spec
	ActionSpec() Spec
	DiscountSpec() Spec
}
