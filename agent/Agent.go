// Package agent defines the interfaces of value-based agents and a
// registry of agent Types, so that agents can be constructed by name
// from a map of hyperparameters.
package agent

import (
	"gonum.org/v1/gonum/mat"
)

// Agent selects actions and learns from transitions.
//
// Agents are not safe for concurrent use.
type Agent interface {
	Policy
	Learner

	// Values returns the action values of a single observation
	Values(obs mat.Vector) *mat.VecDense
}

// Policy selects discrete actions
type Policy interface {
	SelectAction(obs mat.Vector) int
}

// Learner learns from transitions (x, a, xp, r, γ). A discount of 0
// marks xp as terminal.
type Learner interface {
	Update(x mat.Vector, a int, xp mat.Vector, r, discount float64) error
}

// BatchValuer is an Agent which can compute the action values of a
// batch of observations, one observation per row
type BatchValuer interface {
	Agent
	BatchValues(obs *mat.Dense) *mat.Dense
}

// Saver is an Agent whose learned weights can be saved to and loaded
// from files
type Saver interface {
	Agent
	Save(filename string) error
	Load(filename string) error
}

// Closer is an agent that must be closed after it is done learning
type Closer interface {
	Agent
	Close() error
}
