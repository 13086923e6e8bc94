// Package timestep implements timesteps of the agent-environment
// interaction and the transitions stored by off-policy learners
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either  first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// EndType denotes why an episode ended. Only episodes that reach a
// terminal state cut off bootstrapping; a timeout keeps the discount.
type EndType int

const (
	Running EndType = iota
	TerminalStateReached
	Timeout
)

func (e EndType) String() string {
	switch e {
	case TerminalStateReached:
		return "TerminalStateReached"
	case Timeout:
		return "Timeout"
	default:
		return "Running"
	}
}

// TimeStep packages together a single timestep in an environment
type TimeStep struct {
	StepType
	EndType
	Reward      float64
	Discount    float64
	Observation mat.Vector
	Number      int
}

// New returns a new TimeStep
func New(t StepType, r, d float64, o mat.Vector, n int) TimeStep {
	return TimeStep{StepType: t, Reward: r, Discount: d, Observation: o,
		Number: n}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.StepType == Last
}

// End marks the TimeStep as the last in its episode
func (t *TimeStep) End(e EndType) {
	t.StepType = Last
	t.EndType = e
}

// Terminal returns whether the TimeStep ended the episode in a
// terminal state
func (t *TimeStep) Terminal() bool {
	return t.Last() && t.EndType == TerminalStateReached
}

// BootstrapDiscount returns the discount a learner should use to
// bootstrap from the TimeStep's observation: zero for terminal
// steps and the environment's discount otherwise.
func (t *TimeStep) BootstrapDiscount() float64 {
	if t.Terminal() {
		return 0.0
	}
	return t.Discount
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  End: %v  |  Reward:  %.2f  |  " +
		"Discount: %.2f  |  Step Number:  %v"

	return fmt.Sprintf(str, t.StepType, t.EndType, t.Reward, t.Discount,
		t.Number)
}

// Transition is a single (s, a, s', r, γ) tuple. A Discount of 0
// marks a terminal transition.
type Transition struct {
	State     mat.Vector
	Action    int
	NextState mat.Vector
	Reward    float64
	Discount  float64
}

// NewTransition creates a new Transition
func NewTransition(state mat.Vector, action int, nextState mat.Vector,
	reward, discount float64) Transition {
	return Transition{
		State:     state,
		Action:    action,
		NextState: nextState,
		Reward:    reward,
		Discount:  discount,
	}
}

// Terminal returns whether the Transition ends in a terminal state
func (t Transition) Terminal() bool {
	return t.Discount == 0
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition | Action: %v  |  Reward: %.2f  |  "+
		"Discount: %.2f", t.Action, t.Reward, t.Discount)
}
