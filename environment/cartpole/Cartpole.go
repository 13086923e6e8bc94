// Package cartpole implements the Cartpole classic control environment
// with two discrete actions
package cartpole

import (
	"fmt"
	"math"

	env "github.com/samuelfneumann/qrclearn/environment"
	ts "github.com/samuelfneumann/qrclearn/timestep"
	"gonum.org/v1/gonum/mat"
)

const (
	// Physical constants
	Gravity        float64 = 9.8
	CartMass       float64 = 1.0
	PoleMass       float64 = 0.1
	TotalMass      float64 = CartMass + PoleMass
	HalfPoleLength float64 = 0.5  // half of pole length
	ForceMag       float64 = 10.0 // Magnification of force applied
	Dt             float64 = 0.02 // seconds between state updates

	ObservationDims int = 4

	// Discrete Actions
	MinDiscreteAction int = 0
	MaxDiscreteAction int = 1
)

// Cartpole implements the classic control environment Cartpole. In
// this environment, a pole is attached to a cart, which can move
// horizontally. The agent must keep the pole upright for as long as
// possible.
//
// The state features are continuous and consist of the cart's x
// position and speed, as well as the pole's angle from the positive
// y-axis and the pole's angular velocity. The Task determines when the
// cart or pole has left the legal region.
//
// Actions are discrete and consist of the direction of the force
// applied to the cart:
//
//	Action	Meaning
//	  0		Push left
//	  1		Push right
//
// Illegal actions will cause the environment to panic.
type Cartpole struct {
	task     env.Task
	lastStep ts.TimeStep
	discount float64
}

// New constructs a new Cartpole environment
func New(t env.Task, discount float64) (*Cartpole, ts.TimeStep) {
	c := &Cartpole{task: t, discount: discount}
	return c, c.Reset()
}

// Reset resets the environment and returns a starting state drawn from
// the Task's Starter
func (c *Cartpole) Reset() ts.TimeStep {
	state := c.task.Start()
	if state.Len() != ObservationDims {
		panic(fmt.Sprintf("reset: invalid starting state length "+
			"\n\twant(%v)\n\thave(%v)", ObservationDims, state.Len()))
	}

	c.lastStep = ts.New(ts.First, 0, c.discount, state, 0)
	return c.lastStep
}

// Step takes one environmental step given action a and returns the
// next timestep and whether or not the episode has ended
func (c *Cartpole) Step(a int) (ts.TimeStep, bool) {
	if a < MinDiscreteAction || a > MaxDiscreteAction {
		panic(fmt.Sprintf("step: illegal action %v ∉ (0, 1)", a))
	}

	state := c.lastStep.Observation
	newState := nextState(state, a)

	reward := c.task.GetReward(state, a, newState)
	nextStep := ts.New(ts.Mid, reward, c.discount, newState,
		c.lastStep.Number+1)

	// Check if the step ends the episode
	c.task.End(&nextStep)

	c.lastStep = nextStep
	return nextStep, nextStep.Last()
}

// nextState integrates the cartpole dynamics for a single step using
// Euler's method
func nextState(state mat.Vector, a int) *mat.VecDense {
	x, xDot := state.AtVec(0), state.AtVec(1)
	th, thDot := state.AtVec(2), state.AtVec(3)

	force := ForceMag
	if a == 0 {
		force = -ForceMag
	}

	cosTheta := math.Cos(th)
	sinTheta := math.Sin(th)
	poleMassLength := PoleMass * HalfPoleLength

	temp := (force + poleMassLength*thDot*thDot*sinTheta) / TotalMass
	thAcc := (Gravity*sinTheta - cosTheta*temp) / (HalfPoleLength *
		(4.0/3.0 - PoleMass*cosTheta*cosTheta/TotalMass))
	xAcc := temp - poleMassLength*thAcc*cosTheta/TotalMass

	x += Dt * xDot
	xDot += Dt * xAcc
	th += Dt * thDot
	thDot += Dt * thAcc

	return mat.NewVecDense(ObservationDims, []float64{x, xDot, th, thDot})
}

// ActionSpec returns the action specification of the environment
func (c *Cartpole) ActionSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{float64(MinDiscreteAction)})
	upperBound := mat.NewVecDense(1, []float64{float64(MaxDiscreteAction)})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound,
		env.Discrete)
}

// ObservationSpec returns the observation specification of the
// environment
func (c *Cartpole) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)

	lower := []float64{-PositionLimit, math.Inf(-1), -FailAngle,
		math.Inf(-1)}
	upper := []float64{PositionLimit, math.Inf(1), FailAngle, math.Inf(1)}

	return env.NewSpec(shape, env.Observation,
		mat.NewVecDense(ObservationDims, lower),
		mat.NewVecDense(ObservationDims, upper), env.Continuous)
}

// DiscountSpec returns the discounting specification of the environment
func (c *Cartpole) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{c.discount})
	upperBound := mat.NewVecDense(1, []float64{c.discount})

	return env.NewSpec(shape, env.Discount, lowerBound, upperBound,
		env.Continuous)
}

func (c *Cartpole) String() string {
	msg := "Cartpole  |  Position: %v  | Speed: %v  |  Angle: %v" +
		"  |  Angular Velocity: %v"

	state := c.lastStep.Observation
	position, speed := state.AtVec(0), state.AtVec(1)
	angle, velocity := state.AtVec(2), state.AtVec(3)

	return fmt.Sprintf(msg, position, speed, angle, velocity)
}
