package cartpole

import (
	"math"

	env "github.com/samuelfneumann/qrclearn/environment"
	ts "github.com/samuelfneumann/qrclearn/timestep"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

const (
	FailAngle     float64 = 12 * 2 * math.Pi / 360
	PositionLimit float64 = 2.4

	// Starting states are drawn from [-StartBound, StartBound]⁴
	StartBound float64 = 0.05
)

// Balance implements the classic control Cartpole Balance task. In this
// Task, the goal of the agent is to balance the pole on the cart in
// an upright position for as long as possible.
//
// The reward is +1 for every timestep. An episode terminates when the
// pole falls past FailAngle or the cart leaves [-PositionLimit,
// PositionLimit], and times out after a step limit.
type Balance struct {
	env.Starter
	failLimiter *env.IntervalLimit
	stepLimiter env.StepLimit
}

// NewBalance creates and returns a new Balance task. If episodeSteps
// is not positive, episodes never time out.
func NewBalance(s env.Starter, episodeSteps int) *Balance {
	legal := []r1.Interval{
		{Min: -PositionLimit, Max: PositionLimit},
		{Min: -FailAngle, Max: FailAngle},
	}
	failLimiter := env.NewIntervalLimit(legal, []int{0, 2},
		ts.TerminalStateReached)

	return &Balance{s, failLimiter, env.NewStepLimit(episodeSteps)}
}

// NewDefaultBalance returns a Balance task with starting states drawn
// uniformly from [-StartBound, StartBound]⁴
func NewDefaultBalance(episodeSteps int, seed uint64) *Balance {
	bounds := make([]r1.Interval, ObservationDims)
	for i := range bounds {
		bounds[i] = r1.Interval{Min: -StartBound, Max: StartBound}
	}
	return NewBalance(env.NewUniformStarter(bounds, seed), episodeSteps)
}

// End checks if a TimeStep is the last in an episode. Failing takes
// precedence over timing out on the same step.
func (b *Balance) End(t *ts.TimeStep) bool {
	if end := b.failLimiter.End(t); end {
		return true
	}
	return b.stepLimiter.End(t)
}

// GetReward returns the reward for an action taken in some state,
// resulting in a transition to the next state nextState.
func (b *Balance) GetReward(_ mat.Vector, _ int, _ mat.Vector) float64 {
	return 1.0
}
