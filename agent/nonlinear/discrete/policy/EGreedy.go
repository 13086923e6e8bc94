// Package policy implements discrete-action policies over action
// values produced by a function approximator.
package policy

import (
	"fmt"

	"github.com/samuelfneumann/qrclearn/utils/floatutils"
	"golang.org/x/exp/rand"
)

// EGreedy implements an epsilon greedy policy over action values.
// With probability epsilon an action is selected uniformly at random,
// otherwise an action is selected uniformly at random from the set of
// actions of maximum value.
//
// EGreedy is not safe for concurrent use.
type EGreedy struct {
	epsilon float64
	rng     *rand.Rand
}

// NewEGreedy returns a new EGreedy policy whose random number
// generator is seeded with seed
func NewEGreedy(epsilon float64, seed uint64) (*EGreedy, error) {
	if epsilon < 0 || epsilon > 1 {
		return nil, fmt.Errorf("newEGreedy: epsilon must be in [0, 1] "+
			"\n\twant(0 <= ε <= 1)\n\thave(%v)", epsilon)
	}

	return &EGreedy{
		epsilon: epsilon,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Epsilon gets the value of epsilon for the policy.
func (e *EGreedy) Epsilon() float64 {
	return e.epsilon
}

// SelectAction selects an action given the action values of the
// current state. SelectAction panics if values is empty.
func (e *EGreedy) SelectAction(values []float64) int {
	if len(values) == 0 {
		panic("selectAction: no action values to select from")
	}

	// With probability epsilon return a random action
	if e.epsilon > 0 && e.rng.Float64() < e.epsilon {
		return e.rng.Intn(len(values))
	}

	// If multiple actions have max value, return a random max-valued
	// action
	_, maxIndices := floatutils.MaxSlice(values)
	return maxIndices[e.rng.Intn(len(maxIndices))]
}

// Distribution returns the action selection probabilities of the
// policy given action values
func (e *EGreedy) Distribution(values []float64) []float64 {
	return Distribution(values, e.epsilon)
}

// Greedy returns the greedy distribution over values, which splits
// probability mass evenly between all actions of maximum value
func Greedy(values []float64) []float64 {
	probs := make([]float64, len(values))
	if len(values) == 0 {
		return probs
	}

	_, maxIndices := floatutils.MaxSlice(values)
	mass := 1.0 / float64(len(maxIndices))
	for _, i := range maxIndices {
		probs[i] = mass
	}
	return probs
}

// Distribution returns the epsilon greedy distribution over values:
//
//	π = (1 - ε) greedy(values) + ε / |A|
func Distribution(values []float64, epsilon float64) []float64 {
	probs := Greedy(values)
	uniform := epsilon / float64(len(values))
	for i := range probs {
		probs[i] = (1-epsilon)*probs[i] + uniform
	}
	return probs
}

// BatchDistribution returns the epsilon greedy distribution for each
// row of the row-major matrix values with cols actions per row. The
// result is row-major with the same shape as values.
func BatchDistribution(values []float64, cols int, epsilon float64) []float64 {
	if cols < 1 || len(values)%cols != 0 {
		panic(fmt.Sprintf("batchDistribution: cannot split %v values "+
			"into rows of %v", len(values), cols))
	}

	actions := float64(cols)
	probs := make([]float64, len(values))
	for row, maxIndices := range floatutils.Argmaxes(values, cols) {
		mass := (1 - epsilon) / float64(len(maxIndices))
		for a := 0; a < cols; a++ {
			probs[row*cols+a] = epsilon / actions
		}
		for _, a := range maxIndices {
			probs[row*cols+a] += mass
		}
	}
	return probs
}
