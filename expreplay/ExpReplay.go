// Package expreplay implements the experience replay buffer used by
// off-policy learners
package expreplay

import (
	"fmt"

	"github.com/samuelfneumann/qrclearn/timestep"
)

// Config implements a specific configuration of an ExperienceReplayer
type Config struct {
	SampleMethod      SelectorType `mapstructure:"sample_method"`
	SampleSize        int          `mapstructure:"batch"`
	MaxReplayCapacity int          `mapstructure:"buffer_size"`
}

// Create creates and returns the ExperienceReplayer with the specified
// Config.
func (c Config) Create(featureSize int, seed uint64) (ExperienceReplayer,
	error) {
	method := c.SampleMethod
	if method == "" {
		method = Uniform
	}

	sampler, err := CreateSelector(method, c.SampleSize, seed)
	if err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}
	return New(sampler, c.MaxReplayCapacity, featureSize)
}

// Batch is a columnar batch of transitions. States and NextStates are
// row-major Size x features matrices.
type Batch struct {
	States     []float64
	Actions    []int
	NextStates []float64
	Rewards    []float64
	Discounts  []float64
	Size       int
}

// OneHotActions returns the batch actions as a row-major
// Size x numActions one-hot matrix
func (b Batch) OneHotActions(numActions int) []float64 {
	oneHot := make([]float64, b.Size*numActions)
	for i, a := range b.Actions {
		oneHot[i*numActions+a] = 1.0
	}
	return oneHot
}

// ExperienceReplayer implements an experience replay buffer
type ExperienceReplayer interface {
	// Add adds a transition to the buffer, overwriting the oldest
	// transition once the buffer is full
	Add(t timestep.Transition) error

	// Sample samples a batch of BatchSize() transitions from the buffer
	Sample() (Batch, error)

	// Size returns the current number of transitions in the buffer
	Size() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// BatchSize returns the number of samples returned by Sample()
	BatchSize() int
}

// New creates and returns a new ExperienceReplayer. The sampler
// determines how data is sampled from the buffer and the featureSize
// is the length of the state vectors stored.
//
// Pixel observations should be flattened before adding to the buffer.
func New(sampler Selector, maxCapacity, featureSize int) (
	ExperienceReplayer, error) {
	if maxCapacity < 1 {
		return nil, fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if featureSize < 1 {
		return nil, fmt.Errorf("new: featureSize must be >= 1")
	}
	if maxCapacity < sampler.BatchSize() {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", sampler.BatchSize(), maxCapacity)
	}

	return newRingCache(sampler, maxCapacity, featureSize), nil
}
