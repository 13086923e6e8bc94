package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// SelectorType describes the available Selectors
type SelectorType string

const (
	Uniform SelectorType = "Uniform"
)

// CreateSelector is a factory for Selectors
func CreateSelector(t SelectorType, samples int, seed uint64) (Selector,
	error) {
	if samples < 1 {
		return nil, fmt.Errorf("createSelector: batch size must be >= 1 "+
			"\n\twant(>0) \n\thave(%v)", samples)
	}

	switch t {
	case Uniform:
		return NewUniformSelector(samples, seed), nil
	}
	return nil, fmt.Errorf("createSelector: no such selector %v", t)
}

// Selector implements functionality for choosing how data should be
// sampled from an experience replay buffer
type Selector interface {
	// choose selects BatchSize() slot indices in [0, size)
	choose(size int) []int

	// BatchSize returns the number of elements that will be selected
	BatchSize() int
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly, with replacement
type uniformSelector struct {
	samples int
	rng     *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly from an experience replay buffer
func NewUniformSelector(samples int, seed uint64) Selector {
	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &uniformSelector{samples: samples, rng: rng}
}

// BatchSize gets the number of samples in a batch drawn from the buffer
func (u *uniformSelector) BatchSize() int {
	return u.samples
}

// choose selects a number of indices at which to draw data from the
// buffer
func (u *uniformSelector) choose(size int) []int {
	selected := make([]int, u.BatchSize())
	for i := range selected {
		selected[i] = u.rng.Intn(size)
	}
	return selected
}
