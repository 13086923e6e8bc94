package expreplay

import (
	"fmt"

	"github.com/samuelfneumann/qrclearn/timestep"
)

// ringCache implements a concrete ExperienceReplayer which stores
// transitions in flat columnar caches and overwrites the oldest slot
// once full.
type ringCache struct {
	stateCache     []float64
	actionCache    []int
	rewardCache    []float64
	discountCache  []float64
	nextStateCache []float64

	currentInUsePos int
	isFull          bool

	sampler Selector

	maxCapacity int
	featureSize int
}

// newRingCache returns a new ringCache
func newRingCache(sampler Selector, maxCapacity,
	featureSize int) *ringCache {
	return &ringCache{
		stateCache:     make([]float64, maxCapacity*featureSize),
		actionCache:    make([]int, maxCapacity),
		rewardCache:    make([]float64, maxCapacity),
		discountCache:  make([]float64, maxCapacity),
		nextStateCache: make([]float64, maxCapacity*featureSize),

		currentInUsePos: 0,
		isFull:          false,

		sampler: sampler,

		maxCapacity: maxCapacity,
		featureSize: featureSize,
	}
}

// String returns the string representation of the ringCache
func (r *ringCache) String() string {
	baseStr := "Size: %v \nNext Slot: %v \nStates: %v \nActions: %v " +
		"\nRewards: %v \nDiscounts: %v \nNext States: %v"
	return fmt.Sprintf(baseStr, r.Size(), r.currentInUsePos, r.stateCache,
		r.actionCache, r.rewardCache, r.discountCache, r.nextStateCache)
}

// BatchSize returns the number of samples sampled using Sample() -
// a.k.a the batch size
func (r *ringCache) BatchSize() int {
	return r.sampler.BatchSize()
}

// Sample samples and returns a batch of transitions from the replay
// buffer.
func (r *ringCache) Sample() (Batch, error) {
	if r.Size() == 0 {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errEmptyCache}
	}

	indices := r.sampler.choose(r.Size())
	n := len(indices)

	batch := Batch{
		States:     make([]float64, n*r.featureSize),
		Actions:    make([]int, n),
		NextStates: make([]float64, n*r.featureSize),
		Rewards:    make([]float64, n),
		Discounts:  make([]float64, n),
		Size:       n,
	}

	for i, index := range indices {
		batchStartInd := i * r.featureSize
		expStartInd := index * r.featureSize

		copy(batch.States[batchStartInd:batchStartInd+r.featureSize],
			r.stateCache[expStartInd:expStartInd+r.featureSize])
		copy(batch.NextStates[batchStartInd:batchStartInd+r.featureSize],
			r.nextStateCache[expStartInd:expStartInd+r.featureSize])

		batch.Actions[i] = r.actionCache[index]
		batch.Rewards[i] = r.rewardCache[index]
		batch.Discounts[i] = r.discountCache[index]
	}

	return batch, nil
}

// Size returns the current number of elements in the ringCache that
// are available for sampling
func (r *ringCache) Size() int {
	if r.isFull {
		return r.MaxCapacity()
	}
	return r.currentInUsePos
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the ringCache
func (r *ringCache) MaxCapacity() int {
	return r.maxCapacity
}

// Add adds a transition to the ringCache
func (r *ringCache) Add(t timestep.Transition) error {
	if t.State.Len() != r.featureSize {
		return fmt.Errorf("add: invalid state size \n\twant(%v)\n\thave(%v)",
			r.featureSize, t.State.Len())
	}
	if t.NextState.Len() != r.featureSize {
		return fmt.Errorf("add: invalid next state size \n\twant(%v)"+
			"\n\thave(%v)", r.featureSize, t.NextState.Len())
	}

	index := r.currentInUsePos
	stateInd := index * r.featureSize
	for i := 0; i < r.featureSize; i++ {
		r.stateCache[stateInd+i] = t.State.AtVec(i)
		r.nextStateCache[stateInd+i] = t.NextState.AtVec(i)
	}

	r.actionCache[index] = t.Action
	r.rewardCache[index] = t.Reward
	r.discountCache[index] = t.Discount

	if !r.isFull && index+1 == r.MaxCapacity() {
		r.isFull = true
	}
	r.currentInUsePos = (r.currentInUsePos + 1) % r.MaxCapacity()
	return nil
}
