// Package deepq implements the DQN algorithm: Q-learning with a Huber
// loss, experience replay, and a target network which is hard-updated
// every fixed number of gradient steps.
package deepq

import (
	"fmt"

	"github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/valuebased"
	"github.com/samuelfneumann/qrclearn/collector"
)

// DeepQ implements the DQN algorithm
type DeepQ struct {
	*valuebased.Learner
}

// New creates and returns a new DeepQ agent for observations of
// features features and actions discrete actions
func New(features, actions int, c Config, seed uint64,
	col collector.Collector) (*DeepQ, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	vf, err := valuebased.NewValueFunction(c.Representation, features,
		actions)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	s, err := c.NewSolver()
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	strategy, err := newLoss(vf, c.Batch, c.HuberTau, c.TargetRefresh)
	if err != nil {
		return nil, fmt.Errorf("new: could not create loss: %v", err)
	}

	learner, err := valuebased.New(c.Config, vf, vf.Init(seed), strategy, s,
		seed, col)
	if err != nil {
		strategy.Close()
		return nil, err
	}

	return &DeepQ{Learner: learner}, nil
}
