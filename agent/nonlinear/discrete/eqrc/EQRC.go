// Package eqrc implements expected QC learning (EQRC), a
// gradient-corrected Q-learning algorithm. A secondary linear head h
// on the value function's features estimates the expected TD error,
// and corrects the value update in place of a target network.
//
// The value loss of a transition is
//
//	0.5 δ² + γ sg(h(s, a)) v(s')
//
// with δ = r + γ v(s') - q(s, a) held constant and v(s') the value of
// s' under the epsilon greedy policy. The correction loss is
//
//	0.5 (sg(δ) - h(sg(φ(s)), a))²
//
// where sg stops the gradient. After each optimizer step, the
// correction weights' update is decayed by α β h.
package eqrc

import (
	"fmt"

	"github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/valuebased"
	"github.com/samuelfneumann/qrclearn/collector"
	"github.com/samuelfneumann/qrclearn/initwfn"
	"github.com/samuelfneumann/qrclearn/network"
)

// correctionPrefix names the weights of the correction head
const correctionPrefix = "h"

// EQRC implements the EQRC algorithm
type EQRC struct {
	*valuebased.Learner
}

// New creates and returns a new EQRC agent for observations of
// features features and actions discrete actions
func New(features, actions int, c Config, seed uint64,
	col collector.Collector) (*EQRC, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	vf, err := valuebased.NewValueFunction(c.Representation, features,
		actions)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	correction, err := network.NewLinear(correctionPrefix,
		vf.Encoder.Outputs(), actions)
	if err != nil {
		return nil, fmt.Errorf("new: could not create correction head: %v",
			err)
	}

	s, err := c.NewSolver()
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	strategy, err := newLoss(vf, correction, c.Batch, c.Epsilon,
		s.StepSize(), c.Beta)
	if err != nil {
		return nil, fmt.Errorf("new: could not create loss: %v", err)
	}

	// Correction weights start at zero
	zeroes, err := initwfn.NewZeroes()
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	params := vf.Init(seed).Merge(correction.Init(zeroes.InitWFn(seed)))

	learner, err := valuebased.New(c.Config, vf, params, strategy, s, seed,
		col)
	if err != nil {
		strategy.Close()
		return nil, err
	}

	return &EQRC{Learner: learner}, nil
}
