package valuebased

import (
	"fmt"

	"github.com/samuelfneumann/qrclearn/expreplay"
	"github.com/samuelfneumann/qrclearn/network"
	"github.com/samuelfneumann/qrclearn/solver"
)

// State is the learning state of a value-based agent. A State is never
// modified after creation: every update produces a new State.
type State struct {
	Params    network.Params // Live parameters
	Target    network.Params // Target parameters for bootstrapping
	Optimizer solver.State
	Updates   int // Number of completed updates
}

// LossStrategy determines how a value-based agent computes its loss
// and how it post-processes each update
type LossStrategy interface {
	// Loss returns the loss on batch and its gradient with respect to
	// s.Params
	Loss(s State, b expreplay.Batch) (float64, network.Params, error)

	// Adjust modifies the optimizer's updates before they are applied
	Adjust(s State, updates network.Params) network.Params

	// Refresh returns the target parameters after an update which
	// produced next, given the number of completed updates
	Refresh(s State, next network.Params, updates int) network.Params
}

// Diagnostics reports on a completed update
type Diagnostics struct {
	Loss       float64
	UpdateNorm float64 // L2 norm of the applied update
}

// Step performs a single update of the state s on batch b and returns
// the next State. On error, no State is returned and s remains valid.
func Step(strategy LossStrategy, opt solver.Optimizer, s State,
	b expreplay.Batch) (State, Diagnostics, error) {
	loss, grads, err := strategy.Loss(s, b)
	if err != nil {
		return State{}, Diagnostics{}, fmt.Errorf("step: could not compute "+
			"loss: %v", err)
	}

	updates, optState, err := opt.Update(grads, s.Optimizer, s.Params)
	if err != nil {
		return State{}, Diagnostics{}, fmt.Errorf("step: %v", err)
	}
	updates = strategy.Adjust(s, updates)

	params, err := s.Params.Add(updates)
	if err != nil {
		return State{}, Diagnostics{}, fmt.Errorf("step: could not apply "+
			"updates: %v", err)
	}

	n := s.Updates + 1
	next := State{
		Params:    params,
		Target:    strategy.Refresh(s, params, n),
		Optimizer: optState,
		Updates:   n,
	}
	return next, Diagnostics{Loss: loss, UpdateNorm: updates.Norm()}, nil
}
