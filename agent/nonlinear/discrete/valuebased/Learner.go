// Package valuebased implements the machinery shared by off-policy
// value-based agents with discrete actions: the experience replay,
// epsilon greedy behaviour, update cadence, and the threading of
// learning State through a LossStrategy.
//
// Concrete agents (deepq, eqrc) differ only in their LossStrategy.
package valuebased

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"os"

	"github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/policy"
	"github.com/samuelfneumann/qrclearn/collector"
	"github.com/samuelfneumann/qrclearn/expreplay"
	"github.com/samuelfneumann/qrclearn/network"
	"github.com/samuelfneumann/qrclearn/solver"
	ts "github.com/samuelfneumann/qrclearn/timestep"
	"github.com/samuelfneumann/qrclearn/utils/floatutils"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

var log = logrus.WithField("component", "valuebased")

// Names of the diagnostics reported after each completed update
const (
	LossMetric       = "loss"
	RMSEMetric       = "rmse"
	UpdateNormMetric = "update_norm"
	UpdatesMetric    = "updates"
)

// Learner is an off-policy value-based agent. Every Update stores a
// transition, and every updateFreq Updates, once the replay buffer
// holds more than a batch of transitions, a gradient step is taken
// with the LossStrategy. The State is replaced only after a successful
// step.
//
// Learner is not safe for concurrent use.
type Learner struct {
	vf        *ValueFunction
	strategy  LossStrategy
	optimizer solver.Optimizer
	policy    *policy.EGreedy
	replay    expreplay.ExperienceReplayer
	collector collector.Collector

	state      State
	steps      int
	batch      int
	updateFreq int

	// Forward passes of the value function keyed by batch size, with
	// batch sizes other than 1 in order of first use
	evaluators map[int]*network.Evaluator
	evalOrder  []int
}

// maxEvaluators bounds the number of compiled forward passes a Learner
// caches. The single-observation pass used for acting is never evicted.
const maxEvaluators = 4

// New returns a new Learner. The parameters params must include those
// of vf and any other parameters the strategy learns. Initial
// parameters should be created by the caller from the seed; seed is
// also used to seed the replay buffer and behaviour policy.
func New(c Config, vf *ValueFunction, params network.Params,
	strategy LossStrategy, opt solver.Optimizer, seed uint64,
	col collector.Collector) (*Learner, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if col == nil {
		col = collector.Null{}
	}

	replayConfig := expreplay.Config{
		SampleMethod:      expreplay.Uniform,
		SampleSize:        c.Batch,
		MaxReplayCapacity: c.BufferSize,
	}
	replay, err := replayConfig.Create(vf.Features(), seed+1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create experience replay "+
			"buffer: %v", err)
	}

	behaviour, err := policy.NewEGreedy(c.Epsilon, seed+2)
	if err != nil {
		return nil, fmt.Errorf("new: could not create policy: %v", err)
	}

	state := State{
		Params:    params,
		Target:    params.Clone(),
		Optimizer: opt.Init(params),
	}

	return &Learner{
		vf:         vf,
		strategy:   strategy,
		optimizer:  opt,
		policy:     behaviour,
		replay:     replay,
		collector:  col,
		state:      state,
		batch:      c.Batch,
		updateFreq: c.UpdateFreq,
		evaluators: make(map[int]*network.Evaluator),
	}, nil
}

// State returns the current learning State
func (l *Learner) State() State {
	return l.state
}

// Steps returns the number of calls to Update
func (l *Learner) Steps() int {
	return l.steps
}

// BufferSize returns the number of transitions in the replay buffer
func (l *Learner) BufferSize() int {
	return l.replay.Size()
}

// SelectAction returns an action in the state with observation obs
// using the epsilon greedy behaviour policy
func (l *Learner) SelectAction(obs mat.Vector) int {
	return l.policy.SelectAction(l.Values(obs).RawVector().Data)
}

// Update records the transition (x, a, xp, r, discount). A discount of
// 0 marks xp as terminal, in which case xp is replaced by zeros before
// it is stored.
func (l *Learner) Update(x mat.Vector, a int, xp mat.Vector, r,
	discount float64) error {
	features, actions := l.vf.Features(), l.vf.Actions()
	if x.Len() != features || xp.Len() != features {
		return fmt.Errorf("update: invalid observation length \n\twant(%v)"+
			"\n\thave(%v, %v)", features, x.Len(), xp.Len())
	}
	if a < 0 || a >= actions {
		return fmt.Errorf("update: action out of range \n\twant([0, %v))"+
			"\n\thave(%v)", actions, a)
	}

	l.steps++

	if discount == 0 {
		xp = mat.NewVecDense(features, nil)
	}

	transition := ts.NewTransition(x, a, xp, r, discount)
	if err := l.replay.Add(transition); err != nil {
		return fmt.Errorf("update: %v", err)
	}

	if l.steps%l.updateFreq != 0 {
		return nil
	}

	// Skip updates until the buffer holds more than a batch
	if l.replay.Size() <= l.batch {
		return nil
	}

	batch, err := l.replay.Sample()
	if err != nil {
		return fmt.Errorf("update: %v", err)
	}

	next, diag, err := Step(l.strategy, l.optimizer, l.state, batch)
	if err != nil {
		return fmt.Errorf("update: %v", err)
	}
	l.state = next
	l.report(diag)

	return nil
}

// report sends diagnostics of a completed update to the collector
func (l *Learner) report(diag Diagnostics) {
	if !floatutils.AllFinite(diag.Loss, diag.UpdateNorm) {
		log.WithFields(logrus.Fields{
			"updates":     l.state.Updates,
			"loss":        diag.Loss,
			"update_norm": diag.UpdateNorm,
		}).Warn("non-finite loss")
	}

	l.collector.Collect(LossMetric, diag.Loss)
	l.collector.Collect(RMSEMetric, math.Sqrt(diag.Loss))
	l.collector.Collect(UpdateNormMetric, diag.UpdateNorm)
	l.collector.Collect(UpdatesMetric, float64(l.state.Updates))
}

// Values returns the action values of a single observation. Values
// panics if obs does not have the number of features the Learner was
// constructed with.
func (l *Learner) Values(obs mat.Vector) *mat.VecDense {
	if obs.Len() != l.vf.Features() {
		panic(fmt.Sprintf("values: invalid observation length \n\twant(%v)"+
			"\n\thave(%v)", l.vf.Features(), obs.Len()))
	}

	input := make([]float64, obs.Len())
	for i := range input {
		input[i] = obs.AtVec(i)
	}

	values := l.forward(1, input)
	return mat.NewVecDense(len(values), values)
}

// BatchValues returns the action values of each row of obs. BatchValues
// panics if obs does not have the number of features the Learner was
// constructed with as columns.
func (l *Learner) BatchValues(obs *mat.Dense) *mat.Dense {
	rows, cols := obs.Dims()
	if cols != l.vf.Features() {
		panic(fmt.Sprintf("batchValues: invalid observation length "+
			"\n\twant(%v)\n\thave(%v)", l.vf.Features(), cols))
	}

	input := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		input = append(input, mat.Row(nil, i, obs)...)
	}

	return mat.NewDense(rows, l.vf.Actions(), l.forward(rows, input))
}

// forward computes action values under the live parameters for a
// row-major batch of observations
func (l *Learner) forward(batch int, input []float64) []float64 {
	eval, ok := l.evaluators[batch]
	if !ok {
		if len(l.evaluators) >= maxEvaluators {
			l.evictEvaluator()
		}

		var err error
		eval, err = network.NewEvaluator(batch, l.vf.Encoder, l.vf.Head)
		if err != nil {
			panic(fmt.Sprintf("forward: could not compile value function: %v",
				err))
		}
		l.evaluators[batch] = eval
		if batch != 1 {
			l.evalOrder = append(l.evalOrder, batch)
		}
	}

	_, outputs, err := eval.Run(l.state.Params, input)
	if err != nil {
		panic(fmt.Sprintf("forward: %v", err))
	}
	return outputs[0]
}

// evictEvaluator closes and removes the oldest cached forward pass
// over a batch of more than one observation
func (l *Learner) evictEvaluator() {
	if len(l.evalOrder) == 0 {
		return
	}
	batch := l.evalOrder[0]
	l.evalOrder = l.evalOrder[1:]

	if err := l.evaluators[batch].Close(); err != nil {
		log.WithError(err).Warn("could not close evicted forward pass")
	}
	delete(l.evaluators, batch)
}

// Save saves the learning State to a file
func (l *Learner) Save(filename string) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(l.state); err != nil {
		return fmt.Errorf("save: could not encode state: %v", err)
	}

	if err := os.WriteFile(filename, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return nil
}

// Load loads a learning State saved with Save. The saved parameters
// must have the same names and shapes as the Learner's.
func (l *Learner) Load(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("load: %v", err)
	}

	var state State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return fmt.Errorf("load: could not decode state: %v", err)
	}

	// Shape mismatches are caught by Sub
	if len(state.Params) != len(l.state.Params) {
		return fmt.Errorf("load: invalid parameters \n\twant(%v)\n\thave(%v)",
			l.state.Params.Names(), state.Params.Names())
	}
	if _, err := l.state.Params.Sub(state.Params); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	if state.Optimizer.M == nil && l.state.Optimizer.M != nil {
		state.Optimizer = l.optimizer.Init(state.Params)
	}
	if state.Target == nil {
		state.Target = state.Params.Clone()
	}

	l.state = state
	return nil
}

// Close releases the compiled forward passes of the Learner
func (l *Learner) Close() error {
	var firstErr error
	for batch, eval := range l.evaluators {
		if err := eval.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.evaluators, batch)
	}
	l.evalOrder = nil

	if closer, ok := l.strategy.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
