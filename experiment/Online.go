package experiment

import (
	"github.com/pkg/errors"
	"github.com/samuelfneumann/qrclearn/agent"
	env "github.com/samuelfneumann/qrclearn/environment"
	"github.com/samuelfneumann/qrclearn/experiment/checkpointer"
	"github.com/samuelfneumann/qrclearn/experiment/tracker"
	ts "github.com/samuelfneumann/qrclearn/timestep"
	"github.com/sirupsen/logrus"
)

// Progress is notified after every step of an experiment
type Progress interface {
	Increment()
}

// Online is an Experiment that runs an agent online only. No offline
// evaluation is performed.
type Online struct {
	env           env.Environment
	agent         agent.Agent
	maxSteps      int
	currentSteps  int
	episodes      int
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	progress      Progress
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for, the trackers determine
// what data is saved, and the checkpointers determine when the agent
// is saved.
func NewOnline(e env.Environment, a agent.Agent, steps int,
	t []tracker.Tracker, c []checkpointer.Checkpointer) *Online {
	return &Online{
		env:           e,
		agent:         a,
		maxSteps:      steps,
		trackers:      t,
		checkpointers: c,
	}
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// SetProgress sets the Progress notified after every step
func (o *Online) SetProgress(p Progress) {
	o.progress = p
}

// Agent returns the agent learning in the experiment
func (o *Online) Agent() agent.Agent {
	return o.agent
}

// Steps returns the number of steps taken so far
func (o *Online) Steps() int {
	return o.currentSteps
}

// Episodes returns the number of episodes started so far
func (o *Online) Episodes() int {
	return o.episodes
}

// RunEpisode runs a single episode of the experiment. It returns
// whether the maximum number of steps has been reached.
func (o *Online) RunEpisode() (bool, error) {
	step := o.env.Reset()
	o.episodes++
	o.track(step)

	var episodeReturn float64
	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++

		// Select action, step in environment
		obs := step.Observation
		action := o.agent.SelectAction(obs)
		step, _ = o.env.Step(action)
		episodeReturn += step.Reward

		o.track(step)

		err := o.agent.Update(obs, action, step.Observation, step.Reward,
			step.BootstrapDiscount())
		if err != nil {
			return false, errors.Wrapf(err, "runEpisode: step %v",
				o.currentSteps)
		}

		for _, c := range o.checkpointers {
			if err := c.Checkpoint(o.currentSteps); err != nil {
				return false, errors.Wrap(err, "runEpisode")
			}
		}

		if o.progress != nil {
			o.progress.Increment()
		}
	}

	log.WithFields(logrus.Fields{
		"episode": o.episodes,
		"length":  step.Number,
		"return":  episodeReturn,
		"end":     step.EndType,
	}).Debug("episode finished")

	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run() error {
	for {
		ended, err := o.RunEpisode()
		if err != nil {
			return err
		}
		if ended {
			return nil
		}
	}
}

// Save saves the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return errors.Wrap(err, "save")
		}
	}
	return nil
}

// Close releases the resources held by the experiment's agent
func (o *Online) Close() error {
	if closer, ok := o.agent.(agent.Closer); ok {
		return closer.Close()
	}
	return nil
}

// track tracks the current timestep by caching its data in each Tracker
func (o *Online) track(t ts.TimeStep) {
	for _, tr := range o.trackers {
		tr.Track(t)
	}
}
