// Package envconfig provides configuration structs for configuring
// environments with default physical parameters and tasks.
// Environment configurations in this package are JSON and YAML
// serializable.
package envconfig

import (
	"fmt"

	env "github.com/samuelfneumann/qrclearn/environment"
	"github.com/samuelfneumann/qrclearn/environment/cartpole"
	ts "github.com/samuelfneumann/qrclearn/timestep"
)

// EnvName stores the name of environments that can be configured with
// this package
type EnvName string

// Environments available for configuration
const (
	Cartpole EnvName = "Cartpole"
)

// TaskName stores the tasks that can be configured with this package.
// The tasks that can be used with each environment are as follows:
//
//	Environment			Task
//	Cartpole			Balance
type TaskName string

// Tasks available for configuration
const (
	Balance TaskName = "Balance"
)

// Config implements a specific configuration of a specific environment
// and specific task
type Config struct {
	Environment   EnvName  `json:"environment" yaml:"environment"`
	Task          TaskName `json:"task" yaml:"task"`
	EpisodeCutoff int      `json:"episode_cutoff" yaml:"episode_cutoff"`
	Discount      float64  `json:"discount" yaml:"discount"`
}

// Validate checks that the Config describes a known environment and
// task with a legal discount
func (c Config) Validate() error {
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1] "+
			"\n\thave(%v)", c.Discount)
	}

	switch c.Environment {
	case Cartpole:
		if c.Task != Balance && c.Task != "" {
			return fmt.Errorf("validate: Cartpole environment has no "+
				"task %v", c.Task)
		}
		return nil
	}
	return fmt.Errorf("validate: no such environment %v", c.Environment)
}

// Create returns the environment described by the Config as well as
// the first timestep of the environment
func (c Config) Create(seed uint64) (env.Environment, ts.TimeStep, error) {
	if err := c.Validate(); err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
	}

	switch c.Environment {
	case Cartpole:
		e, step := CreateCartpole(c.EpisodeCutoff, seed, c.Discount)
		return e, step, nil
	}

	panic(fmt.Sprintf("create: cannot create environment %v, no such "+
		"environment", c.Environment))
}

// CreateCartpole is a factory for creating the Cartpole environment
// with the default Balance task
func CreateCartpole(cutoff int, seed uint64, discount float64) (
	env.Environment, ts.TimeStep) {
	task := cartpole.NewDefaultBalance(cutoff, seed)
	return cartpole.New(task, discount)
}
