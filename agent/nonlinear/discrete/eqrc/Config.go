package eqrc

import (
	"fmt"

	"github.com/samuelfneumann/qrclearn/agent"
	"github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/valuebased"
	"github.com/samuelfneumann/qrclearn/collector"
)

func init() {
	agent.Register(agent.EQRC, Config{})
}

// Config implements a configuration for an EQRC agent
type Config struct {
	valuebased.Config `mapstructure:",squash"`

	// Strength of the decay of the correction weights toward zero
	Beta float64 `mapstructure:"beta"`
}

// SetDefaults sets the default hyperparameters of the Config
func (c *Config) SetDefaults() {
	c.Config.SetDefaults()
	c.Beta = 1.0
}

// Type returns the type of the configuration
func (c Config) Type() agent.Type {
	return agent.EQRC
}

// Validate checks a Config to ensure it is a valid configuration of an
// EQRC agent.
func (c Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.Beta < 0 {
		return fmt.Errorf("new: beta must be non-negative \n\twant(>=0)"+
			"\n\thave(%v)", c.Beta)
	}
	return nil
}

// CreateAgent creates a new EQRC agent based on the configuration
func (c Config) CreateAgent(features, actions int, seed uint64,
	col collector.Collector) (agent.Agent, error) {
	return New(features, actions, c, seed, col)
}
