package deepq

import (
	"fmt"

	"github.com/samuelfneumann/qrclearn/agent"
	"github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/valuebased"
	"github.com/samuelfneumann/qrclearn/collector"
)

func init() {
	// Register Config type so that it can be created by name from a
	// map of hyperparameters
	agent.Register(agent.DQN, Config{})
}

// Config implements a configuration for a DeepQ agent
type Config struct {
	valuebased.Config `mapstructure:",squash"`

	// Number of completed updates between hard target network updates
	TargetRefresh int `mapstructure:"target_refresh"`

	// Threshold between the quadratic and linear regions of the Huber
	// loss
	HuberTau float64 `mapstructure:"huber_tau"`
}

// SetDefaults sets the default hyperparameters of the Config
func (c *Config) SetDefaults() {
	c.Config.SetDefaults()
	c.TargetRefresh = 1
	c.HuberTau = 1.0
}

// Type returns the type of the configuration
func (c Config) Type() agent.Type {
	return agent.DQN
}

// Validate checks a Config to ensure it is a valid configuration of a
// DeepQ agent.
func (c Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}

	if c.TargetRefresh < 1 {
		return fmt.Errorf("new: target networks must be updated at positive "+
			"update intervals \n\twant(>0) \n\thave(%v)", c.TargetRefresh)
	}
	if c.HuberTau <= 0 {
		return fmt.Errorf("new: huber threshold must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.HuberTau)
	}
	return nil
}

// CreateAgent creates a new DeepQ agent based on the configuration
func (c Config) CreateAgent(features, actions int, seed uint64,
	col collector.Collector) (agent.Agent, error) {
	return New(features, actions, c, seed, col)
}
