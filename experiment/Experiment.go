// Package experiment implements functionality for running an experiment
package experiment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/qrclearn/agent"
	"github.com/samuelfneumann/qrclearn/collector"
	"github.com/samuelfneumann/qrclearn/environment/envconfig"
	"github.com/samuelfneumann/qrclearn/experiment/checkpointer"
	"github.com/samuelfneumann/qrclearn/experiment/tracker"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

var log = logrus.WithField("component", "experiment")

// Experiment outlines structs that can run experiments. The Run()
// method runs all episodes until the maximum timestep limit is
// reached. The RunEpisode() method runs a single episode.
//
// Experiments send each TimeStep to their Trackers, which determine
// which data generated during the experiment is saved. The Save()
// method saves all data cached by the Trackers.
type Experiment interface {
	Run() error
	RunEpisode() (bool, error) // Returns whether the step limit was reached

	// Save all tracked data to disk
	Save() error

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment
	Register(t tracker.Tracker)
}

// Type is a kind of experiment
type Type string

const (
	OnlineExp Type = "OnlineExperiment"
)

// AgentConfig names an agent Type and its hyperparameters
type AgentConfig struct {
	Type   agent.Type             `json:"type" yaml:"type"`
	Params map[string]interface{} `json:"params" yaml:"params"`
}

// CheckpointConfig determines how often and where agents' weights are
// saved. Checkpointing is disabled when Every is 0.
type CheckpointConfig struct {
	Every int    `json:"every" yaml:"every"`
	Dir   string `json:"dir" yaml:"dir"`
}

// Config represents a configuration of an experiment
type Config struct {
	Type       Type             `json:"type" yaml:"type"`
	MaxSteps   int              `json:"max_steps" yaml:"max_steps"`
	Seed       uint64           `json:"seed" yaml:"seed"`
	EnvConf    envconfig.Config `json:"environment" yaml:"environment"`
	AgentConf  AgentConfig      `json:"agent" yaml:"agent"`
	Checkpoint CheckpointConfig `json:"checkpoint" yaml:"checkpoint"`
}

// LoadConfig reads a Config from a YAML or JSON file, determined by
// the file's extension
func LoadConfig(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, errors.Wrap(err, "loadConfig")
	}

	var c Config
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &c)
	case ".json":
		err = json.Unmarshal(data, &c)
	default:
		return Config{}, errors.Errorf("loadConfig: unknown config file "+
			"extension %v", ext)
	}
	if err != nil {
		return Config{}, errors.Wrapf(err, "loadConfig: could not decode %v",
			filename)
	}

	params, err := normalise(c.AgentConf.Params)
	if err != nil {
		return Config{}, errors.Wrap(err, "loadConfig: agent params")
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	c.AgentConf.Params = params.(map[string]interface{})

	if c.Type == "" {
		c.Type = OnlineExp
	}
	return c, c.Validate()
}

// normalise converts the map[interface{}]interface{} values produced
// by YAML decoding into the map[string]interface{} values expected by
// agent configurations
func normalise(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			k, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("normalise: non-string key %v", key)
			}
			n, err := normalise(value)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil

	case map[string]interface{}:
		if v == nil {
			return nil, nil
		}
		out := make(map[string]interface{}, len(v))
		for k, value := range v {
			n, err := normalise(value)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil

	case []interface{}:
		out := make([]interface{}, len(v))
		for i, value := range v {
			n, err := normalise(value)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	return v, nil
}

// Validate checks that the Config describes a legal experiment
func (c Config) Validate() error {
	if c.Type != OnlineExp {
		return errors.Errorf("validate: no such experiment type %v", c.Type)
	}
	if c.MaxSteps < 1 {
		return errors.Errorf("validate: max_steps must be positive "+
			"\n\twant(>0)\n\thave(%v)", c.MaxSteps)
	}
	if c.Checkpoint.Every < 0 {
		return errors.Errorf("validate: checkpoint interval must be "+
			"non-negative \n\thave(%v)", c.Checkpoint.Every)
	}
	if err := c.EnvConf.Validate(); err != nil {
		return errors.Wrap(err, "validate")
	}
	return nil
}

// CreateExp creates the experiment described by the Config. Agent
// diagnostics are sent to col, and each step of the experiment is
// sent to the trackers t.
func (c Config) CreateExp(col collector.Collector,
	t ...tracker.Tracker) (*Online, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "createExp")
	}

	env, _, err := c.EnvConf.Create(c.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "createExp: could not create environment")
	}

	agentConf, err := agent.NewConfig(c.AgentConf.Type, c.AgentConf.Params)
	if err != nil {
		return nil, errors.Wrap(err, "createExp")
	}

	features := env.ObservationSpec().Features()
	actions := env.ActionSpec().Actions()
	a, err := agentConf.CreateAgent(features, actions, c.Seed, col)
	if err != nil {
		return nil, errors.Wrap(err, "createExp: could not create agent")
	}

	var checkpointers []checkpointer.Checkpointer
	if c.Checkpoint.Every > 0 {
		saver, ok := a.(agent.Saver)
		if !ok {
			return nil, errors.Errorf("createExp: agent %v cannot be "+
				"checkpointed", c.AgentConf.Type)
		}

		filename := filepath.Join(c.Checkpoint.Dir, "weights")
		check, err := checkpointer.NewNStep(c.Checkpoint.Every, saver,
			checkpointer.FilenameEnumerator(0, filename, ".bin"))
		if err != nil {
			return nil, errors.Wrap(err, "createExp")
		}
		checkpointers = append(checkpointers, check)
	}

	log.WithFields(logrus.Fields{
		"agent":       c.AgentConf.Type,
		"environment": c.EnvConf.Environment,
		"steps":       c.MaxSteps,
		"seed":        c.Seed,
	}).Info("created experiment")

	switch c.Type {
	case OnlineExp:
		return NewOnline(env, a, c.MaxSteps, t, checkpointers), nil
	}
	return nil, errors.Errorf("createExp: no such experiment type %v", c.Type)
}
