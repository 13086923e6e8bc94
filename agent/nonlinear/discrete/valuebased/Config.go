package valuebased

import (
	"fmt"

	"github.com/samuelfneumann/qrclearn/initwfn"
	"github.com/samuelfneumann/qrclearn/network"
	"github.com/samuelfneumann/qrclearn/solver"
)

// Representation configures the feature encoder. An encoder with no
// hidden layers is the identity, so the value heads are linear in the
// observation.
type Representation struct {
	Hidden      []int                 `mapstructure:"hidden"`
	Biases      []bool                `mapstructure:"biases"`
	Activations []*network.Activation `mapstructure:"activations"`
	Init        *initwfn.InitWFn      `mapstructure:"init"`
}

// Config implements the hyperparameters shared by value-based agents
type Config struct {
	Representation Representation         `mapstructure:"representation"`
	Optimizer      map[string]interface{} `mapstructure:"optimizer"`

	Epsilon float64 `mapstructure:"epsilon"` // Behaviour policy epsilon

	// Experience replay parameters
	BufferSize int `mapstructure:"buffer_size"`
	Batch      int `mapstructure:"batch"`

	// Number of calls to Update between gradient steps
	UpdateFreq int `mapstructure:"update_freq"`
}

// SetDefaults sets the default hyperparameters of the Config
func (c *Config) SetDefaults() {
	c.UpdateFreq = 1
}

// Required returns the hyperparameters which have no default
func (c Config) Required() []string {
	return []string{"epsilon", "buffer_size", "batch", "optimizer"}
}

// Validate checks a Config to ensure it is a valid configuration of a
// value-based agent
func (c Config) Validate() error {
	r := c.Representation.withDefaults()
	if len(r.Hidden) != len(r.Biases) {
		return fmt.Errorf("new: invalid number of biases\n\twant(%v)"+
			"\n\thave(%v)", len(r.Hidden), len(r.Biases))
	}
	if len(r.Hidden) != len(r.Activations) {
		return fmt.Errorf("new: invalid number of activations\n\twant(%v)"+
			"\n\thave(%v)", len(r.Hidden), len(r.Activations))
	}

	if c.Epsilon < 0 || c.Epsilon > 1 {
		return fmt.Errorf("new: epsilon must be in [0, 1] \n\twant(0 <= ε "+
			"<= 1)\n\thave(%v)", c.Epsilon)
	}
	if c.Batch < 1 {
		return fmt.Errorf("new: batch size must be positive \n\twant(>0)"+
			"\n\thave(%v)", c.Batch)
	}
	if c.BufferSize < c.Batch {
		return fmt.Errorf("new: buffer size must be at least the batch size "+
			"\n\twant(>=%v)\n\thave(%v)", c.Batch, c.BufferSize)
	}
	if c.UpdateFreq < 1 {
		return fmt.Errorf("new: updates must happen at positive step "+
			"intervals \n\twant(>0)\n\thave(%v)", c.UpdateFreq)
	}

	if _, err := solver.FromMap(c.Optimizer); err != nil {
		return fmt.Errorf("new: invalid optimizer: %v", err)
	}
	return nil
}

// NewSolver returns the Solver described by the optimizer
// hyperparameters
func (c Config) NewSolver() (*solver.Solver, error) {
	return solver.FromMap(c.Optimizer)
}

// withDefaults returns the Representation with hidden layers defaulting
// to biased ReLU layers and weights defaulting to GlorotU(1)
func (r Representation) withDefaults() Representation {
	out := r
	if len(out.Biases) == 0 && len(out.Hidden) > 0 {
		out.Biases = make([]bool, len(out.Hidden))
		for i := range out.Biases {
			out.Biases[i] = true
		}
	}
	if len(out.Activations) == 0 && len(out.Hidden) > 0 {
		out.Activations = make([]*network.Activation, len(out.Hidden))
		for i := range out.Activations {
			out.Activations[i] = network.ReLU()
		}
	}
	if out.Init == nil {
		init, err := initwfn.NewGlorotU(1.0)
		if err != nil {
			panic(fmt.Sprintf("withDefaults: %v", err))
		}
		out.Init = init
	}
	return out
}

// ValueFunction is a feature encoder followed by a linear head which
// predicts one value per action
type ValueFunction struct {
	Encoder *network.MLP
	Head    *network.MLP

	init *initwfn.InitWFn
}

// NewValueFunction returns a new ValueFunction over observations of
// the given number of features. The head's weights are named "q/...".
func NewValueFunction(r Representation, features, actions int) (
	*ValueFunction, error) {
	if actions < 1 {
		return nil, fmt.Errorf("newValueFunction: actions must be positive "+
			"\n\twant(>0)\n\thave(%v)", actions)
	}
	r = r.withDefaults()

	encoder, err := network.NewMLP("phi", features, r.Hidden, r.Biases,
		r.Activations)
	if err != nil {
		return nil, fmt.Errorf("newValueFunction: %v", err)
	}

	head, err := network.NewLinear("q", encoder.Outputs(), actions)
	if err != nil {
		return nil, fmt.Errorf("newValueFunction: %v", err)
	}

	return &ValueFunction{Encoder: encoder, Head: head, init: r.Init}, nil
}

// Init returns newly initialized encoder and head weights. The same
// seed always produces the same weights.
func (v *ValueFunction) Init(seed uint64) network.Params {
	init := v.init.InitWFn(seed)
	return v.Encoder.Init(init).Merge(v.Head.Init(init))
}

// Features returns the number of observation features
func (v *ValueFunction) Features() int {
	return v.Encoder.Inputs()
}

// Actions returns the number of actions
func (v *ValueFunction) Actions() int {
	return v.Head.Outputs()
}
