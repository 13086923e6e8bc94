// Package solver implements gradient-based optimizers over
// network.Params. Optimizers are pure: Update never modifies its
// arguments and returns the parameter update together with the next
// optimizer State.
//
// Solver wraps an optimizer Config so that it can be JSON serialized
// into configuration files.
package solver

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/samuelfneumann/qrclearn/network"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	Vanilla Type = "Vanilla"
)

var registeredConfigs = map[string]reflect.Type{
	string(Vanilla): reflect.TypeOf(VanillaConfig{}),
	string(Adam):    reflect.TypeOf(AdamConfig{}),
}

// State is the optimizer state threaded through successive updates
type State struct {
	M     network.Params // First moment
	V     network.Params // Second moment
	Count int
}

// Optimizer computes parameter updates from gradients
type Optimizer interface {
	// Init returns the initial State for the given parameters
	Init(params network.Params) State

	// Update returns the additive update to apply to params given the
	// gradient of the loss, and the next optimizer State
	Update(grads network.Params, s State, params network.Params) (
		network.Params, State, error)

	// StepSize returns the optimizer's learning rate
	StepSize() float64
}

// Solver wraps optimizer Configs so that they can be JSON marshalled
// and unmarshalled.
type Solver struct {
	Optimizer `json:"-"`
	Type
	Config
}

// newSolver returns a new solver with the given type and configuration.
func newSolver(t Type, c Config) (*Solver, error) {
	if !c.ValidType(t) {
		return nil, fmt.Errorf("newSolver: invalid solver type %v for "+
			"configuration %T", t, c)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newSolver: %v", err)
	}
	solver := Solver{Type: t, Config: c}
	solver.Optimizer = solver.Config.Create()

	return &solver, nil
}

// FromMap creates a Solver from a parameter map such as
//
//	{"type": "Adam", "alpha": 0.001, "beta1": 0.9, "beta2": 0.999}
//
// The type defaults to Adam. Unset Adam moments take their usual
// defaults.
func FromMap(m map[string]interface{}) (*Solver, error) {
	t := Adam
	params := make(map[string]interface{}, len(m))
	for k, v := range m {
		if strings.EqualFold(k, "type") {
			name, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("fromMap: type must be a string")
			}
			t = Type(name)
			continue
		}
		params[k] = v
	}

	ty, ok := registeredConfigs[string(t)]
	if !ok {
		return nil, fmt.Errorf("fromMap: no such solver %v", t)
	}
	config := reflect.New(ty).Interface().(Config)
	if d, ok := config.(defaulter); ok {
		d.setDefaults()
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           config,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(params); err != nil {
		return nil, fmt.Errorf("fromMap: %v", err)
	}

	concrete := reflect.ValueOf(config).Elem().Interface().(Config)
	return newSolver(t, concrete)
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (s *Solver) UnmarshalJSON(data []byte) error {
	config, typeName, err := unmarshalConfig(data, "Type", "Config",
		registeredConfigs)
	if err != nil {
		return err
	}

	solver, err := newSolver(typeName, config)
	if err != nil {
		return err
	}
	*s = *solver
	return nil
}

// unmarshalConfig uses reflection to unmarshall a Config into its
// concrete type. Both the Config and its Type are returned.
func unmarshalConfig(data []byte, typeJsonField, valueJsonField string,
	customTypes map[string]reflect.Type) (Config, Type, error) {
	m := map[string]interface{}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}

	typeName, ok := m[typeJsonField].(string)
	if !ok {
		return nil, "", fmt.Errorf("unmarshalConfig: missing solver type")
	}
	ty, found := customTypes[typeName]
	if !found {
		return nil, "", fmt.Errorf("unmarshalConfig: no such solver %v",
			typeName)
	}
	value := reflect.New(ty).Interface()
	if d, ok := value.(defaulter); ok {
		d.setDefaults()
	}

	valueBytes, err := json.Marshal(m[valueJsonField])
	if err != nil {
		return nil, "", err
	}

	if err = json.Unmarshal(valueBytes, value); err != nil {
		return nil, "", err
	}
	concrete := reflect.ValueOf(value).Elem().Interface().(Config)

	return concrete, Type(typeName), nil
}

// Config implements an optimizer configuration and can be used to
// create the optimizer it describes.
type Config interface {
	Create() Optimizer

	// ValidType returns whether a specific Solver type can be created
	// with the Config
	ValidType(Type) bool

	// Validate returns an error if the configuration is illegal
	Validate() error
}

// defaulter is a Config which has default hyperparameters that are
// set before decoding
type defaulter interface {
	setDefaults()
}
