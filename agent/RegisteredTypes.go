package agent

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Type represents a specific type of an agent Config.
// Config's with this type can create Agents of the corresponding type.
type Type string

const (
	// DQN is deep Q-learning with a Huber loss and a target network
	DQN Type = "DQN"

	// EQRC is expected QC learning with a gradient correction head
	EQRC Type = "EQRC"
)

// Registered types with the package. Once a Type has been registered
// a Config with that type can be created.
//
// No Type's are registered with this package upon initialization.
// Each separate package is in charge of registering its Type with
// the package separately to avoid circular imports.
var (
	registeredTypes   = make(map[Type]reflect.Type)
	registeredTypesMu sync.RWMutex
)

// ErrUnknownType is returned when creating a Config of a Type which
// has not been registered
var ErrUnknownType = errors.New("unknown agent type")

// Register registers an agent's Type with a concrete Config type so
// that Configs of type agentType can be created from parameter maps.
// Register panics if the Type is registered twice.
func Register(agentType Type, config Config) {
	registeredTypesMu.Lock()
	defer registeredTypesMu.Unlock()

	if _, ok := registeredTypes[agentType]; ok {
		panic(fmt.Sprintf("register: type %v already registered", agentType))
	}

	ty := reflect.TypeOf(config)
	if ty.Kind() == reflect.Ptr {
		ty = ty.Elem()
	}
	registeredTypes[agentType] = ty
}

// Registered returns the registered agent Types
func Registered() []Type {
	registeredTypesMu.RLock()
	defer registeredTypesMu.RUnlock()

	types := make([]Type, 0, len(registeredTypes))
	for t := range registeredTypes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// NewConfig creates a Config of Type t from a map of hyperparameters.
// Defaults are applied before decoding, and the decoded Config is
// validated.
func NewConfig(t Type, params map[string]interface{}) (Config, error) {
	registeredTypesMu.RLock()
	ty, ok := registeredTypes[t]
	registeredTypesMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "newConfig: %v", t)
	}

	ptr := reflect.New(ty)
	if d, ok := ptr.Interface().(Defaulter); ok {
		d.SetDefaults()
	}
	if r, ok := ptr.Interface().(Requirer); ok {
		if keys := missing(params, r.Required()); len(keys) > 0 {
			return nil, fmt.Errorf("newConfig: missing required "+
				"hyperparameters %v for agent %v", keys, t)
		}
	}

	if err := Decode(params, ptr.Interface()); err != nil {
		return nil, errors.Wrapf(err, "newConfig: %v", t)
	}

	config := ptr.Elem().Interface().(Config)
	if err := config.Validate(); err != nil {
		return nil, errors.Wrapf(err, "newConfig: %v", t)
	}
	return config, nil
}

// TypedConfig wraps a Config so that it can be JSON unmarshalled
// from a type name and a map of hyperparameters:
//
//	{"type": "DQN", "params": {"epsilon": 0.1, ...}}
type TypedConfig struct {
	Type
	Config
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (t *TypedConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   Type                   `json:"type"`
		Params map[string]interface{} `json:"params"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	config, err := NewConfig(raw.Type, raw.Params)
	if err != nil {
		return err
	}

	t.Type = raw.Type
	t.Config = config
	return nil
}
