package agent

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/samuelfneumann/qrclearn/collector"
	"github.com/samuelfneumann/qrclearn/initwfn"
	"github.com/samuelfneumann/qrclearn/network"
)

// Config represents a configuration for creating an agent
type Config interface {
	// CreateAgent creates the agent that the config describes for
	// observations of the given number of features and the given
	// number of discrete actions
	CreateAgent(features, actions int, seed uint64,
		c collector.Collector) (Agent, error)

	// Validate returns an error describing whether or not the
	// configuration is valid or not.
	Validate() error

	// Type returns the Type of agent the Config creates
	Type() Type
}

// Defaulter is a Config with default hyperparameters. Defaults are
// set before a parameter map is decoded into the Config.
type Defaulter interface {
	Config
	SetDefaults()
}

// Requirer is a Config with hyperparameters which have no default and
// must be present in a parameter map
type Requirer interface {
	Config
	Required() []string
}

// Decode decodes params into out, a pointer to a struct with
// mapstructure tags. Activations may be given by name and weight
// initializers as {"type": ..., "config": ...} maps. Unknown keys are
// an error.
func Decode(params map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			activationHook,
			initWFnHook,
		),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "decode")
	}

	if err := decoder.Decode(params); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}

var (
	activationType = reflect.TypeOf(network.Activation{})
	initWFnType    = reflect.TypeOf(initwfn.InitWFn{})
)

// activationHook decodes activation names into *network.Activation
func activationHook(from, to reflect.Type, data interface{}) (interface{},
	error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	if to != activationType && to != reflect.PtrTo(activationType) {
		return data, nil
	}
	return network.ParseActivation(data.(string))
}

// initWFnHook decodes maps into *initwfn.InitWFn by way of their JSON
// representation
func initWFnHook(from, to reflect.Type, data interface{}) (interface{},
	error) {
	if from.Kind() != reflect.Map {
		return data, nil
	}
	if to != initWFnType && to != reflect.PtrTo(initWFnType) {
		return data, nil
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("initWFnHook: %v", err)
	}

	init := &initwfn.InitWFn{}
	if err := json.Unmarshal(encoded, init); err != nil {
		return nil, fmt.Errorf("initWFnHook: %v", err)
	}
	return init, nil
}

// missing returns the keys which are absent from params. Keys are
// matched case insensitively, as mapstructure matches them.
func missing(params map[string]interface{}, keys []string) []string {
	var out []string
	for _, key := range keys {
		found := false
		for k := range params {
			if strings.EqualFold(k, key) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
