package agent

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/qrclearn/collector"
	"github.com/samuelfneumann/qrclearn/initwfn"
	"github.com/samuelfneumann/qrclearn/network"
	"github.com/stretchr/testify/require"
)

const fake Type = "Fake"

type fakeConfig struct {
	Rate        float64               `mapstructure:"rate"`
	Steps       int                   `mapstructure:"steps"`
	Activations []*network.Activation `mapstructure:"activations"`
	Init        *initwfn.InitWFn      `mapstructure:"init"`
}

func (f *fakeConfig) SetDefaults()       { f.Steps = 3 }
func (f fakeConfig) Required() []string { return []string{"rate"} }
func (f fakeConfig) Type() Type         { return fake }

func (f fakeConfig) Validate() error {
	if f.Rate <= 0 {
		return fmt.Errorf("validate: rate must be positive")
	}
	return nil
}

func (f fakeConfig) CreateAgent(int, int, uint64, collector.Collector) (Agent,
	error) {
	return nil, fmt.Errorf("createAgent: not implemented")
}

func init() {
	Register(fake, fakeConfig{})
}

func TestNewConfig(t *testing.T) {
	c, err := NewConfig(fake, map[string]interface{}{
		"rate":        "0.5",
		"activations": []interface{}{"relu", "tanh"},
		"init": map[string]interface{}{
			"type":   "Constant",
			"config": map[string]interface{}{"value": 0.25},
		},
	})
	require.NoError(t, err)

	f := c.(fakeConfig)
	require.Equal(t, 0.5, f.Rate)
	require.Equal(t, 3, f.Steps)
	require.Len(t, f.Activations, 2)
	require.NotNil(t, f.Init)
	require.Equal(t, initwfn.Constant, f.Init.Type)
}

func TestNewConfigErrors(t *testing.T) {
	_, err := NewConfig("Missing", nil)
	require.True(t, errors.Is(err, ErrUnknownType))

	_, err = NewConfig(fake, map[string]interface{}{"steps": 2})
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate")

	_, err = NewConfig(fake, map[string]interface{}{"rate": 1, "bogus": 2})
	require.Error(t, err)

	_, err = NewConfig(fake, map[string]interface{}{"rate": -1})
	require.Error(t, err)

	_, err = NewConfig(fake, map[string]interface{}{
		"rate":        1,
		"activations": []interface{}{"softsign"},
	})
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	require.Contains(t, Registered(), fake)
	require.Panics(t, func() { Register(fake, &fakeConfig{}) })
}

func TestTypedConfig(t *testing.T) {
	var tc TypedConfig
	data := []byte(`{"type": "Fake", "params": {"RATE": 2, "steps": 7}}`)
	require.NoError(t, json.Unmarshal(data, &tc))

	require.Equal(t, fake, tc.Type)
	require.Equal(t, fake, tc.Config.Type())
	require.Equal(t, 7, tc.Config.(fakeConfig).Steps)

	data = []byte(`{"type": "Fake", "params": {}}`)
	require.Error(t, json.Unmarshal(data, &tc))
}
