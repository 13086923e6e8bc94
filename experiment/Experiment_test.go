package experiment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/qrclearn/agent"
	_ "github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/deepq"
	_ "github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/eqrc"
	"github.com/samuelfneumann/qrclearn/agent/nonlinear/discrete/valuebased"
	"github.com/samuelfneumann/qrclearn/collector"
	"github.com/samuelfneumann/qrclearn/environment/envconfig"
	"github.com/samuelfneumann/qrclearn/experiment/tracker"
	"github.com/stretchr/testify/require"
)

const yamlConfig = `
max_steps: 60
seed: 7
environment:
  environment: Cartpole
  episode_cutoff: 20
  discount: 0.99
agent:
  type: DQN
  params:
    epsilon: 0.1
    buffer_size: 32
    batch: 4
    target_refresh: 8
    optimizer:
      alpha: 0.001
    representation:
      hidden: [8]
      activations: [relu]
      init:
        type: GlorotU
        config:
          gain: 1.0
checkpoint:
  every: 20
`

const jsonConfig = `{
	"max_steps": 30,
	"environment": {"environment": "Cartpole", "discount": 1.0},
	"agent": {
		"type": "EQRC",
		"params": {
			"epsilon": 0.1,
			"buffer_size": 16,
			"batch": 2,
			"beta": 0.5,
			"optimizer": {"alpha": 0.001}
		}
	}
}`

func writeConfig(t *testing.T, name, content string) string {
	filename := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))
	return filename
}

func TestLoadYAML(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "exp.yaml", yamlConfig))
	require.NoError(t, err)

	require.Equal(t, OnlineExp, c.Type)
	require.Equal(t, 60, c.MaxSteps)
	require.Equal(t, uint64(7), c.Seed)
	require.Equal(t, envconfig.Cartpole, c.EnvConf.Environment)
	require.Equal(t, agent.DQN, c.AgentConf.Type)
	require.Equal(t, 20, c.Checkpoint.Every)

	// Nested YAML maps are converted for the agent configuration
	representation, ok := c.AgentConf.Params["representation"].(map[string]interface{})
	require.True(t, ok)
	_, ok = representation["init"].(map[string]interface{})
	require.True(t, ok)
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "exp.toml", yamlConfig))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "exp.yaml", "max_steps: 0\n"))
	require.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNormalise(t *testing.T) {
	in := map[interface{}]interface{}{
		"a": []interface{}{map[interface{}]interface{}{"b": 1}},
	}
	out, err := normalise(in)
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"a": []interface{}{map[string]interface{}{"b": 1}},
	}, out)

	_, err = normalise(map[interface{}]interface{}{1: "a"})
	require.Error(t, err)
}

func TestRunOnline(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "exp.yaml", yamlConfig))
	require.NoError(t, err)
	c.Checkpoint.Dir = t.TempDir()

	returns := tracker.NewReturn(filepath.Join(t.TempDir(), "returns.bin"))
	window := collector.NewWindow(1000)
	exp, err := c.CreateExp(window, returns)
	require.NoError(t, err)
	defer exp.Close()

	progress := &counter{}
	exp.SetProgress(progress)

	require.NoError(t, exp.Run())
	require.Equal(t, 60, exp.Steps())
	require.Equal(t, 60, progress.n)

	// Episodes are at most 20 steps long and earn +1 per step
	require.GreaterOrEqual(t, exp.Episodes(), 3)
	for _, r := range returns.Returns() {
		require.LessOrEqual(t, r, 20.0)
		require.Greater(t, r, 0.0)
	}
	require.NoError(t, exp.Save())

	_, ok := window.Mean(valuebased.LossMetric)
	require.True(t, ok)

	for _, name := range []string{"weights1.bin", "weights2.bin",
		"weights3.bin"} {
		require.FileExists(t, filepath.Join(c.Checkpoint.Dir, name))
	}
}

func TestRunOnlineJSON(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "exp.json", jsonConfig))
	require.NoError(t, err)
	require.Equal(t, agent.EQRC, c.AgentConf.Type)

	exp, err := c.CreateExp(collector.Null{})
	require.NoError(t, err)
	defer exp.Close()

	require.NoError(t, exp.Run())
	require.Equal(t, 30, exp.Steps())
}

func TestCreateExpUnknownAgent(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "exp.json", jsonConfig))
	require.NoError(t, err)

	c.AgentConf.Type = "SARSA"
	_, err = c.CreateExp(collector.Null{})
	require.Error(t, err)
}

type counter struct{ n int }

func (c *counter) Increment() { c.n++ }

func TestExampleConfigs(t *testing.T) {
	filenames, err := filepath.Glob(filepath.Join("..", "examples", "*"))
	require.NoError(t, err)
	require.NotEmpty(t, filenames)

	for _, filename := range filenames {
		c, err := LoadConfig(filename)
		require.NoError(t, err, filename)

		_, err = agent.NewConfig(c.AgentConf.Type, c.AgentConf.Params)
		require.NoError(t, err, filename)
	}
}
