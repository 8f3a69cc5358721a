package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15, cfg.Sim.TickIncrementMin)
	assert.Equal(t, 0.5, cfg.Sim.DialogueChance)
	assert.Equal(t, 480, cfg.Sim.CooldownMinutes)
	assert.Equal(t, int64(5), cfg.Database.Permits)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "office.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9000

[sim]
dialogue_chance = 0.25
event_chance = 0.1
`), 0o644))

	t.Setenv("OFFICEVERSE_PORT", "9100")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port) // env wins over file
	assert.Equal(t, 0.25, cfg.Sim.DialogueChance)
	assert.Equal(t, 0.1, cfg.Sim.EventChance)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 15, cfg.Sim.TickIncrementMin) // untouched default
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "office.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[sim]
dialogue_chance = 1.5
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
