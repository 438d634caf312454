package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/annel0/burrow/internal/action"
	"github.com/annel0/burrow/internal/authority"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "burrow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutPath(t *testing.T) {
	t.Setenv("BURROW_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	mode, err := cfg.Session.GateMode()
	require.NoError(t, err)
	assert.Equal(t, authority.ModeOffline, mode)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 50, cfg.Field.Priorities["farm_ripe"].Baseline)
}

func TestLoad_FromEnvOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
session:
  mode: client
  node_id: kitchen-pc
storage:
  backend: badger
  path: /tmp/burrow
field:
  tick: 100ms
  durations:
    plant: 5s
  priorities:
    farm_ripe:
      baseline: 70
      critical: 120
      threshold: 1
cues:
  - kind: plant
    role: farmer
    cue: sfx_plant
`)
	t.Setenv("BURROW_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)

	mode, err := cfg.Session.GateMode()
	require.NoError(t, err)
	assert.Equal(t, authority.ModeClient, mode)
	assert.Equal(t, "kitchen-pc", cfg.Session.NodeID)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, 100*time.Millisecond, cfg.Field.Tick)

	// Незаданные ключи карт остаются из Defaults
	durations := cfg.Field.DurationFunc()
	assert.Equal(t, 5*time.Second, durations(action.KindPlant))
	assert.Equal(t, 3*time.Second, durations(action.KindWater))
	assert.Equal(t, cfg.Field.DefaultDuration, durations(action.KindVictory))

	assert.Equal(t, 70, cfg.Field.Priorities["farm_ripe"].Baseline)
	assert.Equal(t, 10, cfg.Field.Priorities["farm_empty"].Baseline)

	table, err := cfg.CueTable()
	require.NoError(t, err)
	cue, ok := table.Lookup(action.KindPlant, action.RoleFarmer)
	assert.True(t, ok)
	assert.Equal(t, action.Cue("sfx_plant"), cue)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"mode":     "session:\n  mode: spectator\n",
		"backend":  "storage:\n  backend: mysql\n",
		"tick":     "field:\n  tick: 0s\n",
		"duration": "field:\n  durations:\n    fly: 1s\n",
		"priority": "field:\n  priorities:\n    farm_flooded:\n      baseline: 1\n",
		"threshold": "field:\n  priorities:\n    farm_ripe:\n      baseline: 50\n      critical: 100\n",
		"cue":      "cues:\n  - kind: plant\n    role: cat\n    cue: meow\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestServerPorts_EnvFallback(t *testing.T) {
	t.Setenv("BURROW_REST_PORT", "9090")
	t.Setenv("BURROW_METRICS_PORT", "not-a-port")

	var s ServerConfig
	assert.Equal(t, 9090, s.GetRESTPort())
	assert.Equal(t, 2112, s.GetMetricsPort())

	s.RESTPort = 7000
	assert.Equal(t, 7000, s.GetRESTPort())
}
