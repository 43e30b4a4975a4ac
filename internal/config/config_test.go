package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "ardice.yaml", `
server:
  listen_addr: 0.0.0.0:9000
  quic_addr: 0.0.0.0:9001
  write_timeout: 3s
table:
  roll_duration: 0.75
  roll_on_place: false
  roll_seed: demo
log:
  level: debug
`)

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	assert.Equal(t, "0.0.0.0:9001", cfg.Server.QUICAddr)
	assert.Equal(t, 3*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 0.75, cfg.Table.RollDuration)
	assert.False(t, cfg.Table.RollOnPlace)
	assert.Equal(t, "demo", cfg.Table.RollSeed)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched keys keep their defaults
	assert.Equal(t, 0.05, cfg.Table.DefaultHalfHeight)
	assert.Equal(t, 1000, cfg.Server.MaxTables)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeFile(t, "ardice.yaml", "server:\n  listen_addr: 0.0.0.0:9000\n")
	t.Setenv("ARDICE_LISTEN_ADDR", "127.0.0.1:7000")
	t.Setenv("ARDICE_MAX_OBJECTS", "12")
	t.Setenv("ARDICE_ROLL_ON_PLACE", "false")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.ListenAddr)
	assert.Equal(t, 12, cfg.Table.MaxObjects)
	assert.False(t, cfg.Table.RollOnPlace)
}

func TestDotEnvFileIsRead(t *testing.T) {
	env := writeFile(t, "test.env", "ARDICE_ROLL_SEED=from-dotenv\n")
	t.Setenv("ARDICE_ROLL_SEED", "")
	// godotenv never overrides variables that are already set, so clear it first.
	require.NoError(t, os.Unsetenv("ARDICE_ROLL_SEED"))

	cfg, err := Load("", env)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Table.RollSeed)
	require.NoError(t, os.Unsetenv("ARDICE_ROLL_SEED"))
}

func TestInvalidEnvValue(t *testing.T) {
	t.Setenv("ARDICE_MAX_TABLES", "lots")

	_, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Table.RollDuration = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = Default()
	cfg.Server.ListenAddr = " "
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = Default()
	cfg.Server.SweepInterval = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	cfg.Server.TableIdleTimeout = 0
	assert.NoError(t, cfg.Validate())

	assert.NoError(t, Default().Validate())
}

func TestIdleTimeoutFromEnv(t *testing.T) {
	t.Setenv("ARDICE_TABLE_IDLE_TIMEOUT", "90s")

	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Server.TableIdleTimeout)

	t.Setenv("ARDICE_TABLE_IDLE_TIMEOUT", "soon")
	_, err = Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
