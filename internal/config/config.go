// Package config loads server settings from a YAML file, a .env file and
// ARDICE_* environment variables, in that order of increasing precedence.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server ServerConfig `yaml:"server"`
	Table  TableConfig  `yaml:"table"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	// ListenAddr serves the HTTP API and the websocket endpoint.
	ListenAddr string `yaml:"listen_addr"`
	// QUICAddr enables the QUIC listener when set.
	QUICAddr        string        `yaml:"quic_addr"`
	MaxTables       int           `yaml:"max_tables"`
	OutboundBuffer  int           `yaml:"outbound_buffer"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Production      bool          `yaml:"production"`
	// TableIdleTimeout closes tables with no subscribers after this long
	// without events. Zero keeps tables open until shutdown.
	TableIdleTimeout time.Duration `yaml:"table_idle_timeout"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
}

type TableConfig struct {
	// RollDuration is the tumble animation length in seconds.
	RollDuration float64 `yaml:"roll_duration"`
	// RollOnPlace rolls a die as soon as it is placed.
	RollOnPlace bool `yaml:"roll_on_place"`
	// DefaultHalfHeight is used when a placement does not carry the model's half-height.
	DefaultHalfHeight float64 `yaml:"default_half_height"`
	// MaxObjects caps dice per table; zero disables the cap.
	MaxObjects int `yaml:"max_objects"`
	// RollSeed makes rolls reproducible when set.
	RollSeed      string        `yaml:"roll_seed"`
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:       "127.0.0.1:8080",
			MaxTables:        1000,
			OutboundBuffer:   256,
			WriteTimeout:     10 * time.Second,
			ShutdownTimeout:  5 * time.Second,
			TableIdleTimeout: 30 * time.Minute,
			SweepInterval:    time.Minute,
		},
		Table: TableConfig{
			RollDuration:      0.5,
			RollOnPlace:       true,
			DefaultHalfHeight: 0.05,
			SubmitTimeout:     5 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when empty)
// and the environment. envFiles default to ".env"; missing env files are ignored.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "load env file %s", f)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.ListenAddr = getEnv("ARDICE_LISTEN_ADDR", c.Server.ListenAddr)
	c.Server.QUICAddr = getEnv("ARDICE_QUIC_ADDR", c.Server.QUICAddr)
	c.Log.Level = getEnv("ARDICE_LOG_LEVEL", c.Log.Level)
	c.Table.RollSeed = getEnv("ARDICE_ROLL_SEED", c.Table.RollSeed)

	var err error
	if c.Server.MaxTables, err = getEnvInt("ARDICE_MAX_TABLES", c.Server.MaxTables); err != nil {
		return err
	}
	if c.Table.MaxObjects, err = getEnvInt("ARDICE_MAX_OBJECTS", c.Table.MaxObjects); err != nil {
		return err
	}
	if c.Table.RollDuration, err = getEnvFloat("ARDICE_ROLL_DURATION", c.Table.RollDuration); err != nil {
		return err
	}
	if c.Table.DefaultHalfHeight, err = getEnvFloat("ARDICE_DEFAULT_HALF_HEIGHT", c.Table.DefaultHalfHeight); err != nil {
		return err
	}
	if c.Table.RollOnPlace, err = getEnvBool("ARDICE_ROLL_ON_PLACE", c.Table.RollOnPlace); err != nil {
		return err
	}
	if c.Server.Production, err = getEnvBool("ARDICE_PRODUCTION", c.Server.Production); err != nil {
		return err
	}
	if c.Server.TableIdleTimeout, err = getEnvDuration("ARDICE_TABLE_IDLE_TIMEOUT", c.Server.TableIdleTimeout); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Server.ListenAddr) == "":
		return errors.Wrap(ErrInvalidConfig, "server.listen_addr is empty")
	case c.Server.MaxTables <= 0:
		return errors.Wrap(ErrInvalidConfig, "server.max_tables must be positive")
	case c.Server.OutboundBuffer <= 0:
		return errors.Wrap(ErrInvalidConfig, "server.outbound_buffer must be positive")
	case c.Server.WriteTimeout <= 0, c.Server.ShutdownTimeout <= 0:
		return errors.Wrap(ErrInvalidConfig, "server timeouts must be positive")
	case c.Server.TableIdleTimeout > 0 && c.Server.SweepInterval <= 0:
		return errors.Wrap(ErrInvalidConfig, "server.sweep_interval must be positive when table_idle_timeout is set")
	case c.Table.RollDuration <= 0:
		return errors.Wrap(ErrInvalidConfig, "table.roll_duration must be positive")
	case c.Table.DefaultHalfHeight < 0:
		return errors.Wrap(ErrInvalidConfig, "table.default_half_height must not be negative")
	case c.Table.MaxObjects < 0:
		return errors.Wrap(ErrInvalidConfig, "table.max_objects must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfig, "%s=%q is not an integer", key, v)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfig, "%s=%q is not a number", key, v)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(ErrInvalidConfig, "%s=%q is not a boolean", key, v)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfig, "%s=%q is not a duration", key, v)
	}
	return d, nil
}
