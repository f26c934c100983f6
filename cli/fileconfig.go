package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// defaultConfigName is the default name of the configuration file
	// expected under the user's home directory.
	defaultConfigName = ".drift.toml"

	// envConfigPathKey is the environment variable key for overriding
	// the config file path.
	envConfigPathKey = "DRIFT_CONFIG_PATH"

	// envDatabaseURLKey overrides the configured database DSN.
	envDatabaseURLKey = "DATABASE_URL"

	envPostgresUserKey     = "POSTGRES_USER"
	envPostgresPasswordKey = "POSTGRES_PASSWORD"
	envPostgresHostKey     = "POSTGRES_HOST"
	envPostgresPortKey     = "POSTGRES_PORT"
	envPostgresDBKey       = "POSTGRES_DB"
)

type ConfigError struct {
	Opt string
	Err error
}

func (e *ConfigError) Error() string {
	return "config: " + strings.Join([]string{e.Opt, e.Err.Error()}, ":")
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FileConfig represents the full structure of the configuration file.
//
//nolint:tagalign
type FileConfig struct {
	Database   DatabaseConfig   `toml:"database" json:"database"`
	Migrations MigrationsConfig `toml:"migrations" json:"migrations"`
	Hooks      *HooksConfig     `toml:"hooks" comment:"Optional lifecycle hooks for migration events" json:"hooks"`

	path string // path to the loaded config file. Empty if no config file was used.
}

func newFileConfig() *FileConfig {
	return &FileConfig{
		Hooks: &HooksConfig{},
	}
}

// DatabaseConfig holds target-database configuration.
//
//nolint:tagalign,tagliatelle
type DatabaseConfig struct {
	Driver          string `toml:"driver,commented" comment:"Database driver: sqlite or postgres (default: inferred from the dsn)" json:"driver,omitempty"`
	DSN             string `toml:"dsn,commented" comment:"Database DSN: a postgres:// URL or an sqlite file path" json:"dsn,omitempty"`
	ConnectRetries  int    `toml:"connect_retries,commented" comment:"How many times to probe the database before giving up (default: 5)" json:"connect_retries,omitempty"`
	ConnectInterval string `toml:"connect_interval,commented" comment:"Fixed delay between connection probes (default: '2s')" json:"connect_interval,omitempty"`

	connectInterval time.Duration // parsed ConnectInterval
}

// MigrationsConfig holds definition-store configuration.
//
//nolint:tagalign
type MigrationsConfig struct {
	Dir string `toml:"dir,commented" comment:"Migration definitions directory (default: './migrations')" json:"dir,omitempty"`
}

// HooksConfig defines optional lifecycle hooks triggered by migration events.
//
//nolint:tagalign,tagliatelle
type HooksConfig struct {
	PostApplyCmd []string `toml:"post_apply_cmd,commented" comment:"Command to run after a successful apply" json:"post_apply_cmd"`
}

// LoadFileConfig loads the config from the given or default path.
func LoadFileConfig(path string) (*FileConfig, error) {
	defaultPath, err := defaultConfigPath()
	if err != nil {
		return nil, err
	}

	configPath := cmpOr(path, defaultPath)

	c, err := parseFileConfig(configPath)
	if err != nil {
		// config file not found at default location; fallback to empty config
		if len(path) == 0 && errors.Is(err, fs.ErrNotExist) { //nolint:revive // clearer with explicit fallback logic
			c = newFileConfig()
		} else {
			return nil, err
		}
	} else {
		c.path = configPath
	}

	return c, c.validate()
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: user home dir: %w", err)
	}

	path := filepath.Join(home, defaultConfigName)
	if p, ok := os.LookupEnv(envConfigPathKey); ok {
		path = p
	}

	return path, nil
}

func parseFileConfig(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: stat file: %w", err)
	}

	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	config := newFileConfig()
	if err := toml.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("config: parse file: %w", err)
	}

	return config, nil
}

func (c *FileConfig) validate() error {
	if c == nil {
		return &ConfigError{Err: errors.New("cannot validate a nil config")}
	}

	switch c.Database.Driver {
	case "", "sqlite", "postgres":
	default:
		return &ConfigError{Opt: "database.driver", Err: fmt.Errorf("unsupported driver %q", c.Database.Driver)}
	}

	if c.Database.ConnectRetries < 0 {
		return &ConfigError{Opt: "database.connect_retries", Err: errors.New("must be zero or a positive integer")}
	}

	if len(c.Database.ConnectInterval) > 0 {
		d, err := time.ParseDuration(c.Database.ConnectInterval)
		if err != nil {
			return &ConfigError{Opt: "database.connect_interval", Err: err}
		}

		if d <= 0 {
			return &ConfigError{Opt: "database.connect_interval", Err: errors.New("must be positive")}
		}

		c.Database.connectInterval = d
	}

	if c.Hooks.PostApplyCmd != nil && len(c.Hooks.PostApplyCmd) == 0 {
		return &ConfigError{Opt: "hooks.post_apply_cmd", Err: errors.New("defined but contains no values")}
	}

	return nil
}

// databaseURLFromEnv resolves a DSN from the environment, mirroring the
// deployment tooling: DATABASE_URL wins; otherwise a PostgreSQL URL is
// assembled from the discrete POSTGRES_* variables when POSTGRES_DB is set.
func databaseURLFromEnv() string {
	if v, ok := os.LookupEnv(envDatabaseURLKey); ok {
		return v
	}

	db, ok := os.LookupEnv(envPostgresDBKey)
	if !ok {
		return ""
	}

	var (
		user = cmpOr(os.Getenv(envPostgresUserKey), "postgres")
		host = cmpOr(os.Getenv(envPostgresHostKey), "localhost")
		port = cmpOr(os.Getenv(envPostgresPortKey), "5432")
	)

	u := &url.URL{
		Scheme: "postgres",
		Host:   host + ":" + port,
		Path:   "/" + db,
		User:   url.User(user),
	}

	if pass, ok := os.LookupEnv(envPostgresPasswordKey); ok {
		u.User = url.UserPassword(user, pass)
	}

	return u.String()
}

// cmpOr returns the first of its arguments that is not equal to the zero
// value. If no argument is non-zero, it returns the zero value.
// It matches the behavior of cmp.Or, which requires a newer Go toolchain.
func cmpOr[T comparable](vals ...T) T {
	var zero T
	for _, val := range vals {
		if val != zero {
			return val
		}
	}
	return zero
}
