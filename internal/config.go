package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lattice/internal/logstream"
	"github.com/starford/lattice/internal/storage"
	"github.com/starford/lattice/internal/tree"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Storage   StorageConfig     `yaml:"storage"`
	Auth      AuthConfig        `yaml:"auth"`
	Tree      TreeConfig        `yaml:"tree"`
	Persist   PersistConfig     `yaml:"persist"`
	Import    ImportConfig      `yaml:"import"`
	LogStream LogStreamConfig   `yaml:"logstream"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []validation.Validatable{
		&c.App, &c.Storage, &c.Auth, &c.Tree, &c.Persist, &c.Import, &c.LogStream,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects and configures the snapshot store.
type StorageConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = storage.DriverSQLite
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(storage.DriverSQLite, storage.DriverPostgres)),
	); err != nil {
		return err
	}
	if c.Driver == storage.DriverPostgres {
		return c.Postgres.Validate()
	}
	return c.SQLite.Validate()
}

// DSN returns the connection string for the selected driver.
func (c *StorageConfig) DSN() string {
	if c.Driver == storage.DriverPostgres {
		return c.Postgres.DSN
	}
	return c.SQLite.Path
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PostgresConfig holds the PostgreSQL connection string.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// Validate validates the PostgreSQL configuration.
func (c *PostgresConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DSN, validation.Required),
	)
}

// TreeConfig tunes the tree engine.
type TreeConfig struct {
	// Policy is "restrictive" (before/after only among siblings) or
	// "unrestricted".
	Policy       string `yaml:"policy"`
	Placeholders bool   `yaml:"placeholders"`
	HistoryLimit int    `yaml:"history_limit"`
}

// Validate validates the tree configuration.
func (c *TreeConfig) Validate() error {
	if c.Policy == "" {
		c.Policy = string(tree.Restrictive)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Policy, validation.In(string(tree.Restrictive), string(tree.Unrestricted))),
		validation.Field(&c.HistoryLimit, validation.Min(0), validation.Max(10000)),
	)
}

// PersistConfig controls background flushing.
type PersistConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Validate validates the persist configuration.
func (c *PersistConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.FlushInterval, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

// ImportConfig names the directory watched for backend exports. An empty
// Dir disables importing.
type ImportConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the import configuration.
func (c *ImportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Length(0, 1024)),
	)
}

// LogStreamConfig holds the reconnect policy of the log streaming client.
type LogStreamConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Increment  time.Duration `yaml:"increment"`
	Max        time.Duration `yaml:"max"`
	MaxRetries int           `yaml:"max_retries"`
}

// Validate validates the log streaming configuration.
func (c *LogStreamConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Initial, validation.Required),
		validation.Field(&c.Increment, validation.Min(time.Duration(0))),
		validation.Field(&c.Max, validation.Required, validation.Min(c.Initial)),
		validation.Field(&c.MaxRetries, validation.Min(0)),
	)
}

// Backoff converts the configuration into a reconnect policy.
func (c *LogStreamConfig) Backoff() logstream.Backoff {
	return logstream.Backoff{Initial: c.Initial, Increment: c.Increment, Max: c.Max, MaxRetries: c.MaxRetries}
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Driver: storage.DriverSQLite,
			SQLite: SQLiteConfig{
				Path: "./lattice.db",
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Tree: TreeConfig{
			Policy:       string(tree.Restrictive),
			HistoryLimit: 100,
		},
		Persist: PersistConfig{
			FlushInterval: 2 * time.Second,
		},
		Import: ImportConfig{
			Dir: "./imports",
		},
		LogStream: LogStreamConfig{
			Initial:    time.Second,
			Increment:  time.Second,
			Max:        10 * time.Second,
			MaxRetries: 3,
		},
	}
}
