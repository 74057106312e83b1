// Package config provides configuration for the notes workspace.
//
// Configuration is read once at startup (defaults, then notes.yaml, then
// NOTES_* environment variables) into an immutable *Config.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db/driver"
	noteserrors "github.com/pietrospam/pietrosoft-notes-sub000/internal/errors"
	"github.com/pietrospam/pietrosoft-notes-sub000/internal/lock"
)

// ConfigFileName is the base name of the optional config file.
const ConfigFileName = "notes"

// Config is the effective configuration.
type Config struct {
	// DataDir is the data root holding the non-relational workspace files.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// TempDir is the base for lock files and the permission fallback root.
	TempDir string `mapstructure:"temp_dir" yaml:"temp_dir"`

	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Lock     LockConfig     `mapstructure:"lock" yaml:"lock"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Export   ExportConfig   `mapstructure:"export" yaml:"export"`
}

// DatabaseConfig defines database connection settings.
type DatabaseConfig struct {
	// Driver is the database type: "sqlite" or "postgres"
	Driver string `mapstructure:"driver" yaml:"driver"`

	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// SQLiteConfig defines SQLite-specific settings.
type SQLiteConfig struct {
	// Path of the database file. Keep it outside the data root.
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig defines PostgreSQL-specific settings.
// DSN, when set, wins over the individual fields.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn,omitempty"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"` // Use env NOTES_DATABASE_POSTGRES_PASSWORD
	SSLMode  string `mapstructure:"ssl_mode" yaml:"ssl_mode"`
}

// ServerConfig defines HTTP server settings.
type ServerConfig struct {
	Host           string `mapstructure:"host" yaml:"host"`
	Port           int    `mapstructure:"port" yaml:"port"`
	MaxImportBytes int64  `mapstructure:"max_import_bytes" yaml:"max_import_bytes"`
}

// LockConfig defines workspace locking.
type LockConfig struct {
	Mode    string        `mapstructure:"mode" yaml:"mode"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LogConfig defines logging output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ExportConfig defines archive export settings.
type ExportConfig struct {
	// Exclude lists doublestar patterns, relative to the data root, that
	// are left out of exported archives.
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

// Log formats.
const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultMaxImportBytes caps uploaded archives at 512 MiB.
const DefaultMaxImportBytes = 512 << 20

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: "./data",
		TempDir: os.TempDir(),
		Database: DatabaseConfig{
			Driver: string(driver.DialectSQLite),
			SQLite: SQLiteConfig{Path: "./notes.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "notes",
				User:     "notes",
				SSLMode:  "disable",
			},
		},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			MaxImportBytes: DefaultMaxImportBytes,
		},
		Lock: LockConfig{
			Mode:    string(lock.ModeFlock),
			Timeout: lock.DefaultTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatAuto,
		},
		Export: ExportConfig{
			Exclude: []string{"**/.DS_Store"},
		},
	}
}

// Dialect returns the configured database dialect.
func (c *Config) Dialect() (driver.Dialect, error) {
	return driver.ParseDialect(c.Database.Driver)
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	d, err := c.Dialect()
	if err != nil || d == driver.DialectSQLite {
		return c.Database.SQLite.Path
	}

	pg := c.Database.Postgres
	if pg.DSN != "" {
		return pg.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(pg.User, pg.Password),
		Host:   pg.Host + ":" + strconv.Itoa(pg.Port),
		Path:   "/" + pg.Database,
	}
	if pg.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(pg.SSLMode)
	}
	return u.String()
}

// LockMode returns the parsed lock mode.
func (c *Config) LockMode() (lock.Mode, error) {
	return lock.ParseMode(c.Lock.Mode)
}

// LogLevel returns the slog level for Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return lvl, nil
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks the configuration and returns a CONFIG_INVALID error
// naming the first bad field.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return noteserrors.ErrConfigInvalid("data_dir", "must not be empty")
	}
	if strings.TrimSpace(c.TempDir) == "" {
		return noteserrors.ErrConfigInvalid("temp_dir", "must not be empty")
	}

	d, err := c.Dialect()
	if err != nil {
		return noteserrors.ErrConfigInvalid("database.driver", err.Error())
	}
	switch d {
	case driver.DialectSQLite:
		if c.Database.SQLite.Path == "" {
			return noteserrors.ErrConfigInvalid("database.sqlite.path", "must not be empty")
		}
		if c.Database.SQLite.Path != driver.MemoryDSN && isWithin(c.DataDir, c.Database.SQLite.Path) {
			return noteserrors.ErrConfigInvalid("database.sqlite.path", "must be outside data_dir; imports replace that directory")
		}
	case driver.DialectPostgres:
		pg := c.Database.Postgres
		if pg.DSN == "" && (pg.Host == "" || pg.Database == "") {
			return noteserrors.ErrConfigInvalid("database.postgres", "set dsn or host and database")
		}
		if pg.DSN == "" && (pg.Port <= 0 || pg.Port > 65535) {
			return noteserrors.ErrConfigInvalid("database.postgres.port", fmt.Sprintf("%d is not a valid port", pg.Port))
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return noteserrors.ErrConfigInvalid("server.port", fmt.Sprintf("%d is not a valid port", c.Server.Port))
	}
	if c.Server.MaxImportBytes <= 0 {
		return noteserrors.ErrConfigInvalid("server.max_import_bytes", "must be positive")
	}

	if _, err := c.LockMode(); err != nil {
		return noteserrors.ErrConfigInvalid("lock.mode", err.Error())
	}
	if c.Lock.Timeout <= 0 {
		return noteserrors.ErrConfigInvalid("lock.timeout", "must be positive")
	}

	if _, err := c.LogLevel(); err != nil {
		return noteserrors.ErrConfigInvalid("log.level", err.Error())
	}
	switch c.Log.Format {
	case LogFormatAuto, LogFormatText, LogFormatJSON:
	default:
		return noteserrors.ErrConfigInvalid("log.format", fmt.Sprintf("%q is not one of auto, text, json", c.Log.Format))
	}

	for _, p := range c.Export.Exclude {
		if !doublestar.ValidatePattern(p) {
			return noteserrors.ErrConfigInvalid("export.exclude", fmt.Sprintf("bad pattern %q", p))
		}
	}
	return nil
}

// isWithin reports whether path lies inside dir.
func isWithin(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
