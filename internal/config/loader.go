package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NOTES_SERVER_PORT.
const EnvPrefix = "NOTES"

// LegacyDataDirEnv is the plain data root variable, honoured after
// NOTES_DATA_DIR.
const LegacyDataDirEnv = "DATA_DIR"

// NewViper returns a viper instance carrying the built-in defaults and the
// environment bindings.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("temp_dir", d.TempDir)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.sqlite.path", d.Database.SQLite.Path)
	v.SetDefault("database.postgres.dsn", d.Database.Postgres.DSN)
	v.SetDefault("database.postgres.host", d.Database.Postgres.Host)
	v.SetDefault("database.postgres.port", d.Database.Postgres.Port)
	v.SetDefault("database.postgres.database", d.Database.Postgres.Database)
	v.SetDefault("database.postgres.user", d.Database.Postgres.User)
	v.SetDefault("database.postgres.password", d.Database.Postgres.Password)
	v.SetDefault("database.postgres.ssl_mode", d.Database.Postgres.SSLMode)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_import_bytes", d.Server.MaxImportBytes)
	v.SetDefault("lock.mode", d.Lock.Mode)
	v.SetDefault("lock.timeout", d.Lock.Timeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("export.exclude", d.Export.Exclude)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("data_dir", EnvPrefix+"_DATA_DIR", LegacyDataDirEnv)

	return v
}

// Load reads the config file (configFile, or notes.yaml from the search
// paths when empty), applies environment overrides and validates the result.
// A missing notes.yaml is not an error; a missing explicit file is.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/pietrosoft-notes")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
