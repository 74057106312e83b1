package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/config"
)

// newConfigCmd creates the config command with subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View the effective configuration",
		Long: `View the effective configuration.

Configuration is loaded with this priority:
  1. Environment variables (NOTES_*, and DATA_DIR for the data root)
  2. The config file (--config, or notes.yaml in . or ~/.config/pietrosoft-notes)
  3. Built-in defaults

Secrets are redacted.

Examples:
  notes config show
  notes config get database.driver`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(redacted(cfg))
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = out(cmd).Write(data)
			return err
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value, e.g. server.port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := lookupKey(redacted(cfg), args[0])
			if err != nil {
				return err
			}
			if s, ok := value.(string); ok {
				printf(cmd, "%s\n", s)
				return nil
			}
			data, err := yaml.Marshal(value)
			if err != nil {
				return fmt.Errorf("encode value: %w", err)
			}
			_, err = out(cmd).Write(data)
			return err
		},
	}
}

// redacted returns a copy of c with credentials masked.
func redacted(c *config.Config) *config.Config {
	cp := *c
	cp.Export.Exclude = append([]string(nil), c.Export.Exclude...)
	if cp.Database.Postgres.Password != "" {
		cp.Database.Postgres.Password = "xxxxx"
	}
	if dsn := cp.Database.Postgres.DSN; dsn != "" {
		if u, err := url.Parse(dsn); err == nil && u.User != nil {
			cp.Database.Postgres.DSN = u.Redacted()
		}
	}
	return &cp
}

// lookupKey resolves a dotted key against the YAML form of c.
func lookupKey(c *config.Config, key string) (any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var node any
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	for _, part := range strings.Split(key, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unknown config key %q", key)
		}
		if node, ok = m[part]; !ok {
			return nil, fmt.Errorf("unknown config key %q", key)
		}
	}
	return node, nil
}
