package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/tcgbot/am"
	"github.com/teranos/tcgbot/errors"
)

// ConfigCmd inspects the effective configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or validate configuration",
	Long: `Show or validate the tcgbot configuration.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (TCGBOT_* prefix, also read from .env)
3. Project config (./am.toml, searched upwards)
4. User config (~/.tcgbot/am.toml)
5. Default values

Secrets (bluesky.app_password, openrouter.api_key) are never printed.

Examples:
  tcgbot config show                 # TOML
  tcgbot config show --format json
  tcgbot config validate`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	RunE:  runConfigValidate,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	return writeConfig(cmd.OutOrStdout(), redact(cfg), configFormat)
}

// redact returns a copy with secrets blanked, for formats whose struct
// tags would otherwise include them
func redact(cfg *am.Config) *am.Config {
	c := *cfg
	if c.Bluesky.AppPassword != "" {
		c.Bluesky.AppPassword = "********"
	}
	if c.OpenRouter.APIKey != "" {
		c.OpenRouter.APIKey = "********"
	}
	return &c
}

func writeConfig(w io.Writer, cfg *am.Config, format string) error {
	var data []byte
	var err error
	switch format {
	case "json":
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	case "yaml":
		data, err = yaml.Marshal(cfg)
		data = append([]byte("# tcgbot configuration\n"), data...)
	case "toml":
		data, err = toml.Marshal(cfg)
		data = append([]byte("# tcgbot configuration\n"), data...)
	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", format)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to marshal config to %s", format)
	}
	_, err = w.Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	path := am.ActiveConfigPath()
	if path == "" {
		path = "defaults and environment"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration is valid (%s)\n", path)
	return nil
}
