package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/plantlog/internal/config"
	"github.com/conneroisu/plantlog/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect plantlog configuration",
	Long: `Inspect the resolved plantlog configuration.

Examples:
  plantlog config show                      # Resolved configuration as YAML
  plantlog config show --format json        # ... as JSON
  plantlog config validate                  # Validate the active configuration
  plantlog config validate --file prod.yml  # Validate a specific file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configFile   string
	configFormat string
	configStrict bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
	configValidateCmd.Flags().StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: active configuration)")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return writeConfig(cmd.OutOrStdout(), cfg, configFormat)
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", format)
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if configFile != "" {
		v = viper.New()
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading %s: %w", configFile, err)
		}
	}
	return validateWith(cmd.OutOrStdout(), v, configStrict)
}

// validateWith decodes v, prints every problem found and fails on errors,
// or on warnings too when strict is set.
func validateWith(w io.Writer, v *viper.Viper, strict bool) error {
	config.SetDefaults(v)
	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return errors.NewConfigError("config_decode", "decoding configuration", err)
	}

	result := config.ValidateConfigWithDetails(&cfg)
	if !result.HasErrors() && !result.HasWarnings() {
		fmt.Fprintln(w, "Configuration is valid.")
		return nil
	}
	fmt.Fprint(w, result.String())

	switch {
	case result.HasErrors():
		return fmt.Errorf("configuration has %d error(s)", len(result.Errors))
	case strict && result.HasWarnings():
		return fmt.Errorf("configuration has %d warning(s) (strict mode)", len(result.Warnings))
	}
	return nil
}
