// Package cmd provides the plantlog command-line interface.
//
// Configuration is resolved from, highest priority first:
//
//  1. command-line flags (--port, --store-driver, ...)
//  2. PLANTLOG_* environment variables, e.g. PLANTLOG_STORE_URI
//  3. the config file: --config, then PLANTLOG_CONFIG_FILE, then
//     .plantlog.yml in the working directory
//  4. built-in defaults
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/plantlog/internal/config"
	"github.com/conneroisu/plantlog/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "plantlog",
	Short: "Track plants and their harvests",
	Long: `Plantlog is a small web application for tracking what grows in the garden.
List plants, record their details and log every harvest from the plant's page.

Quick Start:
  plantlog serve                       Serve on http://localhost:8080 (MongoDB)
  plantlog serve --store-driver sqlite Keep plants in a local plantlog.db
  plantlog doctor                      Check configuration, store and templates
  plantlog config show                 Print the resolved configuration`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .plantlog.yml, can also use PLANTLOG_CONFIG_FILE)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	mustBind(viper.GetViper(), rootCmd.PersistentFlags(), map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
	})
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PLANTLOG_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".plantlog")
	}

	viper.SetEnvPrefix("PLANTLOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig) logging.Logger {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Format,
		Output: os.Stderr,
	})
}
