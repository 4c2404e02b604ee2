// Package config provides configuration management for plantlog using Viper
// for loading from files, environment variables and command-line flags.
//
// Values resolve with the usual Viper precedence: flags bound by the cmd
// package, PLANTLOG_* environment variables, the configuration file, then the
// defaults registered by SetDefaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/plantlog/internal/errors"
)

// Store drivers understood by the serve command.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server" json:"server"`
	Store       StoreConfig       `mapstructure:"store" yaml:"store" json:"store"`
	Templates   TemplatesConfig   `mapstructure:"templates" yaml:"templates" json:"templates"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development" json:"development"`
	Log         LogConfig         `mapstructure:"log" yaml:"log" json:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host" json:"host"`
	Port            int           `mapstructure:"port" yaml:"port" json:"port"`
	Environment     string        `mapstructure:"environment" yaml:"environment" json:"environment"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// Addr returns the host:port the HTTP server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StoreConfig struct {
	Driver   string `mapstructure:"driver" yaml:"driver" json:"driver"`
	URI      string `mapstructure:"uri" yaml:"uri" json:"uri"`
	Database string `mapstructure:"database" yaml:"database" json:"database"`
	// Path is the database file for the sqlite driver.
	Path    string        `mapstructure:"path" yaml:"path" json:"path"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	// Transactions wraps the cascading plant delete in a multi-document
	// transaction. Mongo only supports this on replica sets.
	Transactions bool `mapstructure:"transactions" yaml:"transactions" json:"transactions"`
}

type TemplatesConfig struct {
	// Dir overrides the embedded templates with files on disk.
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

type DevelopmentConfig struct {
	HotReload bool `mapstructure:"hot_reload" yaml:"hot_reload" json:"hot_reload"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", DriverMongo)
	v.SetDefault("store.uri", "mongodb://localhost:27017")
	v.SetDefault("store.database", "plantsDatabase")
	v.SetDefault("store.path", "plantlog.db")
	v.SetDefault("store.timeout", 5*time.Second)
	v.SetDefault("store.transactions", false)

	v.SetDefault("templates.dir", "")
	v.SetDefault("development.hot_reload", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load resolves the configuration from the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom resolves and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigError("config_decode", "decoding configuration", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, errors.NewConfigError("config_invalid", "invalid configuration", err)
	}

	return &config, nil
}
