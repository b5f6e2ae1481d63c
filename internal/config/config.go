// SPDX-License-Identifier: MPL-2.0

// Package config loads the global tool configuration: which files per
// directory contribute attributes, how far up the ancestor chain to look,
// and how logging sinks behave.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name, used for the config directory.
	AppName = "workdir"
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "yaml"
)

// configDirOverride lets tests redirect config loading.
var configDirOverride string

// Config is the resolved global configuration.
type Config struct {
	// CodeFiles are the code-configuration filenames looked up per
	// directory, in order.
	CodeFiles []string `mapstructure:"code_files"`
	// DataFiles are the data-configuration filenames looked up per
	// directory, in order.
	DataFiles []string `mapstructure:"data_files"`
	// CodeRecursion limits how many parent levels contribute code sources:
	// -1 recurses to the filesystem root, 0 loads only the target.
	CodeRecursion int `mapstructure:"code_recursion"`
	// DataRecursion is the same limit for data sources.
	DataRecursion int `mapstructure:"data_recursion"`
	// Log configures the logging sinks.
	Log LogConfig `mapstructure:"log"`
}

// LogConfig configures the per-directory log file and the console sink.
type LogConfig struct {
	// Filename is the log file created in the target directory.
	Filename string `mapstructure:"filename"`
	// ConsoleLevel is the minimum level printed to the console.
	ConsoleLevel string `mapstructure:"console_level"`
	// FileLevel is the minimum level written to the log file.
	FileLevel string `mapstructure:"file_level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		CodeFiles:     []string{"workdir.lua"},
		DataFiles:     []string{"workdir.yml"},
		CodeRecursion: -1,
		DataRecursion: -1,
		Log: LogConfig{
			Filename:     "workdir.log",
			ConsoleLevel: "info",
			FileLevel:    "debug",
		},
	}
}

// ConfigDir returns the tool configuration directory using platform
// conventions: %APPDATA% on Windows, ~/Library/Application Support on macOS,
// $XDG_CONFIG_HOME (default ~/.config) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string
	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// SetConfigDirOverride redirects config loading, for tests. Pass "" to
// restore the platform default.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// Load reads the configuration file, falling back to defaults when no file
// exists. A present but malformed file is an error.
func Load() (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("code_files", defaults.CodeFiles)
	v.SetDefault("data_files", defaults.DataFiles)
	v.SetDefault("code_recursion", defaults.CodeRecursion)
	v.SetDefault("data_recursion", defaults.DataRecursion)
	v.SetDefault("log.filename", defaults.Log.Filename)
	v.SetDefault("log.console_level", defaults.Log.ConsoleLevel)
	v.SetDefault("log.file_level", defaults.Log.FileLevel)

	cfgDir, err := ConfigDir()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(path) {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
