// Package cmd implements the intentui command line.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/intentui/internal/config"
	"github.com/zjrosen/intentui/internal/log"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
	// cfgErr is reported by commands that need a valid configuration.
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "intentui",
	Short: "Resolve UI intents to remote components and render them",
	Long: `intentui maps named intents to remotely hosted UI components, validates
their parameters and renders them as JSON descriptors or hydrating HTML pages.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .intentui/config.yaml or ~/.config/intentui/config.yaml)")
	rootCmd.PersistentFlags().String("intents", "", "intent source file or glob (overrides config)")
	rootCmd.PersistentFlags().String("components", "", "component source file or glob (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("sources.intents", rootCmd.PersistentFlags().Lookup("intents"))
	_ = viper.BindPFlag("sources.components", rootCmd.PersistentFlags().Lookup("components"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfg, cfgErr = loadConfig(viper.GetViper(), cfgFile)
}

// loadConfig locates the config file and decodes it. Lookup order:
//  1. --config
//  2. .intentui/config.yaml (current directory)
//  3. ~/.config/intentui/config.yaml (user config)
//
// When nothing is found a default file is written to .intentui/config.yaml.
func loadConfig(v *viper.Viper, explicit string) (config.Config, error) {
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else if _, err := os.Stat(config.DefaultPath); err == nil {
		v.SetConfigFile(config.DefaultPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "intentui"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config.Config{}, fmt.Errorf("reading config: %w", err)
		}
		// If write fails, continue with defaults (no config file).
		if writeErr := config.WriteDefaultConfig(config.DefaultPath); writeErr == nil {
			v.SetConfigFile(config.DefaultPath)
			_ = v.ReadInConfig()
		}
	}
	return config.Load(v)
}

// setupLogging installs the logger described by the loaded configuration.
func setupLogging() (func(), error) {
	cleanup, err := log.Init(log.Options{
		Level:  log.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Path:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log.Debug(log.CatConfig, "Configuration loaded", "file", viper.ConfigFileUsed())
	return cleanup, nil
}

// requireConfig fails when the configuration could not be loaded.
func requireConfig() error {
	if cfgErr != nil {
		return fmt.Errorf("invalid configuration: %w", cfgErr)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
