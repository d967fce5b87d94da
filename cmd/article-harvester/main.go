// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the article-harvester CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/article-harvester/internal/observability"
	"github.com/pdiddy/article-harvester/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is configured in PersistentPreRunE from --log-level and --log-format.
var logger = zerolog.Nop()

// rootCmd is the base command for the article-harvester CLI.
var rootCmd = &cobra.Command{
	Use:   "article-harvester",
	Short: "Search bibliographic APIs and harvest article full texts",
	Long: `article-harvester queries several bibliographic APIs for each keyword, merges
the results, downloads each article through a cascade of strategies, optionally
filters on abstract and full text, and records one inventory row per article.

Runs are resumable: identifiers already in the inventory are skipped.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = observability.NewLogger(loggingConfig(cmd))

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./article-harvester.yaml or ~/.config/article-harvester/config.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory holding API keys, one file per key")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error (default warn, debug with --verbose)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format: console or json")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("article-harvester")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "article-harvester"))
		}
	}

	viper.SetEnvPrefix("ARTICLE_HARVESTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loggingConfig reads the logging flags. An explicit --log-level wins;
// otherwise --verbose selects debug.
func loggingConfig(cmd *cobra.Command) observability.LoggingConfig {
	cfg := observability.DefaultLoggingConfig()
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Format = format
	}
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = viper.GetString("log.level")
	}
	if level == "" {
		if verbose, err := cmd.Flags().GetBool("verbose"); err == nil && verbose {
			level = "debug"
		}
	}
	if level != "" {
		cfg.Level = level
	}
	return cfg
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
