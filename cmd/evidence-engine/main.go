// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the evidence-engine CLI.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/config"
	"github.com/pdiddy/evidence-engine/internal/logger"
	"github.com/pdiddy/evidence-engine/internal/secrets"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// v holds configuration for every command; flags are bound to its keys.
	v = viper.New()

	// cfg is the validated configuration, loaded before each command runs.
	cfg types.Config

	log = zap.NewNop()

	// loadedSecrets holds credentials loaded from the secrets directory.
	loadedSecrets map[string]string
)

// rootCmd is the base command for the evidence-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "evidence-engine",
	Short: "Normalize, score and report biomedical evidence",
	Long: `evidence-engine turns collected clinical-trial and literature metadata into
a structured evidence corpus, aggregates it by intervention, and renders a
provenance-annotated report with an optional model-written synthesis.

It also offers a chat session and single-shot send against a hosted API, a
local inference daemon, or an offline stub. Without a credential everything
runs offline.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		config.Setup(v, cfgFile)
		found, err := config.Read(v)
		if err != nil {
			return err
		}

		cfg, err = config.Load(v)
		if err != nil {
			return err
		}

		log, err = logger.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		if found {
			log.Info("using config file", zap.String("file", v.ConfigFileUsed()))
		}

		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(secretsDir)
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
			log.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./evidence-engine.yaml or ~/.config/evidence-engine/evidence-engine.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets", "directory of secret files")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	bindFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
