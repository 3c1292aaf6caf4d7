// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/config"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/debug"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "oshidora",
	Short: "Oshidora - media ingestion pipeline client",
	Long: `Oshidora uploads media to a streaming platform over a resumable
chunked transfer protocol, follows transcode readiness, and manages
caption tracks and generic assets for uploaded episodes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to JSON configuration file")
	pf.String("ingest_url", "", "Resumable upload handshake endpoint")
	pf.String("status_url", "", "Transcode readiness endpoint")
	pf.String("assets_url", "", "Generic binary upload endpoint")
	pf.String("token", "", "Bearer credential for the ingest host (or set OSHIDORA_TOKEN)")
	pf.String("debug_addr", "", "Metrics/pprof listen address (empty = disabled)")
	pf.Bool("verbose", false, "Enable debug logging")

	viper.SetEnvPrefix("oshidora")
	viper.AutomaticEnv()
}

// loadConfig builds pipeline configuration with CLI flag precedence:
// explicit flags beat the config file, which beats environment values.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	fl := NewFlagLoader(cmd)

	if fl.Bool("verbose") {
		logger.SetLevel(zerolog.DebugLevel)
	}

	var cfg *config.Config
	var err error
	if path := fl.String("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	// Flags set on the command line always win.
	for flag, dst := range map[string]*string{
		"ingest_url": &cfg.IngestURL,
		"status_url": &cfg.StatusURL,
		"assets_url": &cfg.AssetsURL,
		"token":      &cfg.Token,
		"debug_addr": &cfg.DebugAddr,
	} {
		if cmd.Flags().Changed(flag) {
			*dst = fl.String(flag)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.DebugAddr != "" {
		debug.Serve(cfg.DebugAddr)
	}
	return cfg, nil
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
