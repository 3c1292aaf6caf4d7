// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/readiness"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <asset-id>",
	Short: "Check transcode readiness for an asset",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	f := statusCmd.Flags()
	f.Bool("watch", false, "Keep polling until the asset reaches a terminal status")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.StatusURL == "" {
		return fmt.Errorf("status_url is required")
	}
	fl := NewFlagLoader(cmd)

	client, err := readiness.NewClient(cfg.StatusURL, cfg.Token)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	assetID := args[0]

	if !fl.Bool("watch") {
		resp, err := client.Check(ctx, assetID)
		if err != nil {
			return err
		}
		switch {
		case !resp.Configured:
			fmt.Println("unconfigured")
		case resp.ReadyToStream != nil && *resp.ReadyToStream:
			fmt.Println("ready")
		case resp.Status != nil:
			fmt.Println(*resp.Status)
		default:
			fmt.Println("unknown")
		}
		return nil
	}

	poller := readiness.NewPoller(client, cfg.PollInterval, cfg.PollDeadline)
	var last readiness.Probe
	for probe := range poller.Watch(ctx, assetID) {
		last = probe
		switch probe.Status {
		case readiness.StatusReady:
			fmt.Println("ready")
		case readiness.StatusUnconfigured:
			fmt.Println("unconfigured")
		case readiness.StatusFailed:
			fmt.Printf("check failed: %v\n", probe.Err)
		default:
			if probe.RawStatus != "" {
				fmt.Printf("encoding (%s)\n", probe.RawStatus)
			} else {
				fmt.Println("encoding")
			}
		}
	}

	if !last.Status.Terminal() {
		fmt.Println("gave up waiting; the asset may still become ready")
	}
	return nil
}
