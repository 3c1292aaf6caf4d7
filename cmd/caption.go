// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/captions"

	"github.com/spf13/cobra"
)

var captionCmd = &cobra.Command{
	Use:   "caption",
	Short: "Manage caption tracks for an asset",
}

var captionPutCmd = &cobra.Command{
	Use:   "put <asset-id> <lang> <file.vtt>",
	Short: "Upload a WebVTT caption track",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := captionClient(cmd)
		if err != nil {
			return err
		}
		f, err := os.Open(args[2])
		if err != nil {
			return err
		}
		defer f.Close()
		return c.Put(cmd.Context(), args[0], args[1], f)
	},
}

var captionListCmd = &cobra.Command{
	Use:   "list <asset-id>",
	Short: "List caption tracks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := captionClient(cmd)
		if err != nil {
			return err
		}
		tracks, err := c.List(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, t := range tracks {
			fmt.Printf("%s\t%s\n", t.Language, t.Label)
		}
		return nil
	},
}

var captionGetCmd = &cobra.Command{
	Use:   "get <asset-id> <lang>",
	Short: "Print a caption track as WebVTT",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := captionClient(cmd)
		if err != nil {
			return err
		}
		vtt, err := c.GetVTT(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		os.Stdout.Write(vtt)
		return nil
	},
}

var captionDeleteCmd = &cobra.Command{
	Use:   "delete <asset-id> <lang>",
	Short: "Delete a caption track",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := captionClient(cmd)
		if err != nil {
			return err
		}
		return c.Delete(cmd.Context(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(captionCmd)
	captionCmd.AddCommand(captionPutCmd, captionListCmd, captionGetCmd, captionDeleteCmd)
}

func captionClient(cmd *cobra.Command) (*captions.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return captions.NewClient(cfg.IngestURL, cfg.Token)
}
