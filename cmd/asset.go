// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/pipeline"

	"github.com/spf13/cobra"
)

var assetCmd = &cobra.Command{
	Use:   "asset",
	Short: "Manage generic uploaded assets",
}

var assetPutCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Upload a small non-video binary (e.g. a PDF) in one request",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssetPut,
}

func init() {
	rootCmd.AddCommand(assetCmd)
	assetCmd.AddCommand(assetPutCmd)

	f := assetPutCmd.Flags()
	f.String("content_type", "", "Override the content type detected from the file extension")
}

func runAssetPut(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fl := NewFlagLoader(cmd)

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	contentType := fl.String("content_type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}

	o, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	defer o.Close()

	url, err := o.UploadDocument(cmd.Context(), contentType, f)
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}
