// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/crop"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/pipeline"

	"github.com/spf13/cobra"
)

var photoCmd = &cobra.Command{
	Use:   "photo <image>",
	Short: "Crop and upload a photo",
	Long: `Crop an image to a fixed-aspect frame and upload the result. The
crop frame mirrors an interactive viewport: the image covers the frame
at minimum zoom, and zoom/offset select the visible region.`,
	Args: cobra.ExactArgs(1),
	RunE: runPhoto,
}

func init() {
	rootCmd.AddCommand(photoCmd)

	f := photoCmd.Flags()
	f.Float64("zoom", 1.0, "Zoom factor, minimum 1.0 covers the frame exactly")
	f.Float64("offset_x", 0, "Horizontal pan in viewport pixels")
	f.Float64("offset_y", 0, "Vertical pan in viewport pixels")
	f.Int("width", 1024, "Output viewport width in pixels")
	f.String("aspect", "1:1", "Output aspect ratio (e.g. '1:1', '16:9')")
	f.String("prefix", "photo", "Name prefix for the rendered file")
}

func parseAspect(s string) (float64, error) {
	w, h, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid aspect %q, want W:H", s)
	}
	var wf, hf float64
	if _, err := fmt.Sscanf(w, "%g", &wf); err != nil {
		return 0, fmt.Errorf("invalid aspect %q: %w", s, err)
	}
	if _, err := fmt.Sscanf(h, "%g", &hf); err != nil || hf == 0 {
		return 0, fmt.Errorf("invalid aspect %q", s)
	}
	return wf / hf, nil
}

func runPhoto(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fl := NewFlagLoader(cmd)

	aspect, err := parseAspect(fl.String("aspect"))
	if err != nil {
		return err
	}
	vp := crop.ViewportFor(fl.Int("width"), aspect)

	frame := crop.Frame{
		Zoom:    fl.Float64("zoom"),
		OffsetX: fl.Float64("offset_x"),
		OffsetY: fl.Float64("offset_y"),
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))

	o, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	defer o.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return renderUpdates(o.UploadPhoto(ctx, f, contentType, frame, vp, fl.String("prefix")))
}
