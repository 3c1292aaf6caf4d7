// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/ingest"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/logger"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/pipeline"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a video and wait for transcode readiness",
	Long: `Upload a video file over the resumable chunked protocol, then poll
the platform until the asset is ready to stream. Interrupting the
command aborts the transfer; a re-run starts a fresh session.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	f := uploadCmd.Flags()
	f.String("content_type", "", "Override the content type detected from the file extension")
	f.Bool("no_wait", false, "Skip readiness polling after the transfer completes")
}

func runUpload(cmd *cobra.Command, args []string) error {
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

	info, err := f.Stat()
	if err != nil {
		return err
	}

	contentType := fl.String("content_type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}

	if fl.Bool("no_wait") {
		// Polling is skipped by dropping the status endpoint for this run.
		cfg.StatusURL = ""
	}

	o, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	defer o.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := ingest.Source{
		Reader:      f,
		Size:        info.Size(),
		ContentType: contentType,
		Name:        filepath.Base(path),
	}

	logger.Info().
		Str("file", path).
		Str("content_type", contentType).
		Str("size", humanize.IBytes(uint64(info.Size()))).
		Msg("starting upload")

	return renderUpdates(o.UploadVideo(ctx, src))
}

// renderUpdates consumes a campaign's update stream and reports it on
// stdout. Returns an error for stages that mean the campaign failed.
func renderUpdates(updates <-chan pipeline.Update) error {
	var last pipeline.Update
	for u := range updates {
		last = u
		switch u.Stage {
		case pipeline.StageCreating:
			fmt.Printf("creating transfer (%s)\n", humanize.IBytes(uint64(u.BytesTotal)))
		case pipeline.StageCroppingImage:
			fmt.Println("cropping image")
		case pipeline.StageUploading:
			fmt.Printf("\ruploading %3d%% (%s / %s)",
				u.Percent,
				humanize.IBytes(uint64(u.BytesUploaded)),
				humanize.IBytes(uint64(u.BytesTotal)))
		case pipeline.StageDone:
			fmt.Printf("\nupload complete, asset %s\n", u.AssetID)
			if u.Failure == pipeline.KindIdentifierUnresolved {
				fmt.Printf("warning: %s\n", u.Failure.Message())
			}
		case pipeline.StagePolling:
			if u.RawStatus != "" {
				fmt.Printf("transcoding (%s)\n", u.RawStatus)
			}
		case pipeline.StageReady:
			fmt.Printf("asset %s is ready to stream\n", u.AssetID)
		case pipeline.StagePollTimeout:
			fmt.Printf("asset %s is still processing; check back later\n", u.AssetID)
		case pipeline.StageCancelled:
			fmt.Println("\nupload cancelled")
		case pipeline.StageError:
			fmt.Printf("\nerror: %s\n", u.Failure.Message())
		}
	}

	if last.Stage == pipeline.StageError {
		if last.Err != nil {
			logger.Debug().Err(last.Err).Msg("campaign failed")
		}
		return fmt.Errorf("upload failed: %s", last.Failure.Message())
	}
	return nil
}
