// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline composes the crop engine, the resumable upload
// engine, and the readiness poller into one state machine per user
// action. At most one upload session and one readiness probe are active
// per orchestrator; starting a new upload tears the previous ones down
// first.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/assets"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/config"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/crop"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/ingest"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/logger"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/readiness"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/utils"
)

// Stage of the orchestrator state machine as shown to the caller.
type Stage string

const (
	StageIdle          Stage = "idle"
	StageSelectingFile Stage = "selecting_file"
	StageCroppingImage Stage = "cropping_image"
	StageCreating      Stage = "creating"
	StageUploading     Stage = "uploading"
	StageDone          Stage = "done"
	StagePolling       Stage = "polling"
	StageReady         Stage = "ready"
	StagePollTimeout   Stage = "poll_timeout"
	StageError         Stage = "error"
	StageCancelled     Stage = "cancelled"
)

// Terminal reports whether a stage ends the campaign. Done is not
// terminal on its own: a video session moves on to Polling, and the
// update stream closing is the definitive end-of-campaign signal.
func (s Stage) Terminal() bool {
	switch s {
	case StageReady, StagePollTimeout, StageError, StageCancelled:
		return true
	}
	return false
}

// Update is one observation of a running campaign. Failure carries the
// taxonomy kind when the update represents a warning or error; Err
// holds internal diagnostics and is never rendered to users.
type Update struct {
	Stage         Stage
	BytesUploaded int64
	BytesTotal    int64
	Percent       int
	AssetID       string
	RawStatus     string // remote transcode status while polling
	Failure       Kind
	Err           error
}

// Orchestrator runs upload campaigns. Safe for use from one goroutine;
// starting a campaign while another runs aborts the old one.
type Orchestrator struct {
	cfg    *config.Config
	engine *ingest.Engine
	poller *readiness.Poller
	docs   *assets.Client

	// Session-wide suppression of repeated unauthorized signals.
	unauthorized utils.Latch

	mu             sync.Mutex
	handle         *ingest.Handle
	campaignCancel context.CancelFunc
}

// New wires a pipeline from client configuration.
func New(cfg *config.Config) (*Orchestrator, error) {
	engine, err := ingest.NewEngine(ingest.Options{
		Endpoint:       cfg.IngestURL,
		Token:          cfg.Token,
		ChunkSize:      cfg.ChunkSize,
		MaxBytes:       cfg.MaxUploadBytes,
		ChunkRetries:   cfg.ChunkRetries,
		RateLimitBytes: cfg.RateLimitBytes,
	})
	if err != nil {
		return nil, err
	}

	var poller *readiness.Poller
	if cfg.StatusURL != "" {
		sc, err := readiness.NewClient(cfg.StatusURL, cfg.Token)
		if err != nil {
			return nil, err
		}
		poller = readiness.NewPoller(sc, cfg.PollInterval, cfg.PollDeadline)
	}

	var docs *assets.Client
	if cfg.AssetsURL != "" {
		docs, err = assets.NewClient(cfg.AssetsURL, cfg.Token)
		if err != nil {
			return nil, err
		}
	}

	return &Orchestrator{cfg: cfg, engine: engine, poller: poller, docs: docs}, nil
}

// newOrchestrator builds an orchestrator from pre-built parts (tests).
func newOrchestrator(cfg *config.Config, engine *ingest.Engine, poller *readiness.Poller, docs *assets.Client) *Orchestrator {
	return &Orchestrator{cfg: cfg, engine: engine, poller: poller, docs: docs}
}

// UploadVideo validates a selected video file and runs it through the
// resumable engine, then polls transcode readiness for the resolved
// asset id. The returned stream closes on a terminal stage.
func (o *Orchestrator) UploadVideo(ctx context.Context, src ingest.Source) <-chan Update {
	updates := make(chan Update, 16)

	go func() {
		defer close(updates)

		updates <- Update{Stage: StageSelectingFile, BytesTotal: src.Size}
		if !o.validate(src, o.cfg.VideoTypes, updates) {
			return
		}
		o.runSession(ctx, src, updates, true)
	}()

	return updates
}

// UploadPhoto crops a framed image into a fixed-aspect raster and
// uploads that raster as the session's source file.
func (o *Orchestrator) UploadPhoto(ctx context.Context, img io.Reader, contentType string, frame crop.Frame, vp crop.Viewport, prefix string) <-chan Update {
	updates := make(chan Update, 16)

	go func() {
		defer close(updates)

		updates <- Update{Stage: StageSelectingFile}
		if !slices.Contains(o.cfg.ImageTypes, contentType) {
			updates <- Update{
				Stage:   StageError,
				Failure: KindValidation,
				Err:     fmt.Errorf("pipeline: content type %q not allowed", contentType),
			}
			return
		}

		updates <- Update{Stage: StageCroppingImage}
		res, err := crop.Crop(img, frame, vp, prefix)
		if err != nil {
			updates <- Update{Stage: StageError, Failure: classify(err), Err: err}
			return
		}

		src := ingest.Source{
			Reader:      bytes.NewReader(res.Data),
			Size:        int64(len(res.Data)),
			ContentType: res.ContentType,
			Name:        res.Name,
		}
		o.runSession(ctx, src, updates, false)
	}()

	return updates
}

// UploadDocument sends a small non-video binary through the generic
// upload sub-resource and returns the stored URL.
func (o *Orchestrator) UploadDocument(ctx context.Context, contentType string, body io.Reader) (string, error) {
	if o.docs == nil {
		return "", fmt.Errorf("pipeline: no assets endpoint configured")
	}
	return o.docs.Put(ctx, contentType, body)
}

// Unauthorized fires the one-shot unauthorized-session latch. It
// returns true the first time per session, letting the caller surface
// the signal exactly once instead of on every rejected request.
func (o *Orchestrator) Unauthorized() bool {
	return o.unauthorized.Fire()
}

// ResetSessionSignals re-arms one-shot signals after re-authentication.
func (o *Orchestrator) ResetSessionSignals() {
	o.unauthorized.Reset()
}

// Cancel aborts the in-flight session and probe, if any.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.teardownLocked()
}

// Close tears the orchestrator down. Any running probe timer stops
// immediately; leaking it against torn-down callers is a defect.
func (o *Orchestrator) Close() {
	o.Cancel()
}

func (o *Orchestrator) validate(src ingest.Source, allowed []string, updates chan<- Update) bool {
	var err error
	switch {
	case src.Size > o.cfg.MaxUploadBytes:
		err = fmt.Errorf("pipeline: file of %d bytes exceeds ceiling %d", src.Size, o.cfg.MaxUploadBytes)
	case !slices.Contains(allowed, src.ContentType):
		err = fmt.Errorf("pipeline: content type %q not allowed", src.ContentType)
	}
	if err != nil {
		updates <- Update{Stage: StageError, Failure: KindValidation, Err: err}
		return false
	}
	return true
}

// runSession drives one engine session to a terminal stage, then polls
// readiness when asked. A previous session and probe are torn down
// before the new session may enter Creating: the campaign's cancel is
// registered in the same critical section, so a successor's teardown
// always finds it — even when this campaign has finished uploading but
// not yet started its probe.
func (o *Orchestrator) runSession(ctx context.Context, src ingest.Source, updates chan<- Update, followTranscode bool) {
	o.mu.Lock()
	o.teardownLocked()
	ctx, cancel := context.WithCancel(ctx)
	o.campaignCancel = cancel
	h, err := o.engine.Start(ctx, src)
	if err != nil {
		o.campaignCancel = nil
		o.mu.Unlock()
		cancel()
		updates <- Update{Stage: StageError, Failure: classify(err), Err: err}
		return
	}
	o.handle = h
	o.mu.Unlock()
	defer cancel()

	var last ingest.Event
	for ev := range h.Events() {
		last = ev
		switch ev.State {
		case ingest.StateCreating:
			updates <- Update{Stage: StageCreating, BytesTotal: ev.BytesTotal}
		case ingest.StateUploading:
			updates <- Update{
				Stage:         StageUploading,
				BytesUploaded: ev.BytesUploaded,
				BytesTotal:    ev.BytesTotal,
				Percent:       ev.Percent,
				AssetID:       ev.AssetID,
			}
		case ingest.StateError:
			updates <- Update{Stage: StageError, Failure: classify(ev.Err), Err: ev.Err}
			return
		case ingest.StateCancelled:
			updates <- Update{Stage: StageCancelled}
			return
		}
	}

	if last.State != ingest.StateDone {
		// Events closed without a terminal observation; treat as cancelled.
		updates <- Update{Stage: StageCancelled}
		return
	}

	assetID := h.AssetID()
	if assetID == "" {
		// The asset may still exist server-side; warn, never poll forever.
		updates <- Update{Stage: StageDone, Failure: KindIdentifierUnresolved}
		return
	}

	updates <- Update{
		Stage:         StageDone,
		BytesUploaded: last.BytesUploaded,
		BytesTotal:    last.BytesTotal,
		Percent:       last.Percent,
		AssetID:       assetID,
	}

	if !followTranscode || o.poller == nil {
		return
	}
	o.pollReadiness(ctx, assetID, updates)
}

// pollReadiness follows transcode status under the campaign context.
// The probe owns no cancel of its own: teardown of the campaign, which
// runs before any successor enters Creating, cancels it.
func (o *Orchestrator) pollReadiness(ctx context.Context, assetID string, updates chan<- Update) {
	if ctx.Err() != nil {
		// Superseded between Done and here; emit no stale snapshots.
		updates <- Update{Stage: StageCancelled, AssetID: assetID}
		return
	}

	updates <- Update{Stage: StagePolling, AssetID: assetID, Percent: 100}

	terminal := false
	for probe := range o.poller.Watch(ctx, assetID) {
		switch probe.Status {
		case readiness.StatusReady:
			updates <- Update{Stage: StageReady, AssetID: assetID, Percent: 100}
			terminal = true
		case readiness.StatusUnconfigured:
			updates <- Update{Stage: StageError, AssetID: assetID, Failure: KindUnconfigured}
			terminal = true
		case readiness.StatusEncoding:
			updates <- Update{Stage: StagePolling, AssetID: assetID, Percent: 100, RawStatus: probe.RawStatus}
		case readiness.StatusFailed:
			// A failed check is not an asset failure. Swallow it so the
			// caller's UI doesn't flap on network blips.
			logger.Ctx(ctx).Warn().Err(probe.Err).Str("asset_id", assetID).
				Msg("readiness check failed, continuing to poll")
		}
	}

	if !terminal {
		if ctx.Err() != nil {
			updates <- Update{Stage: StageCancelled, AssetID: assetID}
			return
		}
		// Deadline elapsed with no ready signal: stop waiting.
		updates <- Update{Stage: StagePollTimeout, AssetID: assetID, Failure: KindPollTimeout}
	}
}

// teardownLocked cancels the current campaign (session and any probe,
// running or pending) and aborts its transfer. Callers hold o.mu.
func (o *Orchestrator) teardownLocked() {
	if o.campaignCancel != nil {
		o.campaignCancel()
		o.campaignCancel = nil
	}
	if o.handle != nil {
		o.handle.Abort()
		o.handle = nil
	}
}
