// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/httpc"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/logger"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/utils"

	"golang.org/x/time/rate"
)

const protocolVersion = "1.0.0"

// Options configures an Engine. Zero values fall back to sane defaults.
type Options struct {
	Endpoint  string // handshake URL on the ingestion host
	Token     string // bearer credential, scoped to the ingestion host
	ChunkSize int64
	MaxBytes  int64 // size ceiling enforced before any network call

	ChunkRetries int           // attempts per chunk before TransportError
	RetryBase    time.Duration // first retry delay, doubled per attempt

	// RateLimitBytes caps outgoing bandwidth in bytes/sec. 0 = unlimited.
	RateLimitBytes int64

	// HTTPClient overrides the default bearer-scoped client (tests).
	HTTPClient *http.Client
}

// Engine starts upload sessions. It is stateless across sessions; each
// Start returns an independent Handle.
type Engine struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
}

// NewEngine builds an engine for the given ingestion endpoint.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("ingest: endpoint is required")
	}
	u, err := url.Parse(opts.Endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("ingest: invalid endpoint %q", opts.Endpoint)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 50 * 1024 * 1024
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 30 * 1024 * 1024 * 1024
	}
	if opts.ChunkRetries <= 0 {
		opts.ChunkRetries = 5
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}

	client := opts.HTTPClient
	if client == nil {
		client = httpc.New(opts.Token, u.Host)
	}

	var limiter *rate.Limiter
	if opts.RateLimitBytes > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitBytes), int(opts.ChunkSize))
	}

	return &Engine{opts: opts, client: client, limiter: limiter}, nil
}

// Start validates the source and launches the transfer. The size guard
// rejects oversized sources synchronously, with zero network calls.
func (e *Engine) Start(ctx context.Context, src Source) (*Handle, error) {
	if src.Size > e.opts.MaxBytes {
		return nil, &TooLargeError{Size: src.Size, Ceiling: e.opts.MaxBytes}
	}
	if src.Reader == nil || src.Size <= 0 {
		return nil, fmt.Errorf("ingest: empty source")
	}

	sess := newSession(src, e.opts.Endpoint, e.opts.ChunkSize)
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		session: sess,
		events:  make(chan Event, 16),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go e.run(logger.WithSession(ctx, sess.ID), h)
	return h, nil
}

func (e *Engine) run(ctx context.Context, h *Handle) {
	defer close(h.done)
	defer close(h.events)

	sess := h.session
	h.transition(ctx, StateCreating, nil)

	location, err := e.createTransfer(ctx, h)
	if err != nil {
		if ctx.Err() != nil {
			h.transition(ctx, StateCancelled, nil)
			return
		}
		e.fail(ctx, h, err)
		return
	}

	h.transition(ctx, StateUploading, nil)

	var offset int64
	for offset < sess.BytesTotal {
		if ctx.Err() != nil {
			h.transition(ctx, StateCancelled, nil)
			return
		}

		n := sess.ChunkSize
		if remaining := sess.BytesTotal - offset; remaining < n {
			n = remaining
		}

		buf := utils.GetBuffer(int(n))
		if _, err := io.ReadFull(sess.Source.Reader, buf); err != nil {
			utils.PutBuffer(buf)
			e.fail(ctx, h, fmt.Errorf("ingest: read source at offset %d: %w", offset, err))
			return
		}

		err := e.sendChunk(ctx, h, location, offset, buf)
		utils.PutBuffer(buf)
		if err != nil {
			if ctx.Err() != nil {
				h.transition(ctx, StateCancelled, nil)
				return
			}
			e.fail(ctx, h, err)
			return
		}

		offset += n
		h.setUploaded(offset)
		bytesUploaded.Add(float64(n))
		h.progress(ctx)
	}

	// Last resort for the asset id: the final resource URL exposed by
	// the transfer location. Never overwrites a header-resolved id.
	h.resolveAssetID(assetIDFromURL(location))

	uploadsTotal.WithLabelValues(string(StateDone)).Inc()
	h.transition(ctx, StateDone, nil)
}

func (e *Engine) fail(ctx context.Context, h *Handle, err error) {
	logger.Ctx(ctx).Error().Err(err).Msg("upload failed")
	uploadsTotal.WithLabelValues(string(StateError)).Inc()
	h.setLastError(err)
	h.transition(ctx, StateError, err)
}

// createTransfer performs the handshake: it announces the upload length
// and content type and receives the chunk transfer location. Early
// header-based asset id resolution happens here so callers can begin
// auxiliary work before the bytes finish.
func (e *Engine) createTransfer(ctx context.Context, h *Handle) (string, error) {
	sess := h.session

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sess.Endpoint, nil)
	if err != nil {
		return "", &TransportError{Op: "create", Err: err}
	}
	req.Header.Set("Upload-Resumable", protocolVersion)
	req.Header.Set("Upload-Length", strconv.FormatInt(sess.BytesTotal, 10))
	if sess.Source.ContentType != "" {
		req.Header.Set("Upload-Content-Type", sess.Source.ContentType)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", &TransportError{Op: "create", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", &TransportError{Op: "create", Code: resp.StatusCode, Err: fmt.Errorf("unexpected handshake status")}
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", &TransportError{Op: "create", Code: resp.StatusCode, Err: fmt.Errorf("handshake response missing Location")}
	}
	if loc, err := url.Parse(location); err == nil && !loc.IsAbs() {
		base, _ := url.Parse(sess.Endpoint)
		location = base.ResolveReference(loc).String()
	}

	if id := assetIDFromHeaders(resp.Header); id != "" {
		h.resolveAssetID(id)
	} else {
		h.resolveAssetID(assetIDFromURL(location))
	}

	return location, nil
}

// sendChunk PATCHes one chunk at the given offset, retrying transient
// failures with an increasing delay sequence before giving up.
func (e *Engine) sendChunk(ctx context.Context, h *Handle, location string, offset int64, chunk []byte) error {
	delays := utils.RetryDelays(e.opts.RetryBase, time.Minute, e.opts.ChunkRetries)

	var lastErr error
	for attempt := 0; attempt < e.opts.ChunkRetries; attempt++ {
		if attempt > 0 {
			chunkRetries.Inc()
			select {
			case <-time.After(delays[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if e.limiter != nil {
			if err := e.limiter.WaitN(ctx, len(chunk)); err != nil {
				return err
			}
		}

		lastErr = e.patchChunk(ctx, h, location, offset, chunk)
		if lastErr == nil {
			chunksSent.Inc()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Ctx(ctx).Warn().
			Err(lastErr).
			Int64("offset", offset).
			Int("attempt", attempt+1).
			Msg("chunk transfer failed, will retry")
	}

	return lastErr
}

func (e *Engine) patchChunk(ctx context.Context, h *Handle, location string, offset int64, chunk []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, location, bytes.NewReader(chunk))
	if err != nil {
		return &TransportError{Op: "chunk", Err: err}
	}
	req.Header.Set("Upload-Resumable", protocolVersion)
	req.Header.Set("Upload-Offset", strconv.FormatInt(offset, 10))
	req.Header.Set("Content-Type", "application/offset+octet-stream")
	req.ContentLength = int64(len(chunk))

	resp, err := e.client.Do(req)
	if err != nil {
		return &TransportError{Op: "chunk", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Op: "chunk", Code: resp.StatusCode, Err: fmt.Errorf("chunk rejected at offset %d", offset)}
	}

	if id := assetIDFromHeaders(resp.Header); id != "" {
		h.resolveAssetID(id)
	}
	return nil
}
