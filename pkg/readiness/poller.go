// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package readiness

import (
	"context"
	"time"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/logger"
)

// Status of one readiness probe snapshot.
type Status string

const (
	StatusUnknown      Status = "unknown"
	StatusEncoding     Status = "encoding"     // still processing, keep polling
	StatusReady        Status = "ready"        // terminal
	StatusUnconfigured Status = "unconfigured" // pipeline never provisioned, terminal
	StatusFailed       Status = "failed"       // the check errored; not an asset failure
)

// Terminal reports whether no further snapshots will follow this status.
// Failed is deliberately non-terminal: a transient check failure says
// nothing about the asset, so polling continues.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusUnconfigured
}

// Probe is one snapshot of a polling campaign.
type Probe struct {
	AssetID   string
	Status    Status
	RawStatus string // remote pipeline's own status string while encoding
	Err       error  // set only when Status is StatusFailed
	StartedAt time.Time
	Attempt   int // diagnostics only, never drives backoff
}

// Poller runs polling campaigns against a status endpoint. The interval
// is fixed: the expected wait is short and bounded, so there is no
// backoff.
type Poller struct {
	checker  Checker
	interval time.Duration
	deadline time.Duration
}

// NewPoller builds a poller. Zero interval/deadline fall back to
// 5 seconds and 30 minutes.
func NewPoller(checker Checker, interval, deadline time.Duration) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if deadline <= 0 {
		deadline = 30 * time.Minute
	}
	return &Poller{checker: checker, interval: interval, deadline: deadline}
}

// Watch starts a polling campaign for assetID and streams snapshots.
// The first check fires immediately, then on the fixed interval. The
// channel closes on a terminal status, on the wall-clock deadline
// (silently, with no final snapshot: absence of ready is itself the
// signal), or when ctx is cancelled. Cancelling ctx is the single
// teardown call; no snapshot is delivered afterwards.
func (p *Poller) Watch(ctx context.Context, assetID string) <-chan Probe {
	ch := make(chan Probe, 1)

	go func() {
		defer close(ch)

		startedAt := time.Now()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		attempt := 0
		check := func() (stop bool) {
			// Guard the deadline before the check as well: a tick that
			// raced the deadline timer must not produce a snapshot.
			if time.Since(startedAt) >= p.deadline {
				return true
			}
			attempt++

			probe := Probe{
				AssetID:   assetID,
				StartedAt: startedAt,
				Attempt:   attempt,
			}
			resp, err := p.checker.Check(ctx, assetID)
			if ctx.Err() != nil {
				return true
			}
			switch {
			case err != nil:
				probe.Status = StatusFailed
				probe.Err = err
			case !resp.Configured:
				probe.Status = StatusUnconfigured
			case resp.ReadyToStream != nil && *resp.ReadyToStream:
				probe.Status = StatusReady
			default:
				probe.Status = StatusEncoding
				if resp.Status != nil {
					probe.RawStatus = *resp.Status
				}
			}
			checksTotal.WithLabelValues(string(probe.Status)).Inc()

			select {
			case ch <- probe:
			case <-ctx.Done():
				return true
			}
			return probe.Status.Terminal()
		}

		if check() {
			return
		}

		deadline := time.NewTimer(p.deadline - time.Since(startedAt))
		defer deadline.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-deadline.C:
				logger.Ctx(ctx).Debug().
					Str("asset_id", assetID).
					Int("attempts", attempt).
					Msg("readiness deadline elapsed, giving up silently")
				return
			case <-ticker.C:
				if check() {
					return
				}
			}
		}
	}()

	return ch
}
