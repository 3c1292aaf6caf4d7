// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/utils"
)

// Event is one observation of a session: a state transition or a byte
// progress update at a chunk boundary.
type Event struct {
	State         State
	BytesUploaded int64
	BytesTotal    int64
	Percent       int
	AssetID       string
	Err           error
}

// Handle is the caller's grip on a running transfer. Events delivers
// session observations and is closed once the session reaches a
// terminal state; the closed channel is the structural guarantee that
// nothing fires after cancellation.
type Handle struct {
	session *Session

	mu          sync.Mutex
	lastPercent int

	events  chan Event
	cancel  context.CancelFunc
	done    chan struct{}
	aborted atomic.Bool
	acked   utils.Latch
}

// Events returns the observation stream. Closed on terminal state.
func (h *Handle) Events() <-chan Event {
	return h.events
}

// Abort cancels the transfer. Cooperative: an in-flight chunk request
// is not torn off the wire, but no observation other than the single
// Cancelled acknowledgement is delivered afterward.
func (h *Handle) Abort() {
	h.aborted.Store(true)
	h.cancel()
}

// Done is closed when the engine goroutine has fully finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// AssetID returns the resolved asset identifier, or "" while unknown.
func (h *Handle) AssetID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.AssetID
}

// Session returns a snapshot of the session's current counters.
func (h *Handle) Session() Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.session
}

func (h *Handle) setUploaded(n int64) {
	h.mu.Lock()
	h.session.BytesUploaded = n
	h.mu.Unlock()
}

func (h *Handle) setLastError(err error) {
	h.mu.Lock()
	h.session.LastError = err.Error()
	h.mu.Unlock()
}

// resolveAssetID records the identifier with first-writer-wins
// semantics: once set, later resolution attempts never overwrite it.
func (h *Handle) resolveAssetID(id string) {
	if id == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session.AssetID == "" {
		h.session.AssetID = id
	}
}

// transition moves the session to a new state and emits the event.
// After an abort only the single Cancelled acknowledgement may fire.
func (h *Handle) transition(ctx context.Context, s State, err error) {
	h.mu.Lock()
	if h.session.State.Terminal() {
		h.mu.Unlock()
		return
	}
	h.session.State = s
	ev := h.snapshotLocked()
	ev.Err = err
	h.mu.Unlock()

	if h.aborted.Load() {
		if s != StateCancelled || !h.acked.Fire() {
			return
		}
		// Best effort: the receiver may already be gone.
		select {
		case h.events <- ev:
		default:
		}
		return
	}

	select {
	case h.events <- ev:
	case <-ctx.Done():
	}
}

// progress emits a byte-progress observation. Progress events are
// droppable when the receiver lags; percentages are monotonically
// non-decreasing even if the engine re-delivers a byte count.
func (h *Handle) progress(ctx context.Context) {
	if h.aborted.Load() || ctx.Err() != nil {
		return
	}

	h.mu.Lock()
	ev := h.snapshotLocked()
	h.mu.Unlock()

	select {
	case h.events <- ev:
	default:
	}
}

func (h *Handle) snapshotLocked() Event {
	p := percent(h.session.BytesUploaded, h.session.BytesTotal)
	if p < h.lastPercent {
		p = h.lastPercent
	}
	h.lastPercent = p

	return Event{
		State:         h.session.State,
		BytesUploaded: h.session.BytesUploaded,
		BytesTotal:    h.session.BytesTotal,
		Percent:       p,
		AssetID:       h.session.AssetID,
	}
}
