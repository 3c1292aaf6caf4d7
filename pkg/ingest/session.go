// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest implements the resumable chunked upload engine. One
// Session is one transfer of a local file to the remote ingestion
// endpoint; the engine owns its lifecycle and reports byte progress,
// asset identifier resolution, and terminal state over an event stream.
package ingest

import (
	"io"

	"github.com/google/uuid"
)

// State of an upload session. Terminal states never transition further;
// a new upload always constructs a fresh session.
type State string

const (
	StateIdle      State = "idle"
	StateCreating  State = "creating" // handshake, before any bytes
	StateUploading State = "uploading"
	StateDone      State = "done"
	StateError     State = "error"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError || s == StateCancelled
}

// Source is the local binary data for one transfer. Immutable for the
// session's lifetime.
type Source struct {
	Reader      io.Reader
	Size        int64
	ContentType string
	Name        string
}

// Session tracks one in-flight or completed transfer. Mutated only by
// the engine goroutine; callers observe it through Events.
type Session struct {
	ID            string
	Source        Source
	Endpoint      string
	ChunkSize     int64
	BytesUploaded int64
	BytesTotal    int64
	State         State
	AssetID       string
	LastError     string
}

func newSession(src Source, endpoint string, chunkSize int64) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Source:     src,
		Endpoint:   endpoint,
		ChunkSize:  chunkSize,
		BytesTotal: src.Size,
		State:      StateIdle,
	}
}

// percent computes floor(uploaded/total*100) clamped to [0,100].
func percent(uploaded, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(uploaded * 100 / total)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
