// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// ErrTooLarge rejects a source above the configured ceiling before any
// network call is made.
var ErrTooLarge = errors.New("ingest: source exceeds upload size ceiling")

// TooLargeError carries the offending and permitted sizes.
type TooLargeError struct {
	Size    int64
	Ceiling int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("ingest: source is %s, ceiling is %s",
		humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.Ceiling)))
}

func (e *TooLargeError) Unwrap() error { return ErrTooLarge }

// TransportError is surfaced after the engine's internal per-chunk
// retries are exhausted, or when the handshake itself fails.
type TransportError struct {
	Op   string // "create" or "chunk"
	Code int    // HTTP status, 0 when the request never completed
	Err  error
}

func (e *TransportError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("ingest: %s failed with status %d: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("ingest: %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
