// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import "sync/atomic"

// Latch is a fire-once gate for one-shot notifications, e.g. suppressing
// repeated unauthorized-session signals within one session. Unlike a
// package-level flag, reset is explicit and per-instance.
type Latch struct {
	fired atomic.Bool
}

// Fire trips the latch. It returns true only for the first caller;
// later calls return false until Reset.
func (l *Latch) Fire() bool {
	return l.fired.CompareAndSwap(false, true)
}

// Fired reports whether the latch has been tripped.
func (l *Latch) Fired() bool {
	return l.fired.Load()
}

// Reset re-arms the latch.
func (l *Latch) Reset() {
	l.fired.Store(false)
}
