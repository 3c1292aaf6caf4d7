// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"github.com/nakatsuka-k/oshidora-sub001/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// bytesUploaded tracks acknowledged bytes across all sessions
	bytesUploaded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "oshidora",
		Subsystem: "ingest",
		Name:      "bytes_uploaded_total",
		Help:      "Total bytes acknowledged by the ingestion endpoint",
	})

	// chunksSent tracks successfully transferred chunks
	chunksSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "oshidora",
		Subsystem: "ingest",
		Name:      "chunks_sent_total",
		Help:      "Total chunks transferred successfully",
	})

	// chunkRetries tracks chunk retry attempts
	chunkRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "oshidora",
		Subsystem: "ingest",
		Name:      "chunk_retries_total",
		Help:      "Total chunk transfer retries",
	})

	// uploadsTotal tracks finished sessions by terminal state
	uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oshidora",
		Subsystem: "ingest",
		Name:      "uploads_total",
		Help:      "Total upload sessions by terminal state",
	}, []string{"state"}) // state: "done", "error"
)

func init() {
	debug.Registry().MustRegister(
		bytesUploaded,
		chunksSent,
		chunkRetries,
		uploadsTotal,
	)
}
