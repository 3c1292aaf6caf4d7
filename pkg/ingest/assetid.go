// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"net/http"
	"regexp"
)

// The ingestion service has reported the new asset's identifier under
// different header names across protocol revisions. Candidates are
// tried in priority order; header lookup is case-insensitive.
var assetIDHeaders = []string{
	"Stream-Media-Id",
	"X-Media-Id",
	"Media-Id",
	"Asset-Id",
}

// Asset identifiers are 32-character lowercase hex tokens.
var assetIDPattern = regexp.MustCompile(`[0-9a-f]{32}`)

// assetIDFromHeaders returns the identifier carried in protocol response
// headers, or "" when none of the known header names is present.
func assetIDFromHeaders(h http.Header) string {
	for _, name := range assetIDHeaders {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// assetIDFromURL extracts an identifier-shaped token from a transfer or
// resource URL, e.g. a Location redirect ending in the asset id.
func assetIDFromURL(u string) string {
	return assetIDPattern.FindString(u)
}
