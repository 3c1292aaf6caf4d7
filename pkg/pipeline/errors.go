// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/crop"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/ingest"
)

// Kind classifies a pipeline failure. The presentation layer renders
// exactly one localized message per kind; the pipeline never fabricates
// free text from transport internals.
type Kind string

const (
	KindNone                 Kind = ""
	KindValidation           Kind = "validation"            // bad size or type, pre-network
	KindTransport            Kind = "transport"             // handshake or chunks failed after retries
	KindIdentifierUnresolved Kind = "identifier_unresolved" // upload done, asset id unknown; warning, not fatal
	KindPollCheck            Kind = "poll_check"            // one status check failed; swallowed
	KindPollTimeout          Kind = "poll_timeout"          // deadline passed; stop waiting, not an error
	KindUnconfigured         Kind = "unconfigured"          // transcode pipeline never provisioned
	KindDecode               Kind = "decode"
	KindEncode               Kind = "encode"
)

// messages are stable keys, one per kind, for the presentation layer
// to localize. Internal diagnostics stay in Update.Err.
var messages = map[Kind]string{
	KindValidation:           "upload.error.invalid_file",
	KindTransport:            "upload.error.transfer_failed",
	KindIdentifierUnresolved: "upload.warning.asset_id_unresolved",
	KindPollCheck:            "upload.warning.status_check_failed",
	KindPollTimeout:          "upload.notice.still_processing",
	KindUnconfigured:         "upload.error.not_provisioned",
	KindDecode:               "photo.error.unreadable_image",
	KindEncode:               "photo.error.crop_failed",
}

// Message returns the stable user-facing message key for a kind.
func (k Kind) Message() string {
	return messages[k]
}

// classify maps an engine-level error onto the taxonomy.
func classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ingest.ErrTooLarge):
		return KindValidation
	case errors.Is(err, crop.ErrDecode):
		return KindDecode
	case errors.Is(err, crop.ErrEncode):
		return KindEncode
	default:
		// Everything else that escapes the engine is transfer trouble.
		return KindTransport
	}
}
