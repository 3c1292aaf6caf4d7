// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpc builds HTTP clients whose bearer credential is scoped
// to a single host. Shared by the upload engine and the status,
// caption, and generic-asset clients.
package httpc

import (
	"fmt"
	"net/http"
)

// bearerTransport attaches the bearer credential to outgoing requests,
// but only when the target host matches. The transfer protocol may
// redirect traffic to third-party storage hosts and those requests must
// never carry the credential; the check happens per request at send
// time, not at configuration time.
type bearerTransport struct {
	base  http.RoundTripper
	token string
	host  string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" && req.URL.Host == t.host {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.base.RoundTrip(req)
}

// New returns a client that sends "Authorization: Bearer <token>" on
// requests to host and nothing anywhere else. No overall client
// timeout: a 50MB chunk on a slow link can legitimately take minutes,
// so cancellation is context-driven.
func New(token, host string) *http.Client {
	return &http.Client{
		Transport: &bearerTransport{
			base:  http.DefaultTransport,
			token: token,
			host:  host,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// The transport re-evaluates the host on every hop, so a
			// redirect off the scoped host sheds the credential.
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}
}
