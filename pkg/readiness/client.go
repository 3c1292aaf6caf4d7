// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

// Package readiness polls the transcode status endpoint for an uploaded
// asset until it is playable, unprovisioned, or a wall-clock deadline
// passes.
package readiness

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/httpc"
)

// StatusResponse is the remote transcode pipeline's view of one asset.
type StatusResponse struct {
	Configured    bool    `json:"configured"`
	ReadyToStream *bool   `json:"readyToStream"`
	Status        *string `json:"status"`
}

// Checker performs one status check. Satisfied by Client; tests
// substitute their own.
type Checker interface {
	Check(ctx context.Context, assetID string) (*StatusResponse, error)
}

// Client fetches asset status over HTTP with the host-scoped bearer
// credential.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a status client for the given endpoint base URL.
func NewClient(baseURL, token string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("readiness: invalid status endpoint %q", baseURL)
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpc.New(token, u.Host),
	}, nil
}

// Check fetches the status document for one asset.
func (c *Client) Check(ctx context.Context, assetID string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/"+url.PathEscape(assetID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("readiness: status check returned %d", resp.StatusCode)
	}

	var sr StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("readiness: decode status: %w", err)
	}
	return &sr, nil
}
