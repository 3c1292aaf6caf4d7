// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

// Package assets uploads small non-video binaries (profile photos,
// PDFs) in a single PUT, as opposed to the chunked transfer the ingest
// engine runs for large media.
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/httpc"
)

// Client talks to the generic upload sub-resource.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient builds a client for the generic upload endpoint.
func NewClient(endpoint, token string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("assets: invalid endpoint %q", endpoint)
	}
	return &Client{
		endpoint: endpoint,
		http:     httpc.New(token, u.Host),
	}, nil
}

type putResponse struct {
	Error *string `json:"error"`
	Data  *struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Put uploads the body with its content type and returns the stored
// asset's URL.
func (c *Client) Put(ctx context.Context, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("assets: upload returned %d", resp.StatusCode)
	}

	var pr putResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("assets: decode response: %w", err)
	}
	if pr.Error != nil && *pr.Error != "" {
		return "", fmt.Errorf("assets: upload rejected: %s", *pr.Error)
	}
	if pr.Data == nil || pr.Data.URL == "" {
		return "", fmt.Errorf("assets: response missing asset URL")
	}
	return pr.Data.URL, nil
}
