// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

// Package captions manages subtitle tracks attached to an ingested
// asset. It reuses the ingestion host's bearer credential.
package captions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nakatsuka-k/oshidora-sub001/pkg/httpc"

	"golang.org/x/text/language"
)

// Track is one subtitle track registered for an asset.
type Track struct {
	Language string `json:"language"`
	Label    string `json:"label,omitempty"`
}

// Client talks to the caption sub-resource of the ingestion service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a caption client rooted at the asset base URL, e.g.
// https://ingest.example.com/media.
func NewClient(baseURL, token string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("captions: invalid base URL %q", baseURL)
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpc.New(token, u.Host),
	}, nil
}

// normalizeLang validates and canonicalizes a BCP 47 language tag.
func normalizeLang(lang string) (string, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return "", fmt.Errorf("captions: invalid language tag %q: %w", lang, err)
	}
	return tag.String(), nil
}

func (c *Client) trackURL(assetID, lang string) string {
	return c.baseURL + "/" + url.PathEscape(assetID) + "/captions/" + url.PathEscape(lang)
}

// Put registers (or replaces) the subtitle track for a language.
func (c *Client) Put(ctx context.Context, assetID, lang string, vtt io.Reader) error {
	lang, err := normalizeLang(lang)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.trackURL(assetID, lang), vtt)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/vtt")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("captions: put %s returned %d", lang, resp.StatusCode)
	}
	return nil
}

// List returns the tracks registered for an asset.
func (c *Client) List(ctx context.Context, assetID string) ([]Track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/"+url.PathEscape(assetID)+"/captions", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("captions: list returned %d", resp.StatusCode)
	}

	var body struct {
		Data []Track `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("captions: decode list: %w", err)
	}
	return body.Data, nil
}

// GetVTT fetches the raw track content for a language.
func (c *Client) GetVTT(ctx context.Context, assetID, lang string) ([]byte, error) {
	lang, err := normalizeLang(lang)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.trackURL(assetID, lang)+"/vtt", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("captions: get vtt %s returned %d", lang, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Delete removes the track for a language.
func (c *Client) Delete(ctx context.Context, assetID, lang string) error {
	lang, err := normalizeLang(lang)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.trackURL(assetID, lang), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("captions: delete %s returned %d", lang, resp.StatusCode)
	}
	return nil
}
