// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads client configuration for the media ingestion
// pipeline. Values come from a JSON file, environment variables, or CLI
// flags, with viper handling precedence.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Defaults for the ingestion pipeline.
const (
	DefaultChunkSize      = 50 * 1024 * 1024       // 50MB per transfer chunk
	DefaultMaxUploadBytes = 30 * 1024 * 1024 * 1024 // 30GB ceiling, checked before any network call
	DefaultPollInterval   = 5 * time.Second
	DefaultPollDeadline   = 30 * time.Minute
	DefaultChunkRetries   = 5
)

// DefaultVideoTypes lists content types accepted for episode uploads.
var DefaultVideoTypes = []string{"video/mp4", "video/quicktime", "video/webm"}

// DefaultImageTypes lists content types accepted for photo uploads.
var DefaultImageTypes = []string{"image/jpeg", "image/png"}

// Config holds everything the ingestion pipeline needs to reach the
// remote endpoints. The bearer token is only ever attached to requests
// targeting the ingest endpoint's host.
type Config struct {
	IngestURL string `json:"ingest_url"` // resumable upload handshake endpoint
	StatusURL string `json:"status_url"` // transcode readiness endpoint
	AssetsURL string `json:"assets_url"` // generic binary upload endpoint
	Token     string `json:"token"`      // bearer credential for the ingest host

	ChunkSize      int64         `json:"chunk_size,omitempty"`
	MaxUploadBytes int64         `json:"max_upload_bytes,omitempty"`
	ChunkRetries   int           `json:"chunk_retries,omitempty"`
	PollInterval   time.Duration `json:"poll_interval,omitempty"`
	PollDeadline   time.Duration `json:"poll_deadline,omitempty"`

	// RateLimitBytes caps outgoing chunk bandwidth in bytes/sec. 0 = unlimited.
	RateLimitBytes int64 `json:"rate_limit_bytes,omitempty"`

	VideoTypes []string `json:"video_types,omitempty"`
	ImageTypes []string `json:"image_types,omitempty"`

	DebugAddr string `json:"debug_addr,omitempty"` // metrics/pprof listener, empty = disabled
}

// LoadFromFile loads a Config from a JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load builds a Config from viper (env vars and any bound flags).
func Load() (*Config, error) {
	cfg := Config{
		IngestURL:      viper.GetString("ingest_url"),
		StatusURL:      viper.GetString("status_url"),
		AssetsURL:      viper.GetString("assets_url"),
		Token:          viper.GetString("token"),
		ChunkSize:      viper.GetInt64("chunk_size"),
		MaxUploadBytes: viper.GetInt64("max_upload_bytes"),
		ChunkRetries:   viper.GetInt("chunk_retries"),
		PollInterval:   viper.GetDuration("poll_interval"),
		PollDeadline:   viper.GetDuration("poll_deadline"),
		RateLimitBytes: viper.GetInt64("rate_limit_bytes"),
		DebugAddr:      viper.GetString("debug_addr"),
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.ChunkRetries == 0 {
		c.ChunkRetries = DefaultChunkRetries
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollDeadline == 0 {
		c.PollDeadline = DefaultPollDeadline
	}
	if len(c.VideoTypes) == 0 {
		c.VideoTypes = DefaultVideoTypes
	}
	if len(c.ImageTypes) == 0 {
		c.ImageTypes = DefaultImageTypes
	}
}

// Validate checks endpoint URLs and numeric bounds.
func (c *Config) Validate() error {
	if c.IngestURL == "" {
		return fmt.Errorf("ingest_url is required")
	}
	for name, raw := range map[string]string{
		"ingest_url": c.IngestURL,
		"status_url": c.StatusURL,
		"assets_url": c.AssetsURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s %q", name, raw)
		}
	}
	if c.ChunkSize < 1024*1024 {
		return fmt.Errorf("chunk_size %d below 1MB minimum", c.ChunkSize)
	}
	if c.MaxUploadBytes < c.ChunkSize {
		return fmt.Errorf("max_upload_bytes %d smaller than chunk_size %d", c.MaxUploadBytes, c.ChunkSize)
	}
	return nil
}

// IngestHost returns the host the bearer credential is scoped to.
func (c *Config) IngestHost() string {
	u, err := url.Parse(c.IngestURL)
	if err != nil {
		return ""
	}
	return u.Host
}
