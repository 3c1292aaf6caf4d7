// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.json")
	data := `{"ingest_url": "https://ingest.example.com/media", "token": "tok"}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, int64(DefaultChunkSize), cfg.ChunkSize)
	assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.MaxUploadBytes)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.PollDeadline)
	assert.Equal(t, DefaultVideoTypes, cfg.VideoTypes)
	assert.Equal(t, "ingest.example.com", cfg.IngestHost())
}

func TestLoadFromFile_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing ingest url", func(c *Config) { c.IngestURL = "" }, true},
		{"relative ingest url", func(c *Config) { c.IngestURL = "/media" }, true},
		{"tiny chunk", func(c *Config) { c.ChunkSize = 1024 }, true},
		{"ceiling below chunk", func(c *Config) { c.MaxUploadBytes = c.ChunkSize - 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{IngestURL: "https://ingest.example.com/media"}
			cfg.applyDefaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
