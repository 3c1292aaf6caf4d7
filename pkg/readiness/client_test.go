// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package readiness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Check(t *testing.T) {
	var gotPath, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"configured": true, "readyToStream": false, "status": "inprogress"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/videos", "tok")
	require.NoError(t, err)
	defer c.http.CloseIdleConnections()

	resp, err := c.Check(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, "/videos/abc123", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.True(t, resp.Configured)
	require.NotNil(t, resp.ReadyToStream)
	assert.False(t, *resp.ReadyToStream)
	require.NotNil(t, resp.Status)
	assert.Equal(t, "inprogress", *resp.Status)
}

func TestClient_Check_NullFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"configured": false, "readyToStream": null, "status": null}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	require.NoError(t, err)
	defer c.http.CloseIdleConnections()

	resp, err := c.Check(context.Background(), "abc123")
	require.NoError(t, err)

	assert.False(t, resp.Configured)
	assert.Nil(t, resp.ReadyToStream)
	assert.Nil(t, resp.Status)
}

func TestClient_Check_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	require.NoError(t, err)
	defer c.http.CloseIdleConnections()

	_, err = c.Check(context.Background(), "abc123")
	assert.Error(t, err)
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("not a url", "")
	assert.Error(t, err)
}
