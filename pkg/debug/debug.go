// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

// Package debug exposes a shared prometheus registry and an optional
// HTTP listener serving /metrics and pprof for long-running uploads.
package debug

import (
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var globalRegistry = prometheus.NewRegistry()

// Registry returns the shared metrics registry. Packages register their
// collectors here from init().
func Registry() *prometheus.Registry {
	return globalRegistry
}

// Serve starts the debug HTTP listener on addr in its own goroutine and
// returns the server so callers can shut it down.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(globalRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
