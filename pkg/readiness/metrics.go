// Copyright 2025 Oshidora Authors
// SPDX-License-Identifier: Apache-2.0

package readiness

import (
	"github.com/nakatsuka-k/oshidora-sub001/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

// checksTotal tracks status checks by mapped outcome
var checksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "oshidora",
	Subsystem: "readiness",
	Name:      "checks_total",
	Help:      "Total readiness checks by outcome",
}, []string{"outcome"}) // outcome: "encoding", "ready", "unconfigured", "failed"

func init() {
	debug.Registry().MustRegister(checksTotal)
}
