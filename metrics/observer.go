// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package metrics exports lazy loading activity as Prometheus metrics.
package metrics

import (
	"github.com/OpenPSG/neurone"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector counts and times the lazy attribute computations of recordings.
type Collector struct {
	loads    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neurone",
			Name:      "loads_total",
			Help:      "Lazy attribute computations, by container kind, attribute and result.",
		}, []string{"kind", "attribute", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "neurone",
			Name:      "load_duration_seconds",
			Help:      "Time spent computing lazy attributes.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"kind", "attribute"}),
	}

	for _, col := range []prometheus.Collector{c.loads, c.duration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe records one computation.
func (c *Collector) Observe(ev neurone.LoadEvent) {
	result := "ok"
	if ev.Err != nil {
		result = "error"
	}
	c.loads.WithLabelValues(ev.Kind, ev.Attribute, result).Inc()
	c.duration.WithLabelValues(ev.Kind, ev.Attribute).Observe(ev.Duration.Seconds())
}

// Option returns the option wiring c into an opened recording.
func (c *Collector) Option() neurone.Option {
	return neurone.WithObserver(c.Observe)
}
