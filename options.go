// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package neurone

import (
	"io"
	"log/slog"
	"time"
)

// LoadEvent describes one computation of a lazy attribute.
type LoadEvent struct {
	Container string        // Label, e.g. "ses1/2" for a phase
	Kind      string        // "phase", "session" or "recording"
	Attribute string        // e.g. "data", "events"
	Duration  time.Duration // Time spent computing
	Err       error         // Non-nil if the computation failed
}

// Observer is called synchronously on every lazy attribute cache miss.
type Observer func(LoadEvent)

// Option configures how recordings are opened.
type Option func(*options) error

type options struct {
	logger   *slog.Logger
	observer Observer
	layout   Layout
	preload  bool
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		layout: DefaultLayout(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithLogger sets the logger receiving load and discovery messages. By
// default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger != nil {
			o.logger = logger
		}
		return nil
	}
}

// WithObserver sets a callback told about every lazy computation.
func WithObserver(observer Observer) Option {
	return func(o *options) error {
		o.observer = observer
		return nil
	}
}

// WithLayout overrides the file names and binary encoding.
func WithLayout(layout Layout) Option {
	return func(o *options) error {
		if err := layout.Validate(); err != nil {
			return err
		}
		o.layout = layout
		return nil
	}
}

// WithPreload reads every lazy attribute while opening.
func WithPreload(preload bool) Option {
	return func(o *options) error {
		o.preload = preload
		return nil
	}
}

// missHandler returns the function a container's lazy attributes report to.
func (o *options) missHandler(kind, label string) missFunc {
	return func(attribute string, d time.Duration, err error) {
		if err != nil {
			o.logger.Debug("loading failed", "container", label, "attribute", attribute, "duration", d, "error", err)
		} else {
			o.logger.Debug("loading", "container", label, "attribute", attribute, "duration", d)
		}
		if o.observer != nil {
			o.observer(LoadEvent{Container: label, Kind: kind, Attribute: attribute, Duration: d, Err: err})
		}
	}
}
