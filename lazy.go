// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package neurone

import "time"

// LazyState is the state of a Lazy value.
type LazyState int

const (
	Uncomputed LazyState = iota // Never read, or the last computation failed
	Computed                    // Holds a value it computed itself
	Aliased                     // Holds a value handed to it by an owner, e.g. a view of a parent buffer
	Cleared                     // Value discarded, recomputed on the next read
)

func (s LazyState) String() string {
	switch s {
	case Uncomputed:
		return "uncomputed"
	case Computed:
		return "computed"
	case Aliased:
		return "aliased"
	case Cleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// missFunc is told about every computation a Lazy performs.
type missFunc func(attribute string, d time.Duration, err error)

// Lazy is a value computed on first read and cached until cleared.
//
// A Lazy is not safe for concurrent use.
type Lazy[T any] struct {
	name    string
	compute func() (T, error)
	onMiss  missFunc

	state LazyState
	value T
}

// NewLazy returns a Lazy computing its value with compute.
func NewLazy[T any](name string, compute func() (T, error)) *Lazy[T] {
	return &Lazy[T]{name: name, compute: compute}
}

// Name returns the attribute name used when reporting computations.
func (l *Lazy[T]) Name() string { return l.name }

// State returns the current state.
func (l *Lazy[T]) State() LazyState { return l.state }

// Read returns the cached value, computing it first if needed. A failed
// computation caches nothing.
func (l *Lazy[T]) Read() (T, error) {
	if l.IsComputed() {
		return l.value, nil
	}

	start := time.Now()
	v, err := l.compute()
	if l.onMiss != nil {
		l.onMiss(l.name, time.Since(start), err)
	}
	if err != nil {
		l.state = Uncomputed
		var zero T
		return zero, err
	}

	l.value = v
	l.state = Computed
	return v, nil
}

// IsComputed reports whether Read would return without computing.
func (l *Lazy[T]) IsComputed() bool {
	return l.state == Computed || l.state == Aliased
}

// IsAliased reports whether the value was handed over by an owner.
func (l *Lazy[T]) IsAliased() bool {
	return l.state == Aliased
}

// Clear discards the cached value. Clearing an aliased value only drops
// the reference; the owner keeps its own value.
func (l *Lazy[T]) Clear() {
	if !l.IsComputed() {
		return
	}
	var zero T
	l.value = zero
	l.state = Cleared
}

// alias replaces the cached value with v, a value owned elsewhere.
func (l *Lazy[T]) alias(v T) {
	l.value = v
	l.state = Aliased
}
