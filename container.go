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
	"fmt"
	"path/filepath"
	"slices"
)

// strategy computes a container's attributes, either by decoding files
// (leaf) or by combining children (aggregate).
type strategy interface {
	samples() (*Matrix, error)
	events() ([]Event, error)
	nSamples() (int, error)
	channels() ([]Channel, error)
	samplingRate() (float64, error)
	subject() (SubjectInfo, error)
	children() []*container
}

// cell is the type-independent part of a Lazy.
type cell interface {
	force() error
}

func (l *Lazy[T]) force() error {
	_, err := l.Read()
	return err
}

// container holds the lazy attributes shared by phases, sessions and
// recordings.
type container struct {
	kind     string
	label    string
	strategy strategy

	data         *Lazy[*Matrix]
	evts         *Lazy[[]Event]
	nSamples     *Lazy[int]
	nChannels    *Lazy[int]
	samplingRate *Lazy[float64]
	channels     *Lazy[[]Channel]
	subject      *Lazy[SubjectInfo]
}

func newContainer(kind, label string, s strategy, o *options) *container {
	c := &container{kind: kind, label: label, strategy: s}

	c.data = NewLazy("data", s.samples)
	c.evts = NewLazy("events", s.events)
	c.nSamples = NewLazy("n_samples", s.nSamples)
	c.nChannels = NewLazy("n_channels", func() (int, error) {
		chs, err := c.channels.Read()
		return len(chs), err
	})
	c.samplingRate = NewLazy("sampling_rate", s.samplingRate)
	c.channels = NewLazy("channels", s.channels)
	c.subject = NewLazy("subject_info", s.subject)

	onMiss := o.missHandler(kind, label)
	c.data.onMiss = onMiss
	c.evts.onMiss = onMiss
	c.nSamples.onMiss = onMiss
	c.nChannels.onMiss = onMiss
	c.samplingRate.onMiss = onMiss
	c.channels.onMiss = onMiss
	c.subject.onMiss = onMiss

	return c
}

// cells lists the lazy attributes in preload order: metadata first.
func (c *container) cells() []cell {
	return []cell{c.channels, c.nChannels, c.samplingRate, c.subject, c.nSamples, c.data, c.evts}
}

// Label identifies the container in logs and errors.
func (c *container) Label() string { return c.label }

// Data returns the samples x channels matrix in physical units.
//
// Reading the data of a session or recording concatenates the data of its
// children and replaces every descendant's data with a view of the new
// buffer: writes through any of them are visible through all of them
// until ClearData is called on one of them.
func (c *container) Data() (*Matrix, error) {
	return c.data.Read()
}

// DataLoaded reports whether Data would return without reading files.
func (c *container) DataLoaded() bool {
	return c.data.IsComputed()
}

// DataState returns the state of the cached data.
func (c *container) DataState() LazyState {
	return c.data.State()
}

// Events returns the events ordered by start sample, with sample indices
// relative to the first sample of this container.
func (c *container) Events() ([]Event, error) {
	evs, err := c.evts.Read()
	if err != nil {
		return nil, err
	}
	return slices.Clone(evs), nil
}

// EventCodes returns the distinct event codes in ascending order.
func (c *container) EventCodes() ([]int32, error) {
	evs, err := c.evts.Read()
	if err != nil {
		return nil, err
	}
	codes := make([]int32, 0, len(evs))
	for _, e := range evs {
		codes = append(codes, e.Code)
	}
	slices.Sort(codes)
	return slices.Compact(codes), nil
}

// NSamples returns the number of samples per channel.
func (c *container) NSamples() (int, error) {
	return c.nSamples.Read()
}

// NChannels returns the number of channels.
func (c *container) NChannels() (int, error) {
	return c.nChannels.Read()
}

// SamplingRate returns the number of samples per second.
func (c *container) SamplingRate() (float64, error) {
	return c.samplingRate.Read()
}

// Channels returns the channels in sampling order.
func (c *container) Channels() ([]Channel, error) {
	chs, err := c.channels.Read()
	if err != nil {
		return nil, err
	}
	return slices.Clone(chs), nil
}

// SubjectInfo returns the person record of the recording.
func (c *container) SubjectInfo() (SubjectInfo, error) {
	return c.subject.Read()
}

// Preload reads every lazy attribute of this container and, depth first,
// of all its descendants. Afterwards no attribute read touches the disk.
func (c *container) Preload() error {
	for _, l := range c.cells() {
		if err := l.force(); err != nil {
			return fmt.Errorf("preloading %s %s: %w", c.kind, c.label, err)
		}
	}
	for _, child := range c.strategy.children() {
		if err := child.Preload(); err != nil {
			return err
		}
	}
	return nil
}

// ClearData drops the cached data of this container and all its
// descendants. Metadata and events stay cached.
func (c *container) ClearData() {
	for _, child := range c.strategy.children() {
		child.ClearData()
	}
	c.data.Clear()
}

// rebase makes view the cached data of c and hands each descendant still
// aliasing c's previous buffer the matching row range of view. Descendants
// detached by ClearData keep whatever they hold now.
func (c *container) rebase(view *Matrix) {
	var prev *Matrix
	if c.data.IsComputed() {
		prev = c.data.value.Owner()
	}
	c.data.alias(view)

	agg, ok := c.strategy.(*aggregate)
	if !ok || prev == nil || len(agg.kidRows) != len(agg.kids) {
		return
	}
	off := 0
	for i, child := range agg.kids {
		rows := agg.kidRows[i]
		if child.data.IsAliased() && child.data.value.Owner() == prev {
			child.rebase(view.View(off, off+rows))
		}
		off += rows
	}
}

// leaf decodes one phase directory.
type leaf struct {
	self     *container
	dir      string
	protocol *Protocol
	layout   Layout
}

func (l *leaf) samples() (*Matrix, error) {
	chs, err := l.self.channels.Read()
	if err != nil {
		return nil, err
	}
	return DecodeSampleFile(l.path(l.layout.SampleFile), chs, l.layout)
}

func (l *leaf) events() ([]Event, error) {
	return DecodeEventFile(l.path(l.layout.EventFile), l.layout)
}

func (l *leaf) nSamples() (int, error) {
	n, err := l.self.nChannels.Read()
	if err != nil {
		return 0, err
	}
	return SampleCount(l.path(l.layout.SampleFile), n, l.layout)
}

func (l *leaf) channels() ([]Channel, error) {
	return l.protocol.Channels, nil
}

func (l *leaf) samplingRate() (float64, error) {
	return l.protocol.SamplingRate, nil
}

func (l *leaf) subject() (SubjectInfo, error) {
	return l.protocol.Subject, nil
}

func (l *leaf) children() []*container { return nil }

func (l *leaf) path(name string) string {
	return filepath.Join(l.dir, name)
}

// aggregate concatenates the attributes of its children, in order.
type aggregate struct {
	self     *container
	kids     []*container
	kidRows  []int     // rows each child contributed to the cached data
	protocol *Protocol // set for sessions, which carry their own subject
}

func (a *aggregate) children() []*container { return a.kids }

func (a *aggregate) samples() (*Matrix, error) {
	mats := make([]*Matrix, len(a.kids))
	rows := 0
	for i, child := range a.kids {
		m, err := child.data.Read()
		if err != nil {
			return nil, err
		}
		mats[i] = m
		rows += m.Rows()
	}

	// Validates the channel set and sampling rate across children.
	chs, err := a.self.channels.Read()
	if err != nil {
		return nil, err
	}
	if _, err := a.self.samplingRate.Read(); err != nil {
		return nil, err
	}

	cols := len(chs)
	owner := NewMatrix(make([]float64, rows*cols), rows, cols)
	kidRows := make([]int, len(a.kids))
	off := 0
	for i, child := range a.kids {
		m := mats[i]
		if m.Cols() != cols {
			return nil, fmt.Errorf("%w: %s %s has %d columns, want %d",
				ErrInconsistentChannels, child.kind, child.label, m.Cols(), cols)
		}
		copy(owner.Values()[off*cols:], m.Values())
		kidRows[i] = m.Rows()
		off += m.Rows()
	}

	// Only hand out views once every child has been copied.
	a.kidRows = kidRows
	off = 0
	for i, child := range a.kids {
		child.rebase(owner.View(off, off+kidRows[i]))
		off += kidRows[i]
	}

	return owner, nil
}

func (a *aggregate) events() ([]Event, error) {
	var all []Event
	var off int64
	for _, child := range a.kids {
		evs, err := child.evts.Read()
		if err != nil {
			return nil, err
		}
		n, err := child.nSamples.Read()
		if err != nil {
			return nil, err
		}
		for _, e := range evs {
			all = append(all, e.shift(off))
		}
		off += int64(n)
	}
	if all == nil {
		all = []Event{}
	}
	return all, nil
}

func (a *aggregate) nSamples() (int, error) {
	total := 0
	for _, child := range a.kids {
		n, err := child.nSamples.Read()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (a *aggregate) channels() ([]Channel, error) {
	var first []Channel
	var want uint64
	for i, child := range a.kids {
		chs, err := child.channels.Read()
		if err != nil {
			return nil, err
		}
		if i == 0 {
			first, want = chs, ChannelFingerprint(chs)
			continue
		}
		if ChannelFingerprint(chs) != want || len(chs) != len(first) {
			return nil, fmt.Errorf("%w: %s %s differs from %s %s",
				ErrInconsistentChannels, child.kind, child.label, a.kids[0].kind, a.kids[0].label)
		}
	}
	return first, nil
}

func (a *aggregate) samplingRate() (float64, error) {
	var rate float64
	for i, child := range a.kids {
		r, err := child.samplingRate.Read()
		if err != nil {
			return 0, err
		}
		if i == 0 {
			rate = r
			continue
		}
		if r != rate {
			return 0, fmt.Errorf("%w: %s %s samples at %g Hz, %s %s at %g Hz",
				ErrInconsistentSamplingRate, child.kind, child.label, r, a.kids[0].kind, a.kids[0].label, rate)
		}
	}
	return rate, nil
}

func (a *aggregate) subject() (SubjectInfo, error) {
	if a.protocol != nil {
		return a.protocol.Subject, nil
	}
	if len(a.kids) == 0 {
		return SubjectInfo{}, nil
	}
	return a.kids[0].subject.Read()
}
