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
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EventRecordSize is the size in bytes of one record in an event file.
const EventRecordSize = 88

// ByteOrderEngine decodes and encodes fixed-width integers.
type ByteOrderEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Layout names the files of a recording and describes their binary encoding.
type Layout struct {
	ProtocolFile string   `yaml:"protocol_file"` // Channel/rate descriptor in each session directory
	SessionFile  string   `yaml:"session_file"`  // Timing/phase/person descriptor in each session directory
	SampleFile   string   `yaml:"sample_file"`   // Sample file in each phase directory
	EventFile    string   `yaml:"event_file"`    // Event file in each phase directory
	ElementSize  int      `yaml:"element_size"`  // Bytes per raw sample, 2 or 4
	ByteOrder    string   `yaml:"byte_order"`    // "little" or "big"
	DefaultScale float64  `yaml:"default_scale"` // Used when a channel has no calibration ranges
	DefaultUnit  string   `yaml:"default_unit"`  // Used when a channel has no unit
	TimeLayouts  []string `yaml:"time_layouts"`  // Tried in order for every timestamp
}

// DefaultLayout returns the layout written by NeurOne firmware: 32-bit
// little endian samples in nanovolts.
func DefaultLayout() Layout {
	return Layout{
		ProtocolFile: "Protocol.xml",
		SessionFile:  "Session.xml",
		SampleFile:   "1.bin",
		EventFile:    "events.bin",
		ElementSize:  4,
		ByteOrder:    "little",
		DefaultScale: 0.001,
		DefaultUnit:  "uV",
		TimeLayouts: []string{
			time.RFC3339Nano,
			"2006-01-02T15:04:05.999999999",
			"2006-01-02 15:04:05.999999999Z07:00",
			"2006-01-02 15:04:05.999999999",
			"02.01.2006 15:04:05",
		},
	}
}

// LoadLayout reads a YAML layout file. Fields left out keep their default value.
func LoadLayout(path string) (Layout, error) {
	layout := DefaultLayout()

	b, err := os.ReadFile(path)
	if err != nil {
		return layout, fmt.Errorf("error reading layout: %w", err)
	}

	if err := yaml.Unmarshal(b, &layout); err != nil {
		return layout, fmt.Errorf("error parsing layout: %w", err)
	}

	return layout, layout.Validate()
}

// Validate checks that the layout can be used for decoding.
func (l Layout) Validate() error {
	if l.ElementSize != 2 && l.ElementSize != 4 {
		return fmt.Errorf("unsupported element size %d", l.ElementSize)
	}
	if _, err := l.Engine(); err != nil {
		return err
	}
	if l.ProtocolFile == "" || l.SessionFile == "" || l.SampleFile == "" || l.EventFile == "" {
		return fmt.Errorf("layout file names must not be empty")
	}
	if len(l.TimeLayouts) == 0 {
		return fmt.Errorf("layout needs at least one time layout")
	}
	return nil
}

// Engine returns the byte order named by the layout.
func (l Layout) Engine() (ByteOrderEngine, error) {
	switch strings.ToLower(l.ByteOrder) {
	case "", "little", "le":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order %q", l.ByteOrder)
	}
}

// parseTime tries each time layout in turn.
func (l Layout) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range l.TimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised timestamp %q", ErrProtocolFormat, s)
}
