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
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Channel describes one sampled input, in sampling order.
type Channel struct {
	Name        string  // Name of the input (e.g., Fp1, EMG1)
	Unit        string  // Physical unit after scaling (e.g., uV)
	InputNumber int     // Physical input number, defines the sampling order
	Scale       float64 // Multiplier from raw integer to physical value
	Offset      float64 // Added after scaling
}

// Physical converts a raw sample to its physical value.
func (c Channel) Physical(raw int32) float64 {
	return float64(raw)*c.Scale + c.Offset
}

// ChannelFingerprint hashes the names, units and order of a channel list.
// Two lists with equal fingerprints may be concatenated.
func ChannelFingerprint(channels []Channel) uint64 {
	d := xxhash.New()
	for _, ch := range channels {
		_, _ = d.WriteString(ch.Name)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(ch.Unit)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

// Event is one marker from a phase's event file.
type Event struct {
	Revision          int32 // Record format revision
	Type              int32 // Event category
	SourcePort        int32 // Port the trigger arrived on
	Channel           int32 // Source channel number
	Code              int32 // Trigger code, zero is a valid code
	Start             int64 // First sample, relative to the owning container
	Stop              int64 // Last sample, relative to the owning container
	DescriptionLength int64
	DescriptionOffset int64
	DataLength        int64
	DataOffset        int64
}

// StartTime returns the event onset relative to the first sample of its container.
func (e Event) StartTime(samplingRate float64) time.Duration {
	return samplesToDuration(e.Start, samplingRate)
}

// StopTime returns the event end relative to the first sample of its container.
func (e Event) StopTime(samplingRate float64) time.Duration {
	return samplesToDuration(e.Stop, samplingRate)
}

// shift returns a copy of the event translated by n samples.
func (e Event) shift(n int64) Event {
	e.Start += n
	e.Stop += n
	return e
}

func samplesToDuration(n int64, samplingRate float64) time.Duration {
	if samplingRate <= 0 {
		return 0
	}
	return time.Duration(math.Round(float64(n) * float64(time.Second) / samplingRate))
}

// SubjectInfo holds the person record of a session. Missing fields are left empty.
type SubjectInfo struct {
	ID          string
	FirstName   string
	LastName    string
	Gender      string
	DateOfBirth time.Time
}

// PhaseInfo is one entry of the session's phase table.
type PhaseInfo struct {
	Number    string // Name of the phase directory
	StartTime time.Time
	StopTime  time.Time
}

// Protocol is the parsed descriptor of one session directory.
type Protocol struct {
	Path         string      // Session directory
	Subject      SubjectInfo // Person record, if any
	StartTime    time.Time   // Session start, used for ordering
	StopTime     time.Time   // Session stop, zero if not recorded
	SamplingRate float64     // Samples per second, per channel
	Channels     []Channel   // Channels in sampling order
	Phases       []PhaseInfo // Phases in protocol order
}
