// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */
package neurone_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/neurone"
	"github.com/OpenPSG/neurone/internal/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSession(t *testing.T, s fixture.Session) string {
	t.Helper()
	return filepath.Join(writeRecording(t, s), s.Name)
}

func TestReadProtocol(t *testing.T) {
	s := session("ses1", t0, 0, 10, 10)
	s.Channels = []fixture.Channel{
		{Name: "O1", Input: 3, Unit: "mV"},
		{Name: "Fp1", Input: 1},
		{Name: "Fp2", Input: 2, RawMin: -32768, RawMax: 32767, CalMin: -1, CalMax: 1},
	}
	for i := range s.Phases {
		s.Phases[i].Samples = rows(10, 3, 0)
	}
	s.Person = &fixture.Person{ID: "P1", FirstName: "Ada", LastName: "L", Gender: "Female"}

	dir := writeSession(t, s)
	p, err := neurone.ReadProtocol(dir, neurone.DefaultLayout())
	require.NoError(t, err)

	assert.Equal(t, dir, p.Path)
	assert.Equal(t, 1000.0, p.SamplingRate)
	assert.True(t, p.StartTime.Equal(t0))
	assert.True(t, p.StopTime.Equal(t0.Add(time.Hour)))

	require.Len(t, p.Channels, 3)
	assert.Equal(t, "Fp1", p.Channels[0].Name)
	assert.Equal(t, "Fp2", p.Channels[1].Name)
	assert.Equal(t, "O1", p.Channels[2].Name)

	// Without calibration ranges samples are nanovolts shown as microvolts.
	assert.Equal(t, "uV", p.Channels[0].Unit)
	assert.Equal(t, 0.001, p.Channels[0].Scale)
	assert.Equal(t, "mV", p.Channels[2].Unit)

	assert.InDelta(t, 1.0, p.Channels[1].Physical(32767), 1e-9)
	assert.InDelta(t, -1.0, p.Channels[1].Physical(-32768), 1e-9)

	require.Len(t, p.Phases, 2)
	assert.Equal(t, "1", p.Phases[0].Number)
	assert.Equal(t, "2", p.Phases[1].Number)
	assert.True(t, p.Phases[1].StartTime.Equal(t0.Add(time.Minute)))
	assert.True(t, p.Phases[1].StopTime.IsZero())

	assert.Equal(t, neurone.SubjectInfo{ID: "P1", FirstName: "Ada", LastName: "L", Gender: "Female"}, p.Subject)
}

func TestReadProtocolTimestamps(t *testing.T) {
	want := time.Date(2018, 10, 2, 11, 33, 10, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{"firmware", "2018-10-02T11:33:10.2656250+02:00", time.Date(2018, 10, 2, 11, 33, 10, 265625000, time.FixedZone("", 2*3600))},
		{"no zone", "2018-10-02T11:33:10", want},
		{"space separated", "2018-10-02 11:33:10", want},
		{"european", "02.10.2018 11:33:10", want},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := session("ses1", t0, 2, 1)
			s.StartString = tt.value

			p, err := neurone.ReadProtocol(writeSession(t, s), neurone.DefaultLayout())
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(p.StartTime), "got %s", p.StartTime)
		})
	}
}

func TestReadProtocolErrors(t *testing.T) {
	t.Run("bad timestamp", func(t *testing.T) {
		s := session("ses1", t0, 2, 1)
		s.StartString = "yesterday"

		_, err := neurone.ReadProtocol(writeSession(t, s), neurone.DefaultLayout())
		require.ErrorIs(t, err, neurone.ErrProtocolFormat)
	})

	t.Run("missing sampling rate", func(t *testing.T) {
		s := session("ses1", t0, 2, 1)
		s.SamplingRate = ""

		_, err := neurone.ReadProtocol(writeSession(t, s), neurone.DefaultLayout())
		require.ErrorIs(t, err, neurone.ErrProtocolFormat)
	})

	t.Run("invalid sampling rate", func(t *testing.T) {
		s := session("ses1", t0, 2, 1)
		s.SamplingRate = "fast"

		_, err := neurone.ReadProtocol(writeSession(t, s), neurone.DefaultLayout())
		require.ErrorIs(t, err, neurone.ErrProtocolFormat)
	})

	t.Run("no phases", func(t *testing.T) {
		s := session("ses1", t0, 2)

		_, err := neurone.ReadProtocol(writeSession(t, s), neurone.DefaultLayout())
		require.ErrorIs(t, err, neurone.ErrProtocolFormat)
	})

	t.Run("missing file", func(t *testing.T) {
		dir := writeSession(t, session("ses1", t0, 2, 1))
		require.NoError(t, os.Remove(filepath.Join(dir, "Protocol.xml")))

		_, err := neurone.ReadProtocol(dir, neurone.DefaultLayout())
		require.ErrorIs(t, err, neurone.ErrProtocolMissing)
	})

	t.Run("malformed", func(t *testing.T) {
		dir := writeSession(t, session("ses1", t0, 2, 1))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Session.xml"), []byte("<DataSetSession><TableSession>"), 0o644))

		_, err := neurone.ReadProtocol(dir, neurone.DefaultLayout())
		require.ErrorIs(t, err, neurone.ErrProtocolMissing)
	})
}

func TestReadProtocolCharset(t *testing.T) {
	dir := writeSession(t, session("ses1", t0, 1, 1))

	protocol := []byte("<?xml version=\"1.0\" encoding=\"windows-1252\"?>\n" +
		"<DataSetProtocol><TableProtocol><ActualSamplingFrequency>500</ActualSamplingFrequency></TableProtocol>" +
		"<TableInput><Name>EMG</Name><PhysicalInputNumber>1</PhysicalInputNumber><Unit>\xb5V</Unit></TableInput>" +
		"</DataSetProtocol>\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Protocol.xml"), protocol, 0o644))

	p, err := neurone.ReadProtocol(dir, neurone.DefaultLayout())
	require.NoError(t, err)
	assert.Equal(t, 500.0, p.SamplingRate)
	require.Len(t, p.Channels, 1)
	assert.Equal(t, "µV", p.Channels[0].Unit)
}
