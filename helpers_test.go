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
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/OpenPSG/neurone"
	"github.com/OpenPSG/neurone/internal/fixture"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2019, 3, 14, 9, 30, 0, 0, time.FixedZone("CET", 3600))

// channels returns n fixture channels named Ch1..Chn without calibration.
func channels(n int) []fixture.Channel {
	chs := make([]fixture.Channel, n)
	for i := range chs {
		chs[i] = fixture.Channel{Name: fmt.Sprintf("Ch%d", i+1)}
	}
	return chs
}

// rows returns n samples of nch channels with distinct values starting at base.
func rows(n, nch int, base int32) [][]int32 {
	out := make([][]int32, n)
	for i := range out {
		out[i] = make([]int32, nch)
		for j := range out[i] {
			out[i][j] = base + int32(i*nch+j)
		}
	}
	return out
}

// session returns a session with one phase per entry of sizes, phases one
// minute apart.
func session(name string, start time.Time, nch int, sizes ...int) fixture.Session {
	s := fixture.Session{
		Name:         name,
		Start:        start,
		SamplingRate: "1000",
		Channels:     channels(nch),
	}
	base := int32(0)
	for i, n := range sizes {
		s.Phases = append(s.Phases, fixture.Phase{
			Number:  fmt.Sprint(i + 1),
			Start:   start.Add(time.Duration(i) * time.Minute),
			Samples: rows(n, nch, base),
			Events:  []fixture.Event{},
		})
		base += int32(n * nch)
	}
	return s
}

// writeRecording writes sessions into a fresh directory and returns it.
func writeRecording(t *testing.T, sessions ...fixture.Session) string {
	t.Helper()

	dir := t.TempDir()
	w, err := fixture.Create(dir)
	require.NoError(t, err)
	for _, s := range sessions {
		_, err := w.WriteSession(s)
		require.NoError(t, err)
	}
	return dir
}

// loadCounter counts lazy computations per container and attribute.
type loadCounter map[string]int

func (c loadCounter) observe(ev neurone.LoadEvent) {
	c[ev.Container+"."+ev.Attribute]++
}

func (c loadCounter) total(attribute string) int {
	n := 0
	for k, v := range c {
		if strings.HasSuffix(k, "."+attribute) {
			n += v
		}
	}
	return n
}
