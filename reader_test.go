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
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/neurone"
	"github.com/OpenPSG/neurone/internal/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSamples(t *testing.T) {
	var b []byte
	for _, v := range []int32{1000, -2000, 3, 2147483647, -2147483648, 0} {
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	}

	chs := []neurone.Channel{
		{Name: "Fp1", Scale: 0.001},
		{Name: "Fp2", Scale: 2, Offset: 1},
	}
	m, err := neurone.DecodeSamples(bytes.NewReader(b), chs, neurone.DefaultLayout(), 3)
	require.NoError(t, err)

	rows, cols := m.Shape()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	assert.InDelta(t, 1.0, m.At(0, 0), 1e-12)
	assert.Equal(t, -3999.0, m.At(0, 1))
	assert.InDelta(t, 0.003, m.At(1, 0), 1e-12)
	assert.Equal(t, 2*2147483647.0+1, m.At(1, 1))
	assert.InDelta(t, -2147483.648, m.At(2, 0), 1e-6)
	assert.Equal(t, 1.0, m.At(2, 1))
}

func TestDecodeSamplesInt16BigEndian(t *testing.T) {
	var b []byte
	for _, v := range []int16{-1, 32767, -32768, 12} {
		b = binary.BigEndian.AppendUint16(b, uint16(v))
	}

	layout := neurone.DefaultLayout()
	layout.ElementSize = 2
	layout.ByteOrder = "big"

	chs := []neurone.Channel{{Scale: 1}, {Scale: 1}}
	m, err := neurone.DecodeSamples(bytes.NewReader(b), chs, layout, -1)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 32767, -32768, 12}, m.Values())
}

func TestDecodeSamplesLarge(t *testing.T) {
	// More rows than one read chunk.
	const n = 10000
	var b []byte
	for i := 0; i < n*3; i++ {
		b = binary.LittleEndian.AppendUint32(b, uint32(i))
	}

	chs := []neurone.Channel{{Scale: 1}, {Scale: 1}, {Scale: 1}}
	m, err := neurone.DecodeSamples(bytes.NewReader(b), chs, neurone.DefaultLayout(), n)
	require.NoError(t, err)
	assert.Equal(t, n, m.Rows())
	assert.Equal(t, float64(n*3-1), m.At(n-1, 2))
}

func TestDecodeSamplesSizeMismatch(t *testing.T) {
	chs := []neurone.Channel{{Scale: 1}, {Scale: 1}}

	_, err := neurone.DecodeSamples(bytes.NewReader(make([]byte, 20)), chs, neurone.DefaultLayout(), -1)
	require.ErrorIs(t, err, neurone.ErrSampleSizeMismatch)

	_, err = neurone.DecodeSamples(bytes.NewReader(make([]byte, 16)), chs, neurone.DefaultLayout(), 3)
	require.ErrorIs(t, err, neurone.ErrSampleSizeMismatch)

	_, err = neurone.DecodeSamples(bytes.NewReader(nil), nil, neurone.DefaultLayout(), -1)
	require.ErrorIs(t, err, neurone.ErrSampleSizeMismatch)

	m, err := neurone.DecodeSamples(bytes.NewReader(nil), chs, neurone.DefaultLayout(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Rows())
}

func TestSampleFiles(t *testing.T) {
	for _, tc := range []struct {
		name        string
		compression fixture.Compression
	}{
		{"plain", fixture.None},
		{"zstd", fixture.Zstd},
		{"lz4", fixture.LZ4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			w, err := fixture.Create(dir)
			require.NoError(t, err)
			w.SetCompression(tc.compression)

			sdir, err := w.WriteSession(session("ses1", t0, 4, 123))
			require.NoError(t, err)

			path := filepath.Join(sdir, "1", "1.bin")
			n, err := neurone.SampleCount(path, 4, neurone.DefaultLayout())
			require.NoError(t, err)
			assert.Equal(t, 123, n)

			_, err = neurone.SampleCount(path, 5, neurone.DefaultLayout())
			require.ErrorIs(t, err, neurone.ErrSampleSizeMismatch)

			chs := make([]neurone.Channel, 4)
			for i := range chs {
				chs[i].Scale = 1
			}
			m, err := neurone.DecodeSampleFile(path, chs, neurone.DefaultLayout())
			require.NoError(t, err)
			assert.Equal(t, 123, m.Rows())
			assert.Equal(t, []float64{488, 489, 490, 491}, m.Row(122))
		})
	}
}

func TestSampleFileMissing(t *testing.T) {
	_, err := neurone.DecodeSampleFile(filepath.Join(t.TempDir(), "1.bin"), []neurone.Channel{{}}, neurone.DefaultLayout())
	require.Error(t, err)

	_, err = neurone.SampleCount(filepath.Join(t.TempDir(), "1.bin"), 1, neurone.DefaultLayout())
	require.Error(t, err)
}

func TestSampleFileInt16(t *testing.T) {
	dir := t.TempDir()
	w, err := fixture.Create(dir)
	require.NoError(t, err)
	w.SetEncoding(binary.BigEndian, 2)

	sdir, err := w.WriteSession(session("ses1", t0, 2, 5))
	require.NoError(t, err)

	layout := neurone.DefaultLayout()
	layout.ElementSize = 2
	layout.ByteOrder = "big"

	rec, err := neurone.OpenRecording(dir, neurone.WithLayout(layout))
	require.NoError(t, err)

	data, err := rec.Data()
	require.NoError(t, err)
	assert.Equal(t, 5, data.Rows())
	assert.InDelta(t, 0.009, data.At(4, 1), 1e-12)
	assert.Equal(t, filepath.Base(sdir), rec.Sessions()[0].Label())
}
