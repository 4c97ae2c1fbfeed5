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
	"bufio"
	"errors"
	"fmt"
	"io"
)

// rowsPerChunk is the number of sample rows decoded per read.
const rowsPerChunk = 4096

// SampleCount derives the number of samples in a sample file from its size.
func SampleCount(path string, nChannels int, layout Layout) (int, error) {
	size, err := phaseFileSize(path)
	if err != nil {
		return 0, fmt.Errorf("error reading sample file size: %w", err)
	}
	return samplesForSize(size, nChannels, layout.ElementSize)
}

func samplesForSize(size int64, nChannels, elementSize int) (int, error) {
	rowBytes := int64(nChannels) * int64(elementSize)
	if rowBytes <= 0 {
		return 0, fmt.Errorf("%w: no channels", ErrSampleSizeMismatch)
	}
	if size%rowBytes != 0 {
		return 0, fmt.Errorf("%w: %d bytes is not a multiple of %d channels x %d bytes",
			ErrSampleSizeMismatch, size, nChannels, elementSize)
	}
	return int(size / rowBytes), nil
}

// DecodeSampleFile decodes a phase's sample file. Compressed variants of
// the file are read transparently.
func DecodeSampleFile(path string, channels []Channel, layout Layout) (*Matrix, error) {
	f, err := openPhaseFile(path)
	if err != nil {
		return nil, fmt.Errorf("error opening sample file: %w", err)
	}
	defer f.Close()

	expected := -1
	if f.size >= 0 {
		if expected, err = samplesForSize(f.size, len(channels), layout.ElementSize); err != nil {
			return nil, err
		}
	}

	m, err := DecodeSamples(f, channels, layout, expected)
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}
	return m, nil
}

// DecodeSamples reads interleaved raw samples from r and returns them as a
// samples x channels matrix in physical units. If expected is not negative
// the stream must hold exactly that many samples. Nothing is returned on error.
func DecodeSamples(r io.Reader, channels []Channel, layout Layout, expected int) (*Matrix, error) {
	engine, err := layout.Engine()
	if err != nil {
		return nil, err
	}

	nChannels := len(channels)
	elementSize := layout.ElementSize
	if nChannels == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrSampleSizeMismatch)
	}
	if elementSize != 2 && elementSize != 4 {
		return nil, fmt.Errorf("unsupported element size %d", elementSize)
	}
	rowBytes := nChannels * elementSize

	var values []float64
	if expected >= 0 {
		values = make([]float64, 0, expected*nChannels)
	}

	reader := bufio.NewReader(r)
	buf := make([]byte, rowsPerChunk*rowBytes)
	for {
		n, err := io.ReadFull(reader, buf)
		if n%rowBytes != 0 {
			return nil, fmt.Errorf("%w: trailing %d bytes after last complete sample",
				ErrSampleSizeMismatch, n%rowBytes)
		}

		for off := 0; off < n; off += elementSize {
			ch := channels[(off/elementSize)%nChannels]
			var raw int32
			if elementSize == 2 {
				raw = int32(int16(engine.Uint16(buf[off:])))
			} else {
				raw = int32(engine.Uint32(buf[off:]))
			}
			values = append(values, ch.Physical(raw))
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading sample data: %w", err)
		}
	}

	rows := len(values) / nChannels
	if expected >= 0 && rows != expected {
		return nil, fmt.Errorf("%w: expected %d samples, got %d", ErrSampleSizeMismatch, expected, rows)
	}

	return NewMatrix(values, rows, nChannels), nil
}
