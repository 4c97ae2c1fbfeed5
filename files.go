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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Archived recordings may have their phase files compressed in place.
const (
	zstdSuffix = ".zst"
	lz4Suffix  = ".lz4"
)

// phaseFile is an opened phase file, decompressed on the fly if needed.
type phaseFile struct {
	io.Reader
	size   int64 // Uncompressed size, -1 if only known after reading
	closer func() error
}

func (f *phaseFile) Close() error {
	return f.closer()
}

// openPhaseFile opens path, or path with a compression suffix when path
// itself does not exist. A missing file returns an error wrapping fs.ErrNotExist.
func openPhaseFile(path string) (*phaseFile, error) {
	f, err := os.Open(path)
	if err == nil {
		fi, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("error reading file info: %w", err)
		}
		return &phaseFile{Reader: f, size: fi.Size(), closer: f.Close}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if f, err := os.Open(path + zstdSuffix); err == nil {
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("error creating zstd reader: %w", err)
		}
		return &phaseFile{Reader: dec, size: -1, closer: func() error {
			dec.Close()
			return f.Close()
		}}, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if f, err := os.Open(path + lz4Suffix); err == nil {
		return &phaseFile{Reader: lz4.NewReader(f), size: -1, closer: f.Close}, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return nil, fmt.Errorf("error opening %s: %w", path, fs.ErrNotExist)
}

// phaseFileSize returns the uncompressed size of a phase file. Compressed
// files are read through once.
func phaseFileSize(path string) (int64, error) {
	f, err := openPhaseFile(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if f.size >= 0 {
		return f.size, nil
	}

	n, err := io.Copy(io.Discard, f)
	if err != nil {
		return 0, fmt.Errorf("error decompressing %s: %w", path, err)
	}
	return n, nil
}
