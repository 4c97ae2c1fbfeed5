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
	"cmp"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"
)

// DecodeEventFile decodes a phase's event file. A phase without an event
// file has no events.
func DecodeEventFile(path string, layout Layout) ([]Event, error) {
	f, err := openPhaseFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error opening event file: %w", err)
	}
	defer f.Close()

	events, err := DecodeEvents(f, layout)
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}
	return events, nil
}

// DecodeEvents reads fixed size event records from r. The result is
// ordered by start sample; events starting on the same sample keep their
// file order.
func DecodeEvents(r io.Reader, layout Layout) ([]Event, error) {
	engine, err := layout.Engine()
	if err != nil {
		return nil, err
	}

	reader := bufio.NewReader(r)
	events := []Event{}
	b := make([]byte, EventRecordSize)
	for {
		n, err := io.ReadFull(reader, b)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated record %d (%d of %d bytes)",
				ErrEventFormat, len(events), n, EventRecordSize)
		}
		if err != nil {
			return nil, fmt.Errorf("error reading event record: %w", err)
		}

		// Bytes 4:8 and 72:88 are reserved.
		events = append(events, Event{
			Revision:          int32(engine.Uint32(b[0:4])),
			Type:              int32(engine.Uint32(b[8:12])),
			SourcePort:        int32(engine.Uint32(b[12:16])),
			Channel:           int32(engine.Uint32(b[16:20])),
			Code:              int32(engine.Uint32(b[20:24])),
			Start:             int64(engine.Uint64(b[24:32])),
			Stop:              int64(engine.Uint64(b[32:40])),
			DescriptionLength: int64(engine.Uint64(b[40:48])),
			DescriptionOffset: int64(engine.Uint64(b[48:56])),
			DataLength:        int64(engine.Uint64(b[56:64])),
			DataOffset:        int64(engine.Uint64(b[64:72])),
		})
	}

	slices.SortStableFunc(events, func(a, b Event) int {
		return cmp.Compare(a.Start, b.Start)
	})
	return events, nil
}
