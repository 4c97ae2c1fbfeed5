// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package fixture writes synthetic NeurOne recordings for tests.
package fixture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OpenPSG/neurone"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// TimeLayout is the timestamp format written by recent firmware.
const TimeLayout = "2006-01-02T15:04:05.0000000-07:00"

// Compression selects how phase files are stored.
type Compression int

const (
	None Compression = iota
	Zstd
	LZ4
)

// Channel is one input of the protocol.
type Channel struct {
	Name  string
	Unit  string // Omitted from the descriptor when empty
	Input int    // PhysicalInputNumber, defaults to position+1

	// Calibration ranges, written only when RawMax != RawMin.
	RawMin, RawMax, CalMin, CalMax float64
}

// Event is one 88 byte event record.
type Event struct {
	Type, SourcePort, Channel, Code int32
	Start, Stop                     int64
}

// Phase is one phase directory.
type Phase struct {
	Number string
	Start  time.Time
	// Samples are raw values, one row per sample, one column per channel.
	Samples [][]int32
	// Events is nil when no event file should be written.
	Events []Event
	// Trailing bytes appended to the sample file, to corrupt it.
	Trailing []byte
	// TruncateEvents drops bytes from the end of the event file.
	TruncateEvents int
}

// Session is one session directory.
type Session struct {
	Name         string
	Start        time.Time
	StartString  string // Overrides Start when set, for other timestamp formats
	SamplingRate string // Omitted from the descriptor when empty
	Channels     []Channel
	Phases       []Phase
	Person       *Person
}

// Person is the subject record.
type Person struct {
	ID, FirstName, LastName, Gender string
	DateOfBirth                     time.Time
}

// Writer writes sessions below a recording directory.
type Writer struct {
	dir         string
	order       neurone.ByteOrderEngine
	elementSize int
	compression Compression
}

// Create returns a writer for the recording directory dir, creating it if needed.
func Create(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating recording directory: %w", err)
	}
	return &Writer{dir: dir, order: binary.LittleEndian, elementSize: 4}, nil
}

// SetEncoding changes the byte order and element size of sample files.
func (w *Writer) SetEncoding(order neurone.ByteOrderEngine, elementSize int) {
	w.order = order
	w.elementSize = elementSize
}

// SetCompression changes how phase files are stored.
func (w *Writer) SetCompression(c Compression) {
	w.compression = c
}

// WriteSession writes the descriptors and phase files of s.
func (w *Writer) WriteSession(s Session) (string, error) {
	dir := filepath.Join(w.dir, s.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating session directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "Protocol.xml"), []byte(protocolXML(s)), 0o644); err != nil {
		return "", fmt.Errorf("error writing protocol: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Session.xml"), []byte(sessionXML(s)), 0o644); err != nil {
		return "", fmt.Errorf("error writing session: %w", err)
	}

	for _, p := range s.Phases {
		if err := w.writePhase(filepath.Join(dir, p.Number), p); err != nil {
			return "", fmt.Errorf("error writing phase %s: %w", p.Number, err)
		}
	}

	return dir, nil
}

func (w *Writer) writePhase(dir string, p Phase) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	var samples []byte
	for _, row := range p.Samples {
		for _, v := range row {
			if w.elementSize == 2 {
				samples = w.order.AppendUint16(samples, uint16(int16(v)))
			} else {
				samples = w.order.AppendUint32(samples, uint32(v))
			}
		}
	}
	samples = append(samples, p.Trailing...)
	if err := w.writeFile(filepath.Join(dir, "1.bin"), samples); err != nil {
		return err
	}

	if p.Events == nil {
		return nil
	}
	var events []byte
	for _, e := range p.Events {
		events = AppendEvent(events, e)
	}
	events = events[:len(events)-p.TruncateEvents]
	return w.writeFile(filepath.Join(dir, "events.bin"), events)
}

func (w *Writer) writeFile(path string, b []byte) error {
	switch w.compression {
	case Zstd:
		path += ".zst"
	case LZ4:
		path += ".lz4"
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	writer := bufio.NewWriter(f)
	switch w.compression {
	case Zstd:
		enc, err := zstd.NewWriter(writer)
		if err != nil {
			return err
		}
		if _, err := enc.Write(b); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	case LZ4:
		enc := lz4.NewWriter(writer)
		if _, err := enc.Write(b); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	default:
		if _, err := writer.Write(b); err != nil {
			return err
		}
	}

	// Ensure all data is flushed to the underlying file
	if err := writer.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// AppendEvent appends the little endian record of e to b.
func AppendEvent(b []byte, e Event) []byte {
	le := binary.LittleEndian
	b = le.AppendUint32(b, 1) // Revision
	b = le.AppendUint32(b, 0)
	b = le.AppendUint32(b, uint32(e.Type))
	b = le.AppendUint32(b, uint32(e.SourcePort))
	b = le.AppendUint32(b, uint32(e.Channel))
	b = le.AppendUint32(b, uint32(e.Code))
	b = le.AppendUint64(b, uint64(e.Start))
	b = le.AppendUint64(b, uint64(e.Stop))
	for i := 0; i < 4; i++ {
		b = le.AppendUint64(b, 0) // Description and data length/offset
	}
	for i := 0; i < 4; i++ {
		b = le.AppendUint32(b, 0)
	}
	return b
}

func protocolXML(s Session) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" standalone="yes"?>` + "\n")
	sb.WriteString(`<DataSetProtocol xmlns="http://www.megaemg.com/DataSetGeneralProtocol.xsd">` + "\n")
	if s.SamplingRate != "" {
		fmt.Fprintf(&sb, "  <TableProtocol>\n    <ActualSamplingFrequency>%s</ActualSamplingFrequency>\n  </TableProtocol>\n", s.SamplingRate)
	}
	for i, ch := range s.Channels {
		input := ch.Input
		if input == 0 {
			input = i + 1
		}
		sb.WriteString("  <TableInput>\n")
		fmt.Fprintf(&sb, "    <Name>%s</Name>\n", ch.Name)
		fmt.Fprintf(&sb, "    <PhysicalInputNumber>%d</PhysicalInputNumber>\n", input)
		if ch.Unit != "" {
			fmt.Fprintf(&sb, "    <Unit>%s</Unit>\n", ch.Unit)
		}
		if ch.RawMax != ch.RawMin {
			fmt.Fprintf(&sb, "    <RangeMinimum>%g</RangeMinimum>\n    <RangeMaximum>%g</RangeMaximum>\n", ch.RawMin, ch.RawMax)
			fmt.Fprintf(&sb, "    <RangeAsCalibratedMinimum>%g</RangeAsCalibratedMinimum>\n", ch.CalMin)
			fmt.Fprintf(&sb, "    <RangeAsCalibratedMaximum>%g</RangeAsCalibratedMaximum>\n", ch.CalMax)
		}
		sb.WriteString("  </TableInput>\n")
	}
	sb.WriteString("</DataSetProtocol>\n")
	return sb.String()
}

func sessionXML(s Session) string {
	start := s.Start.Format(TimeLayout)
	if s.StartString != "" {
		start = s.StartString
	}

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" standalone="yes"?>` + "\n")
	sb.WriteString(`<DataSetSession xmlns="http://www.megaemg.com/DataSetGeneralSession.xsd">` + "\n")
	fmt.Fprintf(&sb, "  <TableSession>\n    <StartDateTime>%s</StartDateTime>\n    <StopDateTime>%s</StopDateTime>\n  </TableSession>\n",
		start, s.Start.Add(time.Hour).Format(TimeLayout))
	for _, p := range s.Phases {
		phaseStart := p.Start
		if phaseStart.IsZero() {
			phaseStart = s.Start
		}
		sb.WriteString("  <TableSessionPhase>\n")
		fmt.Fprintf(&sb, "    <Folder>C:\\NeurOne\\Data\\%s\\%s</Folder>\n", s.Name, p.Number)
		fmt.Fprintf(&sb, "    <StartDateTime>%s</StartDateTime>\n", phaseStart.Format(TimeLayout))
		sb.WriteString("  </TableSessionPhase>\n")
	}
	if s.Person != nil {
		sb.WriteString("  <TablePerson>\n")
		fmt.Fprintf(&sb, "    <PersonID>%s</PersonID>\n", s.Person.ID)
		fmt.Fprintf(&sb, "    <FirstName>%s</FirstName>\n", s.Person.FirstName)
		fmt.Fprintf(&sb, "    <LastName>%s</LastName>\n", s.Person.LastName)
		fmt.Fprintf(&sb, "    <Gender>%s</Gender>\n", s.Person.Gender)
		if !s.Person.DateOfBirth.IsZero() {
			fmt.Fprintf(&sb, "    <DateOfBirth>%s</DateOfBirth>\n", s.Person.DateOfBirth.Format(time.RFC3339))
		}
		sb.WriteString("  </TablePerson>\n")
	}
	sb.WriteString("</DataSetSession>\n")
	return sb.String()
}
