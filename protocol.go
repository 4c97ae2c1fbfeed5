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
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// Elements are matched by local name, the megaemg.com namespaces vary
// between firmware versions.
type protocolDoc struct {
	Protocol []struct {
		SamplingRate string `xml:"ActualSamplingFrequency"`
	} `xml:"TableProtocol"`
	Inputs []struct {
		Name          string `xml:"Name"`
		Unit          string `xml:"Unit"`
		PhysicalInput string `xml:"PhysicalInputNumber"`
		RangeMin      string `xml:"RangeMinimum"`
		RangeMax      string `xml:"RangeMaximum"`
		CalibratedMin string `xml:"RangeAsCalibratedMinimum"`
		CalibratedMax string `xml:"RangeAsCalibratedMaximum"`
	} `xml:"TableInput"`
}

type sessionDoc struct {
	Session []struct {
		Start string `xml:"StartDateTime"`
		Stop  string `xml:"StopDateTime"`
	} `xml:"TableSession"`
	Phases []struct {
		Folder string `xml:"Folder"`
		Start  string `xml:"StartDateTime"`
		Stop   string `xml:"StopDateTime"`
	} `xml:"TableSessionPhase"`
	Person []struct {
		ID          string `xml:"PersonID"`
		FirstName   string `xml:"FirstName"`
		LastName    string `xml:"LastName"`
		Gender      string `xml:"Gender"`
		DateOfBirth string `xml:"DateOfBirth"`
	} `xml:"TablePerson"`
}

// ReadProtocol parses the descriptors of the session stored in dir.
func ReadProtocol(dir string, layout Layout) (*Protocol, error) {
	var pdoc protocolDoc
	if err := decodeXML(filepath.Join(dir, layout.ProtocolFile), &pdoc); err != nil {
		return nil, err
	}

	var sdoc sessionDoc
	if err := decodeXML(filepath.Join(dir, layout.SessionFile), &sdoc); err != nil {
		return nil, err
	}

	p := &Protocol{Path: dir}

	// Protocol.xml: sampling rate and channels.
	if len(pdoc.Protocol) == 0 || strings.TrimSpace(pdoc.Protocol[0].SamplingRate) == "" {
		return nil, fmt.Errorf("%w: %s: missing sampling rate", ErrProtocolFormat, dir)
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(pdoc.Protocol[0].SamplingRate), 64)
	if err != nil || rate <= 0 {
		return nil, fmt.Errorf("%w: %s: invalid sampling rate %q", ErrProtocolFormat, dir, pdoc.Protocol[0].SamplingRate)
	}
	p.SamplingRate = rate

	if len(pdoc.Inputs) == 0 {
		return nil, fmt.Errorf("%w: %s: no channels", ErrProtocolFormat, dir)
	}
	for i, in := range pdoc.Inputs {
		number, err := strconv.Atoi(strings.TrimSpace(in.PhysicalInput))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: channel %d: invalid input number %q", ErrProtocolFormat, dir, i, in.PhysicalInput)
		}

		ch := Channel{
			Name:        strings.TrimSpace(in.Name),
			Unit:        strings.TrimSpace(in.Unit),
			InputNumber: number,
			Scale:       layout.DefaultScale,
		}
		if ch.Unit == "" {
			ch.Unit = layout.DefaultUnit
		}
		if scale, offset, ok := calibration(in.RangeMin, in.RangeMax, in.CalibratedMin, in.CalibratedMax); ok {
			ch.Scale, ch.Offset = scale, offset
		}
		p.Channels = append(p.Channels, ch)
	}
	slices.SortStableFunc(p.Channels, func(a, b Channel) int {
		return a.InputNumber - b.InputNumber
	})

	// Session.xml: timing, phases and subject.
	if len(sdoc.Session) == 0 || strings.TrimSpace(sdoc.Session[0].Start) == "" {
		return nil, fmt.Errorf("%w: %s: missing session start", ErrProtocolFormat, dir)
	}
	if p.StartTime, err = layout.parseTime(sdoc.Session[0].Start); err != nil {
		return nil, fmt.Errorf("%s: session start: %w", dir, err)
	}
	if p.StopTime, err = optionalTime(layout, sdoc.Session[0].Stop); err != nil {
		return nil, fmt.Errorf("%s: session stop: %w", dir, err)
	}

	if len(sdoc.Phases) == 0 {
		return nil, fmt.Errorf("%w: %s: session has no phases", ErrProtocolFormat, dir)
	}
	for i, ph := range sdoc.Phases {
		number := phaseNumber(ph.Folder)
		if number == "" {
			return nil, fmt.Errorf("%w: %s: phase %d: missing folder", ErrProtocolFormat, dir, i)
		}
		info := PhaseInfo{Number: number}
		if info.StartTime, err = layout.parseTime(ph.Start); err != nil {
			return nil, fmt.Errorf("%s: phase %s start: %w", dir, number, err)
		}
		if info.StopTime, err = optionalTime(layout, ph.Stop); err != nil {
			return nil, fmt.Errorf("%s: phase %s stop: %w", dir, number, err)
		}
		p.Phases = append(p.Phases, info)
	}

	if len(sdoc.Person) > 0 {
		person := sdoc.Person[0]
		p.Subject = SubjectInfo{
			ID:        strings.TrimSpace(person.ID),
			FirstName: strings.TrimSpace(person.FirstName),
			LastName:  strings.TrimSpace(person.LastName),
			Gender:    strings.TrimSpace(person.Gender),
		}
		if p.Subject.DateOfBirth, err = optionalTime(layout, person.DateOfBirth); err != nil {
			return nil, fmt.Errorf("%s: date of birth: %w", dir, err)
		}
	}

	return p, nil
}

func decodeXML(path string, v any) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrProtocolMissing, path)
	}
	if err != nil {
		return fmt.Errorf("error opening descriptor: %w", err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProtocolMissing, path, err)
	}
	return nil
}

func optionalTime(layout Layout, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return layout.parseTime(s)
}

// phaseNumber returns the last component of a phase folder, which may be
// a Windows path.
func phaseNumber(folder string) string {
	folder = strings.TrimSpace(folder)
	folder = strings.TrimRight(folder, `\/`)
	if i := strings.LastIndexAny(folder, `\/`); i >= 0 {
		folder = folder[i+1:]
	}
	return folder
}

// calibration derives the raw to physical mapping from an input's ranges.
func calibration(rawMin, rawMax, calMin, calMax string) (scale, offset float64, ok bool) {
	var v [4]float64
	for i, s := range []string{rawMin, rawMax, calMin, calMax} {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, 0, false
		}
		v[i] = f
	}
	if v[1] == v[0] {
		return 0, 0, false
	}
	scale = (v[3] - v[2]) / (v[1] - v[0])
	return scale, v[2] - v[0]*scale, true
}
