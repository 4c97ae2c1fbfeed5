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
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// Source is the read contract shared by phases, sessions and recordings.
// Exporters to other formats depend only on this.
type Source interface {
	Data() (*Matrix, error)
	Events() ([]Event, error)
	Channels() ([]Channel, error)
	SamplingRate() (float64, error)
	SubjectInfo() (SubjectInfo, error)
	StartTime() time.Time
}

var (
	_ Source = (*Phase)(nil)
	_ Source = (*Session)(nil)
	_ Source = (*Recording)(nil)
)

// Phase is one contiguous segment of a session. Opening a phase reads
// nothing; files are decoded on first access.
//
// Phases, sessions and recordings are not safe for concurrent use.
type Phase struct {
	*container
	info PhaseInfo
	dir  string
}

// Number returns the name of the phase directory.
func (p *Phase) Number() string { return p.info.Number }

// Dir returns the phase directory.
func (p *Phase) Dir() string { return p.dir }

// StartTime returns the wall clock time of the first sample.
func (p *Phase) StartTime() time.Time { return p.info.StartTime }

// StopTime returns the wall clock time the phase ended, zero if unknown.
func (p *Phase) StopTime() time.Time { return p.info.StopTime }

func newPhase(sessionLabel string, protocol *Protocol, info PhaseInfo, o *options) *Phase {
	l := &leaf{
		dir:      filepath.Join(protocol.Path, info.Number),
		protocol: protocol,
		layout:   o.layout,
	}
	l.self = newContainer("phase", sessionLabel+"/"+info.Number, l, o)
	return &Phase{container: l.self, info: info, dir: l.dir}
}

// Session is the ordered list of phases recorded in one sitting.
type Session struct {
	*container
	protocol *Protocol
	phases   []*Phase
}

// OpenSession reads the descriptors of the session stored in dir.
func OpenSession(dir string, opts ...Option) (*Session, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	s, err := openSession(dir, o)
	if err != nil {
		return nil, err
	}

	if o.preload {
		if err := s.Preload(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func openSession(dir string, o *options) (*Session, error) {
	protocol, err := ReadProtocol(dir, o.layout)
	if err != nil {
		return nil, err
	}

	infos := slices.Clone(protocol.Phases)
	slices.SortStableFunc(infos, func(a, b PhaseInfo) int {
		return a.StartTime.Compare(b.StartTime)
	})

	label := filepath.Base(dir)
	agg := &aggregate{protocol: protocol}
	s := &Session{protocol: protocol}
	for _, info := range infos {
		p := newPhase(label, protocol, info, o)
		s.phases = append(s.phases, p)
		agg.kids = append(agg.kids, p.container)
	}
	agg.self = newContainer("session", label, agg, o)
	s.container = agg.self

	o.logger.Debug("opened session", "session", label, "phases", len(s.phases), "start", protocol.StartTime)
	return s, nil
}

// Phases returns the phases in chronological order.
func (s *Session) Phases() []*Phase { return slices.Clone(s.phases) }

// Dir returns the session directory.
func (s *Session) Dir() string { return s.protocol.Path }

// Protocol returns the parsed session descriptors.
func (s *Session) Protocol() *Protocol { return s.protocol }

// StartTime returns the session start recorded in the descriptor.
func (s *Session) StartTime() time.Time { return s.protocol.StartTime }

// StopTime returns the session stop recorded in the descriptor, zero if unknown.
func (s *Session) StopTime() time.Time { return s.protocol.StopTime }

// Recording is the root container: the sessions found in one directory,
// in chronological order.
type Recording struct {
	*container
	dir      string
	sessions []*Session
}

// OpenRecording finds the sessions stored in the subdirectories of dir.
// Every subdirectory holding a session descriptor must parse; data files
// are not touched until first access unless WithPreload is given.
func OpenRecording(dir string, opts ...Option) (*Recording, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading recording directory: %w", err)
	}

	r := &Recording{dir: dir}
	agg := &aggregate{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sdir := filepath.Join(dir, entry.Name())
		if !hasDescriptor(sdir, o.layout) {
			o.logger.Debug("skipping directory without session descriptor", "dir", sdir)
			continue
		}

		s, err := openSession(sdir, o)
		if err != nil {
			return nil, err
		}
		r.sessions = append(r.sessions, s)
	}
	if len(r.sessions) == 0 {
		return nil, fmt.Errorf("%w: no sessions found in %s", ErrProtocolMissing, dir)
	}

	slices.SortStableFunc(r.sessions, func(a, b *Session) int {
		return a.StartTime().Compare(b.StartTime())
	})
	for _, s := range r.sessions {
		agg.kids = append(agg.kids, s.container)
	}
	agg.self = newContainer("recording", filepath.Base(dir), agg, o)
	r.container = agg.self

	o.logger.Debug("opened recording", "dir", dir, "sessions", len(r.sessions))

	if o.preload {
		if err := r.Preload(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Sessions returns the sessions in chronological order.
func (r *Recording) Sessions() []*Session { return slices.Clone(r.sessions) }

// Dir returns the recording directory.
func (r *Recording) Dir() string { return r.dir }

// StartTime returns the start of the earliest session.
func (r *Recording) StartTime() time.Time { return r.sessions[0].StartTime() }

// hasDescriptor reports whether dir holds either session descriptor file.
func hasDescriptor(dir string, layout Layout) bool {
	for _, name := range []string{layout.ProtocolFile, layout.SessionFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil || !errors.Is(err, fs.ErrNotExist) {
			return true
		}
	}
	return false
}
