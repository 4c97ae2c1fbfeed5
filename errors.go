// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package neurone

import "errors"

var (
	// ErrProtocolMissing is returned when a session descriptor is absent or is not well-formed XML.
	ErrProtocolMissing = errors.New("protocol descriptor missing")
	// ErrProtocolFormat is returned when a descriptor lacks a required field or holds an unparsable value.
	ErrProtocolFormat = errors.New("invalid protocol descriptor")
	// ErrSampleSizeMismatch is returned when a sample file does not hold a whole number of sample rows.
	ErrSampleSizeMismatch = errors.New("sample file size mismatch")
	// ErrEventFormat is returned when an event file ends in a truncated record.
	ErrEventFormat = errors.New("invalid event file")
	// ErrInconsistentChannels is returned when aggregated children disagree on their channel set.
	ErrInconsistentChannels = errors.New("inconsistent channels")
	// ErrInconsistentSamplingRate is returned when aggregated children disagree on their sampling rate.
	ErrInconsistentSamplingRate = errors.New("inconsistent sampling rate")
)
