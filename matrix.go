// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package neurone

import "fmt"

// Matrix is a row-major samples x channels block of physical values.
//
// A Matrix either owns its backing array or is a view of a row range of
// an owner. Views share storage with their owner: writes through one are
// visible through the other.
type Matrix struct {
	values []float64 // rows*cols values, aliasing the owner's array for views
	rows   int
	cols   int
	owner  *Matrix // nil for owning matrices
	offset int     // first row within owner
}

// NewMatrix returns an owning matrix over values, which must hold rows*cols elements.
func NewMatrix(values []float64, rows, cols int) *Matrix {
	if len(values) != rows*cols {
		panic(fmt.Sprintf("matrix: %d values for %dx%d", len(values), rows, cols))
	}
	return &Matrix{values: values, rows: rows, cols: cols}
}

// Rows returns the number of samples.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of channels.
func (m *Matrix) Cols() int { return m.cols }

// Shape returns (samples, channels).
func (m *Matrix) Shape() (int, int) { return m.rows, m.cols }

// At returns the value of channel j at sample i.
func (m *Matrix) At(i, j int) float64 {
	return m.values[m.index(i, j)]
}

// Set stores v as the value of channel j at sample i.
func (m *Matrix) Set(i, j int, v float64) {
	m.values[m.index(i, j)] = v
}

// Row returns sample i as a slice sharing storage with m.
func (m *Matrix) Row(i int) []float64 {
	if i < 0 || i >= m.rows {
		panic(fmt.Sprintf("matrix: row %d out of range [0,%d)", i, m.rows))
	}
	return m.values[i*m.cols : (i+1)*m.cols : (i+1)*m.cols]
}

// Column copies channel j into a new slice.
func (m *Matrix) Column(j int) []float64 {
	col := make([]float64, m.rows)
	for i := range col {
		col[i] = m.At(i, j)
	}
	return col
}

// Values returns the row-major values, sharing storage with m.
func (m *Matrix) Values() []float64 {
	return m.values[:len(m.values):len(m.values)]
}

// View returns rows [from, to) as a matrix sharing storage with m. The
// view's owner is m's owner, so views of views still point at the buffer
// that holds the data.
func (m *Matrix) View(from, to int) *Matrix {
	if from < 0 || to > m.rows || from > to {
		panic(fmt.Sprintf("matrix: view [%d,%d) out of range [0,%d)", from, to, m.rows))
	}
	owner := m.Owner()
	return &Matrix{
		values: m.values[from*m.cols : to*m.cols : to*m.cols],
		rows:   to - from,
		cols:   m.cols,
		owner:  owner,
		offset: m.offset + from,
	}
}

// IsView reports whether m shares another matrix's storage.
func (m *Matrix) IsView() bool { return m.owner != nil }

// Owner returns the matrix owning m's storage, m itself for owning matrices.
func (m *Matrix) Owner() *Matrix {
	if m.owner == nil {
		return m
	}
	return m.owner
}

// Offset returns the first row of m within its owner.
func (m *Matrix) Offset() int { return m.offset }

// Clone returns an owning deep copy of m.
func (m *Matrix) Clone() *Matrix {
	values := make([]float64, len(m.values))
	copy(values, m.values)
	return NewMatrix(values, m.rows, m.cols)
}

// Equal reports whether m and o have the same shape and values.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i, v := range m.values {
		if o.values[i] != v {
			return false
		}
	}
	return true
}

func (m *Matrix) index(i, j int) int {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("matrix: index (%d,%d) out of range (%d,%d)", i, j, m.rows, m.cols))
	}
	return i*m.cols + j
}
