// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package filter implements per-pixel and 3x3 neighborhood color transforms
// on integer RGB pixel maps. All neighborhood reads go to the unmodified source
// image, and samples outside the image read as 0.
package filter

import (
	"github.com/mlnoga/pixfilter/internal/median"
	"github.com/mlnoga/pixfilter/internal/pixmap"
)

// A position relative to the center of a 3x3 neighborhood
type Offset struct {
	Row int
	Col int
}

// The 3x3 neighborhood in row-major order, center included
var offsets = [9]Offset{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 0}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Returns the 3x3 neighborhood offsets in row-major order
func Offsets() [9]Offset {
	return offsets
}

// Gathers the nine samples of the given channel around (row,col), in offset order
func gather(f *pixmap.Image, row, col, channel int) (a [9]int) {
	for i, o := range offsets {
		a[i] = f.Get(row+o.Row, col+o.Col, channel)
	}
	return a
}

// Maximum channel value in the 3x3 neighborhood, starting from 0
func Dilation(f *pixmap.Image, row, col, channel int) int {
	maximal := 0
	for _, o := range offsets {
		if v := f.Get(row+o.Row, col+o.Col, channel); v > maximal {
			maximal = v
		}
	}
	return maximal
}

// Minimum channel value in the 3x3 neighborhood, starting from 255
func Erosion(f *pixmap.Image, row, col, channel int) int {
	minimal := channelCap
	for _, o := range offsets {
		if v := f.Get(row+o.Row, col+o.Col, channel); v < minimal {
			minimal = v
		}
	}
	return minimal
}

// Median channel value in the 3x3 neighborhood, i.e. the fifth smallest of the nine samples
func Median(f *pixmap.Image, row, col, channel int) int {
	a := gather(f, row, col, channel)
	return median.Median9(&a)
}
