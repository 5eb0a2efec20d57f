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

package filter

import (
	"fmt"
	"math"

	"github.com/mlnoga/pixfilter/internal/pixmap"
)

// A 3x3 grid of weights, indexed by neighborhood offset shifted to [0,2]
type Kernel [3][3]float64

// Derives the 3x3 Gaussian kernel for the given sigma by evaluating the isotropic
// Gaussian density exp(-(dr²+dc²)/(2σ²)) / (2πσ²) at the integer offsets.
// The weights are not renormalized to sum to one, so the brightness
// of the result depends on sigma. For sigma well below 0.5 the center weight exceeds 1.
func GaussianKernel(sigma float64) (k Kernel, err error) {
	if !(sigma > 0) || math.IsInf(sigma, 1) {
		return k, fmt.Errorf("%w: gaussian sigma %g must be positive and finite", ErrInvalidParameter, sigma)
	}
	norm := 2 * math.Pi * sigma * sigma
	if norm == 0 {
		return k, fmt.Errorf("%w: gaussian sigma %g too small", ErrInvalidParameter, sigma)
	}
	for _, o := range offsets {
		k[o.Row+1][o.Col+1] = math.Exp(float64(o.Row*o.Row+o.Col*o.Col)/(-2*sigma*sigma)) / norm
	}
	return k, nil
}

// Sum of all weights
func (k *Kernel) Sum() float64 {
	sum := 0.0
	for _, row := range k {
		for _, w := range row {
			sum += w
		}
	}
	return sum
}

// Convolves the kernel with the 3x3 neighborhood of the given channel around (row,col).
// The weighted sum is truncated to an integer and not clamped
func (k *Kernel) Convolve(f *pixmap.Image, row, col, channel int) int {
	var grid [3][3]int
	for _, o := range offsets {
		grid[o.Row+1][o.Col+1] = f.Get(row+o.Row, col+o.Col, channel)
	}
	sum := 0.0
	for r := 0; r < 3; r++ {
		sum += dot3(grid[r], k[r])
	}
	return int(sum)
}

// Scalar product of three integer samples with three weights, accumulated left to right
func dot3(lhs [3]int, rhs [3]float64) float64 {
	p := 0.0
	for i := 0; i < 3; i++ {
		p += float64(lhs[i]) * rhs[i]
	}
	return p
}
