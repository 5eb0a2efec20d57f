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
	"errors"
	"fmt"
	"sort"

	"github.com/mlnoga/pixfilter/internal/pixmap"
)

// Returned for unknown filter names and out-of-domain filter parameters
var ErrInvalidParameter = errors.New("invalid filter parameter")

// A pixel function computes the three output samples for the pixel at (row,col),
// reading only from src, and stores them into out
type PixelFunction func(src *pixmap.Image, row, col int, out *[3]int)

// Filter names
const (
	NameManual    = "manual"
	NameInverse   = "inverse"
	NameGrayscale = "grayscale"
	NameSepia     = "sepia"
	NameDilation  = "dilation"
	NameErosion   = "erosion"
	NameMedian    = "median"
	NameGaussian  = "gaussian"
)

// Selects a filter and its scalar parameters
type Params struct {
	Name  string  `json:"name"`
	Red   int     `json:"red"`   // manual only
	Green int     `json:"green"` // manual only
	Blue  int     `json:"blue"`  // manual only
	Sigma float64 `json:"sigma"` // gaussian only
}

func (p Params) String() string {
	switch p.Name {
	case NameManual:
		return fmt.Sprintf("%s(%+d,%+d,%+d)", p.Name, p.Red, p.Green, p.Blue)
	case NameGaussian:
		return fmt.Sprintf("%s(sigma=%g)", p.Name, p.Sigma)
	default:
		return p.Name
	}
}

// Applies a per-channel neighborhood sampler to all three channels
func perChannel(sample func(f *pixmap.Image, row, col, channel int) int) PixelFunction {
	return func(src *pixmap.Image, row, col int, out *[3]int) {
		out[0] = sample(src, row, col, 0)
		out[1] = sample(src, row, col, 1)
		out[2] = sample(src, row, col, 2)
	}
}

func centerPixel(src *pixmap.Image, row, col int) (rgb [3]int) {
	copy(rgb[:], src.Pixel(row, col))
	return rgb
}

// Builders for filters without parameters
var fixedFilters = map[string]PixelFunction{
	NameInverse: func(src *pixmap.Image, row, col int, out *[3]int) {
		p := src.Pixel(row, col)
		out[0], out[1], out[2] = InverseValue(p[0]), InverseValue(p[1]), InverseValue(p[2])
	},
	NameGrayscale: func(src *pixmap.Image, row, col int, out *[3]int) {
		gray := GrayscaleValue(centerPixel(src, row, col))
		out[0], out[1], out[2] = gray, gray, gray
	},
	NameSepia: func(src *pixmap.Image, row, col int, out *[3]int) {
		rgb := centerPixel(src, row, col)
		out[0], out[1], out[2] = SepiaValue(rgb, 0), SepiaValue(rgb, 1), SepiaValue(rgb, 2)
	},
	NameDilation: perChannel(Dilation),
	NameErosion:  perChannel(Erosion),
	NameMedian:   perChannel(Median),
}

// Returns the sorted names of all known filters
func Names() []string {
	names := []string{NameManual, NameGaussian}
	for name := range fixedFilters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Selects the pixel function for the given parameters. Parameter-dependent state,
// like the Gaussian kernel, is derived here once per invocation
func Select(p Params) (PixelFunction, error) {
	switch p.Name {
	case NameManual:
		dr, dg, db := p.Red, p.Green, p.Blue
		return func(src *pixmap.Image, row, col int, out *[3]int) {
			px := src.Pixel(row, col)
			out[0], out[1], out[2] = ManualValue(px[0], dr), ManualValue(px[1], dg), ManualValue(px[2], db)
		}, nil

	case NameGaussian:
		k, err := GaussianKernel(p.Sigma)
		if err != nil {
			return nil, err
		}
		return perChannel(k.Convolve), nil

	default:
		if pf, ok := fixedFilters[p.Name]; ok {
			return pf, nil
		}
		return nil, fmt.Errorf("%w: unknown filter '%s'", ErrInvalidParameter, p.Name)
	}
}

// Validates the source, selects the filter and applies it, see Apply
func Run(src *pixmap.Image, p Params, workers int) (*pixmap.Image, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	pf, err := Select(p)
	if err != nil {
		return nil, err
	}
	return Apply(src, pf, workers), nil
}

// Applies the pixel function to every pixel of src and returns a new image of the same
// dimensions. Source must be valid. Rows are visited in order, columns left to right.
// With workers>1, contiguous row ranges are processed in parallel, which yields
// the same result since all reads go to the unmodified source
func Apply(src *pixmap.Image, pf PixelFunction, workers int) *pixmap.Image {
	dst := pixmap.NewImageFromImage(src)
	if workers <= 1 || src.Height < 2 {
		applyRows(dst, src, pf, 0, src.Height)
		return dst
	}
	if workers > src.Height {
		workers = src.Height
	}

	// split into 4*workers row ranges, limit parallelism to workers
	numBatches := 4 * workers
	batchSize := (src.Height + numBatches - 1) / numBatches
	sem := make(chan bool, workers)
	for lower := 0; lower < src.Height; lower += batchSize {
		upper := lower + batchSize
		if upper > src.Height {
			upper = src.Height
		}

		sem <- true
		go func(lower, upper int) {
			applyRows(dst, src, pf, lower, upper)
			<-sem
		}(lower, upper)
	}

	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}
	return dst
}

func applyRows(dst, src *pixmap.Image, pf PixelFunction, lower, upper int) {
	var out [3]int
	for row := lower; row < upper; row++ {
		for col := 0; col < src.Width; col++ {
			pf(src, row, col, &out)
			copy(dst.Pixel(row, col), out[:])
		}
	}
}
