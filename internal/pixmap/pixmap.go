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

package pixmap

import (
	"errors"
	"fmt"
	"strconv"
)

// Returned when a buffer's dimensions do not match its sample count, or a container cannot be parsed
var ErrInvalidBuffer = errors.New("invalid pixel buffer")

// Number of color channels per pixel, in order red, green, blue
const NumChannels = 3

// Channel identifiers
const (
	Red   = 0
	Green = 1
	Blue  = 2
)

// An RGB pixel map with integer samples.
// Samples are stored row-major, then column, then channel (R,G,B).
// Pass by pointer; use Clone for an explicit deep copy of the samples.
type Image struct {
	ID       int    // Sequential ID number, for log output
	FileName string // Original file name, if any, for log output

	Type   string // Container type tag, e.g. P3. Preserved on output
	Width  int    // Number of columns
	Height int    // Number of rows
	MaxVal int    // Declared maximum channel value, e.g. 255. Preserved on output, not interpreted

	Data []int // The samples, len(Data)==Width*Height*3
}

// Creates an image of given dimensions. Data is not copied, allocated if nil
func NewImage(width, height, maxVal int, data []int) *Image {
	if data == nil && width > 0 && height > 0 {
		data = make([]int, width*height*NumChannels)
	}
	return &Image{
		Type:   "P3",
		Width:  width,
		Height: height,
		MaxVal: maxVal,
		Data:   data,
	}
}

// Creates an empty image with the same dimensions and header fields as the given image.
// A new data array is allocated
func NewImageFromImage(img *Image) *Image {
	return &Image{
		ID:       img.ID,
		FileName: img.FileName,
		Type:     img.Type,
		Width:    img.Width,
		Height:   img.Height,
		MaxVal:   img.MaxVal,
		Data:     make([]int, img.Width*img.Height*NumChannels),
	}
}

// Returns a deep copy of the image, including its samples
func (f *Image) Clone() *Image {
	c := *f
	c.Data = append([]int(nil), f.Data...)
	return &c
}

// Checks that dimensions are positive and the sample count matches them
func (f *Image) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidBuffer, f.Width, f.Height)
	}
	if want := f.Width * f.Height * NumChannels; len(f.Data) != want {
		return fmt.Errorf("%w: %d samples for %dx%d pixels, want %d", ErrInvalidBuffer, len(f.Data), f.Width, f.Height, want)
	}
	return nil
}

// Returns the sample at the given position, or 0 for any row or column outside the image.
// Neighborhoods reaching over the edge are thus padded with black
func (f *Image) Get(row, col, channel int) int {
	if row >= 0 && row < f.Height && col >= 0 && col < f.Width {
		return f.Data[(row*f.Width+col)*NumChannels+channel]
	}
	return 0
}

// Stores a sample. For building output images only
func (f *Image) Set(row, col, channel, value int) {
	f.Data[(row*f.Width+col)*NumChannels+channel] = value
}

// Returns the three samples of the pixel at the given position. Must be inside the image
func (f *Image) Pixel(row, col int) []int {
	i := (row*f.Width + col) * NumChannels
	return f.Data[i : i+NumChannels]
}

// Number of pixels in the image
func (f *Image) Pixels() int {
	return f.Width * f.Height
}

// Approximate memory footprint of the samples in bytes
func (f *Image) SizeBytes() int64 {
	return int64(len(f.Data)) * strconv.IntSize / 8
}

func (f *Image) DimensionsToString() string {
	return fmt.Sprintf("%dx%dx%d", f.Width, f.Height, NumChannels)
}
