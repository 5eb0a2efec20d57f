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
	"bufio"
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"

	pnm "github.com/jbuchbinder/gopnm"
)

// Reads an image from a file. Plain text containers are parsed directly,
// binary P6 pixmaps are handed to the PNM decoder
func NewImageFromFile(fileName string, id int, logWriter io.Writer) (*Image, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	f, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%d: reading %s: %w", id, fileName, err)
	}
	f.ID, f.FileName = id, fileName
	if outOfRange := f.CountOutOfRange(); outOfRange > 0 {
		fmt.Fprintf(logWriter, "%d: Warning: %d samples outside [0,%d] in %s\n", id, outOfRange, f.MaxVal, fileName)
	}
	return f, nil
}

// Reads an image from the given reader
func Read(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBuffer, err.Error())
	}
	if bytes.Equal(magic, []byte("P6")) {
		return readBinary(br)
	}
	return ReadText(br)
}

// Upper bound for width*height accepted by the readers
const MaxPixels = 1 << 28

// Parses a text container: type tag, width, height, maximum value, then
// width*height*3 integers in row-major R,G,B order, all separated by whitespace
func ReadText(r io.Reader) (*Image, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: missing type tag", ErrInvalidBuffer)
	}
	typ := scanner.Text()

	var header [3]int
	for i, name := range []string{"width", "height", "maximum value"} {
		v, err := scanInt(scanner)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidBuffer, name, err.Error())
		}
		header[i] = v
	}

	if header[0] <= 0 || header[1] <= 0 || header[0] > MaxPixels/header[1] {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidBuffer, header[0], header[1])
	}
	f := NewImage(header[0], header[1], header[2], nil)
	f.Type = typ
	for i := range f.Data {
		v, err := scanInt(scanner)
		if err != nil {
			return nil, fmt.Errorf("%w: sample %d of %d: %s", ErrInvalidBuffer, i, len(f.Data), err.Error())
		}
		f.Data[i] = v
	}
	return f, nil
}

func scanInt(scanner *bufio.Scanner) (int, error) {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return 0, err
		}
		return 0, io.ErrUnexpectedEOF
	}
	return strconv.Atoi(scanner.Text())
}

// Decodes a binary P6 pixmap into 8-bit samples
func readBinary(r io.Reader) (*Image, error) {
	img, err := pnm.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBuffer, err.Error())
	}
	f := NewImageFromGoImage(img)
	f.Type = "P6"
	return f, nil
}

// Converts a Go image into an 8-bit pixel map
func NewImageFromGoImage(img image.Image) *Image {
	bounds := img.Bounds()
	f := NewImage(bounds.Dx(), bounds.Dy(), 255, nil)
	for row := 0; row < f.Height; row++ {
		for col := 0; col < f.Width; col++ {
			r, g, b, _ := img.At(bounds.Min.X+col, bounds.Min.Y+row).RGBA()
			f.Set(row, col, Red, int(r>>8))
			f.Set(row, col, Green, int(g>>8))
			f.Set(row, col, Blue, int(b>>8))
		}
	}
	return f
}

// Counts samples outside [0, MaxVal]
func (f *Image) CountOutOfRange() int {
	n := 0
	for _, d := range f.Data {
		if d < 0 || d > f.MaxVal {
			n++
		}
	}
	return n
}
