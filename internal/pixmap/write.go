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
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"strconv"

	pnm "github.com/jbuchbinder/gopnm"
	"golang.org/x/image/tiff"
)

// Writes the image as text container to the given file
func (f *Image) WriteFile(fileName string) error {
	return writeFileWith(fileName, f.Write)
}

// Writes the image as text container: type tag, width and height, maximum value,
// then one line with the three samples per pixel. Samples are written as-is, without clamping
func (f *Image) Write(writer io.Writer) error {
	w := bufio.NewWriter(writer)
	w.WriteString(f.Type)
	w.WriteByte('\n')
	w.WriteString(strconv.Itoa(f.Width))
	w.WriteByte(' ')
	w.WriteString(strconv.Itoa(f.Height))
	w.WriteByte('\n')
	w.WriteString(strconv.Itoa(f.MaxVal))
	w.WriteByte('\n')
	for i := 0; i < len(f.Data); i += NumChannels {
		w.WriteString(strconv.Itoa(f.Data[i]))
		w.WriteByte(' ')
		w.WriteString(strconv.Itoa(f.Data[i+1]))
		w.WriteByte(' ')
		w.WriteString(strconv.Itoa(f.Data[i+2]))
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Converts to an 8-bit Go image. Samples are clamped to [0,MaxVal] and scaled to [0,255]
func (f *Image) ToGoImage() *image.RGBA {
	img := image.NewRGBA(image.Rectangle{image.Point{0, 0}, image.Point{f.Width, f.Height}})
	maxVal := f.MaxVal
	if maxVal <= 0 {
		maxVal = 255
	}
	scale := func(v int) uint8 {
		if v < 0 {
			v = 0
		}
		if v > maxVal {
			v = maxVal
		}
		return uint8(v * 255 / maxVal)
	}
	for row := 0; row < f.Height; row++ {
		for col := 0; col < f.Width; col++ {
			p := f.Pixel(row, col)
			img.SetRGBA(col, row, color.RGBA{scale(p[Red]), scale(p[Green]), scale(p[Blue]), 255})
		}
	}
	return img
}

// Writes the image as binary P6 pixmap to the given file
func (f *Image) WriteBinaryFile(fileName string) error {
	return writeFileWith(fileName, f.WriteBinary)
}

// Writes the image as binary P6 pixmap
func (f *Image) WriteBinary(writer io.Writer) error {
	return pnm.Encode(writer, f.ToGoImage(), pnm.PPM)
}

// Writes the image as 8-bit uncompressed TIFF to the given file
func (f *Image) WriteTIFFToFile(fileName string) error {
	return writeFileWith(fileName, f.WriteTIFF)
}

// Writes the image as 8-bit uncompressed TIFF
func (f *Image) WriteTIFF(writer io.Writer) error {
	return tiff.Encode(writer, f.ToGoImage(), &tiff.Options{Compression: tiff.Uncompressed, Predictor: false})
}

// Writes the image as JPEG with given quality to the given file
func (f *Image) WriteJPGToFile(fileName string, quality int) error {
	return writeFileWith(fileName, func(w io.Writer) error { return f.WriteJPG(w, quality) })
}

// Writes the image as JPEG with given quality
func (f *Image) WriteJPG(writer io.Writer, quality int) error {
	return jpeg.Encode(writer, f.ToGoImage(), &jpeg.Options{Quality: quality})
}

func writeFileWith(fileName string, write func(io.Writer) error) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := write(writer); err != nil {
		return err
	}
	return writer.Flush()
}
