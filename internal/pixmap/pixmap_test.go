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
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestGetOutsideIsZero(t *testing.T) {
	f := NewImage(2, 2, 255, []int{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	})
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate()=%v; want nil", err)
	}
	if got := f.Get(1, 0, Blue); got != 9 {
		t.Errorf("Get(1,0,B)=%d; want 9", got)
	}
	for _, rc := range [][2]int{{-1, 0}, {0, -1}, {2, 0}, {0, 2}, {-1, -1}, {2, 2}} {
		for ch := 0; ch < NumChannels; ch++ {
			if got := f.Get(rc[0], rc[1], ch); got != 0 {
				t.Errorf("Get(%d,%d,%d)=%d; want 0", rc[0], rc[1], ch, got)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	tcs := []struct {
		width, height int
		samples       int
		valid         bool
	}{
		{3, 2, 18, true},
		{3, 2, 17, false},
		{3, 2, 19, false},
		{0, 2, 0, false},
		{3, -1, 0, false},
	}
	for _, tc := range tcs {
		f := &Image{Width: tc.width, Height: tc.height, MaxVal: 255, Data: make([]int, tc.samples)}
		err := f.Validate()
		if tc.valid && err != nil {
			t.Errorf("%dx%d with %d samples: err=%v; want nil", tc.width, tc.height, tc.samples, err)
		}
		if !tc.valid && !errors.Is(err, ErrInvalidBuffer) {
			t.Errorf("%dx%d with %d samples: err=%v; want ErrInvalidBuffer", tc.width, tc.height, tc.samples, err)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	f := NewImage(1, 1, 255, []int{10, 20, 30})
	c := f.Clone()
	c.Set(0, 0, Red, 99)
	if f.Get(0, 0, Red) != 10 {
		t.Errorf("original changed to %d after writing the clone", f.Get(0, 0, Red))
	}
}

func TestReadWriteText(t *testing.T) {
	in := "P3\n2 1\n255\n0 128 255\n1 2 3\n"
	f, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read()=%v", err)
	}
	if f.Type != "P3" || f.Width != 2 || f.Height != 1 || f.MaxVal != 255 {
		t.Errorf("header=%s %d %d %d; want P3 2 1 255", f.Type, f.Width, f.Height, f.MaxVal)
	}
	if f.Get(0, 1, Green) != 2 {
		t.Errorf("Get(0,1,G)=%d; want 2", f.Get(0, 1, Green))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write()=%v", err)
	}
	if buf.String() != in {
		t.Errorf("Write()=%q; want %q", buf.String(), in)
	}
}

func TestReadTextKeepsTypeTagAndMaxVal(t *testing.T) {
	f, err := ReadText(strings.NewReader("XY 1 1 1023   1000 0\t7"))
	if err != nil {
		t.Fatalf("ReadText()=%v", err)
	}
	if f.Type != "XY" || f.MaxVal != 1023 {
		t.Errorf("type=%s max=%d; want XY 1023", f.Type, f.MaxVal)
	}
	if f.CountOutOfRange() != 0 {
		t.Errorf("CountOutOfRange()=%d; want 0", f.CountOutOfRange())
	}
}

func TestReadTextRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"P3",
		"P3 2 2",
		"P3 2 2 255 1 2 3",
		"P3 1 1 255 1 2 x",
		"P3 0 1 255",
		"P3 a 1 255 1 2 3",
		"P3 70000 70000 255",
	} {
		if _, err := ReadText(strings.NewReader(in)); !errors.Is(err, ErrInvalidBuffer) {
			t.Errorf("ReadText(%q) err=%v; want ErrInvalidBuffer", in, err)
		}
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	f := NewImage(3, 2, 255, []int{
		0, 1, 2, 50, 100, 150, 253, 254, 255,
		255, 0, 0, 0, 255, 0, 0, 0, 255,
	})
	var buf bytes.Buffer
	if err := f.WriteBinary(&buf); err != nil {
		t.Fatalf("WriteBinary()=%v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("P6")) {
		t.Fatalf("binary output does not start with P6")
	}
	g, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read()=%v", err)
	}
	if g.Type != "P6" || g.Width != 3 || g.Height != 2 {
		t.Errorf("header=%s %d %d; want P6 3 2", g.Type, g.Width, g.Height)
	}
	for i := range f.Data {
		if g.Data[i] != f.Data[i] {
			t.Errorf("Data[%d]=%d; want %d", i, g.Data[i], f.Data[i])
		}
	}
}

func TestToGoImageClamps(t *testing.T) {
	f := NewImage(1, 1, 255, []int{-5, 300, 128})
	c := f.ToGoImage().RGBAAt(0, 0)
	if c.R != 0 || c.G != 255 || c.B != 128 {
		t.Errorf("RGBAAt(0,0)=%v; want {0 255 128 255}", c)
	}
}

func TestWriteTIFF(t *testing.T) {
	f := NewImage(4, 3, 255, nil)
	var buf bytes.Buffer
	if err := f.WriteTIFF(&buf); err != nil {
		t.Fatalf("WriteTIFF()=%v", err)
	}
	if buf.Len() == 0 {
		t.Errorf("WriteTIFF wrote no bytes")
	}
}
