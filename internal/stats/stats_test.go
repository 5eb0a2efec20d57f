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

package stats

import (
	"math"
	"testing"

	"github.com/mlnoga/pixfilter/internal/pixmap"
	"github.com/valyala/fastrand"
)

func TestNewStats(t *testing.T) {
	f := pixmap.NewImage(2, 2, 255, []int{
		0, 10, 255, 10, 10, 255,
		20, 10, 255, 30, 50, 255,
	})
	s := NewStats(f, DefaultMedianSamples)
	epsilon := 1e-9

	r := s.Channels[pixmap.Red]
	if r.Min != 0 || r.Max != 30 || math.Abs(r.Mean-15) > epsilon || r.Median != 20 {
		t.Errorf("red=%+v; want min 0 max 30 mean 15 median 20", r)
	}
	if want := math.Sqrt(500.0 / 3); math.Abs(r.StdDev-want) > epsilon {
		t.Errorf("red stdDev=%f; want %f", r.StdDev, want)
	}
	g := s.Channels[pixmap.Green]
	if g.Peak != 10 || g.Median != 10 {
		t.Errorf("green peak=%d median=%d; want 10 10", g.Peak, g.Median)
	}
	b := s.Channels[pixmap.Blue]
	if b.Min != 255 || b.Max != 255 || b.StdDev != 0 || b.Peak != 255 {
		t.Errorf("blue=%+v; want constant 255", b)
	}
	if s.MeanColor != "#0f14ff" {
		t.Errorf("MeanColor=%s; want #0f14ff", s.MeanColor)
	}
}

func TestGrayHasNoChroma(t *testing.T) {
	f := pixmap.NewImage(3, 1, 255, []int{128, 128, 128, 128, 128, 128, 128, 128, 128})
	s := NewStats(f, 0)
	if s.Chroma > 1e-3 {
		t.Errorf("chroma=%f; want ~0 for gray", s.Chroma)
	}
	if s.MeanColor != "#808080" {
		t.Errorf("MeanColor=%s; want #808080", s.MeanColor)
	}
}

func TestPeak(t *testing.T) {
	tcs := []struct {
		data     []int
		min, max int
		want     int
	}{
		{[]int{}, 0, 0, 0},
		{[]int{3, 3, 3}, 3, 3, 3},
		{[]int{1, 2, 2, 5, 5}, 1, 5, 2},
		{[]int{0, 1 << 20, 1 << 20}, 0, 1 << 20, 1 << 20},
	}
	for _, tc := range tcs {
		if v := Peak(tc.data, tc.min, tc.max); v != tc.want {
			t.Errorf("Peak(%v)=%d; want %d", tc.data, v, tc.want)
		}
	}
}

func TestFastApproxMedian(t *testing.T) {
	rng := fastrand.RNG{}
	data := make([]int, 100000)
	for i := range data {
		data[i] = int(rng.Uint32n(256))
	}
	median := FastApproxMedian(data, make([]int, DefaultMedianSamples))
	if median < 118 || median > 138 {
		t.Errorf("FastApproxMedian of uniform [0,255]=%d; want close to 128", median)
	}
}
