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
	"math"
	"sort"
	"testing"

	"github.com/mlnoga/pixfilter/internal/pixmap"
	"github.com/valyala/fastrand"
)

// Creates a width x height image with random samples in [0,255]
func randomImage(rng *fastrand.RNG, width, height int) *pixmap.Image {
	f := pixmap.NewImage(width, height, 255, nil)
	for i := range f.Data {
		f.Data[i] = int(rng.Uint32n(256))
	}
	return f
}

// 3x3 black image with a white center pixel
func whiteCenter() *pixmap.Image {
	f := pixmap.NewImage(3, 3, 255, nil)
	for ch := 0; ch < 3; ch++ {
		f.Set(1, 1, ch, 255)
	}
	return f
}

func run(t *testing.T, src *pixmap.Image, p Params) *pixmap.Image {
	t.Helper()
	dst, err := Run(src, p, 1)
	if err != nil {
		t.Fatalf("Run(%v)=%v", p, err)
	}
	return dst
}

func TestWhiteCenterNeighborhoods(t *testing.T) {
	src := whiteCenter()
	dil := run(t, src, Params{Name: NameDilation})
	ero := run(t, src, Params{Name: NameErosion})
	med := run(t, src, Params{Name: NameMedian})
	for ch := 0; ch < 3; ch++ {
		if v := dil.Get(1, 1, ch); v != 255 {
			t.Errorf("dilation(1,1,%d)=%d; want 255", ch, v)
		}
		if v := dil.Get(0, 0, ch); v != 255 {
			t.Errorf("dilation(0,0,%d)=%d; want 255", ch, v)
		}
		if v := ero.Get(1, 1, ch); v != 0 {
			t.Errorf("erosion(1,1,%d)=%d; want 0", ch, v)
		}
		if v := med.Get(1, 1, ch); v != 0 {
			t.Errorf("median(1,1,%d)=%d; want 0", ch, v)
		}
	}
	// every pixel of a 3x3 image has the center as a neighbor
	for i, v := range dil.Data {
		if v != 255 {
			t.Errorf("dilation Data[%d]=%d; want 255", i, v)
		}
	}
}

func TestEdgesArePaddedWithBlack(t *testing.T) {
	src := pixmap.NewImage(4, 3, 255, nil)
	for i := range src.Data {
		src.Data[i] = 200
	}
	ero := run(t, src, Params{Name: NameErosion})
	med := run(t, src, Params{Name: NameMedian})
	for row := 0; row < src.Height; row++ {
		for col := 0; col < src.Width; col++ {
			edge := row == 0 || col == 0 || row == src.Height-1 || col == src.Width-1
			want := 200
			if edge {
				want = 0
			}
			if v := ero.Get(row, col, pixmap.Green); v != want {
				t.Errorf("erosion(%d,%d)=%d; want %d", row, col, v, want)
			}
		}
	}
	// corners see 4 in-image and 5 padded samples, so the median is 0; edge centers see 6 and 3
	if v := med.Get(0, 0, pixmap.Red); v != 0 {
		t.Errorf("median(0,0)=%d; want 0", v)
	}
	if v := med.Get(0, 1, pixmap.Red); v != 200 {
		t.Errorf("median(0,1)=%d; want 200", v)
	}
}

func TestInteriorDilationErosionBounds(t *testing.T) {
	rng := fastrand.RNG{}
	src := randomImage(&rng, 17, 11)
	dil := run(t, src, Params{Name: NameDilation})
	ero := run(t, src, Params{Name: NameErosion})
	for row := 1; row < src.Height-1; row++ {
		for col := 1; col < src.Width-1; col++ {
			for ch := 0; ch < 3; ch++ {
				d, e := dil.Get(row, col, ch), ero.Get(row, col, ch)
				for _, o := range Offsets() {
					v := src.Get(row+o.Row, col+o.Col, ch)
					if d < v {
						t.Errorf("dilation(%d,%d,%d)=%d < neighbor %d", row, col, ch, d, v)
					}
					if e > v {
						t.Errorf("erosion(%d,%d,%d)=%d > neighbor %d", row, col, ch, e, v)
					}
				}
			}
		}
	}
}

func TestMedianIsFifthSmallest(t *testing.T) {
	rng := fastrand.RNG{}
	src := randomImage(&rng, 9, 8)
	med := run(t, src, Params{Name: NameMedian})
	for row := 0; row < src.Height; row++ {
		for col := 0; col < src.Width; col++ {
			for ch := 0; ch < 3; ch++ {
				var samples []int
				for _, o := range Offsets() {
					samples = append(samples, src.Get(row+o.Row, col+o.Col, ch))
				}
				sort.Ints(samples)
				if v := med.Get(row, col, ch); v != samples[4] {
					t.Errorf("median(%d,%d,%d)=%d; want %d", row, col, ch, v, samples[4])
				}
			}
		}
	}
}

func TestManualClampsOneSide(t *testing.T) {
	tcs := []struct{ value, change, want int }{
		{10, 300, 255},
		{10, -300, 0},
		{10, 5, 15},
		{10, -5, 5},
		{250, 0, 250},
		{300, -10, 290}, // no cap for negative changes
		{-20, 10, -10},  // no floor for non-negative changes
	}
	for _, tc := range tcs {
		if v := ManualValue(tc.value, tc.change); v != tc.want {
			t.Errorf("ManualValue(%d,%d)=%d; want %d", tc.value, tc.change, v, tc.want)
		}
	}

	src := pixmap.NewImage(1, 1, 255, []int{10, 10, 10})
	dst := run(t, src, Params{Name: NameManual, Red: 300, Green: -300, Blue: 1})
	if dst.Data[0] != 255 || dst.Data[1] != 0 || dst.Data[2] != 11 {
		t.Errorf("manual(+300,-300,+1)=%v; want [255 0 11]", dst.Data)
	}
}

func TestInverseTwiceIsIdentity(t *testing.T) {
	for v := 0; v <= 255; v++ {
		if got := InverseValue(InverseValue(v)); got != v {
			t.Errorf("inverse(inverse(%d))=%d", v, got)
		}
	}
	rng := fastrand.RNG{}
	src := randomImage(&rng, 5, 4)
	twice := run(t, run(t, src, Params{Name: NameInverse}), Params{Name: NameInverse})
	for i := range src.Data {
		if twice.Data[i] != src.Data[i] {
			t.Errorf("Data[%d]=%d; want %d", i, twice.Data[i], src.Data[i])
		}
	}
}

func TestGrayscale(t *testing.T) {
	tcs := []struct {
		rgb  [3]int
		want int
	}{
		{[3]int{0, 0, 0}, 0},
		{[3]int{255, 0, 0}, 76},  // 76.245
		{[3]int{0, 255, 0}, 149}, // 149.685
		{[3]int{0, 0, 255}, 29},  // 29.07
		{[3]int{10, 20, 30}, 18}, // 18.15
	}
	for _, tc := range tcs {
		if v := GrayscaleValue(tc.rgb); v != tc.want {
			t.Errorf("GrayscaleValue(%v)=%d; want %d", tc.rgb, v, tc.want)
		}
	}

	rng := fastrand.RNG{}
	dst := run(t, randomImage(&rng, 7, 6), Params{Name: NameGrayscale})
	for i := 0; i < len(dst.Data); i += 3 {
		if dst.Data[i] != dst.Data[i+1] || dst.Data[i] != dst.Data[i+2] {
			t.Errorf("pixel %d=%v; want equal channels", i/3, dst.Data[i:i+3])
		}
	}
}

func TestSepia(t *testing.T) {
	tcs := []struct {
		rgb  [3]int
		want [3]int
	}{
		{[3]int{0, 0, 0}, [3]int{0, 0, 0}},
		{[3]int{100, 100, 100}, [3]int{135, 120, 93}},  // 135.1, 120.3, 93.7
		{[3]int{255, 255, 255}, [3]int{255, 255, 238}}, // 344.5 and 306.8 capped, 238.9
	}
	for _, tc := range tcs {
		for ch := 0; ch < 3; ch++ {
			if v := SepiaValue(tc.rgb, ch); v != tc.want[ch] {
				t.Errorf("SepiaValue(%v,%d)=%d; want %d", tc.rgb, ch, v, tc.want[ch])
			}
		}
	}
}

func TestGaussianKernel(t *testing.T) {
	epsilon := 1e-6
	k, err := GaussianKernel(1)
	if err != nil {
		t.Fatalf("GaussianKernel(1)=%v", err)
	}
	center, edge, corner := 0.159155, 0.096532, 0.058550
	want := Kernel{{corner, edge, corner}, {edge, center, edge}, {corner, edge, corner}}
	for r := range k {
		for c := range k[r] {
			if math.Abs(k[r][c]-want[r][c]) > epsilon {
				t.Errorf("sigma=1 k[%d][%d]=%f; want %f", r, c, k[r][c], want[r][c])
			}
		}
	}
	if sum := k.Sum(); math.Abs(sum-0.779484) > epsilon {
		t.Errorf("sigma=1 sum=%f; want 0.779484 (unnormalized)", sum)
	}
}

func TestGaussianLargeSigmaIsNearUniform(t *testing.T) {
	k, err := GaussianKernel(100)
	if err != nil {
		t.Fatalf("GaussianKernel(100)=%v", err)
	}
	if ratio := k[1][1] / k[0][0]; ratio > 1.001 {
		t.Errorf("sigma=100 center/corner=%f; want <1.001", ratio)
	}
	wantCenter := 1 / (2 * math.Pi * 100 * 100)
	if math.Abs(k[1][1]-wantCenter) > 1e-12 {
		t.Errorf("sigma=100 center=%g; want %g", k[1][1], wantCenter)
	}
}

func TestGaussianSmallSigmaIsNotRenormalized(t *testing.T) {
	k, err := GaussianKernel(0.01)
	if err != nil {
		t.Fatalf("GaussianKernel(0.01)=%v", err)
	}
	wantCenter := 1 / (2 * math.Pi * 0.0001)
	if math.Abs(k[1][1]-wantCenter)/wantCenter > 1e-9 {
		t.Errorf("sigma=0.01 center=%f; want %f", k[1][1], wantCenter)
	}
	if k[0][1] != 0 || k[0][0] != 0 {
		t.Errorf("sigma=0.01 edge=%g corner=%g; want 0", k[0][1], k[0][0])
	}

	src := pixmap.NewImage(3, 3, 255, nil)
	src.Set(1, 1, pixmap.Red, 10)
	src.Set(1, 1, pixmap.Green, 1)
	dst := run(t, src, Params{Name: NameGaussian, Sigma: 0.01})
	if v := dst.Get(1, 1, pixmap.Red); v != 15915 {
		t.Errorf("gaussian red(1,1)=%d; want 15915", v)
	}
	if v := dst.Get(1, 1, pixmap.Green); v != 1591 {
		t.Errorf("gaussian green(1,1)=%d; want 1591", v)
	}
	if v := dst.Get(0, 0, pixmap.Red); v != 0 {
		t.Errorf("gaussian red(0,0)=%d; want 0", v)
	}
}

func TestGaussianUniformInterior(t *testing.T) {
	src := pixmap.NewImage(5, 5, 255, nil)
	for i := range src.Data {
		src.Data[i] = 100
	}
	dst := run(t, src, Params{Name: NameGaussian, Sigma: 1})
	if v := dst.Get(2, 2, pixmap.Blue); v != 77 { // 100 * 0.779484
		t.Errorf("gaussian(2,2)=%d; want 77", v)
	}
	if v := dst.Get(0, 0, pixmap.Blue); v >= 77 {
		t.Errorf("gaussian(0,0)=%d; want darker than interior", v)
	}
}

func TestInvalidParameters(t *testing.T) {
	src := whiteCenter()
	for _, p := range []Params{
		{Name: NameGaussian, Sigma: 0},
		{Name: NameGaussian, Sigma: -1},
		{Name: NameGaussian, Sigma: math.NaN()},
		{Name: NameGaussian, Sigma: math.Inf(1)},
		{Name: "sharpen"},
		{Name: ""},
	} {
		if _, err := Run(src, p, 1); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("Run(%v) err=%v; want ErrInvalidParameter", p, err)
		}
	}
}

func TestInvalidBuffer(t *testing.T) {
	src := &pixmap.Image{Width: 2, Height: 2, MaxVal: 255, Data: make([]int, 11)}
	if _, err := Run(src, Params{Name: NameInverse}, 1); !errors.Is(err, pixmap.ErrInvalidBuffer) {
		t.Errorf("Run() err=%v; want ErrInvalidBuffer", err)
	}
}

func TestSourceIsNotModified(t *testing.T) {
	rng := fastrand.RNG{}
	src := randomImage(&rng, 6, 5)
	orig := src.Clone()
	for _, name := range Names() {
		dst := run(t, src, Params{Name: name, Red: 7, Sigma: 0.8})
		if dst == src || &dst.Data[0] == &src.Data[0] {
			t.Errorf("%s: output shares the source buffer", name)
		}
		if dst.Width != src.Width || dst.Height != src.Height || dst.MaxVal != src.MaxVal || dst.Type != src.Type {
			t.Errorf("%s: output header differs from source", name)
		}
	}
	for i := range src.Data {
		if src.Data[i] != orig.Data[i] {
			t.Fatalf("source Data[%d] changed from %d to %d", i, orig.Data[i], src.Data[i])
		}
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	rng := fastrand.RNG{}
	src := randomImage(&rng, 23, 37)
	for _, name := range Names() {
		p := Params{Name: name, Red: -40, Green: 40, Blue: 400, Sigma: 1.3}
		pf, err := Select(p)
		if err != nil {
			t.Fatalf("Select(%v)=%v", p, err)
		}
		seq := Apply(src, pf, 1)
		for _, workers := range []int{2, 3, 8, 100} {
			par := Apply(src, pf, workers)
			for i := range seq.Data {
				if par.Data[i] != seq.Data[i] {
					t.Errorf("%s workers=%d Data[%d]=%d; want %d", name, workers, i, par.Data[i], seq.Data[i])
					break
				}
			}
		}
	}
}

func TestNames(t *testing.T) {
	want := []string{"dilation", "erosion", "gaussian", "grayscale", "inverse", "manual", "median", "sepia"}
	got := Names()
	if len(got) != len(want) {
		t.Fatalf("Names()=%v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d]=%s; want %s", i, got[i], want[i])
		}
	}
}
