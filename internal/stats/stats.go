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
	"fmt"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mlnoga/pixfilter/internal/pixmap"
	"github.com/mlnoga/pixfilter/internal/qsort"
	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/stat"
)

// Statistics for one color channel
type ChannelStats struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Median int     `json:"median"` // exact for small images, sampled otherwise
	Peak   int     `json:"peak"`   // most frequent value
}

// Statistics for an RGB image
type Stats struct {
	Channels  [pixmap.NumChannels]ChannelStats `json:"channels"`
	MeanColor string                           `json:"meanColor"` // hex triplet of the per-channel means
	Hue       float64                          `json:"hue"`       // CIE-L*C*h° hue of the mean color in degrees
	Chroma    float64                          `json:"chroma"`
	Luminance float64                          `json:"luminance"`
}

// Number of samples used for the approximate median of large images
const DefaultMedianSamples = 4096

// Calculates statistics for the given image. Channel medians are exact up to
// numSamples pixels, and approximated from numSamples random pixels above that
func NewStats(f *pixmap.Image, numSamples int) *Stats {
	s := &Stats{}
	if f.Pixels() == 0 || len(f.Data) < f.Pixels()*pixmap.NumChannels {
		return s
	}
	values := make([]float64, f.Pixels())
	scratch := make([]int, 0, f.Pixels())
	for ch := 0; ch < pixmap.NumChannels; ch++ {
		cs := &s.Channels[ch]
		cs.Min, cs.Max = f.Data[ch], f.Data[ch]
		scratch = scratch[:0]
		for i := ch; i < len(f.Data); i += pixmap.NumChannels {
			d := f.Data[i]
			if d < cs.Min {
				cs.Min = d
			}
			if d > cs.Max {
				cs.Max = d
			}
			values[i/pixmap.NumChannels] = float64(d)
			scratch = append(scratch, d)
		}
		cs.Mean, cs.StdDev = stat.MeanStdDev(values, nil)
		if len(values) < 2 {
			cs.StdDev = 0
		}
		cs.Peak = Peak(scratch, cs.Min, cs.Max)
		if numSamples <= 0 || len(scratch) <= numSamples {
			cs.Median = qsort.QSelectMedianInt(scratch)
		} else {
			cs.Median = FastApproxMedian(scratch, make([]int, numSamples))
		}
	}

	maxVal := float64(f.MaxVal)
	if maxVal <= 0 {
		maxVal = 255
	}
	col := colorful.Color{
		R: s.Channels[pixmap.Red].Mean / maxVal,
		G: s.Channels[pixmap.Green].Mean / maxVal,
		B: s.Channels[pixmap.Blue].Mean / maxVal,
	}.Clamped()
	s.MeanColor = col.Hex()
	s.Hue, s.Chroma, s.Luminance = col.Hcl()
	return s
}

// Returns the most frequent value in data, which must lie within [min,max].
// Ties go to the lowest value
func Peak(data []int, min, max int) int {
	if len(data) == 0 || max <= min {
		return min
	}
	if max-min > 1<<16 {
		return sparsePeak(data)
	}
	bins := make([]int32, max-min+1)
	for _, d := range data {
		bins[d-min]++
	}
	peak := 0
	for i, v := range bins {
		if v > bins[peak] {
			peak = i
		}
	}
	return min + peak
}

func sparsePeak(data []int) int {
	counts := make(map[int]int32)
	peak := data[0]
	for _, d := range data {
		counts[d]++
		if c := counts[d]; c > counts[peak] || (c == counts[peak] && d < peak) {
			peak = d
		}
	}
	return peak
}

// Calculates fast approximate median of the (presumably large) data by subsampling the given number of values and taking the median of that.
// Uses provided samples array as scratchpad
func FastApproxMedian(data []int, samples []int) int {
	max := uint32(len(data))
	rng := fastrand.RNG{}
	for i := range samples {
		samples[i] = data[rng.Uint32n(max)]
	}
	return qsort.QSelectMedianInt(samples)
}

func (s *Stats) String() string {
	b := strings.Builder{}
	for ch, name := range []string{"R", "G", "B"} {
		cs := s.Channels[ch]
		fmt.Fprintf(&b, "%s[%d..%d] mean %.4g sd %.4g med %d peak %d, ", name, cs.Min, cs.Max, cs.Mean, cs.StdDev, cs.Median, cs.Peak)
	}
	fmt.Fprintf(&b, "mean color %s (HCL %.1f° %.3f %.3f)", s.MeanColor, s.Hue, s.Chroma, s.Luminance)
	return b.String()
}
