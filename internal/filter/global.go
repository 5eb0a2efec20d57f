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

// Fixed 8-bit channel range assumed by all transforms, regardless of the declared maximum value
const (
	channelFloor = 0
	channelCap   = 255
)

// Luminance weights for red, green and blue
var grayscaleWeights = [3]float64{0.299, 0.587, 0.114}

// One row of red, green and blue weights per output channel
var sepiaWeights = [3][3]float64{
	{0.393, 0.769, 0.189},
	{0.349, 0.686, 0.168},
	{0.272, 0.534, 0.131},
}

// Returns the grayscale weights for red, green and blue
func GrayscaleWeights() [3]float64 { return grayscaleWeights }

// Returns the sepia weights, one row per output channel
func SepiaWeights() [3][3]float64 { return sepiaWeights }

// Adds change to value. Negative changes floor at 0, non-negative ones cap at 255.
// Only one side is bounded, so e.g. 300 + (-10) stays 290
func ManualValue(value, change int) int {
	if change < 0 {
		if v := value + change; v > channelFloor {
			return v
		}
		return channelFloor
	}
	if v := value + change; v < channelCap {
		return v
	}
	return channelCap
}

// Returns 255 minus the value
func InverseValue(value int) int {
	return channelCap - value
}

// Weighted luminance of an RGB pixel, truncated to an integer
func GrayscaleValue(rgb [3]int) int {
	return int(dot3(rgb, grayscaleWeights))
}

// Sepia tone of an RGB pixel for the given output channel, truncated and capped at 255
func SepiaValue(rgb [3]int, channel int) int {
	v := int(dot3(rgb, sepiaWeights[channel]))
	if v > channelCap {
		return channelCap
	}
	return v
}
