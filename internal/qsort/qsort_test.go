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

package qsort

import (
	"testing"

	"github.com/valyala/fastrand"
)

func TestMedian(t *testing.T) {
	rng := fastrand.RNG{}
	for i := 1; i < 1000; i++ {
		// prepare array of given length with a random permutation of 1..n
		arr := make([]int, i)
		for j := 0; j < len(arr); j++ {
			arr[j] = j + 1
		}
		for j := 0; j < len(arr); j++ {
			k := rng.Uint32n(uint32(len(arr)))
			arr[j], arr[k] = arr[k], arr[j]
		}

		expect := i/2 + 1
		res := QSelectMedianInt(arr)
		if res != expect {
			t.Errorf("median(1..%d)=%d; want %d", i, res, expect)
		}
	}
}

func TestSelectWithDuplicates(t *testing.T) {
	arr := []int{5, 1, 5, 0, 0, 5, 1, 0, 0}
	for k, want := range []int{0, 0, 0, 0, 1, 1, 5, 5, 5} {
		a := append([]int(nil), arr...)
		if res := QSelectInt(a, k+1); res != want {
			t.Errorf("QSelectInt(%v, %d)=%d; want %d", arr, k+1, res, want)
		}
	}
}
