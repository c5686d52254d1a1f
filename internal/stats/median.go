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

// Select kth lowest element (1-based) from a slice of float64. Partially reorders the slice.
// Slice must not contain IEEE NaN
func QSelect(a []float64, k int) float64 {
	left, right := 0, len(a)-1
	for left < right {
		// partition around the middle element
		mid := (left + right) >> 1
		pivot := a[mid]
		l, r := left-1, right+1
		for {
			for {
				l++
				if a[l] >= pivot {
					break
				}
			}
			for {
				r--
				if a[r] <= pivot {
					break
				}
			}
			if l >= r {
				break // index in r
			}
			a[l], a[r] = a[r], a[l]
		}
		index := r

		offset := index - left + 1
		if k <= offset {
			right = index
		} else {
			left = index + 1
			k = k - offset
		}
	}
	return a[left]
}

// Median of a slice of float64, averaging the two middle elements for even
// lengths. Partially reorders the slice. Returns 0 for an empty slice.
func Median(a []float64) float64 {
	n := len(a)
	switch {
	case n == 0:
		return 0
	case n&1 != 0:
		return QSelect(a, n/2+1)
	default:
		lower := QSelect(a, n/2)
		upper := a[n/2]
		for _, v := range a[n/2+1:] {
			if v < upper {
				upper = v
			}
		}
		return 0.5 * (lower + upper)
	}
}
