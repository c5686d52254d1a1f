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

package main

import (
	"testing"
)

type outputPatternTestCase struct {
	Name     string
	NumFiles int
	Want     string
}

func TestOutputPattern(t *testing.T) {
	tcs := []outputPatternTestCase{
		{"out.png", 1, "out.png"},
		{"out.png", 3, "out%d.png"},
		{"dir/side.jpg", 2, "dir/side%d.jpg"},
		{"out%03d.tif", 5, "out%03d.tif"},
		{"", 4, ""},
	}
	for _, tc := range tcs {
		if got := outputPattern(tc.Name, tc.NumFiles); got != tc.Want {
			t.Errorf("outputPattern(%q, %d)=%q; want %q", tc.Name, tc.NumFiles, got, tc.Want)
		}
	}
}
