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

package parallel

import (
	"sync/atomic"
	"testing"
)

func TestBatchesCoverRange(t *testing.T) {
	for _, n := range []int{1, 2, 7, 63, 64, 65, 1000, 4097} {
		batches := Batches(n)
		next := 0
		for _, b := range batches {
			if b[0] != next {
				t.Errorf("n=%d batch starts at %d; want %d", n, b[0], next)
			}
			if b[1] <= b[0] {
				t.Errorf("n=%d empty batch [%d,%d)", n, b[0], b[1])
			}
			next = b[1]
		}
		if next != n {
			t.Errorf("n=%d batches end at %d; want %d", n, next, n)
		}
	}
	if Batches(0) != nil {
		t.Errorf("Batches(0)=%v; want nil", Batches(0))
	}
}

func TestForEachBatchVisitsAll(t *testing.T) {
	old := Threads
	defer func() { Threads = old }()

	for _, threads := range []int{1, 3, 16} {
		Threads = threads
		n := 12345
		seen := make([]int32, n)
		var calls int32
		ForEachBatch(Batches(n), func(i, lower, upper int) {
			atomic.AddInt32(&calls, 1)
			for j := lower; j < upper; j++ {
				atomic.AddInt32(&seen[j], 1)
			}
		})
		for j, s := range seen {
			if s != 1 {
				t.Fatalf("threads=%d index %d visited %d times; want 1", threads, j, s)
			}
		}
		if int(calls) != len(Batches(n)) {
			t.Errorf("threads=%d calls=%d; want %d", threads, calls, len(Batches(n)))
		}
	}
}
