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

// Package parallel shards linear passes over an image across CPUs.
package parallel

import (
	"runtime"
)

// Threads is the maximum number of goroutines a single pass runs concurrently.
// Zero or negative selects runtime.NumCPU().
var Threads = 0

func threads() int {
	if Threads > 0 {
		return Threads
	}
	return runtime.NumCPU()
}

// Batches splits [0,n) into at most 8*threads contiguous ranges, the way the
// pixel functions are split into work packages. Ranges are returned in order.
func Batches(n int) [][2]int {
	if n <= 0 {
		return nil
	}
	numBatches := 8 * threads()
	batchSize := (n + numBatches - 1) / numBatches
	res := make([][2]int, 0, (n+batchSize-1)/batchSize)
	for lower := 0; lower < n; lower += batchSize {
		upper := lower + batchSize
		if upper > n {
			upper = n
		}
		res = append(res, [2]int{lower, upper})
	}
	return res
}

// ForEachBatch calls fn(i, lower, upper) for every one of the given batches,
// running up to threads batches at once. Returns after all calls have completed.
// The batch index i lets callers write partial results into a slice of
// len(batches) and merge them in batch order afterwards.
func ForEachBatch(batches [][2]int, fn func(i, lower, upper int)) {
	if len(batches) == 0 {
		return
	}
	if len(batches) == 1 {
		fn(0, batches[0][0], batches[0][1])
		return
	}

	sem := make(chan bool, threads()) // limit parallelism
	for i, b := range batches {
		sem <- true
		go func(i, lower, upper int) {
			defer func() { <-sem }()
			fn(i, lower, upper)
		}(i, b[0], b[1])
	}
	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}
}
