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

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/stat"

	"github.com/mlnoga/falsecolor/internal/parallel"
)

func TestComputeStatisticsSimple(t *testing.T) {
	data := []float64{10, 20, 30, 40}
	s := ComputeStatistics(data, 2, 2, 0, 0, 0)
	if s.Count != 4 || s.Pixels != 4 {
		t.Fatalf("count=%d pixels=%d; want 4 4", s.Count, s.Pixels)
	}
	for c, ch := range s.Channels() {
		if ch.Min != 10 || ch.Max != 40 || ch.Sum != 100 || ch.Mean != 25 {
			t.Errorf("channel %d got %v; want min 10 max 40 sum 100 mean 25", c, ch)
		}
	}
}

func TestComputeStatisticsJointValidity(t *testing.T) {
	// 4 pixels, 3 bands. Pixel 1 is all zero, pixel 2 is zero only in red.
	data := []float64{
		5, 0, 0, 7, // red
		3, 0, 8, 1, // green
		9, 0, 0, 2, // blue
	}
	s := ComputeStatistics(data, 4, 1, 0, 4, 8)
	if s.Count != 3 {
		t.Fatalf("count=%d; want 3", s.Count)
	}
	type want struct{ min, max, sum float64 }
	for c, w := range []want{{0, 7, 12}, {1, 8, 12}, {0, 9, 11}} {
		ch := s.Channels()[c]
		if ch.Min != w.min || ch.Max != w.max || ch.Sum != w.sum {
			t.Errorf("channel %d got min %g max %g sum %g; want %g %g %g", c, ch.Min, ch.Max, ch.Sum, w.min, w.max, w.sum)
		}
	}
	if math.Abs(s.G.Mean-4) > 1e-12 {
		t.Errorf("green mean=%g; want 4", s.G.Mean)
	}
}

func TestComputeStatisticsIndependentExtrema(t *testing.T) {
	// green and blue minima lie above the red minimum and must not inherit it
	data := []float64{
		1, 50, // red
		100, 200, // green
		300, 400, // blue
	}
	s := ComputeStatistics(data, 2, 1, 0, 2, 4)
	if s.G.Min != 100 || s.B.Min != 300 {
		t.Errorf("green min %g blue min %g; want 100 300", s.G.Min, s.B.Min)
	}
}

func TestComputeStatisticsEmpty(t *testing.T) {
	data := make([]float64, 3*16)
	s := ComputeStatistics(data, 4, 4, 0, 16, 32)
	if !s.Empty() {
		t.Fatalf("count=%d; want empty", s.Count)
	}
	s.ComputeStdDev(data, 4, 4, 0, 16, 32)
	for c, ch := range s.Channels() {
		if ch.Min != 0 || ch.Max != 0 || ch.Mean != 0 || ch.StdDev != 0 {
			t.Errorf("channel %d of empty stats is %v; want zeros", c, ch)
		}
		if math.IsNaN(ch.Mean) || math.IsNaN(ch.StdDev) {
			t.Errorf("channel %d has NaN", c)
		}
	}
}

func TestComputeStdDevMatchesPopulationVariance(t *testing.T) {
	rng := fastrand.RNG{}
	rng.Seed(1234)
	width, height := 97, 53
	size := width * height
	data := make([]float64, 3*size)
	for i := range data {
		data[i] = 1 + float64(rng.Uint32n(1000))/7
	}
	s := ComputeStatistics(data, width, height, 0, size, 2*size)
	s.ComputeStdDev(data, width, height, 0, size, 2*size)

	for c, ch := range s.Channels() {
		band := data[c*size : (c+1)*size]
		mean, variance := stat.MeanVariance(band, nil)
		popStdDev := math.Sqrt(variance * float64(size-1) / float64(size))
		if math.Abs(ch.Mean-mean) > 1e-9 {
			t.Errorf("channel %d mean=%g; want %g", c, ch.Mean, mean)
		}
		if math.Abs(ch.StdDev-popStdDev) > 1e-9 {
			t.Errorf("channel %d stddev=%g; want %g", c, ch.StdDev, popStdDev)
		}
	}
}

func TestComputeStatisticsThreadIndependent(t *testing.T) {
	old := parallel.Threads
	defer func() { parallel.Threads = old }()

	rng := fastrand.RNG{}
	rng.Seed(99)
	width, height := 128, 77
	size := width * height
	data := make([]float64, 2*size)
	for i := range data {
		if rng.Uint32n(10) != 0 {
			data[i] = float64(rng.Uint32n(65536))
		}
	}

	parallel.Threads = 1
	ref := ComputeStatistics(data, width, height, size, 0, size)
	for _, threads := range []int{2, 5, 32} {
		parallel.Threads = threads
		s := ComputeStatistics(data, width, height, size, 0, size)
		if s.Count != ref.Count {
			t.Errorf("threads=%d count=%d; want %d", threads, s.Count, ref.Count)
		}
		for c, ch := range s.Channels() {
			r := ref.Channels()[c]
			if ch.Min != r.Min || ch.Max != r.Max || math.Abs(ch.Sum-r.Sum) > 1e-6 {
				t.Errorf("threads=%d channel %d got %v; want %v", threads, c, ch, r)
			}
		}
	}
}

func TestChannelDegenerate(t *testing.T) {
	s := ComputeStatistics([]float64{3, 3, 3, 3}, 2, 2, 0, 0, 0)
	if !s.R.Degenerate() || s.R.Range() != 0 {
		t.Errorf("constant band not degenerate: %v", &s.R)
	}
	s = ComputeStatistics([]float64{3, 4}, 2, 1, 0, 0, 0)
	if s.R.Degenerate() {
		t.Errorf("range [3,4] reported degenerate")
	}
}
