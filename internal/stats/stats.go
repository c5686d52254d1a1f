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

// Package stats gathers per-channel statistics over the valid pixels of a
// band triple. A pixel is valid unless all three of its selected samples are
// exactly zero, the no-data value.
package stats

import (
	"fmt"
	"math"

	"github.com/mlnoga/falsecolor/internal/parallel"
)

// IsValid reports whether a pixel with the given channel samples carries data.
func IsValid(r, g, b float64) bool {
	return r != 0 || g != 0 || b != 0
}

// Statistics of one display channel over the valid pixels
type Channel struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Sum    float64 `json:"sum"`    // Sum over all samples of the band; invalid pixels contribute zero
	Mean   float64 `json:"mean"`   // Sum/Count
	StdDev float64 `json:"stdDev"` // Population standard deviation, only after ComputeStdDev
}

// Range returns Max-Min.
func (c *Channel) Range() float64 { return c.Max - c.Min }

// Degenerate reports a channel without a usable range, i.e. a constant band.
func (c *Channel) Degenerate() bool { return !(c.Max > c.Min) }

func (c *Channel) String() string {
	return fmt.Sprintf("Min %.6g Max %.6g Mean %.6g StdDev %.6g", c.Min, c.Max, c.Mean, c.StdDev)
}

// Statistics of a band triple
type Stats struct {
	R         Channel `json:"r"`
	G         Channel `json:"g"`
	B         Channel `json:"b"`
	Count     int     `json:"count"`     // Number of valid pixels, shared by all channels
	Pixels    int     `json:"pixels"`    // Total number of pixels
	HasStdDev bool    `json:"hasStdDev"` // Whether the second pass has run
}

// Empty reports whether no pixel carries data. All other values are zero then.
func (s *Stats) Empty() bool { return s.Count == 0 }

// Channels returns pointers to the red, green and blue channel statistics.
func (s *Stats) Channels() [3]*Channel { return [3]*Channel{&s.R, &s.G, &s.B} }

func (s *Stats) String() string {
	return fmt.Sprintf("%d of %d pixels valid, R %v, G %v, B %v", s.Count, s.Pixels, &s.R, &s.G, &s.B)
}

type partial struct {
	min, max, sum [3]float64
	count         int
}

func newPartial() partial {
	p := partial{}
	for c := 0; c < 3; c++ {
		p.min[c], p.max[c] = math.Inf(1), math.Inf(-1)
	}
	return p
}

// merge is associative and commutative up to floating point rounding of the sums.
func (p *partial) merge(o *partial) {
	for c := 0; c < 3; c++ {
		if o.min[c] < p.min[c] {
			p.min[c] = o.min[c]
		}
		if o.max[c] > p.max[c] {
			p.max[c] = o.max[c]
		}
		p.sum[c] += o.sum[c]
	}
	p.count += o.count
}

// ComputeStatistics gathers min, max and sum for each channel and the joint
// valid pixel count in one pass. offR, offG and offB are the offsets of the
// first sample of the selected bands in data. Min and max cover valid pixels
// only, each channel tracking its own extrema. The sum covers every sample.
func ComputeStatistics(data []float64, width, height, offR, offG, offB int) *Stats {
	size := width * height
	rs, gs, bs := data[offR:offR+size], data[offG:offG+size], data[offB:offB+size]

	batches := parallel.Batches(size)
	partials := make([]partial, len(batches))
	parallel.ForEachBatch(batches, func(i, lower, upper int) {
		p := newPartial()
		for j := lower; j < upper; j++ {
			v := [3]float64{rs[j], gs[j], bs[j]}
			p.sum[0] += v[0]
			p.sum[1] += v[1]
			p.sum[2] += v[2]
			if !IsValid(v[0], v[1], v[2]) {
				continue
			}
			p.count++
			for c := 0; c < 3; c++ {
				if v[c] < p.min[c] {
					p.min[c] = v[c]
				}
				if v[c] > p.max[c] {
					p.max[c] = v[c]
				}
			}
		}
		partials[i] = p
	})

	total := newPartial()
	for i := range partials {
		total.merge(&partials[i])
	}

	s := &Stats{Count: total.count, Pixels: size}
	if s.Count == 0 {
		return s
	}
	for c, ch := range s.Channels() {
		ch.Min, ch.Max, ch.Sum = total.min[c], total.max[c], total.sum[c]
		ch.Mean = ch.Sum / float64(s.Count)
	}
	return s
}

// ComputeStdDev runs the second pass, filling in the population standard
// deviation of each channel over the valid pixels around the mean from the
// first pass. No-op for empty statistics.
func (s *Stats) ComputeStdDev(data []float64, width, height, offR, offG, offB int) {
	s.HasStdDev = true
	if s.Empty() {
		return
	}
	size := width * height
	rs, gs, bs := data[offR:offR+size], data[offG:offG+size], data[offB:offB+size]
	means := [3]float64{s.R.Mean, s.G.Mean, s.B.Mean}

	batches := parallel.Batches(size)
	sumSq := make([][3]float64, len(batches))
	parallel.ForEachBatch(batches, func(i, lower, upper int) {
		acc := [3]float64{}
		for j := lower; j < upper; j++ {
			r, g, b := rs[j], gs[j], bs[j]
			if !IsValid(r, g, b) {
				continue
			}
			dr, dg, db := r-means[0], g-means[1], b-means[2]
			acc[0] += dr * dr
			acc[1] += dg * dg
			acc[2] += db * db
		}
		sumSq[i] = acc
	})

	total := [3]float64{}
	for _, acc := range sumSq {
		for c := 0; c < 3; c++ {
			total[c] += acc[c]
		}
	}
	for c, ch := range s.Channels() {
		ch.StdDev = math.Sqrt(total[c] / float64(s.Count))
	}
}
