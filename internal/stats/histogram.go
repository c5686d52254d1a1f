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
	"errors"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/mlnoga/falsecolor/internal/parallel"
)

// Number of quantization bins used by the histogram based tone mappers
const NumBins = 1024

// BinIndex quantizes v into one of bins equal-width bins over [min,max],
// clamping to the first and last bin. A degenerate range maps to bin 0.
func BinIndex(v, min, max float64, bins int) int {
	if !(max > min) {
		return 0
	}
	f := math.Floor((v - min) * float64(bins) / (max - min))
	if !(f > 0) { // also catches NaN
		return 0
	}
	if f > float64(bins-1) {
		return bins - 1
	}
	return int(f)
}

// Histogram of one channel with equal-width bins between Min and Max
type Histogram struct {
	Min    float64
	Max    float64
	Counts []int
	Total  int
}

func NewHistogram(min, max float64, bins int) *Histogram {
	return &Histogram{Min: min, Max: max, Counts: make([]int, bins)}
}

func (h *Histogram) Add(v float64) {
	h.Counts[BinIndex(v, h.Min, h.Max, len(h.Counts))]++
	h.Total++
}

// Merge adds the counts of o, which must have the same binning.
func (h *Histogram) Merge(o *Histogram) {
	for i, c := range o.Counts {
		h.Counts[i] += c
	}
	h.Total += o.Total
}

// BinCenter returns the value at the center of bin i.
func (h *Histogram) BinCenter(i int) float64 {
	return h.Min + (float64(i)+0.5)*(h.Max-h.Min)/float64(len(h.Counts))
}

// ChannelHistograms bins the valid pixels of each channel over that channel's
// own [Min,Max] from s.
func ChannelHistograms(data []float64, width, height, offR, offG, offB int, s *Stats, bins int) [3]*Histogram {
	size := width * height
	rs, gs, bs := data[offR:offR+size], data[offG:offG+size], data[offB:offB+size]
	chans := s.Channels()

	batches := parallel.Batches(size)
	partials := make([][3]*Histogram, len(batches))
	parallel.ForEachBatch(batches, func(i, lower, upper int) {
		var hs [3]*Histogram
		for c, ch := range chans {
			hs[c] = NewHistogram(ch.Min, ch.Max, bins)
		}
		for j := lower; j < upper; j++ {
			r, g, b := rs[j], gs[j], bs[j]
			if !IsValid(r, g, b) {
				continue
			}
			hs[0].Add(r)
			hs[1].Add(g)
			hs[2].Add(b)
		}
		partials[i] = hs
	})

	var res [3]*Histogram
	for c, ch := range chans {
		res[c] = NewHistogram(ch.Min, ch.Max, bins)
		for _, p := range partials {
			res[c].Merge(p[c])
		}
	}
	return res
}

// Returns the location and the value of the histogram peak
func (h *Histogram) Peak() (x, y float64) {
	maxIndex, maxValue := 0, -1
	for i, v := range h.Counts {
		if v > maxValue {
			maxIndex, maxValue = i, v
		}
	}
	return h.BinCenter(maxIndex), float64(maxValue)
}

// FitGaussian fits a scaled normal distribution to the histogram by least
// squares and returns its mode and standard deviation.
func (h *Histogram) FitGaussian() (mode, stdDev float64, err error) {
	if h.Total == 0 || !(h.Max > h.Min) {
		return 0, 0, errors.New("cannot fit gaussian to empty or flat histogram")
	}

	// initial guess from the histogram peak and its moments
	peak, peakVal := h.Peak()
	mean, sumSq := 0.0, 0.0
	for i, c := range h.Counts {
		mean += h.BinCenter(i) * float64(c)
	}
	mean /= float64(h.Total)
	for i, c := range h.Counts {
		d := h.BinCenter(i) - mean
		sumSq += d * d * float64(c)
	}
	sigma0 := math.Sqrt(sumSq / float64(h.Total))
	if sigma0 == 0 {
		sigma0 = (h.Max - h.Min) / float64(len(h.Counts))
	}
	alpha0 := peakVal * sigma0 * math.Sqrt(2*math.Pi)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			alpha, mu, sigma := x[0], x[1], x[2]
			if sigma == 0 {
				return math.Inf(1)
			}
			scaler := alpha / (math.Abs(sigma) * math.Sqrt(2*math.Pi))
			sumSqDiff := 0.0
			for i, y := range h.Counts {
				xmusig := (h.BinCenter(i) - mu) / sigma
				diff := float64(y) - scaler*math.Exp(-0.5*xmusig*xmusig)
				sumSqDiff += diff * diff
			}
			return math.Sqrt(sumSqDiff / float64(len(h.Counts)))
		},
	}
	result, err := optimize.Minimize(problem, []float64{alpha0, peak, sigma0}, nil, &optimize.NelderMead{})
	if err != nil {
		return 0, 0, err
	}
	return result.X[1], math.Abs(result.X[2]), nil
}
