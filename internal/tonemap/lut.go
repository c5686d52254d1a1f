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

package tonemap

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mlnoga/falsecolor/internal/stats"
)

// Output value of a channel whose range cannot be stretched
const FlatValue = 127

// Number of standard deviations around the mean kept by the gaussian strategy
const GaussianSigmas = 2.5

// clampByte truncates f into [0,255]. NaN maps to 0.
func clampByte(f float64) uint8 {
	if !(f > 0) {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(f)
}

// EqualizationLUT turns a histogram into the lookup table of its cumulative
// distribution scaled to [0,255]. Returns nil for an empty histogram.
func EqualizationLUT(h *stats.Histogram) []uint8 {
	if h.Total == 0 {
		return nil
	}
	cdf := make([]float64, len(h.Counts))
	for i, c := range h.Counts {
		cdf[i] = float64(c)
	}
	floats.CumSum(cdf, cdf)

	lut := make([]uint8, len(cdf))
	total := float64(h.Total)
	for i, c := range cdf {
		lut[i] = clampByte(c / total * 255)
	}
	return lut
}

// GaussianBounds returns the stretch interval mean +/- GaussianSigmas
// standard deviations, limited to the observed channel range. ok is false
// if the interval is empty.
func GaussianBounds(ch *stats.Channel) (lo, hi float64, ok bool) {
	if ch.Degenerate() || !(ch.StdDev > 0) {
		return 0, 0, false
	}
	lo = math.Max(ch.Min, ch.Mean-GaussianSigmas*ch.StdDev)
	hi = math.Min(ch.Max, ch.Mean+GaussianSigmas*ch.StdDev)
	return lo, hi, hi > lo
}

// GaussianLUT builds a lookup table over bins equal-width bins spanning
// [lo,hi]. Each entry is the cumulative normal density up to the bin center,
// normalized so the last entry is 255.
func GaussianLUT(mean, stdDev, lo, hi float64, bins int) []uint8 {
	dist := distuv.Normal{Mu: mean, Sigma: stdDev}
	binWidth := (hi - lo) / float64(bins)
	cdf := make([]float64, bins)
	for i := range cdf {
		cdf[i] = dist.Prob(lo + (float64(i)+0.5)*binWidth)
	}
	floats.CumSum(cdf, cdf)

	lut := make([]uint8, bins)
	total := cdf[bins-1]
	if !(total > 0) {
		for i := range lut {
			lut[i] = FlatValue
		}
		return lut
	}
	for i, c := range cdf {
		lut[i] = clampByte(c / total * 255)
	}
	return lut
}
