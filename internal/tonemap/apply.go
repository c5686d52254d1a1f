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
	"fmt"

	"github.com/mlnoga/falsecolor/internal/parallel"
	"github.com/mlnoga/falsecolor/internal/raster"
	"github.com/mlnoga/falsecolor/internal/stats"
)

// Maps one raw sample of a valid pixel to its display byte
type channelMapper func(v float64) uint8

func flatMapper(v float64) uint8 { return FlatValue }

func linearMapper(min, max float64) channelMapper {
	if !(max > min) {
		return flatMapper
	}
	rng := max - min
	return func(v float64) uint8 { return clampByte((v - min) * 255 / rng) }
}

func percentileMapper(ch *stats.Channel, percent float64) channelMapper {
	if ch.Degenerate() {
		return flatMapper
	}
	trim := percent * ch.Range()
	return linearMapper(ch.Min+trim, ch.Max-trim)
}

func lutMapper(lut []uint8, min, max float64) channelMapper {
	if lut == nil || !(max > min) {
		return flatMapper
	}
	bins := len(lut)
	return func(v float64) uint8 { return lut[stats.BinIndex(v, min, max, bins)] }
}

// builds one mapper per channel for the given strategy
func mappers(data []float64, width, height, offR, offG, offB int, p Params, s *stats.Stats) [3]channelMapper {
	var ms [3]channelMapper
	chans := s.Channels()
	switch p.Strategy {
	case Linear:
		for c, ch := range chans {
			ms[c] = linearMapper(ch.Min, ch.Max)
		}
	case PercentileLinear:
		for c, ch := range chans {
			ms[c] = percentileMapper(ch, p.Percent)
		}
	case HistogramEqualization:
		hs := stats.ChannelHistograms(data, width, height, offR, offG, offB, s, stats.NumBins)
		for c, ch := range chans {
			if ch.Degenerate() {
				ms[c] = flatMapper
				continue
			}
			ms[c] = lutMapper(EqualizationLUT(hs[c]), ch.Min, ch.Max)
		}
	case Gaussian:
		for c, ch := range chans {
			lo, hi, ok := GaussianBounds(ch)
			if !ok {
				ms[c] = flatMapper
				continue
			}
			ms[c] = lutMapper(GaussianLUT(ch.Mean, ch.StdDev, lo, hi, stats.NumBins), lo, hi)
		}
	default:
		panic(fmt.Sprintf("unknown strategy %d", int(p.Strategy)))
	}
	return ms
}

// runs the shared pixel loop: invalid pixels stay transparent, valid ones get
// their three channel bytes from ms and alpha 255
func mapPixels(data []float64, width, height, offR, offG, offB int, ms [3]channelMapper) *Image {
	size := width * height
	rs, gs, bs := data[offR:offR+size], data[offG:offG+size], data[offB:offB+size]
	img := NewImage(width, height)
	pix := img.Pix
	parallel.ForEachBatch(parallel.Batches(size), func(i, lower, upper int) {
		for j := lower; j < upper; j++ {
			r, g, b := rs[j], gs[j], bs[j]
			if !stats.IsValid(r, g, b) {
				continue
			}
			o := 4 * j
			pix[o] = ms[0](r)
			pix[o+1] = ms[1](g)
			pix[o+2] = ms[2](b)
			pix[o+3] = 255
		}
	})
	return img
}

// Apply tone maps the three bands starting at offR, offG and offB in data with
// the given strategy. s holds the first pass statistics of the same bands; if
// nil they are computed here. The gaussian strategy runs the second pass on s
// when its standard deviations are missing. Without valid pixels the result
// is fully transparent. Panics on unknown strategies.
func Apply(data []float64, width, height, offR, offG, offB int, p Params, s *stats.Stats) *Image {
	if s == nil {
		s = stats.ComputeStatistics(data, width, height, offR, offG, offB)
	}
	if s.Empty() {
		return NewImage(width, height)
	}
	if p.Strategy == Gaussian && !s.HasStdDev {
		s.ComputeStdDev(data, width, height, offR, offG, offB)
	}
	ms := mappers(data, width, height, offR, offG, offB, p, s)
	return mapPixels(data, width, height, offR, offG, offB, ms)
}

// Render validates the selection and parameters, gathers fresh statistics and
// tone maps the selected bands of r. An empty selection is not an error,
// callers check the returned statistics.
func Render(r *raster.Raster, sel raster.BandSelection, p Params) (*Image, *stats.Stats, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	offR, offG, offB, err := r.Offsets(sel)
	if err != nil {
		return nil, nil, err
	}
	s := stats.ComputeStatistics(r.Data, r.Width, r.Height, offR, offG, offB)
	if p.Strategy == Gaussian {
		s.ComputeStdDev(r.Data, r.Width, r.Height, offR, offG, offB)
	}
	return Apply(r.Data, r.Width, r.Height, offR, offG, offB, p, s), s, nil
}

func rawMapper(v float64) uint8 { return clampByte(v) }

// RenderRaw clips the raw samples into [0,255] without any stretch, applying
// the same transparency rule as Apply.
func RenderRaw(data []float64, width, height, offR, offG, offB int) *Image {
	return mapPixels(data, width, height, offR, offG, offB, [3]channelMapper{rawMapper, rawMapper, rawMapper})
}
