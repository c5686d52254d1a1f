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
	"fmt"
)

// Display names of the three channels, in order
var ChannelNames = [3]string{"red", "green", "blue"}

// Summary of one channel for the statistics report
type ChannelReport struct {
	Name   string  `json:"name"`
	Band   int     `json:"band"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Median float64 `json:"median"`
	Mode   float64 `json:"mode"` // Location of the gaussian fitted to the histogram, or the median if the fit fails
}

func (r *ChannelReport) String() string {
	return fmt.Sprintf("%s band %d: Min %.6g Max %.6g Mean %.6g StdDev %.6g Median %.6g Mode %.6g",
		r.Name, r.Band, r.Min, r.Max, r.Mean, r.StdDev, r.Median, r.Mode)
}

func (r *ChannelReport) ToCSVHeader() string {
	return "Name,Band,Min,Max,Mean,StdDev,Median,Mode"
}

func (r *ChannelReport) ToCSVLine() string {
	return fmt.Sprintf("%s,%d,%.6g,%.6g,%.6g,%.6g,%.6g,%.6g",
		r.Name, r.Band, r.Min, r.Max, r.Mean, r.StdDev, r.Median, r.Mode)
}

// Report runs both statistics passes and adds median and histogram mode per
// channel. bands names the selected 1-based band of each channel for display.
func Report(data []float64, width, height, offR, offG, offB int, bands [3]int) (reports []ChannelReport, s *Stats) {
	s = ComputeStatistics(data, width, height, offR, offG, offB)
	s.ComputeStdDev(data, width, height, offR, offG, offB)

	reports = make([]ChannelReport, 3)
	for c, ch := range s.Channels() {
		reports[c] = ChannelReport{Name: ChannelNames[c], Band: bands[c],
			Min: ch.Min, Max: ch.Max, Mean: ch.Mean, StdDev: ch.StdDev}
	}
	if s.Empty() {
		return reports, s
	}

	// medians over the valid samples of each channel
	size := width * height
	offs := [3]int{offR, offG, offB}
	rs, gs, bs := data[offR:offR+size], data[offG:offG+size], data[offB:offB+size]
	for c := range reports {
		valid := make([]float64, 0, s.Count)
		chData := data[offs[c] : offs[c]+size]
		for j := 0; j < size; j++ {
			if IsValid(rs[j], gs[j], bs[j]) {
				valid = append(valid, chData[j])
			}
		}
		reports[c].Median = Median(valid)
	}

	hists := ChannelHistograms(data, width, height, offR, offG, offB, s, NumBins)
	for c, h := range hists {
		mode, _, err := h.FitGaussian()
		if err != nil {
			reports[c].Mode = reports[c].Median
			continue
		}
		reports[c].Mode = mode
	}
	return reports, s
}
