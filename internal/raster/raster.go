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

// Package raster holds decoded multi-band images and reads them from files.
//
// Samples are band-major float64: band b (0-based), pixel (x,y) lives at
// b*Width*Height + y*Width + x. A Raster is immutable once constructed.
package raster

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

var (
	ErrInvalidBandSelection = errors.New("invalid band selection")
	ErrDimensions           = errors.New("invalid raster dimensions")
	ErrTooLarge             = errors.New("raster exceeds memory budget")
	ErrUnsupportedFormat    = errors.New("unsupported raster format")
)

type Raster struct {
	ID       int       // Sequential ID number, for log output
	FileName string    // Original file name, if any, for log output
	Width    int       // Pixels per row
	Height   int       // Number of rows
	Bands    int       // Number of bands
	Data     []float64 // Band-major samples, length Bands*Width*Height
}

// NewRaster wraps the given band-major samples. The raster takes ownership of data.
func NewRaster(width, height, bands int, data []float64) (*Raster, error) {
	n, err := SampleCount(width, height, bands)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: %dx%dx%d needs %d samples, got %d",
			ErrDimensions, width, height, bands, n, len(data))
	}
	return &Raster{Width: width, Height: height, Bands: bands, Data: data}, nil
}

// Pixels returns the number of pixels per band.
func (r *Raster) Pixels() int { return r.Width * r.Height }

// Band returns the samples of the given 1-based band. Panics if out of range.
func (r *Raster) Band(band int) []float64 {
	if band < 1 || band > r.Bands {
		panic(fmt.Sprintf("band %d outside [1,%d]", band, r.Bands))
	}
	size := r.Pixels()
	return r.Data[(band-1)*size : band*size]
}

func (r *Raster) DimensionsToString() string {
	return fmt.Sprintf("%dx%dx%d", r.Width, r.Height, r.Bands)
}

// BandSelection names the 1-based bands shown as red, green and blue.
// A band may appear in more than one channel.
type BandSelection struct {
	R int `json:"r" yaml:"red"`
	G int `json:"g" yaml:"green"`
	B int `json:"b" yaml:"blue"`
}

func (s BandSelection) String() string {
	return fmt.Sprintf("R=%d G=%d B=%d", s.R, s.G, s.B)
}

// DefaultSelection shows bands 1, 2 and 3 as red, green and blue, reusing the
// last band for channels beyond the band count.
func DefaultSelection(bands int) BandSelection {
	pick := func(b int) int {
		if b > bands {
			return bands
		}
		return b
	}
	return BandSelection{R: pick(1), G: pick(2), B: pick(3)}
}

// Validate checks that every selected band exists in the raster.
func (r *Raster) Validate(sel BandSelection) error {
	for _, c := range []struct {
		name string
		band int
	}{{"red", sel.R}, {"green", sel.G}, {"blue", sel.B}} {
		if c.band < 1 || c.band > r.Bands {
			return fmt.Errorf("%w: %s band %d outside [1,%d]", ErrInvalidBandSelection, c.name, c.band, r.Bands)
		}
	}
	return nil
}

// Offsets resolves the selection into offsets of the first sample of each
// selected band within Data.
func (r *Raster) Offsets(sel BandSelection) (offR, offG, offB int, err error) {
	if err = r.Validate(sel); err != nil {
		return 0, 0, 0, err
	}
	size := r.Pixels()
	return (sel.R - 1) * size, (sel.G - 1) * size, (sel.B - 1) * size, nil
}

// SampleCount returns width*height*bands, or ErrDimensions if any factor is
// non-positive or the product does not fit into an int.
func SampleCount(width, height, bands int) (int, error) {
	if width <= 0 || height <= 0 || bands <= 0 {
		return 0, fmt.Errorf("%w: %dx%dx%d", ErrDimensions, width, height, bands)
	}
	if width > math.MaxInt/height || width*height > math.MaxInt/bands {
		return 0, fmt.Errorf("%w: %dx%dx%d overflows", ErrDimensions, width, height, bands)
	}
	return width * height * bands, nil
}

// CheckBudget returns ErrDimensions for invalid geometry, and ErrTooLarge if a
// raster of the given geometry needs more than maxBytes of sample storage.
// maxBytes==0 disables the budget.
func CheckBudget(width, height, bands int, maxBytes uint64) error {
	n, err := SampleCount(width, height, bands)
	if err != nil {
		return err
	}
	if maxBytes == 0 {
		return nil
	}
	hi, need := bits.Mul64(uint64(n), 8)
	if hi != 0 || need > maxBytes {
		return fmt.Errorf("%w: %dx%dx%d needs %d MiB, budget is %d MiB",
			ErrTooLarge, width, height, bands, uint64(n)>>17, maxBytes>>20)
	}
	return nil
}
