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

package raster

import (
	"fmt"
	"image/color"
	"io"

	"golang.org/x/image/tiff"
)

// ReadTIFF decodes a grayscale or color TIFF image. Gray images become one band,
// color images three bands (red, green, blue); alpha is dropped. Samples keep the native bit
// depth of the file, i.e. [0,255] for 8 bit and [0,65535] for 16 bit channels.
func ReadTIFF(r io.Reader, id int, maxBytes uint64) (*Raster, error) {
	t, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%d: %s", id, err.Error())
	}

	bounds := t.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	bits, bands := colorModelToBitsAndBands(t.ColorModel())
	if err := CheckBudget(width, height, bands, maxBytes); err != nil {
		return nil, fmt.Errorf("%d: %w", id, err)
	}

	shift := uint(16 - bits)
	size := width * height
	data := make([]float64, size*bands)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := t.At(bounds.Min.X+x, bounds.Min.Y+y)
			i := y*width + x
			if bands == 1 {
				g := color.Gray16Model.Convert(c).(color.Gray16)
				data[i] = float64(g.Y >> shift)
				continue
			}
			n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
			data[i] = float64(n.R >> shift)
			data[i+size] = float64(n.G >> shift)
			data[i+2*size] = float64(n.B >> shift)
		}
	}

	res, err := NewRaster(width, height, bands, data)
	if err != nil {
		return nil, err
	}
	res.ID = id
	return res, nil
}

func colorModelToBitsAndBands(m color.Model) (bits int, bands int) {
	switch m {
	case color.GrayModel, color.AlphaModel:
		return 8, 1
	case color.Gray16Model, color.Alpha16Model:
		return 16, 1
	case color.RGBA64Model, color.NRGBA64Model:
		return 16, 3
	default:
		// 8 bit RGB(A), CMYK and paletted images
		return 8, 3
	}
}
