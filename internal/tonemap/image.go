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
	"image"
)

// Image is an RGBA8888 display image, row-major with a stride of 4*Width.
// Pixels with alpha 0 carry zero color bytes.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewImage returns a fully transparent image
func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]uint8, 4*width*height)}
}

// ToRGBA wraps the pixel buffer as a standard library image without copying.
// Transparent pixels have zero color, so the buffer is valid premultiplied RGBA.
func (img *Image) ToRGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    img.Pix,
		Stride: 4 * img.Width,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
}

// RGBA returns the four bytes of pixel (x,y)
func (img *Image) RGBA(x, y int) (r, g, b, a uint8) {
	o := 4 * (y*img.Width + x)
	return img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3]
}

// Opaque counts the pixels with nonzero alpha
func (img *Image) Opaque() int {
	n := 0
	for o := 3; o < len(img.Pix); o += 4 {
		if img.Pix[o] != 0 {
			n++
		}
	}
	return n
}

// MeanColor averages the opaque pixels, returning channel values in [0,1].
// ok is false if the image is fully transparent.
func (img *Image) MeanColor() (r, g, b float64, ok bool) {
	var sr, sg, sb, n uint64
	for o := 0; o < len(img.Pix); o += 4 {
		if img.Pix[o+3] == 0 {
			continue
		}
		sr += uint64(img.Pix[o])
		sg += uint64(img.Pix[o+1])
		sb += uint64(img.Pix[o+2])
		n++
	}
	if n == 0 {
		return 0, 0, 0, false
	}
	scale := 1.0 / (255 * float64(n))
	return float64(sr) * scale, float64(sg) * scale, float64(sb) * scale, true
}
