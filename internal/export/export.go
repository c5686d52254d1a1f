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

// Package export writes tone mapped display images to PNG, TIFF and JPEG.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/tiff"

	"github.com/mlnoga/falsecolor/internal/tonemap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrSizeMismatch      = errors.New("image heights differ")
)

// Output file formats
type Format int

const (
	PNG Format = iota
	TIFF
	JPEG
)

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case TIFF:
		return "tiff"
	case JPEG:
		return "jpeg"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// FormatFromFileName picks the format from the file suffix, ignoring case
func FormatFromFileName(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".png":
		return PNG, nil
	case ".tif", ".tiff":
		return TIFF, nil
	case ".jpg", ".jpeg":
		return JPEG, nil
	}
	return PNG, fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, fileName)
}

// Options for encoding. Matte is the background JPEG output is flattened onto,
// since JPEG carries no alpha channel.
type Options struct {
	JPEGQuality int
	Matte       colorful.Color
}

func DefaultOptions() Options {
	return Options{JPEGQuality: 95, Matte: colorful.Color{R: 0, G: 0, B: 0}}
}

// ParseMatte parses a hex color like "#1a2b3c". The empty string is black.
func ParseMatte(hex string) (colorful.Color, error) {
	if hex == "" {
		return colorful.Color{}, nil
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid matte color '%s': %w", hex, err)
	}
	return c, nil
}

// Save writes img into the named file, the format given by its suffix
func Save(img *tonemap.Image, fileName string, opts Options) error {
	format, err := FormatFromFileName(fileName)
	if err != nil {
		return err
	}
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	writer := bufio.NewWriter(file)
	if err := Encode(writer, img, format, opts); err != nil {
		file.Close()
		return err
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Encode writes img in the given format
func Encode(w io.Writer, img *tonemap.Image, format Format, opts Options) error {
	switch format {
	case PNG:
		return png.Encode(w, img.ToRGBA())
	case TIFF:
		return tiff.Encode(w, img.ToRGBA(), &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case JPEG:
		quality := opts.JPEGQuality
		if quality <= 0 || quality > 100 {
			quality = jpeg.DefaultQuality
		}
		return jpeg.Encode(w, Flatten(img, opts.Matte), &jpeg.Options{Quality: quality})
	}
	return fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
}

// Flatten blends img over an opaque matte color
func Flatten(img *tonemap.Image, matte colorful.Color) *image.RGBA {
	res := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	mr, mg, mb := matte.Clamped().RGB255()
	for o := 0; o < len(img.Pix); o += 4 {
		a := img.Pix[o+3]
		var c color.RGBA
		switch a {
		case 0:
			c = color.RGBA{mr, mg, mb, 255}
		case 255:
			c = color.RGBA{img.Pix[o], img.Pix[o+1], img.Pix[o+2], 255}
		default:
			fg := colorful.Color{R: float64(img.Pix[o]) / 255, G: float64(img.Pix[o+1]) / 255, B: float64(img.Pix[o+2]) / 255}
			r, g, b := matte.BlendRgb(fg, float64(a)/255).Clamped().RGB255()
			c = color.RGBA{r, g, b, 255}
		}
		res.Pix[o], res.Pix[o+1], res.Pix[o+2], res.Pix[o+3] = c.R, c.G, c.B, c.A
	}
	return res
}

// SideBySide places left and right next to each other
func SideBySide(left, right *tonemap.Image) (*tonemap.Image, error) {
	if left.Height != right.Height {
		return nil, fmt.Errorf("%w: %d vs %d", ErrSizeMismatch, left.Height, right.Height)
	}
	res := tonemap.NewImage(left.Width+right.Width, left.Height)
	stride, ls, rs := 4*res.Width, 4*left.Width, 4*right.Width
	for y := 0; y < res.Height; y++ {
		copy(res.Pix[y*stride:y*stride+ls], left.Pix[y*ls:(y+1)*ls])
		copy(res.Pix[y*stride+ls:(y+1)*stride], right.Pix[y*rs:(y+1)*rs])
	}
	return res, nil
}
