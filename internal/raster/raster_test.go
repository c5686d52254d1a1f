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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/image/tiff"
)

// fitsBytes builds a minimal FITS primary HDU with the given header cards and
// big-endian payload, padded to full blocks.
func fitsBytes(cards []string, payload []byte) []byte {
	var b bytes.Buffer
	for _, c := range append(cards, "END") {
		b.WriteString(fmt.Sprintf("%-80s", c))
	}
	for b.Len()%fitsBlockSize != 0 {
		b.WriteByte(' ')
	}
	b.Write(payload)
	for b.Len()%fitsBlockSize != 0 {
		b.WriteByte(0)
	}
	return b.Bytes()
}

func float64Payload(vals []float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func TestNewRasterValidatesGeometry(t *testing.T) {
	if _, err := NewRaster(2, 2, 1, make([]float64, 4)); err != nil {
		t.Errorf("2x2x1 with 4 samples: got error %v; want nil", err)
	}
	for _, tc := range []struct {
		w, h, b, n int
	}{
		{0, 2, 1, 0},
		{2, -1, 1, 0},
		{2, 2, 0, 0},
		{2, 2, 2, 4},
		{3, 3, 1, 10},
		{1 << 22, 1 << 22, 1 << 22, 0},
		{math.MaxInt, 2, 1, 0},
	} {
		_, err := NewRaster(tc.w, tc.h, tc.b, make([]float64, tc.n))
		if !errors.Is(err, ErrDimensions) {
			t.Errorf("NewRaster(%d,%d,%d,len %d) err=%v; want ErrDimensions", tc.w, tc.h, tc.b, tc.n, err)
		}
	}
}

func TestOffsets(t *testing.T) {
	r, err := NewRaster(3, 2, 4, make([]float64, 24))
	if err != nil {
		t.Fatal(err)
	}
	offR, offG, offB, err := r.Offsets(BandSelection{R: 4, G: 1, B: 1})
	if err != nil {
		t.Fatal(err)
	}
	if offR != 18 || offG != 0 || offB != 0 {
		t.Errorf("offsets=(%d,%d,%d); want (18,0,0)", offR, offG, offB)
	}

	for _, sel := range []BandSelection{{0, 1, 1}, {1, 5, 1}, {1, 1, -2}} {
		if _, _, _, err := r.Offsets(sel); !errors.Is(err, ErrInvalidBandSelection) {
			t.Errorf("Offsets(%v) err=%v; want ErrInvalidBandSelection", sel, err)
		}
	}
}

func TestBand(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	r, _ := NewRaster(2, 2, 2, data)
	b2 := r.Band(2)
	if len(b2) != 4 || b2[0] != 5 || b2[3] != 8 {
		t.Errorf("Band(2)=%v; want [5 6 7 8]", b2)
	}
}

func TestCheckBudget(t *testing.T) {
	if err := CheckBudget(1000, 1000, 3, 0); err != nil {
		t.Errorf("unlimited budget: got %v", err)
	}
	if err := CheckBudget(1000, 1000, 3, 24_000_000); err != nil {
		t.Errorf("exact budget: got %v", err)
	}
	if err := CheckBudget(1000, 1000, 3, 23_999_999); !errors.Is(err, ErrTooLarge) {
		t.Errorf("short budget: err=%v; want ErrTooLarge", err)
	}
	if err := CheckBudget(math.MaxInt, 1, 1, math.MaxUint64); !errors.Is(err, ErrTooLarge) {
		t.Errorf("byte count above 64 bits: err=%v; want ErrTooLarge", err)
	}
	for _, budget := range []uint64{0, 1 << 30} {
		if err := CheckBudget(1<<22, 1<<22, 1<<22, budget); !errors.Is(err, ErrDimensions) {
			t.Errorf("overflowing geometry, budget %d: err=%v; want ErrDimensions", budget, err)
		}
	}
}

func TestSampleCount(t *testing.T) {
	if n, err := SampleCount(3, 2, 4); err != nil || n != 24 {
		t.Errorf("SampleCount(3,2,4)=%d,%v; want 24,nil", n, err)
	}
	for _, dims := range [][3]int{{0, 1, 1}, {1 << 32, 1 << 32, 1}, {1 << 21, 1 << 21, 1 << 21}} {
		if _, err := SampleCount(dims[0], dims[1], dims[2]); !errors.Is(err, ErrDimensions) {
			t.Errorf("SampleCount(%v) err=%v; want ErrDimensions", dims, err)
		}
	}
}

func TestReadFITSCube(t *testing.T) {
	vals := []float64{10, 20, 30, 40, 1, 2, 3, 4, math.NaN(), 0, 5, 6}
	data := fitsBytes([]string{
		"SIMPLE  =                    T / conforms to FITS standard",
		"BITPIX  =                  -64",
		"NAXIS   =                    3",
		"NAXIS1  =                    2",
		"NAXIS2  =                    2",
		"NAXIS3  =                    3",
		"HISTORY synthetic test cube",
	}, float64Payload(vals))

	r, err := ReadFITS(bytes.NewReader(data), 7, 0, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if r.Width != 2 || r.Height != 2 || r.Bands != 3 || r.ID != 7 {
		t.Fatalf("got %s id %d; want 2x2x3 id 7", r.DimensionsToString(), r.ID)
	}
	for i, v := range vals {
		want := v
		if math.IsNaN(v) {
			want = 0
		}
		if r.Data[i] != want {
			t.Errorf("data[%d]=%g; want %g", i, r.Data[i], want)
		}
	}
}

func TestReadFITSInt16ScaledWithBlank(t *testing.T) {
	raw := []int16{-32768, 0, 100, -5}
	payload := make([]byte, 2*len(raw))
	for i, v := range raw {
		binary.BigEndian.PutUint16(payload[2*i:], uint16(v))
	}
	data := fitsBytes([]string{
		"SIMPLE  =                    T",
		"BITPIX  =                   16",
		"NAXIS   =                    2",
		"NAXIS1  =                    4",
		"NAXIS2  =                    1",
		"BZERO   =                 32768",
		"BSCALE  =                  2.0",
		"BLANK   =               -32768",
	}, payload)

	r, err := ReadFITS(bytes.NewReader(data), 0, 0, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 32768, 32968, 32758}
	for i, w := range want {
		if r.Data[i] != w {
			t.Errorf("data[%d]=%g; want %g", i, r.Data[i], w)
		}
	}
	if r.Bands != 1 {
		t.Errorf("bands=%d; want 1", r.Bands)
	}
}

func TestReadFITSRejects(t *testing.T) {
	for _, tc := range []struct {
		name  string
		cards []string
		want  error
	}{
		{"4 axes", []string{"SIMPLE  = T", "BITPIX  = 8", "NAXIS   = 4",
			"NAXIS1  = 1", "NAXIS2  = 1", "NAXIS3  = 1", "NAXIS4  = 1"}, ErrUnsupportedFormat},
		{"bad bitpix", []string{"SIMPLE  = T", "BITPIX  = 12", "NAXIS   = 2",
			"NAXIS1  = 1", "NAXIS2  = 1"}, ErrUnsupportedFormat},
		{"over budget", []string{"SIMPLE  = T", "BITPIX  = 8", "NAXIS   = 3",
			"NAXIS1  = 100", "NAXIS2  = 100", "NAXIS3  = 3"}, ErrTooLarge},
		{"overflowing axes", []string{"SIMPLE  = T", "BITPIX  = 8", "NAXIS   = 3",
			"NAXIS1  = 4194304", "NAXIS2  = 4194304", "NAXIS3  = 4194304"}, ErrDimensions},
	} {
		_, err := ReadFITS(bytes.NewReader(fitsBytes(tc.cards, make([]byte, 16))), 0, 1024, io.Discard)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: err=%v; want %v", tc.name, err, tc.want)
		}
	}

	_, err := ReadFITS(bytes.NewReader(fitsBytes([]string{"BITPIX  = 8"}, nil)), 0, 0, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "SIMPLE") {
		t.Errorf("missing SIMPLE: err=%v; want SIMPLE error", err)
	}
}

func TestNewRasterFromFileGzipFITS(t *testing.T) {
	vals := []float64{1, 2, 3, 4}
	data := fitsBytes([]string{
		"SIMPLE  =                    T",
		"BITPIX  =                  -64",
		"NAXIS   =                    2",
		"NAXIS1  =                    2",
		"NAXIS2  =                    2",
	}, float64Payload(vals))

	fileName := filepath.Join(t.TempDir(), "cube.fits.gz")
	f, err := os.Create(fileName)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		t.Fatal(err)
	}
	gz.Close()
	f.Close()

	r, err := NewRasterFromFile(fileName, 3, 0, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if r.FileName != fileName || r.ID != 3 || r.Data[3] != 4 {
		t.Errorf("got file %s id %d data %v; want %s id 3 data %v", r.FileName, r.ID, r.Data, fileName, vals)
	}
}

func TestNewRasterFromFileUnknownSuffix(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "x.bmp")
	os.WriteFile(fileName, []byte("BM"), 0644)
	if _, err := NewRasterFromFile(fileName, 0, 0, io.Discard); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err=%v; want ErrUnsupportedFormat", err)
	}
}

func TestReadTIFF(t *testing.T) {
	rgb := image.NewRGBA(image.Rect(0, 0, 2, 1))
	rgb.SetRGBA(0, 0, color.RGBA{10, 20, 30, 255})
	rgb.SetRGBA(1, 0, color.RGBA{200, 100, 0, 255})
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, rgb, nil); err != nil {
		t.Fatal(err)
	}
	r, err := ReadTIFF(&buf, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{10, 200, 20, 100, 30, 0}
	if r.Bands != 3 || len(r.Data) != len(want) {
		t.Fatalf("got %s; want 2x1x3", r.DimensionsToString())
	}
	for i, w := range want {
		if r.Data[i] != w {
			t.Errorf("data[%d]=%g; want %g", i, r.Data[i], w)
		}
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	nrgba.SetNRGBA(0, 0, color.NRGBA{200, 100, 50, 128})
	buf.Reset()
	if err := tiff.Encode(&buf, nrgba, nil); err != nil {
		t.Fatal(err)
	}
	r, err = ReadTIFF(&buf, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if r.Bands != 3 || r.Data[0] != 200 || r.Data[1] != 100 || r.Data[2] != 50 {
		t.Errorf("nrgba got %s data %v; want 1x1x3 [200 100 50], alpha dropped", r.DimensionsToString(), r.Data)
	}

	gray := image.NewGray16(image.Rect(0, 0, 1, 2))
	gray.SetGray16(0, 1, color.Gray16{Y: 60000})
	buf.Reset()
	if err := tiff.Encode(&buf, gray, nil); err != nil {
		t.Fatal(err)
	}
	r, err = ReadTIFF(&buf, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if r.Bands != 1 || r.Data[0] != 0 || r.Data[1] != 60000 {
		t.Errorf("gray16 got %s data %v; want 1x2x1 [0 60000]", r.DimensionsToString(), r.Data)
	}
}

func TestDefaultSelection(t *testing.T) {
	tcs := map[int]BandSelection{
		1: {1, 1, 1},
		2: {1, 2, 2},
		3: {1, 2, 3},
		7: {1, 2, 3},
	}
	for bands, want := range tcs {
		if got := DefaultSelection(bands); got != want {
			t.Errorf("DefaultSelection(%d)=%v; want %v", bands, got, want)
		}
	}
}

func TestBytePoolReusesSize(t *testing.T) {
	a := getBytesFromPool(48)
	if len(a) != 48 {
		t.Fatalf("got len %d; want 48", len(a))
	}
	putBytesIntoPool(a[:10])
	if b := getBytesFromPool(48); len(b) != 48 {
		t.Errorf("got len %d after put; want 48", len(b))
	}
}
