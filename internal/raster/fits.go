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
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
)

const fitsBlockSize int = 2880 // Block size of FITS header and data units
const fitsLineSize int = 80    // Line size of a FITS header
const bufLen int = 16 * 1024   // input buffer length for reading sample data

var reParser *regexp.Regexp = compileRE() // Regexp parser for FITS header lines

type fitsHeader struct {
	Bools    map[string]bool
	Ints     map[string]int64
	Floats   map[string]float64
	Strings  map[string]string
	Comments []string
	History  []string
	End      bool
	Length   int
}

func newFITSHeader() *fitsHeader {
	return &fitsHeader{
		Bools:   make(map[string]bool),
		Ints:    make(map[string]int64),
		Floats:  make(map[string]float64),
		Strings: make(map[string]string),
	}
}

// ReadFITS reads a FITS primary HDU with two axes (one band) or three axes
// (NAXIS3 bands). Integer BLANK samples and NaNs become 0, the no-data value.
func ReadFITS(r io.Reader, id int, maxBytes uint64, logWriter io.Writer) (*Raster, error) {
	h := newFITSHeader()
	if err := h.read(r, id, logWriter); err != nil {
		return nil, err
	}
	if !h.Bools["SIMPLE"] {
		return nil, fmt.Errorf("%d: Not a valid FITS file; SIMPLE=T missing in header", id)
	}

	bitpix, ok := h.Ints["BITPIX"]
	if !ok {
		return nil, fmt.Errorf("%d: FITS header does not contain key BITPIX", id)
	}
	naxis, ok := h.Ints["NAXIS"]
	if !ok {
		return nil, fmt.Errorf("%d: FITS header does not contain key NAXIS", id)
	}
	if naxis != 2 && naxis != 3 {
		return nil, fmt.Errorf("%d: %w: NAXIS=%d, need 2 or 3", id, ErrUnsupportedFormat, naxis)
	}
	naxisn := []int{1, 1, 1}
	for i := 1; i <= int(naxis); i++ {
		name := "NAXIS" + strconv.Itoa(i)
		n, ok := h.Ints[name]
		if !ok {
			return nil, fmt.Errorf("%d: FITS header does not contain key %s", id, name)
		}
		if n <= 0 {
			return nil, fmt.Errorf("%d: %w: %s=%d", id, ErrDimensions, name, n)
		}
		naxisn[i-1] = int(n)
	}
	width, height, bands := naxisn[0], naxisn[1], naxisn[2]
	if err := CheckBudget(width, height, bands, maxBytes); err != nil {
		return nil, fmt.Errorf("%d: %w", id, err)
	}

	bzero, bscale := h.float("BZERO", 0), h.float("BSCALE", 1)
	blank, hasBlank := h.Ints["BLANK"]

	decode, bytesPerValue, err := sampleDecoder(bitpix)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", id, err)
	}
	data := make([]float64, width*height*bands)
	if err := readSamples(r, data, bytesPerValue, func(b []byte) float64 {
		raw, isInt := decode(b)
		if isInt && hasBlank && raw == float64(blank) {
			return 0
		}
		v := raw*bscale + bzero
		if math.IsNaN(v) {
			return 0
		}
		return v
	}); err != nil {
		return nil, fmt.Errorf("%d: %s", id, err.Error())
	}

	res, err := NewRaster(width, height, bands, data)
	if err != nil {
		return nil, err
	}
	res.ID = id
	return res, nil
}

func (h *fitsHeader) float(key string, def float64) float64 {
	if v, ok := h.Floats[key]; ok {
		return v
	}
	if v, ok := h.Ints[key]; ok {
		return float64(v)
	}
	return def
}

// Returns a big-endian decoder for one sample of the given BITPIX, which also
// reports whether the sample type is integral.
func sampleDecoder(bitpix int64) (decode func(b []byte) (float64, bool), bytesPerValue int, err error) {
	switch bitpix {
	case 8:
		return func(b []byte) (float64, bool) { return float64(b[0]), true }, 1, nil
	case 16:
		return func(b []byte) (float64, bool) { return float64(int16(binary.BigEndian.Uint16(b))), true }, 2, nil
	case 32:
		return func(b []byte) (float64, bool) { return float64(int32(binary.BigEndian.Uint32(b))), true }, 4, nil
	case 64:
		return func(b []byte) (float64, bool) { return float64(int64(binary.BigEndian.Uint64(b))), true }, 8, nil
	case -32:
		return func(b []byte) (float64, bool) {
			return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), false
		}, 4, nil
	case -64:
		return func(b []byte) (float64, bool) { return math.Float64frombits(binary.BigEndian.Uint64(b)), false }, 8, nil
	default:
		return nil, 0, fmt.Errorf("%w: BITPIX value %d", ErrUnsupportedFormat, bitpix)
	}
}

// Batched read of fixed size samples into data.
func readSamples(r io.Reader, data []float64, bytesPerValue int, convert func(b []byte) float64) error {
	buf := getBytesFromPool((bufLen / bytesPerValue) * bytesPerValue)
	defer putBytesIntoPool(buf)
	for dataIndex := 0; dataIndex < len(data); {
		bytesToRead := (len(data) - dataIndex) * bytesPerValue
		if bytesToRead > len(buf) {
			bytesToRead = len(buf)
		}
		if _, err := io.ReadFull(r, buf[:bytesToRead]); err != nil {
			return err
		}
		for i := 0; i < bytesToRead; i += bytesPerValue {
			data[dataIndex] = convert(buf[i : i+bytesPerValue])
			dataIndex++
		}
	}
	return nil
}

func (h *fitsHeader) read(r io.Reader, id int, logWriter io.Writer) error {
	buf := make([]byte, fitsBlockSize)

	for h.Length = 0; !h.End; {
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("%d: reading FITS header: %s", id, err.Error())
		}
		h.Length += fitsBlockSize

		for lineNo := 0; lineNo < fitsBlockSize/fitsLineSize && !h.End; lineNo++ {
			line := buf[lineNo*fitsLineSize : (lineNo+1)*fitsLineSize]
			subValues := reParser.FindSubmatch(line)
			if subValues == nil {
				fmt.Fprintf(logWriter, "%d: Warning: Cannot parse '%s', ignoring\n", id, string(line))
				continue
			}
			h.readLine(reParser.SubexpNames(), subValues, id, lineNo, logWriter)
		}
	}
	return nil
}

func (h *fitsHeader) readLine(subNames []string, subValues [][]byte, id, lineNo int, logWriter io.Writer) {
	key := ""
	// index 0 is the whole line
	for i := 1; i < len(subNames); i++ {
		if subValues[i] == nil || len(subNames[i]) != 1 {
			continue
		}
		val := string(subValues[i])
		switch c := subNames[i][0]; c {
		case 'E':
			h.End = true
		case 'H':
			h.History = append(h.History, val)
		case 'C':
			h.Comments = append(h.Comments, val)
		case 'k':
			key = val
		case 'b':
			h.Bools[key] = val == "T"
		case 'i':
			if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				h.Ints[key] = v
			}
		case 'f':
			if v, err := strconv.ParseFloat(fortranExponent(val), 64); err == nil {
				h.Floats[key] = v
			}
		case 's':
			h.Strings[key] = val
		case 'c':
			// value comments are ignored
		default:
			fmt.Fprintf(logWriter, "%d:%d: Warning: Unknown token '%s'\n", id, lineNo, string(c))
		}
	}
}

// FITS permits D as the exponent marker of double precision values.
func fortranExponent(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == 'D' {
			b[i] = 'E'
		}
	}
	return string(b)
}

// Build regexp parser for FITS header lines
func compileRE() *regexp.Regexp {
	white := "\\s+"
	whiteOpt := "\\s*"

	histLine := "HISTORY" + "(?:" + white + "(?P<H>.*))?"
	commLine := "COMMENT" + "(?:" + white + "(?P<C>.*))?"
	endLine := "(?P<E>END)" + whiteOpt

	key := "(?P<k>[A-Z0-9_-]+)"
	boo := "(?P<b>[TF])"
	inte := "(?P<i>[+-]?[0-9]+)"
	floa := "(?P<f>[+-]?[0-9]*\\.[0-9]*(?:[ED][-+]?[0-9]+)?|[+-]?[0-9]+[ED][-+]?[0-9]+)"
	stri := "'(?P<s>[^']*)'"
	val := "(?:" + boo + "|" + inte + "|" + floa + "|" + stri + ")"

	commOpt := "(?:/(?P<c>.*))?"
	keyLine := key + whiteOpt + "=" + whiteOpt + val + whiteOpt + commOpt

	lineRe := "^(?:" + white + "|" + histLine + "|" + commLine + "|" + keyLine + "|" + endLine + ")$"
	return regexp.MustCompile(lineRe)
}
