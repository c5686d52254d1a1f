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
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// NewRasterFromFile reads the raster with the given file name. The format is
// chosen by suffix: FITS (.fits, .fit, .fts, optionally gzipped) or TIFF.
// Rasters whose samples would exceed maxBytes are rejected before the data
// is read; maxBytes==0 means no limit.
func NewRasterFromFile(fileName string, id int, maxBytes uint64, logWriter io.Writer) (r *Raster, err error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lName := strings.ToLower(fileName)
	ext := path.Ext(lName)
	compressed := false
	if ext == ".gz" || ext == ".gzip" {
		compressed = true
		ext = path.Ext(strings.TrimSuffix(lName, ext))
	}

	var in io.Reader = bufio.NewReader(f)
	if compressed {
		gz, err := gzip.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("%d: %s: %w", id, fileName, err)
		}
		defer gz.Close()
		in = gz
	}

	switch ext {
	case ".fits", ".fit", ".fts":
		r, err = ReadFITS(in, id, maxBytes, logWriter)
	case ".tif", ".tiff":
		r, err = ReadTIFF(in, id, maxBytes)
	default:
		return nil, fmt.Errorf("%d: %w: suffix '%s' of %s", id, ErrUnsupportedFormat, ext, fileName)
	}
	if err != nil {
		return nil, err
	}
	r.FileName = fileName
	return r, nil
}
