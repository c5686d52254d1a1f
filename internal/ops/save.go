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

package ops

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/mlnoga/falsecolor/internal/export"
	"github.com/mlnoga/falsecolor/internal/tonemap"
)

// Saves the display images of a frame under the given filename patterns, with
// pattern expansion for %d based on the frame id. Empty patterns are skipped.
// Takes one input, produces one output (the materialized but unchanged input)
type OpSave struct {
	OpUnaryBase
	Raw         string `json:"raw"`
	Processed   string `json:"processed"`
	SideBySide  string `json:"sideBySide"`
	JPEGQuality int    `json:"jpegQuality"`
	Matte       string `json:"matte"`
}

var _ Operator = (*OpSave)(nil) // this type is an Operator
func init() { SetOperatorFactory(func() Operator { return NewOpSaveDefault() }) } // register the operator for JSON decoding

func NewOpSaveDefault() *OpSave { return NewOpSave("", "", "", 95, "#000000") }

func NewOpSave(raw, processed, sideBySide string, jpegQuality int, matte string) *OpSave {
	op := &OpSave{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "save", Active: raw != "" || processed != "" || sideBySide != ""}},
		Raw:         raw,
		Processed:   processed,
		SideBySide:  sideBySide,
		JPEGQuality: jpegQuality,
		Matte:       matte,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpSave) UnmarshalJSON(data []byte) error {
	type defaults OpSave
	def := defaults(*NewOpSaveDefault())
	def.Active = true
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpSave(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

var idVerbRE = regexp.MustCompile(`%0?[0-9]*d`)

// Replaces each %d style verb (e.g. %d, %03d) in the pattern with the frame
// ID. Other % signs are kept as they are
func expandPattern(pattern string, id int) string {
	return idVerbRE.ReplaceAllStringFunc(pattern, func(verb string) string {
		return fmt.Sprintf(verb, id)
	})
}

func (op *OpSave) Apply(f *Frame, c *Context) (result *Frame, err error) {
	matte, err := export.ParseMatte(op.Matte)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	opts := export.Options{JPEGQuality: op.JPEGQuality, Matte: matte}

	if op.Raw != "" {
		raw, err := f.RawImage()
		if err != nil {
			return nil, fmt.Errorf("%d: %w", f.ID, err)
		}
		if err := op.save(f, c, raw, "raw", op.Raw, opts); err != nil {
			return nil, err
		}
	}
	if op.Processed != "" {
		if f.Processed == nil {
			return nil, fmt.Errorf("%d: no tone mapped image to save to %s", f.ID, op.Processed)
		}
		if err := op.save(f, c, f.Processed, "processed", op.Processed, opts); err != nil {
			return nil, err
		}
	}
	if op.SideBySide != "" {
		if f.Processed == nil {
			return nil, fmt.Errorf("%d: no tone mapped image to save to %s", f.ID, op.SideBySide)
		}
		raw, err := f.RawImage()
		if err != nil {
			return nil, fmt.Errorf("%d: %w", f.ID, err)
		}
		side, err := export.SideBySide(raw, f.Processed)
		if err != nil {
			return nil, fmt.Errorf("%d: %w", f.ID, err)
		}
		if err := op.save(f, c, side, "side-by-side", op.SideBySide, opts); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (op *OpSave) save(f *Frame, c *Context, img *tonemap.Image, kind, pattern string, opts export.Options) error {
	fileName := expandPattern(pattern, f.ID)
	if c.Sandboxed && !IsPathAllowed(fileName) {
		return fmt.Errorf("%d: file name '%s' outside current directory tree, aborting", f.ID, fileName)
	}
	format, err := export.FormatFromFileName(fileName)
	if err != nil {
		return fmt.Errorf("%d: %w", f.ID, err)
	}
	fmt.Fprintf(c.Log, "%d: Writing %dx%d pixel %s %v to %s\n", f.ID, img.Width, img.Height, kind, format, fileName)
	if err := export.Save(img, fileName, opts); err != nil {
		return fmt.Errorf("%d: error writing to file %s: %w", f.ID, fileName, err)
	}
	return nil
}
