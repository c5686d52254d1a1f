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

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/mlnoga/falsecolor/internal/raster"
	"github.com/mlnoga/falsecolor/internal/stats"
	"github.com/mlnoga/falsecolor/internal/tonemap"
)

// NewOpPreview chains band selection, tone mapping and saving
func NewOpPreview(opBands *OpBands, opToneMap *OpToneMap, opSave *OpSave) *OpSequence {
	return NewOpSequence(opBands, opToneMap, opSave)
}

// Selects the bands shown as red, green and blue. Zero keeps the current band
// of that channel. Takes one input, produces one output
type OpBands struct {
	OpUnaryBase
	Red   int `json:"red"`
	Green int `json:"green"`
	Blue  int `json:"blue"`
}

var _ Operator = (*OpBands)(nil) // this type is an Operator
func init() { SetOperatorFactory(func() Operator { return NewOpBandsDefault() }) } // register the operator for JSON decoding

func NewOpBandsDefault() *OpBands { return NewOpBands(0, 0, 0) }

func NewOpBands(red, green, blue int) *OpBands {
	op := &OpBands{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "bands", Active: true}},
		Red:         red,
		Green:       green,
		Blue:        blue,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpBands) UnmarshalJSON(data []byte) error {
	type defaults OpBands
	def := defaults(*NewOpBandsDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpBands(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func (op *OpBands) Apply(f *Frame, c *Context) (result *Frame, err error) {
	sel := f.Selection
	if op.Red != 0 {
		sel.R = op.Red
	}
	if op.Green != 0 {
		sel.G = op.Green
	}
	if op.Blue != 0 {
		sel.B = op.Blue
	}
	if err := f.Raster.Validate(sel); err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	if sel != f.Selection {
		f.Selection = sel
		f.Stats, f.Reports, f.Raw, f.Processed = nil, nil, nil, nil
	}
	fmt.Fprintf(c.Log, "%d: Selected bands %v\n", f.ID, f.Selection)
	return f, nil
}

// Computes and logs the statistics report of the selected bands.
// Takes one input, produces one output
type OpStats struct {
	OpUnaryBase
}

var _ Operator = (*OpStats)(nil) // this type is an Operator
func init() { SetOperatorFactory(func() Operator { return NewOpStatsDefault() }) } // register the operator for JSON decoding

func NewOpStatsDefault() *OpStats { return NewOpStats(true) }

func NewOpStats(active bool) *OpStats {
	op := &OpStats{OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "stats", Active: active}}}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpStats) UnmarshalJSON(data []byte) error {
	type defaults OpStats
	def := defaults(*NewOpStatsDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpStats(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func (op *OpStats) Apply(f *Frame, c *Context) (result *Frame, err error) {
	offR, offG, offB, err := f.Offsets()
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	r := f.Raster
	bands := [3]int{f.Selection.R, f.Selection.G, f.Selection.B}
	f.Reports, f.Stats = stats.Report(r.Data, r.Width, r.Height, offR, offG, offB, bands)

	fmt.Fprintf(c.Log, "%d: %d of %d pixels valid in bands %v\n", f.ID, f.Stats.Count, f.Stats.Pixels, f.Selection)
	if f.Stats.Empty() {
		fmt.Fprintf(c.Log, "%d: Warning: %v\n", f.ID, tonemap.ErrEmptyImage)
		return f, nil
	}
	for i := range f.Reports {
		warning := ""
		if f.Reports[i].Max-f.Reports[i].Min < 1e-8 {
			warning = "; WARNING low dynamic range"
		}
		fmt.Fprintf(c.Log, "%d: %s%s\n", f.ID, f.Reports[i].String(), warning)
	}
	return f, nil
}

// Tone maps the selected bands into the processed display image, and clips
// them into the raw display image. Takes one input, produces one output
type OpToneMap struct {
	OpUnaryBase
	Strategy tonemap.Strategy `json:"strategy"`
	Percent  float64          `json:"percent"`
}

var _ Operator = (*OpToneMap)(nil) // this type is an Operator
func init() { SetOperatorFactory(func() Operator { return NewOpToneMapDefault() }) } // register the operator for JSON decoding

func NewOpToneMapDefault() *OpToneMap {
	return NewOpToneMap(tonemap.DefaultParams())
}

func NewOpToneMap(p tonemap.Params) *OpToneMap {
	op := &OpToneMap{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "tonemap", Active: true}},
		Strategy:    p.Strategy,
		Percent:     p.Percent,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpToneMap) UnmarshalJSON(data []byte) error {
	type defaults OpToneMap
	def := defaults(*NewOpToneMapDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpToneMap(def)
	op.OpUnaryBase.Apply = op.Apply
	return op.Params().Validate()
}

func (op *OpToneMap) Params() tonemap.Params {
	return tonemap.NewParams(op.Strategy, op.Percent)
}

func (op *OpToneMap) Apply(f *Frame, c *Context) (result *Frame, err error) {
	p := op.Params()
	fmt.Fprintf(c.Log, "%d: Tone mapping bands %v with %v\n", f.ID, f.Selection, p)
	img, s, err := tonemap.Render(f.Raster, f.Selection, p)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	f.Params, f.Stats, f.Processed = p, s, img
	if _, err := f.RawImage(); err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}

	if s.Empty() {
		fmt.Fprintf(c.Log, "%d: Warning: %v\n", f.ID, tonemap.ErrEmptyImage)
		return f, nil
	}
	for i, ch := range s.Channels() {
		if ch.Degenerate() {
			fmt.Fprintf(c.Log, "%d: Warning: %s channel has constant value %.6g, rendering flat\n", f.ID, stats.ChannelNames[i], ch.Min)
		}
	}
	if r, g, b, ok := img.MeanColor(); ok {
		mean := colorful.Color{R: r, G: g, B: b}
		fmt.Fprintf(c.Log, "%d: Mapped %d valid pixels, mean display color %s\n", f.ID, s.Count, mean.Hex())
	}
	return f, nil
}

// NewFrameFromRaster wraps an in-memory raster with the given selection
func NewFrameFromRaster(r *raster.Raster, sel raster.BandSelection) (*Frame, error) {
	if err := r.Validate(sel); err != nil {
		return nil, err
	}
	f := NewFrame(r)
	f.Selection = sel
	return f, nil
}
