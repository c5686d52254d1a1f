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
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"

	"github.com/mlnoga/falsecolor/internal/raster"
	"github.com/mlnoga/falsecolor/internal/stats"
	"github.com/mlnoga/falsecolor/internal/tonemap"
)

// An execution context for operators
type Context struct {
	Log        io.Writer
	MemoryMB   int    // memory.TotalMemory()/1024/1024
	MaxBytes   uint64 // budget for raster samples, 0=unlimited
	MaxThreads int    `json:"maxThreads"`
	Sandboxed  bool   // restrict file names to relative paths below the working directory
}

// NewContext creates a context logging to log. memoryFraction of physical
// memory is the budget for loading rasters, 0 disables the check. maxThreads<=0
// selects the number of logical cores.
func NewContext(log io.Writer, memoryFraction float64, maxThreads int) *Context {
	memoryMB := int(memory.TotalMemory() / 1024 / 1024)
	if maxThreads <= 0 {
		maxThreads = cpuid.CPU.LogicalCores
	}
	if maxThreads <= 0 {
		maxThreads = runtime.NumCPU()
	}
	var maxBytes uint64
	if memoryFraction > 0 && memoryFraction <= 1 {
		maxBytes = uint64(float64(memory.TotalMemory()) * memoryFraction)
	}
	return &Context{
		Log:        log,
		MemoryMB:   memoryMB,
		MaxBytes:   maxBytes,
		MaxThreads: maxThreads,
	}
}

// A raster travelling through an operator pipeline, with the results of the
// operators applied so far
type Frame struct {
	ID        int
	Raster    *raster.Raster
	Selection raster.BandSelection
	Stats     *stats.Stats
	Reports   []stats.ChannelReport
	Params    tonemap.Params
	Raw       *tonemap.Image // raw samples clipped to [0,255]
	Processed *tonemap.Image // tone mapped
}

// NewFrame wraps r with the default band selection
func NewFrame(r *raster.Raster) *Frame {
	return &Frame{
		ID:        r.ID,
		Raster:    r,
		Selection: raster.DefaultSelection(r.Bands),
		Params:    tonemap.DefaultParams(),
	}
}

func (f *Frame) Offsets() (offR, offG, offB int, err error) {
	return f.Raster.Offsets(f.Selection)
}

// RawImage returns the raw clipped rendering, creating it on first use
func (f *Frame) RawImage() (*tonemap.Image, error) {
	if f.Raw != nil {
		return f.Raw, nil
	}
	offR, offG, offB, err := f.Offsets()
	if err != nil {
		return nil, err
	}
	f.Raw = tonemap.RenderRaw(f.Raster.Data, f.Raster.Width, f.Raster.Height, offR, offG, offB)
	return f.Raw, nil
}

// A promise for a frame. Returns a materialized frame, or an error
type Promise func() (f *Frame, err error)

// Materializes all promises with given concurrency limit
func MaterializeAll(ins []Promise, maxThreads int, forget bool) (outs []*Frame, err error) {
	if len(ins) == 0 {
		return nil, nil
	}
	if maxThreads <= 0 {
		maxThreads = 1
	}
	if !forget {
		outs = make([]*Frame, len(ins))
	}
	limiter := make(chan bool, maxThreads)
	errs := make(chan error, len(ins))
	for i, in := range ins {
		limiter <- true
		go func(i int, theIn Promise) {
			defer func() { <-limiter }()
			f, err := theIn() // materialize the promise
			if err != nil {
				errs <- err
				return
			}
			if !forget {
				outs[i] = f
			}
			errs <- nil
		}(i, in)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}
	for i := 0; i < len(ins); i++ { // collect errors
		if e := <-errs; e != nil {
			if err == nil {
				err = e
			} else {
				err = fmt.Errorf("%s; %s", err.Error(), e.Error())
			}
		}
	}
	return RemoveNils(outs), err
}

// Remove nils from an array of frames, editing the underlying array in place
func RemoveNils(frames []*Frame) []*Frame {
	o := 0
	for i := 0; i < len(frames); i++ {
		if frames[i] != nil {
			frames[o] = frames[i]
			o++
		}
	}
	for i := o; i < len(frames); i++ {
		frames[i] = nil
	}
	return frames[:o]
}

var errNoInputs = errors.New("operator needs at least one input")
