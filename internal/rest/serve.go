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

package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mlnoga/falsecolor/internal/export"
	"github.com/mlnoga/falsecolor/internal/ops"
	"github.com/mlnoga/falsecolor/internal/raster"
	"github.com/mlnoga/falsecolor/internal/tonemap"
)

// Creates an operator context writing to the given log
type ContextFactory func(log io.Writer) *ops.Context

// NewRouter sets up the API routes. All contexts created through newContext
// are sandboxed to relative paths.
func NewRouter(newContext ContextFactory) *gin.Engine {
	sandboxed := func(log io.Writer) *ops.Context {
		c := newContext(log)
		c.Sandboxed = true
		return c
	}
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/stats", postStats(sandboxed))
			v1.POST("/preview", postPreview(sandboxed))
			v1.POST("/run", postRun(sandboxed))
		}
	}
	return r
}

// Serve listens on the given address, e.g. ":8080", until the server fails
func Serve(listen string, newContext ContextFactory) error {
	return NewRouter(newContext).Run(listen)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, raster.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errorStatus(err), gin.H{"error": err.Error()})
}

// Loads the requested file and applies the band selection. Zero bands keep the default.
func loadFrame(fileName string, sel raster.BandSelection, oc *ops.Context) (*ops.Frame, error) {
	promises, err := ops.NewOpLoad(0, fileName).MakePromises(nil, oc)
	if err != nil {
		return nil, err
	}
	f, err := promises[0]()
	if err != nil {
		return nil, err
	}
	return ops.NewOpBands(sel.R, sel.G, sel.B).Apply(f, oc)
}

type postStatsArgs struct {
	FileName string               `json:"fileName" binding:"required"`
	Bands    raster.BandSelection `json:"bands"`
}

func postStats(newContext ContextFactory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var args postStatsArgs
		if err := c.ShouldBindJSON(&args); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var log bytes.Buffer
		oc := newContext(&log)
		f, err := loadFrame(args.FileName, args.Bands, oc)
		if err == nil {
			f, err = ops.NewOpStatsDefault().Apply(f, oc)
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"fileName":    args.FileName,
			"width":       f.Raster.Width,
			"height":      f.Raster.Height,
			"bands":       f.Raster.Bands,
			"selection":   f.Selection,
			"pixels":      f.Stats.Pixels,
			"validPixels": f.Stats.Count,
			"channels":    f.Reports,
			"log":         log.String(),
		})
	}
}

type postPreviewArgs struct {
	FileName string               `json:"fileName" binding:"required"`
	Bands    raster.BandSelection `json:"bands"`
	ToneMap  *ops.OpToneMap       `json:"toneMap"`
	View     string               `json:"view"` // processed (default), raw or side
}

func postPreview(newContext ContextFactory) gin.HandlerFunc {
	return func(c *gin.Context) {
		args := postPreviewArgs{ToneMap: ops.NewOpToneMapDefault(), View: "processed"}
		if err := c.ShouldBindJSON(&args); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if args.ToneMap == nil {
			args.ToneMap = ops.NewOpToneMapDefault()
		}
		oc := newContext(io.Discard)
		f, err := loadFrame(args.FileName, args.Bands, oc)
		if err == nil {
			f, err = args.ToneMap.Apply(f, oc)
		}
		if err != nil {
			abortWithError(c, err)
			return
		}

		var img *tonemap.Image
		switch args.View {
		case "", "processed":
			img = f.Processed
		case "raw":
			img = f.Raw
		case "side":
			img, err = export.SideBySide(f.Raw, f.Processed)
		default:
			err = fmt.Errorf("unknown view '%s', want processed, raw or side", args.View)
		}
		if err != nil {
			abortWithError(c, err)
			return
		}

		var buf bytes.Buffer
		if err := export.Encode(&buf, img, export.PNG, export.DefaultOptions()); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("X-Valid-Pixels", fmt.Sprintf("%d", f.Stats.Count))
		c.Data(http.StatusOK, "image/png", buf.Bytes())
	}
}

// Runs a JSON operator sequence, streaming the log to the client as plain text
func postRun(newContext ContextFactory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var seq ops.OpSequence
		body, err := io.ReadAll(c.Request.Body)
		if err == nil {
			err = json.Unmarshal(body, &seq)
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		logWriter := c.Writer
		header := logWriter.Header()
		header.Set("Content-Type", "text/plain")
		logWriter.WriteHeader(http.StatusOK)

		oc := newContext(logWriter)
		m, _ := json.MarshalIndent(&seq, "", "  ")
		fmt.Fprintf(logWriter, "Running sequence:\n%s\n", string(m))

		promises, err := seq.MakePromises(nil, oc)
		if err == nil {
			// frames share the response writer, so materialize one at a time
			_, err = ops.MaterializeAll(promises, 1, true)
		}
		if err != nil {
			fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		} else {
			fmt.Fprintf(logWriter, "Done\n")
		}
		logWriter.Flush()
	}
}
