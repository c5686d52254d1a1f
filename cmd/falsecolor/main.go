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

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/cpuid"
	"github.com/pkg/profile"

	nl "github.com/mlnoga/falsecolor/internal"
	"github.com/mlnoga/falsecolor/internal/config"
	"github.com/mlnoga/falsecolor/internal/ops"
	"github.com/mlnoga/falsecolor/internal/parallel"
	"github.com/mlnoga/falsecolor/internal/rest"
	"github.com/mlnoga/falsecolor/internal/tonemap"
)

const version = "0.1.0"

var configFile = flag.String("config", "", "load settings from YAML `file`; flags override its values")
var prof = flag.String("profile", "", "write a cpu or mem profile into the current directory")
var logFile = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")

var red = flag.Int("r", 1, "band shown as red, 1-based")
var green = flag.Int("g", 2, "band shown as green, 1-based")
var blue = flag.Int("b", 3, "band shown as blue, 1-based")
var strategy = flag.String("strategy", "linear", "tone mapping strategy, one of linear, percentile, equalize, gaussian")
var percent = flag.Float64("percent", tonemap.DefaultPercent, "fraction of the range trimmed at each end by the percentile strategy, e.g. 0.02 or 0.1")

var raw = flag.String("raw", "", "save raw clipped preview to `file`, e.g. `raw%d.png`")
var out = flag.String("out", "out.png", "save tone mapped preview to `file` (.png, .tif or .jpg)")
var side = flag.String("side", "", "save raw and tone mapped preview side by side to `file`")
var quality = flag.Int("quality", 95, "JPEG quality")
var matte = flag.String("matte", "#000000", "background color for transparent pixels in JPEG output")

var threads = flag.Int("threads", 0, "goroutines per pass, 0=all logical cores")
var memFrac = flag.Float64("memory", 0.7, "share of physical memory a raster may occupy, 0=no limit")

var listen = flag.String("listen", ":8080", "address to serve the REST API on")
var chroot = flag.String("chroot", "", "chroot into `dir` before serving")
var setuid = flag.Int("setuid", -1, "change user id before serving, -1=keep")

func main() {
	logWriter := nl.LogWriter()
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(os.Stdout, `Falsecolor Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (stats|preview|run|serve|legal|version|help) (img0.fits ... imgn.fits)

Commands:
  stats   Show statistics of the selected bands
  preview Tone map the selected bands and save previews
  run     Run the JSON operator sequence in the first argument
  serve   Serve the REST API
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		nl.LogFatalf("Error: %s\n", err.Error())
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	// Initialize logging to file in addition to stdout, if selected
	if *logFile == "%auto" {
		*logFile = ""
		if (args[0] == "preview" || args[0] == "stats") && cfg.Output.Processed != "" {
			*logFile = strings.TrimSuffix(cfg.Output.Processed, filepath.Ext(cfg.Output.Processed)) + ".log"
			*logFile = strings.ReplaceAll(*logFile, "%", "")
		}
	}
	if *logFile != "" {
		if err := nl.LogAlsoToFile(*logFile); err != nil {
			nl.LogFatalf("Unable to open logfile '%s': %s\n", *logFile, err.Error())
		}
	}
	defer nl.LogSync()

	switch *prof {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	default:
		nl.LogFatalf("Unknown profile mode '%s', want cpu or mem\n", *prof)
	}

	c := ops.NewContext(logWriter, cfg.Processing.MemoryFraction, cfg.Processing.Threads)
	parallel.Threads = c.MaxThreads

	switch args[0] {
	case "stats":
		err = cmdStats(args[1:], cfg, c)
	case "preview":
		err = cmdPreview(args[1:], cfg, c)
	case "run":
		err = cmdRun(args[1:], c)
	case "serve":
		err = cmdServe(cfg, c)
	case "legal":
		fmt.Fprint(logWriter, legal)
		return
	case "version":
		cmdVersion(logWriter, c)
		return
	case "help", "?":
		flag.Usage()
		return
	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	if err != nil {
		nl.LogFatalf("Error: %s\n", err.Error())
	}
	fmt.Fprintf(logWriter, "\nDone after %v\n", time.Since(start))
}

// Loads the config file and applies explicitly set flags on top
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "r":
			cfg.Preview.Red = *red
		case "g":
			cfg.Preview.Green = *green
		case "b":
			cfg.Preview.Blue = *blue
		case "strategy":
			cfg.Preview.Strategy = *strategy
		case "percent":
			cfg.Preview.Percent = *percent
		case "raw":
			cfg.Output.Raw = *raw
		case "out":
			cfg.Output.Processed = *out
		case "side":
			cfg.Output.SideBySide = *side
		case "quality":
			cfg.Output.JPEGQuality = *quality
		case "matte":
			cfg.Output.Matte = *matte
		case "threads":
			cfg.Processing.Threads = *threads
		case "memory":
			cfg.Processing.MemoryFraction = *memFrac
		case "listen":
			cfg.Server.Listen = *listen
		case "chroot":
			cfg.Server.Chroot = *chroot
		case "setuid":
			cfg.Server.Setuid = *setuid
		}
	})
	return cfg, cfg.Validate()
}

// Adds a %d before the suffix of a fixed output name when several inputs are given
func outputPattern(name string, numFiles int) string {
	if name == "" || numFiles <= 1 || strings.Contains(name, "%") {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "%d" + ext
}

// Runs op on the given file patterns, one frame at a time since every pass
// is parallel already
func runOnFiles(files []string, op ops.Operator, c *ops.Context) error {
	if len(files) == 0 {
		return fmt.Errorf("no input files given")
	}
	seq := ops.NewOpSequence(ops.NewOpLoadMany(files), op)
	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, 1, true)
	return err
}

func cmdStats(files []string, cfg *config.Config, c *ops.Context) error {
	sel := cfg.Selection()
	op := ops.NewOpSequence(ops.NewOpBands(sel.R, sel.G, sel.B), ops.NewOpStatsDefault())
	return runOnFiles(files, op, c)
}

func cmdPreview(files []string, cfg *config.Config, c *ops.Context) error {
	p, err := cfg.Params()
	if err != nil {
		return err
	}
	sel := cfg.Selection()
	n := len(files)
	opSave := ops.NewOpSave(outputPattern(cfg.Output.Raw, n), outputPattern(cfg.Output.Processed, n),
		outputPattern(cfg.Output.SideBySide, n), cfg.Output.JPEGQuality, cfg.Output.Matte)
	op := ops.NewOpPreview(ops.NewOpBands(sel.R, sel.G, sel.B), ops.NewOpToneMap(p), opSave)

	m, err := json.MarshalIndent(op, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Log, "Previewing with these settings:\n%s\n", string(m))
	return runOnFiles(files, op, c)
}

// Runs the operator sequence from a JSON file
func cmdRun(args []string, c *ops.Context) error {
	if len(args) != 1 {
		return fmt.Errorf("run needs exactly one JSON sequence file, got %d arguments", len(args))
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var seq ops.OpSequence
	if err := json.Unmarshal(data, &seq); err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}
	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, 1, true)
	return err
}

func cmdServe(cfg *config.Config, c *ops.Context) error {
	if err := rest.MakeSandbox(cfg.Server.Chroot, cfg.Server.Setuid, c.Log); err != nil {
		return err
	}
	fmt.Fprintf(c.Log, "Serving REST API on %s\n", cfg.Server.Listen)
	return rest.Serve(cfg.Server.Listen, func(log io.Writer) *ops.Context {
		return &ops.Context{Log: log, MemoryMB: c.MemoryMB, MaxBytes: c.MaxBytes, MaxThreads: c.MaxThreads}
	})
}

func cmdVersion(w io.Writer, c *ops.Context) {
	fmt.Fprintf(w, "Version %s\n", version)
	fmt.Fprintf(w, "CPU %s with %d physical and %d logical cores, AVX2 %v\n",
		cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, cpuid.CPU.AVX2())
	fmt.Fprintf(w, "Physical memory %d MiB, raster budget %d MiB, %d threads per pass\n",
		c.MemoryMB, c.MaxBytes>>20, c.MaxThreads)
}
