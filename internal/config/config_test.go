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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mlnoga/falsecolor/internal/raster"
	"github.com/mlnoga/falsecolor/internal/tonemap"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("got %+v; want defaults", cfg)
	}
	if cfg.Selection() != (raster.BandSelection{R: 1, G: 2, B: 3}) {
		t.Errorf("default selection %v", cfg.Selection())
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	yml := `
preview:
  red: 4
  strategy: percentile
  percent: 0.1
server:
  listen: "127.0.0.1:9000"
`
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Preview.Red != 4 || cfg.Preview.Green != 2 || cfg.Server.Listen != "127.0.0.1:9000" || cfg.Server.Setuid != -1 {
		t.Errorf("got %+v", cfg)
	}
	p, err := cfg.Params()
	if err != nil || p != tonemap.NewParams(tonemap.PercentileLinear, 0.1) {
		t.Errorf("params %v %v; want percentile 0.1", p, err)
	}
	if cfg.Output.JPEGQuality != 95 {
		t.Errorf("jpeg quality %d; want default 95", cfg.Output.JPEGQuality)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	type invalidTestCase struct {
		YAML string
		Want error
	}
	tcs := []invalidTestCase{
		{"preview:\n  strategy: sqrt\n", tonemap.ErrInvalidParams},
		{"preview:\n  strategy: percentile\n  percent: 0.6\n", tonemap.ErrInvalidParams},
		{"processing:\n  memoryFraction: 2\n", nil},
		{"preview: [1, 2\n", nil},
	}
	for i, tc := range tcs {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte(tc.YAML), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadConfig(path)
		if err == nil {
			t.Errorf("case %d accepted", i)
			continue
		}
		if tc.Want != nil && !errors.Is(err, tc.Want) {
			t.Errorf("case %d got %v; want %v", i, err, tc.Want)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cfg.yaml")
	cfg := DefaultConfig()
	cfg.Preview.Strategy = "gaussian"
	cfg.Output.SideBySide = "side.jpg"
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatal(err)
	}
	again, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if *again != *cfg {
		t.Errorf("got %+v; want %+v", again, cfg)
	}
}
