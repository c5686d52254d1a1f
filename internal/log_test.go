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

package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogAlsoToFile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "test.log")
	if err := LogAlsoToFile(fileName); err != nil {
		t.Fatal(err)
	}
	LogPrintf("%d: hello %s\n", 1, "log")
	LogPrintln("second line")
	LogClose()

	data, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); !strings.Contains(got, "1: hello log\n") || !strings.Contains(got, "second line\n") {
		t.Errorf("log file contains %q", got)
	}

	// after closing only stdout is written
	LogPrintf("not in file\n")
	data, _ = os.ReadFile(fileName)
	if strings.Contains(string(data), "not in file") {
		t.Errorf("closed log file still written")
	}

	if err := LogAlsoToFile(filepath.Join(t.TempDir(), "missing", "dir.log")); err == nil {
		t.Errorf("opening log in missing directory succeeded")
	}
}
