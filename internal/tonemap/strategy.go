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

// Package tonemap converts three selected raster bands into 8-bit RGBA
// display values with one of four stretch strategies.
package tonemap

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidParams = errors.New("invalid tone mapping parameters")
	ErrEmptyImage    = errors.New("no valid pixels in selected bands, output is fully transparent")
)

// Strategy selects how raw samples are mapped into display bytes
type Strategy int

const (
	Linear Strategy = iota
	PercentileLinear
	HistogramEqualization
	Gaussian
)

var strategyNames = []string{"linear", "percentile", "equalize", "gaussian"}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseStrategy looks up a strategy by its name, ignoring case
func ParseStrategy(name string) (Strategy, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i, n := range strategyNames {
		if n == lower {
			return Strategy(i), nil
		}
	}
	return Linear, fmt.Errorf("%w: unknown strategy '%s', want one of %s", ErrInvalidParams, name, strings.Join(strategyNames, ", "))
}

func (s Strategy) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(strategyNames) {
		return nil, fmt.Errorf("%w: unknown strategy %d", ErrInvalidParams, int(s))
	}
	return []byte(strategyNames[s]), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Default stretch fraction for PercentileLinear
const DefaultPercent = 0.02

// Params of a tone mapping pass. Percent is only used by PercentileLinear and
// gives the fraction of the range trimmed from each end.
type Params struct {
	Strategy Strategy `json:"strategy" yaml:"strategy"`
	Percent  float64  `json:"percent"  yaml:"percent"`
}

func NewParams(s Strategy, percent float64) Params {
	return Params{Strategy: s, Percent: percent}
}

func DefaultParams() Params { return NewParams(Linear, DefaultPercent) }

func (p Params) Validate() error {
	if p.Strategy < Linear || p.Strategy > Gaussian {
		return fmt.Errorf("%w: unknown strategy %d", ErrInvalidParams, int(p.Strategy))
	}
	if p.Strategy == PercentileLinear && !(p.Percent >= 0 && p.Percent < 0.5) {
		return fmt.Errorf("%w: percent %g outside [0,0.5)", ErrInvalidParams, p.Percent)
	}
	return nil
}

func (p Params) String() string {
	if p.Strategy == PercentileLinear {
		return fmt.Sprintf("%s %.4g%%", p.Strategy, p.Percent*100)
	}
	return p.Strategy.String()
}
