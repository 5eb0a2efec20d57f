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

package transform

import (
	"encoding/json"
	"fmt"

	"github.com/mlnoga/pixfilter/internal/filter"
	"github.com/mlnoga/pixfilter/internal/ops"
	"github.com/mlnoga/pixfilter/internal/pixmap"
)

// Applies one named pixel filter to each input image. The operator type is the filter name,
// so a sequence reads like {"type":"gaussian", "sigma":1.5}
type OpFilter struct {
	ops.OpUnaryBase
	Red   int     `json:"red,omitempty"`
	Green int     `json:"green,omitempty"`
	Blue  int     `json:"blue,omitempty"`
	Sigma float64 `json:"sigma,omitempty"`
}

var _ ops.Operator = (*OpFilter)(nil) // this type is an Operator

// Default sigma for the gaussian operator
const DefaultSigma = 1.0

func init() { // register one operator per filter for JSON decoding
	for _, name := range filter.Names() {
		theName := name
		ops.SetOperatorFactory(func() ops.Operator { return NewOpFilterDefault(theName) })
	}
}

func NewOpFilterDefault(name string) *OpFilter {
	sigma := 0.0
	if name == filter.NameGaussian {
		sigma = DefaultSigma
	}
	return NewOpFilter(filter.Params{Name: name, Sigma: sigma})
}

func NewOpFilter(p filter.Params) *OpFilter {
	op := OpFilter{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: p.Name, Active: true}},
		Red:         p.Red,
		Green:       p.Green,
		Blue:        p.Blue,
		Sigma:       p.Sigma,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries.
// Defaults depend on the filter, so the type is decoded first
func (op *OpFilter) UnmarshalJSON(data []byte) error {
	var base ops.OpBase
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	type defaults OpFilter
	def := defaults(*NewOpFilterDefault(base.Type))
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpFilter(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

// Filter parameters of this operator
func (op *OpFilter) Params() filter.Params {
	return filter.Params{Name: op.Type, Red: op.Red, Green: op.Green, Blue: op.Blue, Sigma: op.Sigma}
}

func (op *OpFilter) Apply(f *pixmap.Image, c *ops.Context) (result *pixmap.Image, err error) {
	if !op.Active {
		return f, nil
	}
	p := op.Params()
	fmt.Fprintf(c.Log, "%d: Applying %s to %s pixels with %d workers\n", f.ID, p, f.DimensionsToString(), c.Workers)
	result, err = filter.Run(f, p, c.Workers)
	if err != nil {
		return nil, fmt.Errorf("%d: %s: %w", f.ID, p.Name, err)
	}
	return result, nil
}
