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

package info

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/mlnoga/pixfilter/internal/ops"
	"github.com/mlnoga/pixfilter/internal/pixmap"
	"github.com/mlnoga/pixfilter/internal/stats"
)

// Statistics of one image, as exported
type Record struct {
	ID         int    `json:"id"`
	FileName   string `json:"fileName"`
	Type       string `json:"type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	MaxVal     int    `json:"maxVal"`
	OutOfRange int    `json:"outOfRange"` // samples outside [0,MaxVal]
	stats.Stats
}

// Calculates image statistics and logs them. Optionally appends one JSON record per image
// to a file. Passes images through unchanged
type OpStats struct {
	ops.OpUnaryBase
	FileName   string     `json:"fileName"`
	NumSamples int        `json:"numSamples"`
	mutex      sync.Mutex `json:"-"`
	file       *os.File   `json:"-"`
	records    []Record   `json:"-"`
}

var _ ops.Operator = (*OpStats)(nil) // this type is an Operator

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpStatsDefault() }) } // register the operator for JSON decoding

func NewOpStatsDefault() *OpStats { return NewOpStats("") }

func NewOpStats(fileName string) *OpStats {
	op := &OpStats{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "stats", Active: true}},
		FileName:    fileName,
		NumSamples:  stats.DefaultMedianSamples,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpStats) UnmarshalJSON(data []byte) error {
	type defaults OpStats
	def := defaults(*NewOpStatsDefault())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*op = OpStats(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func NewRecord(f *pixmap.Image, numSamples int) Record {
	return Record{
		ID:         f.ID,
		FileName:   f.FileName,
		Type:       f.Type,
		Width:      f.Width,
		Height:     f.Height,
		MaxVal:     f.MaxVal,
		OutOfRange: f.CountOutOfRange(),
		Stats:      *stats.NewStats(f, numSamples),
	}
}

func (op *OpStats) Apply(f *pixmap.Image, c *ops.Context) (result *pixmap.Image, err error) {
	r := NewRecord(f, op.NumSamples)
	fmt.Fprintf(c.Log, "%d: %s %s\n", f.ID, f.DimensionsToString(), &r.Stats)

	op.mutex.Lock()         // lock so a single thread is active
	defer op.mutex.Unlock() // always release lock on exit

	op.records = append(op.records, r)
	if op.FileName == "" {
		return f, nil
	}
	if op.file == nil {
		fmt.Fprintf(c.Log, "Writing statistics to file %s ...\n", op.FileName)
		if op.file, err = os.Create(op.FileName); err != nil {
			return nil, fmt.Errorf("error creating file %s: %w", op.FileName, err)
		}
	}
	if err = json.NewEncoder(op.file).Encode(&r); err != nil {
		return nil, fmt.Errorf("%d: error writing statistics to %s: %w", f.ID, op.FileName, err)
	}
	return f, nil
}

// Returns the records collected so far, ordered by image ID
func (op *OpStats) Records() []Record {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	rs := append([]Record(nil), op.records...)
	sort.Slice(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })
	return rs
}

// Closes the statistics file, if any
func (op *OpStats) Close() error {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.file == nil {
		return nil
	}
	err := op.file.Close()
	op.file = nil
	return err
}
