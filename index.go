/*
Copyright © 2024 the cesmplot authors.
This file is part of cesmplot.

cesmplot is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

cesmplot is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with cesmplot.  If not, see <http://www.gnu.org/licenses/>.
*/

package cesmplot

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Names of the index kinds that are not looked up in a table.
const (
	RawName        = "Raw"
	GlobalMeanName = "Global Mean"
)

// Index is a method of reducing a field to a climate index. The
// implementations are Raw, GlobalMeanIndex, BoxIndex and ZonalDiff.
type Index interface {
	// Name returns the name the index was requested by.
	Name() string

	// Compute applies the index to field f of variable v.
	Compute(v string, f *Field) (*Field, error)

	isIndex()
}

// Raw returns the field unchanged.
type Raw struct{}

// Name implements Index.
func (Raw) Name() string { return RawName }

// Compute implements Index.
func (Raw) Compute(_ string, f *Field) (*Field, error) { return f, nil }

func (Raw) isIndex() {}

// GlobalMeanIndex is the area-weighted mean over the whole field.
type GlobalMeanIndex struct{}

// Name implements Index.
func (GlobalMeanIndex) Name() string { return GlobalMeanName }

// Compute implements Index.
func (GlobalMeanIndex) Compute(_ string, f *Field) (*Field, error) { return GlobalMean(f) }

func (GlobalMeanIndex) isIndex() {}

// BoxIndex is the area-weighted mean over a region box.
type BoxIndex struct {
	Box RegionBox
}

// Name implements Index.
func (b BoxIndex) Name() string { return b.Box.Name }

// Compute implements Index.
func (b BoxIndex) Compute(_ string, f *Field) (*Field, error) {
	o, err := BoxMean(f, b.Box)
	if err != nil {
		return nil, err
	}
	o.Name = f.Name + " " + b.Box.Name
	return o, nil
}

func (BoxIndex) isIndex() {}

// ZonalDiff is the west box mean minus the east box mean.
type ZonalDiff struct {
	Spec DiffIndexSpec
}

// Name implements Index.
func (z ZonalDiff) Name() string { return z.Spec.Name }

// Compute implements Index. It returns a *VariableMismatchError if v is
// not the variable the index is defined for.
func (z ZonalDiff) Compute(v string, f *Field) (*Field, error) {
	if v != z.Spec.RequiredVar {
		return nil, &VariableMismatchError{Index: z.Spec.Name, Required: z.Spec.RequiredVar, Got: v}
	}
	west, err := BoxMean(f, z.Spec.West)
	if err != nil {
		return nil, err
	}
	east, err := BoxMean(f, z.Spec.East)
	if err != nil {
		return nil, err
	}
	for i, e := range east.Data.Elements {
		west.Data.Elements[i] -= e
	}
	west.Name = z.Spec.Name
	west.Description = fmt.Sprintf("%s west (lon %g to %g) minus east (lon %g to %g)",
		v, z.Spec.West.Lon[0], z.Spec.West.Lon[1], z.Spec.East.Lon[0], z.Spec.East.Lon[1])
	return west, nil
}

func (ZonalDiff) isIndex() {}

// ParseIndex resolves an index name. Region boxes take precedence over
// difference indices with the same name. It returns an *UnknownIndexError
// if the name is not recognized.
func ParseIndex(name string, boxes BoxTable, diffs DiffTable) (Index, error) {
	switch name {
	case RawName:
		return Raw{}, nil
	case GlobalMeanName:
		return GlobalMeanIndex{}, nil
	}
	if b, ok := boxes[name]; ok {
		if b.Name == "" {
			b.Name = name
		}
		return BoxIndex{Box: b}, nil
	}
	if d, ok := diffs[name]; ok {
		if d.Name == "" {
			d.Name = name
		}
		return ZonalDiff{Spec: d}, nil
	}
	return nil, &UnknownIndexError{Name: name}
}

// Engine computes climate indices from dataset variables.
type Engine struct {
	Boxes BoxTable
	Diffs DiffTable

	// Log receives a message for each index that is computed.
	// If nil, logrus.StandardLogger() is used.
	Log logrus.FieldLogger
}

// NewEngine returns an engine that uses the built-in region boxes and
// difference indices.
func NewEngine() *Engine {
	return &Engine{Boxes: BuiltinBoxes(), Diffs: BuiltinDiffIndices()}
}

func (e *Engine) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// IndexNames returns all names that Compute accepts.
func (e *Engine) IndexNames() []string {
	o := []string{RawName, GlobalMeanName}
	o = append(o, e.Boxes.Names()...)
	for _, n := range e.Diffs.Names() {
		if _, ok := e.Boxes[n]; !ok {
			o = append(o, n)
		}
	}
	return o
}

// Compute calculates index indexName for variable v of ds.
func (e *Engine) Compute(ds *Dataset, v, indexName string) (*Field, error) {
	f, err := ds.Variable(v)
	if err != nil {
		return nil, err
	}
	idx, err := ParseIndex(indexName, e.Boxes, e.Diffs)
	if err != nil {
		return nil, err
	}
	o, err := idx.Compute(v, f)
	if err != nil {
		return nil, err
	}
	e.log().WithFields(logrus.Fields{
		"variable": v,
		"index":    indexName,
		"dims":     o.Dims,
	}).Debug("computed index")
	return o, nil
}

// ComputeIndex calculates index indexName for variable v of ds using the
// given region boxes and the built-in difference indices.
func ComputeIndex(ds *Dataset, v, indexName string, boxes BoxTable) (*Field, error) {
	e := &Engine{Boxes: boxes, Diffs: BuiltinDiffIndices()}
	return e.Compute(ds, v, indexName)
}
