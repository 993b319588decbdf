package frame

import (
	"fmt"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
)

// Column is a named, typed column backed by an Arrow array.
type Column struct {
	Name string
	Kind Kind
	data arrow.Array
}

// Data returns the backing array. The frame keeps ownership.
func (c *Column) Data() arrow.Array { return c.data }

// Missing returns the number of missing values.
func (c *Column) Missing() int { return c.data.NullN() }

// Levels returns the distinct non-missing values of a string-backed column in
// order of first appearance.
func (c *Column) Levels() ([]string, error) {
	arr, ok := c.data.(*array.String)
	if !ok {
		return nil, fmt.Errorf("column %q (%s) has no levels", c.Name, c.Kind)
	}
	seen := make(map[string]struct{})
	var levels []string
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			continue
		}
		v := arr.Value(i)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		levels = append(levels, v)
	}
	return levels, nil
}

// Float64s copies a numeric column into a float slice; valid[i] is false for
// missing values.
func (c *Column) Float64s() (values []float64, valid []bool, err error) {
	n := c.data.Len()
	values = make([]float64, n)
	valid = make([]bool, n)
	switch arr := c.data.(type) {
	case *array.Float64:
		for i := 0; i < n; i++ {
			if arr.IsValid(i) {
				values[i] = arr.Value(i)
				valid[i] = true
			}
		}
	case *array.Int64:
		for i := 0; i < n; i++ {
			if arr.IsValid(i) {
				values[i] = float64(arr.Value(i))
				valid[i] = true
			}
		}
	default:
		return nil, nil, fmt.Errorf("column %q (%s) is not numeric", c.Name, c.Kind)
	}
	return values, valid, nil
}

// Frame is an ordered set of equally long columns.
type Frame struct {
	// Source is the path the frame was loaded from.
	Source string
	// Warnings collects non-fatal notes produced while building the frame.
	Warnings []string

	mem   memory.Allocator
	rows  int
	cols  []*Column
	index map[string]int
}

func newFrame(mem memory.Allocator, source string, rows int) *Frame {
	return &Frame{Source: source, mem: mem, rows: rows, index: make(map[string]int)}
}

// New returns an empty frame with a fixed row count, allocating from e.
func (e *Engine) New(rows int) *Frame { return newFrame(e.mem, "", rows) }

func (f *Frame) NumRows() int { return f.rows }
func (f *Frame) NumCols() int { return len(f.cols) }

// Allocator returns the allocator derived columns should be built with.
func (f *Frame) Allocator() memory.Allocator { return f.mem }

// Columns returns the columns in frame order.
func (f *Frame) Columns() []*Column {
	out := make([]*Column, len(f.cols))
	copy(out, f.cols)
	return out
}

// Names returns the column names in frame order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// Column looks a column up by name.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Numeric returns the int and real columns in frame order.
func (f *Frame) Numeric() []*Column {
	var out []*Column
	for _, c := range f.cols {
		if c.Kind.Numeric() {
			out = append(out, c)
		}
	}
	return out
}

// Append adds a column at the end of the frame. On success the frame takes
// ownership of data.
func (f *Frame) Append(name string, kind Kind, data arrow.Array) error {
	if _, dup := f.index[name]; dup {
		return fmt.Errorf("append %q: column already exists", name)
	}
	if data.Len() != f.rows {
		return fmt.Errorf("append %q: %d values for %d rows", name, data.Len(), f.rows)
	}
	f.index[name] = len(f.cols)
	f.cols = append(f.cols, &Column{Name: name, Kind: kind, data: data})
	return nil
}

// Replace swaps the data of an existing column, releasing the old array. On
// success the frame takes ownership of data.
func (f *Frame) Replace(name string, data arrow.Array) error {
	i, ok := f.index[name]
	if !ok {
		return fmt.Errorf("replace %q: %w", name, ErrUnknownColumn)
	}
	if data.Len() != f.rows {
		return fmt.Errorf("replace %q: %d values for %d rows", name, data.Len(), f.rows)
	}
	f.cols[i].data.Release()
	f.cols[i].data = data
	return nil
}

// Drop removes the named columns. Nothing is removed if any name is unknown.
func (f *Frame) Drop(names ...string) error {
	gone := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := f.index[n]; !ok {
			return fmt.Errorf("drop %q: %w", n, ErrUnknownColumn)
		}
		gone[n] = struct{}{}
	}
	kept := f.cols[:0]
	for _, c := range f.cols {
		if _, ok := gone[c.Name]; ok {
			c.data.Release()
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(f.cols); i++ {
		f.cols[i] = nil
	}
	f.cols = kept
	f.reindex()
	return nil
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.cols))
	for i, c := range f.cols {
		f.index[c.Name] = i
	}
}

// NewFloat64 builds a Float64 array from the frame allocator. The caller owns
// the result until it is handed to Append or Replace.
func (f *Frame) NewFloat64(values []float64) arrow.Array {
	b := array.NewFloat64Builder(f.mem)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

// Record assembles the columns into an Arrow record. The caller must release it.
func (f *Frame) Record() arrow.Record {
	fields := make([]arrow.Field, len(f.cols))
	arrs := make([]arrow.Array, len(f.cols))
	for i, c := range f.cols {
		fields[i] = arrow.Field{Name: c.Name, Type: c.data.DataType(), Nullable: true}
		arrs[i] = c.data
	}
	return array.NewRecord(arrow.NewSchema(fields, nil), arrs, int64(f.rows))
}

// Release frees every column. The frame must not be used afterwards.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	for _, c := range f.cols {
		c.data.Release()
	}
	f.cols = nil
	f.index = map[string]int{}
}
