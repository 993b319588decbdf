// Package encode replaces categorical frame columns with ±1 indicator columns.
package encode

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow/array"

	"github.com/KaramelBytes/corrgraph-cli/internal/frame"
)

// Options controls indicator encoding.
type Options struct {
	// ReplaceChar substitutes unsafe characters and disambiguates names. Default "_".
	ReplaceChar string
	// MaxLevels is the exclusive upper bound on levels for a column to be encoded.
	MaxLevels int
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
	// ProgressWidth is the bar width; 0 uses the mpb default.
	ProgressWidth int
}

// Encoded records the indicators produced for one source column.
type Encoded struct {
	Source     string   `json:"source"`
	Levels     int      `json:"levels"`
	Indicators []string `json:"indicators"`
}

// Skipped records an enum column left untouched because it has too many levels.
type Skipped struct {
	Source string `json:"source"`
	Levels int    `json:"levels"`
}

// Result summarizes an encoding pass.
type Result struct {
	Encoded []Encoded `json:"encoded"`
	Skipped []Skipped `json:"skipped"`
}

// Indicators returns the number of indicator columns created.
func (r *Result) Indicators() int {
	n := 0
	for _, e := range r.Encoded {
		n += len(e.Indicators)
	}
	return n
}

type job struct {
	col    *frame.Column
	levels []string
}

// Encode replaces every enum column with fewer than opt.MaxLevels levels by
// indicator columns appended at the end of the frame. Indicator names are
// unique across the whole frame.
func Encode(f *frame.Frame, opt Options) (*Result, error) {
	if opt.MaxLevels < 1 {
		return nil, fmt.Errorf("encode: max levels must be at least 1, got %d", opt.MaxLevels)
	}
	if opt.ReplaceChar == "" {
		opt.ReplaceChar = "_"
	}
	if IsUnsafe(opt.ReplaceChar) {
		return nil, fmt.Errorf("encode: replacement %q is itself an unsafe character", opt.ReplaceChar)
	}

	res := &Result{}
	var jobs []job
	for _, c := range f.Columns() {
		if !c.Kind.Encodable() {
			continue
		}
		levels, err := c.Levels()
		if err != nil {
			return nil, fmt.Errorf("encode: %w", err)
		}
		if len(levels) >= opt.MaxLevels {
			res.Skipped = append(res.Skipped, Skipped{Source: c.Name, Levels: len(levels)})
			continue
		}
		jobs = append(jobs, job{col: c, levels: levels})
	}

	taken := make(map[string]struct{}, f.NumCols())
	for _, n := range f.Names() {
		taken[n] = struct{}{}
	}
	san := Sanitizer{Replace: opt.ReplaceChar}

	bar := newProgress(opt.Progress, opt.ProgressWidth, len(jobs))
	defer bar.finish()
	for _, j := range jobs {
		names, err := encodeColumn(f, j, san, taken)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", j.col.Name, err)
		}
		res.Encoded = append(res.Encoded, Encoded{Source: j.col.Name, Levels: len(j.levels), Indicators: names})
		bar.increment()
	}
	return res, nil
}

func encodeColumn(f *frame.Frame, j job, san Sanitizer, taken map[string]struct{}) ([]string, error) {
	arr, ok := j.col.Data().(*array.String)
	if !ok {
		return nil, errors.New("enum column is not string backed")
	}
	prefix := san.Clean(j.col.Name)
	binary := len(j.levels) <= 2

	var names []string
	for k, level := range j.levels {
		// The second level of a binary column would be its exact negation.
		if binary && k > 0 {
			continue
		}
		name := prefix + san.Replace + san.Clean(level)
		for {
			if _, dup := taken[name]; !dup {
				break
			}
			name += san.Replace
		}
		taken[name] = struct{}{}

		vals := make([]float64, arr.Len())
		for i := range vals {
			if arr.IsValid(i) && arr.Value(i) == level {
				vals[i] = 1
			} else {
				vals[i] = -1
			}
		}
		data := f.NewFloat64(vals)
		if err := f.Append(name, frame.KindReal, data); err != nil {
			data.Release()
			return nil, err
		}
		names = append(names, name)
	}
	if err := f.Drop(j.col.Name); err != nil {
		return nil, err
	}
	return names, nil
}
