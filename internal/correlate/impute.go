// Package correlate imputes missing numeric values and computes Pearson
// correlation matrices over a frame.
package correlate

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/KaramelBytes/corrgraph-cli/internal/frame"
)

// Imputed describes the fill applied to one column.
type Imputed struct {
	Column  string  `json:"column"`
	Missing int     `json:"missing"`
	Value   float64 `json:"value"`
	// AllMissing is set when the column had no observed values and was zero filled.
	AllMissing bool `json:"all_missing,omitempty"`
}

// Impute replaces missing values of every numeric column with the column
// median. Columns without missing values are left alone.
func Impute(f *frame.Frame) ([]Imputed, error) {
	var out []Imputed
	for _, c := range f.Numeric() {
		missing := c.Missing()
		if missing == 0 {
			continue
		}
		vals, valid, err := c.Float64s()
		if err != nil {
			return nil, err
		}
		observed := make([]float64, 0, len(vals)-missing)
		for i, v := range vals {
			if valid[i] {
				observed = append(observed, v)
			}
		}

		rec := Imputed{Column: c.Name, Missing: missing}
		if len(observed) == 0 {
			rec.AllMissing = true
		} else {
			med, err := stats.Median(observed)
			if err != nil {
				return nil, fmt.Errorf("median of %q: %w", c.Name, err)
			}
			rec.Value = med
		}
		for i := range vals {
			if !valid[i] {
				vals[i] = rec.Value
			}
		}
		data := f.NewFloat64(vals)
		if err := f.Replace(c.Name, data); err != nil {
			data.Release()
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
