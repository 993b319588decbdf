package correlate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/corrgraph-cli/internal/frame"
)

// Matrix is a symmetric Pearson correlation matrix indexed like Columns.
type Matrix struct {
	Columns []string
	// Degenerate lists zero-variance columns; their off-diagonal entries are 0.
	Degenerate []string
	values     *mat.SymDense
}

// Len returns the number of columns.
func (m *Matrix) Len() int { return len(m.Columns) }

// At returns the correlation between columns i and j.
func (m *Matrix) At(i, j int) float64 { return m.values.At(i, j) }

// Compute correlates every numeric column of f, in frame order. Missing values
// must have been imputed first.
func Compute(f *frame.Frame) (*Matrix, error) {
	cols := f.Numeric()
	m := &Matrix{Columns: make([]string, len(cols))}
	for i, c := range cols {
		m.Columns[i] = c.Name
	}
	k, n := len(cols), f.NumRows()
	if k == 0 {
		m.values = &mat.SymDense{}
		return m, nil
	}
	if n == 0 {
		return nil, frame.ErrNoRows
	}

	data := make([]float64, n*k)
	constant := make([]bool, k)
	for j, c := range cols {
		vals, valid, err := c.Float64s()
		if err != nil {
			return nil, err
		}
		constant[j] = true
		for i, v := range vals {
			if !valid[i] {
				return nil, fmt.Errorf("column %q has missing values; impute before correlating", c.Name)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("column %q row %d: non-finite value %v", c.Name, i, v)
			}
			data[i*k+j] = v
			if v != vals[0] {
				constant[j] = false
			}
		}
		if constant[j] {
			m.Degenerate = append(m.Degenerate, c.Name)
		}
	}

	sym := mat.NewSymDense(k, nil)
	// A single row leaves every column constant.
	if n > 1 {
		stat.CorrelationMatrix(sym, mat.NewDense(n, k, data), nil)
	}
	for i := 0; i < k; i++ {
		sym.SetSym(i, i, 1)
		for j := 0; j < i; j++ {
			r := sym.At(i, j)
			switch {
			case constant[i] || constant[j], math.IsNaN(r):
				r = 0
			case r > 1:
				r = 1
			case r < -1:
				r = -1
			}
			sym.SetSym(i, j, r)
		}
	}
	m.values = sym
	return m, nil
}
