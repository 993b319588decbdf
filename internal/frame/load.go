package frame

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	arrowcsv "github.com/apache/arrow/go/v18/arrow/csv"
	"github.com/apache/arrow/go/v18/arrow/memory"
)

// LoadOptions controls how an input file is read into a frame.
type LoadOptions struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
	// NAStrings are the exact tokens read as missing values.
	NAStrings []string
	// ColumnTypes declares kinds by column name; other columns are inferred.
	ColumnTypes map[string]Kind
	// Drop lists columns removed right after loading.
	Drop []string
	// Sheet and SheetIndex (1-based) select the worksheet of .xlsx inputs.
	Sheet      string
	SheetIndex int
}

// Schema describes the columns of an input file before the typed parse.
type Schema struct {
	Names []string
	Kinds []Kind
	// Distinct counts non-missing distinct values, saturating above 10000.
	Distinct []int
	Missing  []int
	Rows     int
}

// Load reads path into a new frame. Either a complete frame is returned or an
// error; partially built columns are released.
func (e *Engine) Load(path string, opt LoadOptions) (*Frame, error) {
	raw, err := readSource(path, opt)
	if err != nil {
		return nil, err
	}
	sch, err := inferSchema(path, raw, opt)
	if err != nil {
		return nil, err
	}
	f, err := e.parseTyped(path, raw, sch, opt)
	if err != nil {
		return nil, err
	}

	var drop []string
	for _, name := range opt.Drop {
		if _, ok := f.Column(name); ok {
			drop = append(drop, name)
			continue
		}
		f.Warnings = append(f.Warnings, fmt.Sprintf("drop list names %q, which is not a column of %s", name, path))
	}
	if err := f.Drop(drop...); err != nil {
		f.Release()
		return nil, err
	}
	if err := e.CheckBudget(); err != nil {
		f.Release()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return f, nil
}

// Inspect reads path and reports its columns and inferred kinds without
// building a frame.
func Inspect(path string, opt LoadOptions) (*Schema, error) {
	raw, err := readSource(path, opt)
	if err != nil {
		return nil, err
	}
	return inferSchema(path, raw, opt)
}

func readSource(path string, opt LoadOptions) ([]byte, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return sheetToDelimited(path, opt.Sheet, opt.SheetIndex, delimiter(opt))
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return b, nil
}

func delimiter(opt LoadOptions) rune {
	if opt.Delimiter == 0 {
		return ','
	}
	return opt.Delimiter
}

// inferSchema scans every row once to settle the kind of each column.
func inferSchema(path string, raw []byte, opt LoadOptions) (*Schema, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = delimiter(opt)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Path: path, Err: errors.New("missing header row")}
		}
		return nil, &ParseError{Path: path, Err: fmt.Errorf("read header: %w", err)}
	}
	ncol := len(header)
	names := make([]string, ncol)
	seen := make(map[string]struct{}, ncol)
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("C%d", i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, &ParseError{Path: path, Column: name, Err: errors.New("duplicate column name")}
		}
		seen[name] = struct{}{}
		names[i] = name
	}
	for name := range opt.ColumnTypes {
		if _, ok := seen[name]; !ok {
			return nil, fmt.Errorf("column type declared for %q in %s: %w", name, path, ErrUnknownColumn)
		}
	}

	na := make(map[string]struct{}, len(opt.NAStrings))
	for _, s := range opt.NAStrings {
		na[s] = struct{}{}
	}
	votes := make([]*kindVote, ncol)
	for i := range votes {
		votes[i] = newKindVote()
	}
	missing := make([]int, ncol)
	rows := 0
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ParseError{Path: path, Err: fmt.Errorf("read row %d: %w", rows+1, err)}
		}
		rows++
		for j, v := range rec {
			if _, isNA := na[v]; isNA {
				missing[j]++
				continue
			}
			votes[j].add(v)
		}
	}
	if rows == 0 {
		return nil, fmt.Errorf("load %s: %w", path, ErrNoRows)
	}

	dropped := make(map[string]struct{}, len(opt.Drop))
	for _, d := range opt.Drop {
		dropped[d] = struct{}{}
	}
	kinds := make([]Kind, ncol)
	distinct := make([]int, ncol)
	for i, name := range names {
		distinct[i] = len(votes[i].distinct)
		switch k, declared := opt.ColumnTypes[name]; {
		case isDropped(dropped, name):
			kinds[i] = KindString
		case declared:
			kinds[i] = k
		default:
			kinds[i] = votes[i].kind()
		}
		if kinds[i] == KindReal {
			missing[i] += votes[i].nonFinite
		}
	}
	return &Schema{Names: names, Kinds: kinds, Distinct: distinct, Missing: missing, Rows: rows}, nil
}

func isDropped(set map[string]struct{}, name string) bool {
	_, ok := set[name]
	return ok
}

// parseTyped converts raw into Arrow arrays following the kinds in sch.
func (e *Engine) parseTyped(path string, raw []byte, sch *Schema, opt LoadOptions) (*Frame, error) {
	fields := make([]arrow.Field, len(sch.Names))
	for i, name := range sch.Names {
		fields[i] = arrow.Field{Name: name, Type: sch.Kinds[i].arrowType(), Nullable: true}
	}
	ropts := []arrowcsv.Option{
		arrowcsv.WithComma(delimiter(opt)),
		arrowcsv.WithHeader(true),
		arrowcsv.WithChunk(-1),
		arrowcsv.WithAllocator(e.mem),
	}
	// An empty token list would make the reader fall back to its own defaults.
	if len(opt.NAStrings) > 0 {
		ropts = append(ropts, arrowcsv.WithNullReader(true, opt.NAStrings...))
	}
	r := arrowcsv.NewReader(bytes.NewReader(raw), arrow.NewSchema(fields, nil), ropts...)
	defer r.Release()

	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("load %s: %w", path, ErrNoRows)
	}
	rec := r.Record()
	if err := r.Err(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if rec.NumRows() == 0 {
		return nil, fmt.Errorf("load %s: %w", path, ErrNoRows)
	}

	f := newFrame(e.mem, path, int(rec.NumRows()))
	for i, name := range sch.Names {
		var col arrow.Array
		if fa, ok := rec.Column(i).(*array.Float64); ok {
			var n int
			col, n = finiteOnly(e.mem, fa)
			if n > 0 {
				f.Warnings = append(f.Warnings, fmt.Sprintf("column %q: %d non-finite values read as missing", name, n))
			}
		} else {
			col = rec.Column(i)
			col.Retain()
		}
		if err := f.Append(name, sch.Kinds[i], col); err != nil {
			col.Release()
			f.Release()
			return nil, &ParseError{Path: path, Column: name, Err: err}
		}
	}
	return f, nil
}

// finiteOnly returns arr with NaN and ±Inf turned into nulls, and how many
// values were replaced. The result is owned by the caller.
func finiteOnly(mem memory.Allocator, arr *array.Float64) (arrow.Array, int) {
	bad := 0
	for i := 0; i < arr.Len(); i++ {
		if arr.IsValid(i) && !finite(arr.Value(i)) {
			bad++
		}
	}
	if bad == 0 {
		arr.Retain()
		return arr, 0
	}
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.Reserve(arr.Len())
	for i := 0; i < arr.Len(); i++ {
		if v := arr.Value(i); arr.IsValid(i) && finite(v) {
			b.Append(v)
		} else {
			b.AppendNull()
		}
	}
	return b.NewArray(), bad
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
