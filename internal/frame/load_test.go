package frame

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func startEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Start(0)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, e.Shutdown(), "engine leaked buffers")
	})
	return e
}

func TestLoad_InfersKindsAndNA(t *testing.T) {
	p := writeFile(t, "loans.csv", strings.Join([]string{
		"id,amount,status,opened,ref,empty",
		"1,100.5,paid,2024-01-02,6ba7b810-9dad-11d1-80b4-00c04fd430c8,",
		"2,,late,2024-01-03,6ba7b811-9dad-11d1-80b4-00c04fd430c8,",
		"3,75,paid,2024-02-01,6ba7b812-9dad-11d1-80b4-00c04fd430c8,",
	}, "\n"))

	e := startEngine(t)
	f, err := e.Load(p, LoadOptions{NAStrings: []string{""}})
	require.NoError(t, err)
	defer f.Release()

	assert.Equal(t, 3, f.NumRows())
	assert.Equal(t, []string{"id", "amount", "status", "opened", "ref", "empty"}, f.Names())

	want := map[string]Kind{
		"id":     KindInt,
		"amount": KindReal,
		"status": KindEnum,
		"opened": KindTime,
		"ref":    KindUUID,
		"empty":  KindUnknown,
	}
	for name, kind := range want {
		c, ok := f.Column(name)
		require.True(t, ok, name)
		assert.Equal(t, kind, c.Kind, name)
	}

	amount, _ := f.Column("amount")
	assert.Equal(t, 1, amount.Missing())
	vals, valid, err := amount.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, valid)
	assert.InDelta(t, 100.5, vals[0], 1e-12)

	status, _ := f.Column("status")
	levels, err := status.Levels()
	require.NoError(t, err)
	assert.Equal(t, []string{"paid", "late"}, levels)
}

func TestLoad_DeclaredKindsDropAndDelimiter(t *testing.T) {
	p := writeFile(t, "data.tsv", "id\tgrade\tscore\nx1\t1\t3\nx2\t2\t4\n")

	e := startEngine(t)
	f, err := e.Load(p, LoadOptions{
		Delimiter:   '\t',
		ColumnTypes: map[string]Kind{"grade": KindEnum},
		Drop:        []string{"id", "missing"},
	})
	require.NoError(t, err)
	defer f.Release()

	assert.Equal(t, []string{"grade", "score"}, f.Names())
	grade, _ := f.Column("grade")
	assert.Equal(t, KindEnum, grade.Kind)
	require.Len(t, f.Warnings, 1)
	assert.Contains(t, f.Warnings[0], `"missing"`)
}

func TestLoad_TypeMismatchIsFatal(t *testing.T) {
	p := writeFile(t, "bad.csv", "a,b\n1,x\n2,y\n")

	e := startEngine(t)
	_, err := e.Load(p, LoadOptions{ColumnTypes: map[string]Kind{"b": KindInt}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse), "got %v", err)
	assert.Contains(t, err.Error(), p)
}

func TestLoad_Errors(t *testing.T) {
	e := startEngine(t)

	_, err := e.Load(filepath.Join(t.TempDir(), "nope.csv"), LoadOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = e.Load(writeFile(t, "header.csv", "a,b\n"), LoadOptions{})
	assert.True(t, errors.Is(err, ErrNoRows), "got %v", err)

	_, err = e.Load(writeFile(t, "ragged.csv", "a,b\n1,2\n3\n"), LoadOptions{})
	assert.True(t, errors.Is(err, ErrParse), "got %v", err)

	_, err = e.Load(writeFile(t, "dup.csv", "a,a\n1,2\n"), LoadOptions{})
	assert.True(t, errors.Is(err, ErrParse), "got %v", err)

	_, err = e.Load(writeFile(t, "ok.csv", "a,b\n1,2\n"), LoadOptions{ColumnTypes: map[string]Kind{"c": KindReal}})
	assert.True(t, errors.Is(err, ErrUnknownColumn), "got %v", err)
}

func TestLoad_MemoryBudget(t *testing.T) {
	var b strings.Builder
	b.WriteString("x\n")
	for i := 0; i < 200000; i++ {
		b.WriteString("1.5\n")
	}
	p := writeFile(t, "big.csv", b.String())

	e, err := Start(1)
	require.NoError(t, err)
	_, err = e.Load(p, LoadOptions{})
	assert.True(t, errors.Is(err, ErrMemoryBudget), "got %v", err)
	assert.NoError(t, e.Shutdown())
}

func TestLoad_XLSXSheetSelection(t *testing.T) {
	x := excelize.NewFile()
	defer x.Close()
	require.NoError(t, x.SetSheetRow("Sheet1", "A1", &[]interface{}{"ignored"}))
	_, err := x.NewSheet("Data")
	require.NoError(t, err)
	require.NoError(t, x.SetSheetRow("Data", "A1", &[]interface{}{"amount", "status"}))
	require.NoError(t, x.SetSheetRow("Data", "A2", &[]interface{}{10, "paid"}))
	require.NoError(t, x.SetSheetRow("Data", "A3", &[]interface{}{20}))
	require.NoError(t, x.SetSheetRow("Data", "A4", &[]interface{}{30, "late"}))
	p := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, x.SaveAs(p))

	e := startEngine(t)
	for _, opt := range []LoadOptions{
		{Sheet: "data", NAStrings: []string{""}},
		{SheetIndex: 2, NAStrings: []string{""}},
	} {
		f, err := e.Load(p, opt)
		require.NoError(t, err)
		assert.Equal(t, []string{"amount", "status"}, f.Names())
		assert.Equal(t, 3, f.NumRows())
		status, _ := f.Column("status")
		assert.Equal(t, KindEnum, status.Kind)
		assert.Equal(t, 1, status.Missing())
		f.Release()
	}

	_, err = e.Load(p, LoadOptions{Sheet: "nope"})
	assert.Error(t, err)
}

func TestInspect_ReportsSchema(t *testing.T) {
	p := writeFile(t, "s.csv", "a,,c\n1,x,2.5\n")
	sch, err := Inspect(p, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "C2", "c"}, sch.Names)
	assert.Equal(t, []Kind{KindInt, KindEnum, KindReal}, sch.Kinds)
	assert.Equal(t, 1, sch.Rows)

	p = writeFile(t, "levels.csv", "g,n\nx,1\ny,\nx,3\n,4\n")
	sch, err = Inspect(p, LoadOptions{NAStrings: []string{""}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, sch.Distinct)
	assert.Equal(t, []int{1, 1}, sch.Missing)
	assert.Equal(t, 4, sch.Rows)
}

func TestLoad_EmptyNAListKeepsBlanks(t *testing.T) {
	p := writeFile(t, "blank.csv", "a,b\n1,x\n,y\n4,NULL\n")

	e := startEngine(t)
	f, err := e.Load(p, LoadOptions{})
	require.NoError(t, err)
	defer f.Release()

	a, _ := f.Column("a")
	assert.Equal(t, KindEnum, a.Kind)
	assert.Equal(t, 0, a.Missing())
	levels, err := a.Levels()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "", "4"}, levels)

	b, _ := f.Column("b")
	assert.Equal(t, 0, b.Missing(), "NULL is a value unless listed as an NA token")

	sch, err := Inspect(p, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3}, sch.Distinct)
	assert.Equal(t, []int{0, 0}, sch.Missing)

	_, err = e.Load(p, LoadOptions{ColumnTypes: map[string]Kind{"a": KindInt}})
	assert.True(t, errors.Is(err, ErrParse), "got %v", err)
}

func TestLoad_NonFiniteValuesAreMissing(t *testing.T) {
	p := writeFile(t, "nan.csv", "a,b\n1.5,2\nNaN,3\n4,Inf\n")

	e := startEngine(t)
	f, err := e.Load(p, LoadOptions{NAStrings: []string{""}})
	require.NoError(t, err)
	defer f.Release()

	for _, name := range []string{"a", "b"} {
		c, _ := f.Column(name)
		assert.Equal(t, KindReal, c.Kind, name)
		assert.Equal(t, 1, c.Missing(), name)
	}
	b, _ := f.Column("b")
	_, valid, err := b.Float64s()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false}, valid)
	assert.Len(t, f.Warnings, 2)

	sch, err := Inspect(p, LoadOptions{NAStrings: []string{""}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, sch.Missing)
}
