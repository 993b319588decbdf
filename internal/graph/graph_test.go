package graph

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dense [][]float64

func (d dense) Len() int            { return len(d) }
func (d dense) At(i, j int) float64 { return d[i][j] }

var sample = dense{
	{1, 0.5, -0.2, 0.005},
	{0.5, 1, 0.01, 0},
	{-0.2, 0.01, 1, -0.9},
	{0.005, 0, -0.9, 1},
}

func TestBuild_LowerTriangleAboveThreshold(t *testing.T) {
	gr, err := Build(sample, []string{"a", "b", "c", "d"}, 0.01)
	require.NoError(t, err)

	require.Len(t, gr.Nodes, 4)
	for i, n := range gr.Nodes {
		assert.EqualValues(t, i, n.ID)
	}
	// 0.01 is not strictly above the threshold.
	assert.Equal(t, []Edge{
		{From: 1, To: 0, Weight: 0.5},
		{From: 2, To: 0, Weight: -0.2},
		{From: 3, To: 2, Weight: -0.9},
	}, gr.Edges)
	for _, e := range gr.Edges {
		assert.Greater(t, e.From, e.To)
	}

	assert.Equal(t, 2, gr.Degree(0))
	assert.Equal(t, 1, gr.Degree(3))
	assert.Empty(t, gr.Isolated())
	assert.Equal(t, 1, gr.Components())
	assert.Equal(t, []Edge{{From: 3, To: 2, Weight: -0.9}, {From: 1, To: 0, Weight: 0.5}}, gr.Strongest(2))
	assert.Equal(t, "c", gr.Label(2))
}

func TestBuild_IsolatedAndLabelMismatch(t *testing.T) {
	gr, err := Build(sample, []string{"a", "b", "c", "d"}, 0.95)
	require.NoError(t, err)
	assert.Empty(t, gr.Edges)
	assert.Len(t, gr.Isolated(), 4)
	assert.Equal(t, 4, gr.Components())

	_, err = Build(sample, []string{"a"}, 0.5)
	assert.Error(t, err)

	empty, err := Build(dense{}, nil, 0.01)
	require.NoError(t, err)
	assert.Empty(t, empty.Nodes)
}

func TestWriteGDF_Format(t *testing.T) {
	m := dense{
		{1, 0.00000123},
		{0.00000123, 1},
	}
	gr, err := Build(m, []string{"amount", "status_paid"}, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteGDF(&buf, gr))
	want := strings.Join([]string{
		"nodedef>name VARCHAR,label VARCHAR",
		"0,amount",
		"1,status_paid",
		"edgedef>node1 VARCHAR,node2 VARCHAR, weight DOUBLE",
		"1,0,0.00000123",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteGDF_QuotesLabels(t *testing.T) {
	gr, err := Build(dense{{1}}, []string{"it's,odd"}, 0.5)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteGDF(&buf, gr))
	assert.Contains(t, buf.String(), "0,'it''s,odd'\n")

	bad, err := Build(dense{{1}}, []string{"two\nlines"}, 0.5)
	require.NoError(t, err)
	assert.Error(t, WriteGDF(&bytes.Buffer{}, bad))
}

func TestFormatWeight_NoExponent(t *testing.T) {
	for _, w := range []float64{1e-10, -3.5e-7, 0.123456789, -1, 1} {
		s := FormatWeight(w)
		assert.NotContains(t, strings.ToLower(s), "e", s)
	}
	assert.Equal(t, "-0.25", FormatWeight(-0.25))
}

func TestWriteFile_AtomicOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.gdf")

	good, err := Build(sample, []string{"a", "b", "c", "d"}, 0.01)
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, good))
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(before), nodeHeader+"\n"))

	bad, err := Build(dense{{1}}, []string{"x\ny"}, 0.5)
	require.NoError(t, err)
	require.Error(t, WriteFile(path, bad))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed write must not touch the existing file")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Error(t, WriteFile(filepath.Join(dir, "missing", "out.gdf"), good))
}
