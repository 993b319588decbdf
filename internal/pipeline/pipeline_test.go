package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/corrgraph-cli/internal/frame"
)

func writeInput(t *testing.T, content string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "loan.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir, path
}

func TestRun_EndToEnd(t *testing.T) {
	dir, in := writeInput(t, strings.Join([]string{
		"id,amount,status",
		"1,100,paid",
		"2,250,late",
		"3,80,paid",
		"4,300,late",
		"5,,paid",
		"6,120,late",
	}, "\n"))

	cfg := DefaultConfig()
	cfg.InputPath = in
	cfg.OutputPath = filepath.Join(dir, "loan.gdf")
	cfg.FrameOutput = filepath.Join(dir, "frame.parquet")

	core, logs := observer.New(zap.InfoLevel)
	res, err := Run(cfg, zap.New(core))
	require.NoError(t, err)

	// Median of 100, 250, 80, 300, 120 fills the missing amount.
	amount := []float64{100, 250, 80, 300, 120, 120}
	status := []float64{1, -1, 1, -1, 1, -1}
	want := stat.Correlation(amount, status, nil)
	require.Greater(t, want*want, 0.01*0.01)

	raw, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	require.Len(t, lines, 5, string(raw))
	assert.Equal(t, "nodedef>name VARCHAR,label VARCHAR", lines[0])
	assert.Equal(t, "0,amount", lines[1])
	assert.Equal(t, "1,status_paid", lines[2])
	assert.Equal(t, "edgedef>node1 VARCHAR,node2 VARCHAR, weight DOUBLE", lines[3])

	fields := strings.Split(lines[4], ",")
	require.Len(t, fields, 3)
	assert.Equal(t, "1", fields[0])
	assert.Equal(t, "0", fields[1])
	assert.NotContains(t, fields[2], "e")
	got, err := strconv.ParseFloat(fields[2], 64)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)

	assert.Equal(t, 6, res.Rows)
	assert.Equal(t, 2, res.Columns)
	assert.Equal(t, 2, res.Nodes)
	assert.Equal(t, 1, res.Edges)
	assert.Equal(t, 1, res.Components)
	require.Len(t, res.Imputed, 1)
	assert.Equal(t, 120.0, res.Imputed[0].Value)
	require.Len(t, res.Strongest, 1)
	assert.Equal(t, EdgeSummary{Node1: "status_paid", Node2: "amount", Weight: got}, res.Strongest[0])
	assert.FileExists(t, cfg.FrameOutput)

	assert.Equal(t, 1, logs.FilterMessage("wrote graph").Len())
}

func TestRun_ThresholdExcludesWeakEdges(t *testing.T) {
	dir, in := writeInput(t, "a,b\n1,1\n2,-1\n3,1\n4,-1\n")
	cfg := DefaultConfig()
	cfg.InputPath = in
	cfg.OutputPath = filepath.Join(dir, "out.gdf")
	cfg.Drop = nil
	cfg.Threshold = 0.99

	res, err := Run(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Nodes)
	assert.Equal(t, 0, res.Edges)
	assert.Equal(t, []string{"a", "b"}, res.Isolated)
	raw, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(raw), "edgedef>node1 VARCHAR,node2 VARCHAR, weight DOUBLE\n"))
}

func TestRun_SkippedAndDegenerateAreReported(t *testing.T) {
	dir, in := writeInput(t, "x,k,c\n1,7,a\n2,7,b\n3,7,c\n")
	cfg := DefaultConfig()
	cfg.InputPath = in
	cfg.OutputPath = filepath.Join(dir, "out.gdf")
	cfg.MaxLevels = 3

	core, logs := observer.New(zap.WarnLevel)
	res, err := Run(cfg, zap.New(core))
	require.NoError(t, err)

	require.Len(t, res.Encoding.Skipped, 1)
	assert.Equal(t, "c", res.Encoding.Skipped[0].Source)
	assert.Equal(t, []string{"k"}, res.Degenerate)
	assert.Equal(t, 2, res.Nodes)
	// The drop list names "id", which this file lacks.
	require.Len(t, res.Warnings, 1)
	assert.GreaterOrEqual(t, logs.Len(), 3)
}

func TestRun_FailuresLeaveNoOutput(t *testing.T) {
	dir, in := writeInput(t, "a,b\n1,x\n")
	out := filepath.Join(dir, "out.gdf")

	cfg := DefaultConfig()
	cfg.InputPath = in
	cfg.OutputPath = out
	cfg.ColumnTypes = map[string]frame.Kind{"b": frame.KindReal}
	_, err := Run(cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, frame.ErrParse), "got %v", err)
	assert.NoFileExists(t, out)

	cfg = DefaultConfig()
	cfg.InputPath = filepath.Join(dir, "absent.csv")
	cfg.OutputPath = out
	_, err = Run(cfg, nil)
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
	assert.NoFileExists(t, out)

	cfg = DefaultConfig()
	cfg.InputPath = in
	cfg.OutputPath = filepath.Join(dir, "no", "such", "dir", "out.gdf")
	_, err = Run(cfg, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.InputPath = in
	cfg.Threshold = 2
	_, err = Run(cfg, nil)
	assert.Error(t, err)
}

func TestRun_GraphWriteFailureRemovesFrameExport(t *testing.T) {
	dir, in := writeInput(t, "a,b,c\n1,2,x\n2,4,y\n3,7,x\n")

	cfg := DefaultConfig()
	cfg.InputPath = in
	cfg.OutputPath = filepath.Join(dir, "no", "such", "dir", "out.gdf")
	cfg.FrameOutput = filepath.Join(dir, "frame.parquet")
	res, err := Run(cfg, nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.NoFileExists(t, cfg.FrameOutput)

	cfg.OutputPath = filepath.Join(dir, "out.gdf")
	res, err = Run(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.FrameOutput, res.FrameOutput)
	assert.FileExists(t, cfg.FrameOutput)
	assert.FileExists(t, cfg.OutputPath)
}
