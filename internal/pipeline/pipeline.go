// Package pipeline runs load, encode, impute, correlate and graph output as one pass.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/corrgraph-cli/internal/correlate"
	"github.com/KaramelBytes/corrgraph-cli/internal/encode"
	"github.com/KaramelBytes/corrgraph-cli/internal/frame"
	"github.com/KaramelBytes/corrgraph-cli/internal/graph"
)

// Config holds everything a run needs.
type Config struct {
	InputPath   string
	OutputPath  string
	Delimiter   rune
	NAStrings   []string
	ColumnTypes map[string]frame.Kind
	ReplaceChar string
	MaxLevels   int
	Threshold   float64
	Drop        []string
	Sheet       string
	SheetIndex  int
	// FrameOutput, when set, receives the final numeric frame as Parquet.
	FrameOutput string
	MaxMemoryMB int

	Progress      io.Writer
	ProgressWidth int
	// TopEdges bounds Result.Strongest.
	TopEdges int
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		InputPath:   "loan.csv",
		OutputPath:  "loan.gdf",
		Delimiter:   ',',
		NAStrings:   []string{""},
		ReplaceChar: "_",
		MaxLevels:   25,
		Threshold:   0.01,
		Drop:        []string{"id"},
		SheetIndex:  1,
		MaxMemoryMB: 6144,
		TopEdges:    10,
	}
}

func (c Config) validate() error {
	switch {
	case c.InputPath == "":
		return errors.New("input path is empty")
	case c.OutputPath == "":
		return errors.New("output path is empty")
	case c.MaxLevels < 1:
		return fmt.Errorf("max levels must be at least 1, got %d", c.MaxLevels)
	case c.Threshold < 0 || c.Threshold > 1:
		return fmt.Errorf("correlation threshold %v outside [0, 1]", c.Threshold)
	}
	return nil
}

// EdgeSummary is an edge with node labels resolved.
type EdgeSummary struct {
	Node1  string  `json:"node1"`
	Node2  string  `json:"node2"`
	Weight float64 `json:"weight"`
}

// Result summarizes a completed run.
type Result struct {
	Input       string              `json:"input"`
	Output      string              `json:"output"`
	FrameOutput string              `json:"frame_output,omitempty"`
	Rows        int                 `json:"rows"`
	Columns     int                 `json:"columns"`
	Warnings    []string            `json:"warnings,omitempty"`
	Encoding    *encode.Result      `json:"encoding"`
	Imputed     []correlate.Imputed `json:"imputed,omitempty"`
	Degenerate  []string            `json:"degenerate,omitempty"`
	Nodes       int                 `json:"nodes"`
	Edges       int                 `json:"edges"`
	Components  int                 `json:"components"`
	Isolated    []string            `json:"isolated,omitempty"`
	Strongest   []EdgeSummary       `json:"strongest,omitempty"`
	Elapsed     time.Duration       `json:"elapsed_ns"`

	Graph *graph.Graph `json:"-"`
}

// Run executes the whole conversion. The frame is released and the engine
// shut down before the graph file is written, so a leak or budget failure
// leaves no output behind. A frame export made along the way is removed when
// a later step fails.
func Run(cfg Config, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	start := time.Now()

	eng, err := frame.Start(cfg.MaxMemoryMB)
	if err != nil {
		return nil, fmt.Errorf("start frame engine: %w", err)
	}
	res := &Result{Input: cfg.InputPath, Output: cfg.OutputPath}
	gr, err := analyze(eng, cfg, log, res)
	if serr := eng.Shutdown(); serr != nil {
		err = errors.Join(err, fmt.Errorf("shutdown frame engine: %w", serr))
	}
	if err != nil {
		discardExport(res, log)
		return nil, err
	}

	if err := graph.WriteFile(cfg.OutputPath, gr); err != nil {
		discardExport(res, log)
		return nil, err
	}
	log.Info("wrote graph",
		zap.String("output", cfg.OutputPath),
		zap.Int("nodes", len(gr.Nodes)),
		zap.Int("edges", len(gr.Edges)),
		zap.Float64("threshold", cfg.Threshold))

	res.Graph = gr
	res.Nodes = len(gr.Nodes)
	res.Edges = len(gr.Edges)
	res.Components = gr.Components()
	for _, n := range gr.Isolated() {
		res.Isolated = append(res.Isolated, n.Label)
	}
	for _, e := range gr.Strongest(cfg.TopEdges) {
		res.Strongest = append(res.Strongest, EdgeSummary{Node1: gr.Label(e.From), Node2: gr.Label(e.To), Weight: e.Weight})
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// analyze loads, encodes and correlates the input and builds the graph. The
// frame never outlives the call.
func analyze(eng *frame.Engine, cfg Config, log *zap.Logger, res *Result) (*graph.Graph, error) {
	fr, err := eng.Load(cfg.InputPath, frame.LoadOptions{
		Delimiter:   cfg.Delimiter,
		NAStrings:   cfg.NAStrings,
		ColumnTypes: cfg.ColumnTypes,
		Drop:        cfg.Drop,
		Sheet:       cfg.Sheet,
		SheetIndex:  cfg.SheetIndex,
	})
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defer fr.Release()
	for _, w := range fr.Warnings {
		log.Warn(w, zap.String("input", cfg.InputPath))
	}
	log.Info("loaded frame",
		zap.String("input", cfg.InputPath),
		zap.Int("rows", fr.NumRows()),
		zap.Int("columns", fr.NumCols()))

	res.Rows = fr.NumRows()
	res.Columns = fr.NumCols()
	res.Warnings = append([]string(nil), fr.Warnings...)

	enc, err := encode.Encode(fr, encode.Options{
		ReplaceChar:   cfg.ReplaceChar,
		MaxLevels:     cfg.MaxLevels,
		Progress:      cfg.Progress,
		ProgressWidth: cfg.ProgressWidth,
	})
	if err != nil {
		return nil, err
	}
	res.Encoding = enc
	for _, s := range enc.Skipped {
		log.Warn("categorical column has too many levels; excluded",
			zap.String("column", s.Source), zap.Int("levels", s.Levels), zap.Int("max_levels", cfg.MaxLevels))
	}
	log.Info("encoded categorical columns",
		zap.Int("encoded", len(enc.Encoded)),
		zap.Int("indicators", enc.Indicators()),
		zap.Int("skipped", len(enc.Skipped)))
	if err := eng.CheckBudget(); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	imp, err := correlate.Impute(fr)
	if err != nil {
		return nil, fmt.Errorf("impute: %w", err)
	}
	res.Imputed = imp
	for _, im := range imp {
		if im.AllMissing {
			log.Warn("numeric column has no values; filled with 0", zap.String("column", im.Column))
			continue
		}
		log.Debug("imputed median", zap.String("column", im.Column), zap.Int("missing", im.Missing), zap.Float64("median", im.Value))
	}

	m, err := correlate.Compute(fr)
	if err != nil {
		return nil, fmt.Errorf("correlate: %w", err)
	}
	res.Degenerate = m.Degenerate
	for _, d := range m.Degenerate {
		log.Warn("zero-variance column; correlations set to 0", zap.String("column", d))
	}
	log.Info("computed correlation matrix", zap.Int("columns", m.Len()))

	gr, err := graph.Build(m, m.Columns, cfg.Threshold)
	if err != nil {
		return nil, err
	}

	if cfg.FrameOutput != "" {
		if err := fr.ExportParquet(cfg.FrameOutput); err != nil {
			return nil, fmt.Errorf("export frame: %w", err)
		}
		res.FrameOutput = cfg.FrameOutput
		log.Info("exported frame", zap.String("path", cfg.FrameOutput))
	}
	return gr, nil
}

func discardExport(res *Result, log *zap.Logger) {
	if res.FrameOutput == "" {
		return
	}
	if err := os.Remove(res.FrameOutput); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("could not remove frame export", zap.String("path", res.FrameOutput), zap.Error(err))
	}
}
