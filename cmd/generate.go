package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	cfgpkg "github.com/KaramelBytes/corrgraph-cli/internal/config"
	"github.com/KaramelBytes/corrgraph-cli/internal/graph"
	"github.com/KaramelBytes/corrgraph-cli/internal/pipeline"
	"github.com/KaramelBytes/corrgraph-cli/internal/utils"
)

var (
	genOutputPath  string
	genDelimiter   string
	genNAStrings   []string
	genTypes       map[string]string
	genReplaceChar string
	genMaxLevels   int
	genThreshold   float64
	genDrop        []string
	genSheetName   string
	genSheetIndex  int
	genFrameOutput string
	genMaxMemoryMB int
	genTop         int
	genJSON        bool
	genNoProgress  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [input]",
	Short: "Build the correlation graph of a CSV/TSV/XLSX file and write it as GDF",
	Long: `Runs load, categorical encoding, median imputation and Pearson correlation,
then writes every column pair with |r| above the threshold to a GDF file.
Without an input argument the configured input_path is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := effectiveConfig(cmd, args)
		if err != nil {
			return err
		}
		pc, err := g.Pipeline()
		if err != nil {
			return err
		}
		pc.TopEdges = genTop
		if !quiet && !genJSON && !genNoProgress {
			if w, width, ok := progressTarget(); ok {
				pc.Progress = w
				pc.ProgressWidth = width
			}
		}

		res, err := pipeline.Run(pc, log)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if genJSON {
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		if quiet {
			return nil
		}
		printSummary(out, res, pc.Threshold)
		return nil
	},
}

// effectiveConfig applies changed generate flags on top of the loaded config.
func effectiveConfig(cmd *cobra.Command, args []string) (*cfgpkg.Global, error) {
	base := cfg
	if base == nil {
		base = cfgpkg.Default()
	}
	g := *base
	g.ColumnTypes = append([]cfgpkg.ColumnType(nil), base.ColumnTypes...)

	if len(args) == 1 {
		g.InputPath = args[0]
	}
	f := cmd.Flags()
	if f.Changed("output") {
		g.OutputPath = genOutputPath
	}
	if f.Changed("delimiter") {
		g.Delimiter = genDelimiter
	}
	if f.Changed("na") {
		g.NAStrings = genNAStrings
	}
	if f.Changed("replace-char") {
		g.ReplaceChar = genReplaceChar
	}
	if f.Changed("max-levels") {
		g.MaxLevels = genMaxLevels
	}
	if f.Changed("threshold") {
		g.CorrThreshold = genThreshold
	}
	if f.Changed("drop") {
		g.Drop = genDrop
	}
	if f.Changed("sheet") {
		g.Sheet = genSheetName
	}
	if f.Changed("sheet-index") {
		g.SheetIndex = genSheetIndex
	}
	if f.Changed("frame-output") {
		g.FrameOutput = genFrameOutput
	}
	if f.Changed("max-memory-mb") {
		g.MaxMemoryMB = genMaxMemoryMB
	}
	if f.Changed("type") {
		g.ColumnTypes = mergeTypes(g.ColumnTypes, genTypes)
	}
	return &g, nil
}

// mergeTypes overrides or extends declared kinds; new names are added in sorted order.
func mergeTypes(base []cfgpkg.ColumnType, over map[string]string) []cfgpkg.ColumnType {
	out := make([]cfgpkg.ColumnType, 0, len(base)+len(over))
	used := make(map[string]bool, len(over))
	for _, ct := range base {
		if t, ok := over[ct.Name]; ok {
			ct.Type = t
			used[ct.Name] = true
		}
		out = append(out, ct)
	}
	names := make([]string, 0, len(over))
	for n := range over {
		if !used[n] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		out = append(out, cfgpkg.ColumnType{Name: n, Type: over[n]})
	}
	return out
}

// progressTarget returns stderr when it is an interactive terminal.
func progressTarget() (io.Writer, int, bool) {
	fd := int(os.Stderr.Fd())
	if !term.IsTerminal(fd) {
		return nil, 0, false
	}
	width := 0
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		width = w / 2
		if width > 80 {
			width = 80
		}
	}
	return os.Stderr, width, true
}

func printSummary(w io.Writer, res *pipeline.Result, threshold float64) {
	fmt.Fprintf(w, "✓ Wrote graph to %s (%d nodes, %d edges, |r| > %s)\n",
		res.Output, res.Nodes, res.Edges, graph.FormatWeight(threshold))
	fmt.Fprintf(w, "  Input: %s (%d rows, %d columns after drop)\n", res.Input, res.Rows, res.Columns)
	if res.Encoding != nil {
		fmt.Fprintf(w, "  Encoded %d categorical columns into %d indicators\n",
			len(res.Encoding.Encoded), res.Encoding.Indicators())
		for _, s := range res.Encoding.Skipped {
			fmt.Fprintf(w, "⚠ Skipped %s: %d levels (excluded from the graph)\n", s.Source, s.Levels)
		}
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "⚠ %s\n", warn)
	}
	for _, im := range res.Imputed {
		if im.AllMissing {
			fmt.Fprintf(w, "⚠ %s has no values; filled with 0\n", im.Column)
		}
	}
	for _, d := range res.Degenerate {
		fmt.Fprintf(w, "⚠ %s is constant; its correlations are 0\n", d)
	}
	if res.FrameOutput != "" {
		fmt.Fprintf(w, "✓ Exported frame to %s\n", res.FrameOutput)
	}
	if len(res.Strongest) == 0 {
		return
	}
	fmt.Fprintln(w, "\nStrongest correlations:")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Node 1", "Node 2", "r"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, e := range res.Strongest {
		table.Append([]string{e.Node1, e.Node2, fmt.Sprintf("%+.4f", e.Weight)})
	}
	table.Render()
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&genOutputPath, "output", "o", "", "GDF output path (default from config: loan.gdf)")
	generateCmd.Flags().StringVar(&genDelimiter, "delimiter", "", "field delimiter: a single character or 'tab'")
	generateCmd.Flags().StringSliceVar(&genNAStrings, "na", nil, "tokens read as missing values (repeatable)")
	generateCmd.Flags().StringToStringVar(&genTypes, "type", nil, "declare column kinds, e.g. --type grade=enum,term=string")
	generateCmd.Flags().StringVar(&genReplaceChar, "replace-char", "", "character replacing unsafe characters in column names")
	generateCmd.Flags().IntVar(&genMaxLevels, "max-levels", 0, "encode categorical columns with fewer levels than this")
	generateCmd.Flags().Float64Var(&genThreshold, "threshold", 0, "write edges with |r| strictly above this value")
	generateCmd.Flags().StringSliceVar(&genDrop, "drop", nil, "columns to drop after load (repeatable)")
	generateCmd.Flags().StringVar(&genSheetName, "sheet", "", "XLSX: sheet name to read")
	generateCmd.Flags().IntVar(&genSheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (used if --sheet not provided)")
	generateCmd.Flags().StringVar(&genFrameOutput, "frame-output", "", "also write the final numeric frame as Parquet")
	generateCmd.Flags().IntVar(&genMaxMemoryMB, "max-memory-mb", 0, "frame memory budget in MiB (0 disables)")
	generateCmd.Flags().IntVar(&genTop, "top", 10, "number of strongest edges to list")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "print the run summary as JSON")
	generateCmd.Flags().BoolVar(&genNoProgress, "no-progress", false, "disable the encoding progress bar")
}
