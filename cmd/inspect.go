package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/corrgraph-cli/internal/frame"
	"github.com/KaramelBytes/corrgraph-cli/internal/utils"
)

// ColumnPlan is what generate would do with one input column.
type ColumnPlan struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Distinct    int    `json:"distinct"`
	Missing     int    `json:"missing"`
	Disposition string `json:"disposition"`
	Indicators  int    `json:"indicators,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <input>",
	Short: "Show inferred column kinds and how generate would treat each column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := effectiveConfig(cmd, args)
		if err != nil {
			return err
		}
		pc, err := g.Pipeline()
		if err != nil {
			return err
		}
		sch, err := frame.Inspect(pc.InputPath, frame.LoadOptions{
			Delimiter:   pc.Delimiter,
			NAStrings:   pc.NAStrings,
			ColumnTypes: pc.ColumnTypes,
			Drop:        pc.Drop,
			Sheet:       pc.Sheet,
			SheetIndex:  pc.SheetIndex,
		})
		if err != nil {
			return err
		}
		plans := planColumns(sch, pc.Drop, pc.MaxLevels)

		out := cmd.OutOrStdout()
		if genJSON {
			b, err := utils.PrettyJSON(plans)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		printPlans(out, pc.InputPath, sch.Rows, plans)
		return nil
	},
}

func planColumns(sch *frame.Schema, drop []string, maxLevels int) []ColumnPlan {
	dropped := make(map[string]bool, len(drop))
	for _, d := range drop {
		dropped[d] = true
	}
	plans := make([]ColumnPlan, len(sch.Names))
	for i, name := range sch.Names {
		k := sch.Kinds[i]
		p := ColumnPlan{Name: name, Kind: k.String(), Distinct: sch.Distinct[i], Missing: sch.Missing[i]}
		switch {
		case dropped[name]:
			p.Kind = "-"
			p.Disposition = "drop"
		case k.Numeric():
			p.Disposition = "correlate"
		case k.Encodable() && p.Distinct < maxLevels:
			p.Disposition = "encode"
			p.Indicators = p.Distinct
			if p.Distinct <= 2 {
				p.Indicators = 1
			}
		case k.Encodable():
			p.Disposition = "skip"
		default:
			p.Disposition = "ignore"
		}
		plans[i] = p
	}
	return plans
}

func printPlans(w io.Writer, path string, rows int, plans []ColumnPlan) {
	fmt.Fprintf(w, "%s: %d rows, %d columns\n", path, rows, len(plans))
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Column", "Kind", "Distinct", "Missing", "Disposition"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	nodes := 0
	for _, p := range plans {
		disp := p.Disposition
		switch p.Disposition {
		case "encode":
			disp = fmt.Sprintf("encode (%d)", p.Indicators)
			nodes += p.Indicators
		case "correlate":
			nodes++
		}
		distinct := strconv.Itoa(p.Distinct)
		if p.Distinct > 10000 {
			distinct = ">10000"
		}
		table.Append([]string{p.Name, p.Kind, distinct, strconv.Itoa(p.Missing), disp})
	}
	table.Render()
	fmt.Fprintf(w, "Graph would have %d nodes.\n", nodes)
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&genDelimiter, "delimiter", "", "field delimiter: a single character or 'tab'")
	inspectCmd.Flags().StringSliceVar(&genNAStrings, "na", nil, "tokens read as missing values (repeatable)")
	inspectCmd.Flags().StringToStringVar(&genTypes, "type", nil, "declare column kinds, e.g. --type grade=enum")
	inspectCmd.Flags().IntVar(&genMaxLevels, "max-levels", 0, "categorical level cutoff")
	inspectCmd.Flags().StringSliceVar(&genDrop, "drop", nil, "columns to drop after load (repeatable)")
	inspectCmd.Flags().StringVar(&genSheetName, "sheet", "", "XLSX: sheet name to read")
	inspectCmd.Flags().IntVar(&genSheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index")
	inspectCmd.Flags().BoolVar(&genJSON, "json", false, "print the column plan as JSON")
}
