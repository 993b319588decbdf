package graph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/KaramelBytes/corrgraph-cli/internal/utils"
)

const (
	nodeHeader = "nodedef>name VARCHAR,label VARCHAR"
	edgeHeader = "edgedef>node1 VARCHAR,node2 VARCHAR, weight DOUBLE"
)

// FormatWeight renders a weight as a plain decimal, never in exponent form.
func FormatWeight(w float64) string { return strconv.FormatFloat(w, 'f', -1, 64) }

func quoteLabel(l string) (string, error) {
	if strings.ContainsAny(l, "\r\n") {
		return "", fmt.Errorf("label %q contains a line break", l)
	}
	if strings.ContainsAny(l, `,'"`) {
		return "'" + strings.ReplaceAll(l, "'", "''") + "'", nil
	}
	return l, nil
}

// WriteGDF writes the node section followed by the edge section.
func WriteGDF(w io.Writer, gr *Graph) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, nodeHeader)
	for _, n := range gr.Nodes {
		l, err := quoteLabel(n.Label)
		if err != nil {
			return fmt.Errorf("node %d: %w", n.ID, err)
		}
		fmt.Fprintf(bw, "%d,%s\n", n.ID, l)
	}
	fmt.Fprintln(bw, edgeHeader)
	for _, e := range gr.Edges {
		fmt.Fprintf(bw, "%d,%d,%s\n", e.From, e.To, FormatWeight(e.Weight))
	}
	return bw.Flush()
}

// WriteFile writes the GDF atomically; on error no file is left at path.
func WriteFile(path string, gr *Graph) error {
	if err := utils.WriteFileAtomic(path, func(w io.Writer) error { return WriteGDF(w, gr) }); err != nil {
		return fmt.Errorf("write graph %s: %w", path, err)
	}
	return nil
}
