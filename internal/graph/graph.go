// Package graph turns a correlation matrix into a thresholded undirected graph
// and serializes it as GDF.
package graph

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Correlations is the matrix view the graph is built from.
type Correlations interface {
	Len() int
	At(i, j int) float64
}

// Node is a column, identified by its matrix position.
type Node struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Edge joins nodes From > To with the correlation as weight.
type Edge struct {
	From   int64   `json:"from"`
	To     int64   `json:"to"`
	Weight float64 `json:"weight"`
}

// Graph keeps nodes and edges in output order next to a gonum graph used for
// structural queries.
type Graph struct {
	Nodes     []Node
	Edges     []Edge
	Threshold float64
	g         *simple.WeightedUndirectedGraph
}

// Build scans the strict lower triangle of m and keeps pairs with |r| > threshold.
// labels[i] names row i of m.
func Build(m Correlations, labels []string, threshold float64) (*Graph, error) {
	n := m.Len()
	if len(labels) != n {
		return nil, fmt.Errorf("graph: %d labels for %d columns", len(labels), n)
	}
	out := &Graph{
		Nodes:     make([]Node, n),
		Threshold: threshold,
		g:         simple.NewWeightedUndirectedGraph(0, 0),
	}
	for i, l := range labels {
		out.Nodes[i] = Node{ID: int64(i), Label: l}
		out.g.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			r := m.At(i, j)
			if !(math.Abs(r) > threshold) {
				continue
			}
			out.Edges = append(out.Edges, Edge{From: int64(i), To: int64(j), Weight: r})
			out.g.SetWeightedEdge(out.g.NewWeightedEdge(simple.Node(i), simple.Node(j), r))
		}
	}
	return out, nil
}

// Degree returns the number of edges touching node id.
func (gr *Graph) Degree(id int64) int {
	return gr.g.From(id).Len()
}

// Isolated returns the nodes without any edge.
func (gr *Graph) Isolated() []Node {
	var out []Node
	for _, n := range gr.Nodes {
		if gr.Degree(n.ID) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Components returns the number of connected components, isolated nodes included.
func (gr *Graph) Components() int {
	return len(topo.ConnectedComponents(gr.g))
}

// Strongest returns up to k edges ordered by descending |weight|, ties by position.
func (gr *Graph) Strongest(k int) []Edge {
	edges := append([]Edge(nil), gr.Edges...)
	sort.SliceStable(edges, func(a, b int) bool {
		return math.Abs(edges[a].Weight) > math.Abs(edges[b].Weight)
	})
	if k >= 0 && len(edges) > k {
		edges = edges[:k]
	}
	return edges
}

// Label returns the label of node id.
func (gr *Graph) Label(id int64) string { return gr.Nodes[id].Label }
