package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	skio "github.com/skeleplex/skeleplex/pkg/io"
	"github.com/skeleplex/skeleplex/pkg/skeleton"
)

// infoCommand creates the info command, which summarizes a graph file.
func (c *CLI) infoCommand() *cobra.Command {
	var edges bool

	cmd := &cobra.Command{
		Use:   "info <graph.json>",
		Short: "Show a summary of a skeleton graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := skio.ImportJSON(args[0])
			if err != nil {
				return err
			}
			printGraphInfo(os.Stdout, args[0], g, edges)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&edges, "edges", "e", false, "list every edge")
	return cmd
}

// graphSummary holds the figures shown by info.
type graphSummary struct {
	nodes, edges int
	components   int
	selfLoops    int
	leaves       int
	branchPoints int
	roots        []int
	totalLength  float64
	directed     bool
	acyclic      bool
}

func summarize(g *skeleton.Graph) graphSummary {
	s := graphSummary{
		nodes:      g.NodeCount(),
		edges:      g.EdgeCount(),
		components: len(g.ConnectedComponents()),
		directed:   g.Directed(),
		acyclic:    g.IsAcyclic(),
	}
	for _, key := range g.NodeKeys() {
		switch d := g.Degree(key); {
		case d == 1:
			s.leaves++
		case d > 2:
			s.branchPoints++
		}
		if s.directed && g.InDegree(key) == 0 {
			s.roots = append(s.roots, key)
		}
	}
	for _, e := range g.Edges() {
		if e.IsSelfLoop() {
			s.selfLoops++
		}
		s.totalLength += e.Spline.ArcLength()
	}
	return s
}

func printGraphInfo(w io.Writer, path string, g *skeleton.Graph, listEdges bool) {
	s := summarize(g)

	fmt.Fprintln(w, StyleTitle.Render(path))
	kind := "undirected"
	if s.directed {
		kind = "directed"
	}
	rows := [][]string{
		{"kind", kind},
		{"nodes", strconv.Itoa(s.nodes)},
		{"edges", strconv.Itoa(s.edges)},
		{"components", strconv.Itoa(s.components)},
		{"leaves", strconv.Itoa(s.leaves)},
		{"branch points", strconv.Itoa(s.branchPoints)},
		{"self-loops", strconv.Itoa(s.selfLoops)},
		{"acyclic", strconv.FormatBool(s.acyclic)},
		{"total length", strconv.FormatFloat(s.totalLength, 'f', 2, 64)},
	}
	if s.directed {
		rows = append(rows, []string{"roots", fmt.Sprint(s.roots)})
	}
	for _, r := range rows {
		fmt.Fprintln(w, styleKey.Render(r[0])+" "+StyleNumber.Render(r[1]))
	}

	if !listEdges || s.edges == 0 {
		return
	}
	edgeRows := make([][]string, 0, s.edges)
	for _, e := range g.Edges() {
		edgeRows = append(edgeRows, []string{
			strconv.Itoa(e.U),
			strconv.Itoa(e.V),
			strconv.Itoa(e.Key),
			strconv.Itoa(len(e.Path)),
			strconv.Itoa(e.Spline.KnotCount()),
			strconv.FormatFloat(e.Spline.ArcLength(), 'f', 2, 64),
		})
	}
	fmt.Fprintln(w)
	printTable(w, []string{"from", "to", "key", "points", "knots", "length"}, edgeRows, 0, 1, 2, 3, 4, 5)
}
