package graph

import (
	"bufio"
	"io"
)

// RenderTree writes the graph as an indented tree, roots first in listing
// order. Nodes whose parent is absent are printed as additional roots.
func RenderTree(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	roots := g.Roots()
	for i, id := range roots {
		renderNode(bw, g, id, "", i == len(roots)-1, true)
	}
	return bw.Flush()
}

func renderNode(w *bufio.Writer, g *Graph, id, prefix string, last, root bool) {
	n, _ := g.Node(id)

	childPrefix := prefix
	if root {
		w.WriteString(n.Label + "\n")
	} else {
		branch := "├── "
		childPrefix += "│   "
		if last {
			branch = "└── "
			childPrefix = prefix + "    "
		}
		w.WriteString(prefix + branch + n.Label + "\n")
	}

	children := g.Children(id)
	for i, child := range children {
		renderNode(w, g, child, childPrefix, i == len(children)-1, false)
	}
}
