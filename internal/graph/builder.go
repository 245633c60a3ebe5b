package graph

import (
	"strings"

	"github.com/rohankatakam/repograph/internal/models"
)

// Layout constants for initial placement
const (
	BaseY       = 50
	RowHeight   = 70
	ColumnWidth = 200
)

// Build folds an ordered listing into a graph. It never fails: empty input
// yields an empty graph, and empty path segments are ordinary segments whose
// parent simply may not resolve. Later duplicates of a path are ignored.
// The same input always yields the same graph.
func Build(entries []models.RepoEntry) *Graph {
	g := &Graph{
		Nodes:    make([]Node, 0, len(entries)),
		Edges:    make([]Edge, 0, len(entries)),
		index:    make(map[string]int, len(entries)),
		children: make(map[string][]string),
		parent:   make(map[string]string),
	}

	// Pass 1: rows in listing order, provisional x from depth
	row := 0
	for _, entry := range entries {
		if _, dup := g.index[entry.Path]; dup {
			continue
		}
		segments := strings.Split(entry.Path, "/")
		name := segments[len(segments)-1]
		icon := iconFor(entry.Kind)

		g.index[entry.Path] = len(g.Nodes)
		g.Nodes = append(g.Nodes, Node{
			ID:          entry.Path,
			Depth:       len(segments),
			DisplayName: name,
			Position: Position{
				X: float64(len(segments) * ColumnWidth),
				Y: float64(BaseY + row*RowHeight),
			},
			Kind:  entry.Kind,
			Icon:  icon,
			Label: icon + " " + name,
		})
		row++
	}

	// Edges only where the parent node exists
	for _, n := range g.Nodes {
		parentPath, ok := parentOf(n.ID)
		if !ok {
			continue
		}
		if _, exists := g.index[parentPath]; !exists {
			continue
		}
		g.parent[n.ID] = parentPath
		g.children[parentPath] = append(g.children[parentPath], n.ID)
		g.Edges = append(g.Edges, Edge{
			ID:       EdgeID(parentPath, n.ID),
			Source:   parentPath,
			Target:   n.ID,
			Animated: true,
		})
	}

	// Pass 2: x follows the parent's resolved x. Parents may appear after
	// their children in the listing, so resolve through a memo.
	resolved := make(map[string]float64, len(g.Nodes))
	var resolve func(id string) float64
	resolve = func(id string) float64 {
		if x, ok := resolved[id]; ok {
			return x
		}
		n := g.Nodes[g.index[id]]
		x := n.Position.X
		if p, ok := g.parent[id]; ok {
			x = resolve(p) + ColumnWidth
		}
		resolved[id] = x
		return x
	}
	for i := range g.Nodes {
		g.Nodes[i].Position.X = resolve(g.Nodes[i].ID)
	}

	return g
}

// EdgeID names the edge between a parent and child path
func EdgeID(parent, child string) string {
	return "e-" + parent + "-" + child
}

// parentOf strips the last segment. Single-segment paths have no parent.
func parentOf(p string) (string, bool) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", false
	}
	return p[:i], true
}

func iconFor(kind models.EntryKind) string {
	if kind == models.KindDirectory {
		return IconDirectory
	}
	return IconFile
}
