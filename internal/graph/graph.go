// Package graph turns a flat repository listing into a positioned node/edge
// graph reflecting directory containment.
package graph

import (
	"github.com/rohankatakam/repograph/internal/models"
)

const (
	IconDirectory = "📁"
	IconFile      = "📄"
)

// Position is a node's initial placement on the render surface
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is one repository entry placed on the graph. ID is the entry path.
type Node struct {
	ID          string           `json:"id" yaml:"id"`
	Depth       int              `json:"depth" yaml:"depth"`
	DisplayName string           `json:"displayName" yaml:"display_name"`
	Position    Position         `json:"position" yaml:"position"`
	Kind        models.EntryKind `json:"kind" yaml:"kind"`
	Icon        string           `json:"icon" yaml:"icon"`
	Label       string           `json:"label" yaml:"label"`
}

// IsDir reports whether the node is a directory
func (n Node) IsDir() bool {
	return n.Kind == models.KindDirectory
}

// Edge connects a directory node to one of its immediate children
type Edge struct {
	ID       string `json:"id" yaml:"id"`
	Source   string `json:"source" yaml:"source"`
	Target   string `json:"target" yaml:"target"`
	Animated bool   `json:"animated" yaml:"animated"`
}

// Graph is the immutable result of Build. Nodes keep listing order.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`

	index    map[string]int
	children map[string][]string
	parent   map[string]string
}

// Node returns the node with the given id
func (g *Graph) Node(id string) (Node, bool) {
	if g == nil {
		return Node{}, false
	}
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// Children returns the ids of id's immediate children in listing order
func (g *Graph) Children(id string) []string {
	if g == nil {
		return nil
	}
	return g.children[id]
}

// Parent returns the id of the node's parent, if one was resolved
func (g *Graph) Parent(id string) (string, bool) {
	if g == nil {
		return "", false
	}
	p, ok := g.parent[id]
	return p, ok
}

// Roots returns the ids of nodes with no inbound edge, in listing order.
// Nodes whose parent is missing from a partial listing are roots.
func (g *Graph) Roots() []string {
	if g == nil {
		return nil
	}
	var roots []string
	for _, n := range g.Nodes {
		if _, ok := g.parent[n.ID]; !ok {
			roots = append(roots, n.ID)
		}
	}
	return roots
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Nodes)
}
