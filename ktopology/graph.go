package ktopology

import (
	"slices"
	"sort"
)

// Node is one component in the structural graph.
type Node struct {
	Name string
	Kind ComponentKind

	// Parent edges (components this one subscribes to)
	Parents []string

	// Child edges (components subscribing to this one)
	Children []string
}

// Graph is the component graph of a topology with deterministic ordering.
// Unlike a processing DAG it may contain cycles: bolts are allowed to feed
// back into earlier bolts.
type Graph struct {
	Nodes map[string]*Node

	// NodeOrder holds the node names in sorted order.
	NodeOrder []string
}

// NewGraph builds the graph of t. Components are visited in name order and
// their inputs in stream order, so the first dangling reference reported is
// the same on every call.
func NewGraph(t *Topology) (*Graph, error) {
	g := &Graph{
		Nodes:     make(map[string]*Node, len(t.Components)),
		NodeOrder: t.Names(),
	}
	for _, name := range g.NodeOrder {
		g.Nodes[name] = &Node{Name: name, Kind: t.Components[name].Kind}
	}

	for _, name := range g.NodeOrder {
		c := t.Components[name]
		for _, id := range c.SortedInputs() {
			parent, ok := g.Nodes[id.Component]
			if !ok {
				return nil, &DanglingReferenceError{Component: name, Upstream: id}
			}
			child := g.Nodes[name]
			if !slices.Contains(child.Parents, parent.Name) {
				child.Parents = append(child.Parents, parent.Name)
				parent.Children = insertSorted(parent.Children, name)
			}
		}
	}
	return g, nil
}

// Sources returns the nodes without parents, in name order.
func (g *Graph) Sources() []string {
	var sources []string
	for _, name := range g.NodeOrder {
		if len(g.Nodes[name].Parents) == 0 {
			sources = append(sources, name)
		}
	}
	return sources
}

// TopologicalOrder orders nodes so that parents come before children,
// using Kahn's algorithm with a sorted queue. Nodes on a cycle can not be
// ordered that way; they are appended in name order.
func (g *Graph) TopologicalOrder() []string {
	inDegree := make(map[string]int, len(g.Nodes))
	for _, name := range g.NodeOrder {
		inDegree[name] = len(g.Nodes[name].Parents)
	}

	queue := make([]string, 0, len(g.Nodes))
	for _, name := range g.NodeOrder {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	result := make([]string, 0, len(g.Nodes))
	done := make(map[string]bool, len(g.Nodes))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		result = append(result, name)
		done[name] = true

		for _, child := range g.Nodes[name].Children {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = insertSorted(queue, child)
			}
		}
	}

	for _, name := range g.NodeOrder {
		if !done[name] {
			result = append(result, name)
		}
	}
	return result
}

// insertSorted inserts item into a sorted slice, keeping it sorted.
func insertSorted(s []string, item string) []string {
	idx := sort.SearchStrings(s, item)
	return slices.Insert(s, idx, item)
}
