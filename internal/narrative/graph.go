package narrative

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Graph indexes a decoded story. It is immutable and safe for concurrent
// readers.
type Graph struct {
	nodes  []Node
	byID   map[NodeRef]Node
	byGUID map[uuid.UUID]Node
}

// NewGraph indexes nodes by human id and GUID. The first node is the
// default entry point.
func NewGraph(nodes []Node) (*Graph, error) {
	g := &Graph{
		nodes:  make([]Node, 0, len(nodes)),
		byID:   make(map[NodeRef]Node, len(nodes)),
		byGUID: make(map[uuid.UUID]Node, len(nodes)),
	}
	for i, n := range nodes {
		if n == nil {
			return nil, fmt.Errorf("node %d is nil", i)
		}
		h := n.Identity()
		if h.ID == "" {
			return nil, fmt.Errorf("node %d has no id", i)
		}
		ref := NodeRef(h.ID)
		if _, ok := g.byID[ref]; ok {
			return nil, fmt.Errorf("%w: id %q", ErrDuplicateNode, h.ID)
		}
		if h.GUID != uuid.Nil {
			if _, ok := g.byGUID[h.GUID]; ok {
				return nil, fmt.Errorf("%w: guid %s", ErrDuplicateNode, h.GUID)
			}
			g.byGUID[h.GUID] = n
		}
		g.byID[ref] = n
		g.nodes = append(g.nodes, n)
	}
	return g, nil
}

// Node returns the node named ref.
func (g *Graph) Node(ref NodeRef) (Node, error) {
	n, ok := g.byID[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, string(ref))
	}
	return n, nil
}

// NodeByGUID returns the node with the given GUID.
func (g *Graph) NodeByGUID(id uuid.UUID) (Node, error) {
	n, ok := g.byGUID[id]
	if !ok {
		return nil, fmt.Errorf("%w: guid %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// Entry returns the first node, or nil for an empty graph.
func (g *Graph) Entry() Node {
	if len(g.nodes) == 0 {
		return nil
	}
	return g.nodes[0]
}

// Nodes returns the nodes in load order.
func (g *Graph) Nodes() []Node { return append([]Node{}, g.nodes...) }

func (g *Graph) Len() int { return len(g.nodes) }

// Validate reports every reference that names no node.
func (g *Graph) Validate() error {
	var errs []error
	for _, n := range g.nodes {
		for _, ref := range Successors(n) {
			if _, ok := g.byID[ref]; !ok {
				errs = append(errs, fmt.Errorf("%w: %q -> %q", ErrDanglingReference, n.Identity().ID, string(ref)))
			}
		}
	}
	return errors.Join(errs...)
}
