package services

import "github.com/google/uuid"

type forestNode[T any] interface {
	NodeID() uuid.UUID
	NodeParentID() *uuid.UUID
	AddChild(T)
}

// BuildForest assembles a rooted forest from a flat node set sharing one
// scope. Non-roots attach to their parent through an id-keyed map rather
// than by walking the tree, so a corrupted cyclic parent chain cannot loop
// forever: nodes trapped in a cycle are simply never reachable from any root
// and drop out of the result. Nodes whose declared parent is missing from
// the input set are promoted to extra roots instead of being dropped.
// Roots keep input order.
func BuildForest[T forestNode[T]](nodes []T) []T {
	byID := make(map[uuid.UUID]T, len(nodes))
	for _, node := range nodes {
		byID[node.NodeID()] = node
	}

	roots := []T{}
	for _, node := range nodes {
		parentID := node.NodeParentID()
		if parentID == nil {
			roots = append(roots, node)
			continue
		}

		parent, ok := byID[*parentID]
		if !ok {
			// orphan: parent outside the scope, surface it as a root
			roots = append(roots, node)
			continue
		}
		parent.AddChild(node)
	}

	return roots
}
