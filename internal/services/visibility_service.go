package services

import (
	"context"
	"fmt"

	"support-service/internal/repository"

	"github.com/google/uuid"
)

// maxVisibilityDepth caps descendant expansion so a corrupted cyclic parent
// chain cannot keep the expansion alive forever.
const maxVisibilityDepth = 64

// VisibilityService computes which nodes a handler can see: their own node
// plus every transitive descendant. It re-reads the tree on every call; the
// structure can change between requests and stale closures would leak or
// hide issues.
type VisibilityService struct {
	nodeRepo repository.HierarchyNodeRepository
}

// NewVisibilityService creates a new visibility service
func NewVisibilityService(nodeRepo repository.HierarchyNodeRepository) *VisibilityService {
	return &VisibilityService{nodeRepo: nodeRepo}
}

// DescendantsOf returns every node reachable downward from nodeID, excluding
// nodeID itself. Expansion is breadth-first over one-level child queries with
// a visited set, so diamonds and cycles in corrupt data deduplicate and
// terminate instead of recursing unboundedly.
func (s *VisibilityService) DescendantsOf(ctx context.Context, nodeID uuid.UUID) ([]uuid.UUID, error) {
	visited := map[uuid.UUID]bool{nodeID: true}
	descendants := []uuid.UUID{}
	frontier := []uuid.UUID{nodeID}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= maxVisibilityDepth {
			return nil, fmt.Errorf("descendant expansion exceeded depth %d, tree may contain a cycle", maxVisibilityDepth)
		}

		next := []uuid.UUID{}
		for _, id := range frontier {
			children, err := s.nodeRepo.GetChildIDs(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to expand node %s: %w", id, err)
			}

			for _, childID := range children {
				if visited[childID] {
					continue
				}
				visited[childID] = true
				descendants = append(descendants, childID)
				next = append(next, childID)
			}
		}
		frontier = next
	}

	return descendants, nil
}

// VisibilityClosure returns the node itself plus all of its descendants.
func (s *VisibilityService) VisibilityClosure(ctx context.Context, nodeID uuid.UUID) ([]uuid.UUID, error) {
	descendants, err := s.DescendantsOf(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	closure := make([]uuid.UUID, 0, len(descendants)+1)
	closure = append(closure, nodeID)
	closure = append(closure, descendants...)

	return closure, nil
}
