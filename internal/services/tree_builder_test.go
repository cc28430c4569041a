package services

import (
	"testing"

	"support-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestNode(name string, parentID *uuid.UUID) *models.HierarchyNode {
	return &models.HierarchyNode{
		ID:       uuid.New(),
		ParentID: parentID,
		Name:     name,
		IsActive: true,
	}
}

func TestBuildForest_NestsChildrenUnderRoots(t *testing.T) {
	root := newTestNode("Head Office", nil)
	branch := newTestNode("Regional Branch", &root.ID)
	desk := newTestNode("Service Desk", &branch.ID)
	secondRoot := newTestNode("External Partners", nil)

	roots := BuildForest([]*models.HierarchyNode{root, branch, desk, secondRoot})

	assert.Len(t, roots, 2)
	assert.Equal(t, root.ID, roots[0].ID)
	assert.Equal(t, secondRoot.ID, roots[1].ID)

	assert.Len(t, roots[0].Children, 1)
	assert.Equal(t, branch.ID, roots[0].Children[0].ID)
	assert.Len(t, roots[0].Children[0].Children, 1)
	assert.Equal(t, desk.ID, roots[0].Children[0].Children[0].ID)
	assert.Empty(t, roots[1].Children)
}

func TestBuildForest_RootsKeepInputOrder(t *testing.T) {
	first := newTestNode("First", nil)
	second := newTestNode("Second", nil)
	third := newTestNode("Third", nil)

	roots := BuildForest([]*models.HierarchyNode{first, second, third})

	assert.Len(t, roots, 3)
	assert.Equal(t, "First", roots[0].Name)
	assert.Equal(t, "Second", roots[1].Name)
	assert.Equal(t, "Third", roots[2].Name)
}

func TestBuildForest_OrphanPromotedToRoot(t *testing.T) {
	missingParent := uuid.New()
	root := newTestNode("Root", nil)
	orphan := newTestNode("Orphan", &missingParent)
	orphanChild := newTestNode("Orphan Child", &orphan.ID)

	roots := BuildForest([]*models.HierarchyNode{root, orphan, orphanChild})

	assert.Len(t, roots, 2)
	assert.Equal(t, root.ID, roots[0].ID)
	assert.Equal(t, orphan.ID, roots[1].ID)

	// orphan keeps its own subtree
	assert.Len(t, roots[1].Children, 1)
	assert.Equal(t, orphanChild.ID, roots[1].Children[0].ID)
}

func TestBuildForest_CyclicNodesDropOut(t *testing.T) {
	root := newTestNode("Root", nil)

	// a <-> b reference each other, unreachable from any root
	a := newTestNode("A", nil)
	b := newTestNode("B", &a.ID)
	a.ParentID = &b.ID

	roots := BuildForest([]*models.HierarchyNode{root, a, b})

	assert.Len(t, roots, 1)
	assert.Equal(t, root.ID, roots[0].ID)
	assert.Empty(t, roots[0].Children)
}

func TestBuildForest_EmptyInput(t *testing.T) {
	roots := BuildForest([]*models.HierarchyNode{})
	assert.Empty(t, roots)
}

func TestBuildForest_InternalNodes(t *testing.T) {
	root := &models.InternalNode{ID: uuid.New(), Name: "Operations"}
	child := &models.InternalNode{ID: uuid.New(), ParentID: &root.ID, Name: "Tier 2"}

	roots := BuildForest([]*models.InternalNode{root, child})

	assert.Len(t, roots, 1)
	assert.Len(t, roots[0].Children, 1)
	assert.Equal(t, child.ID, roots[0].Children[0].ID)
}
