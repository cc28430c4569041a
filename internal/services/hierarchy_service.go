package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"support-service/internal/apperrors"
	"support-service/internal/models"
	"support-service/internal/repository"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// HierarchyService manages the project-scoped organizational tree
type HierarchyService struct {
	nodeRepo repository.HierarchyNodeRepository
}

// NewHierarchyService creates a new hierarchy service
func NewHierarchyService(nodeRepo repository.HierarchyNodeRepository) *HierarchyService {
	return &HierarchyService{nodeRepo: nodeRepo}
}

// CreateNode creates a hierarchy node under a project. Level is derived from
// the parent: roots sit at level 1, children at parent.level + 1.
func (s *HierarchyService) CreateNode(ctx context.Context, req models.CreateNodeRequest) (*models.HierarchyNode, error) {
	if req.ProjectID == nil {
		return nil, fmt.Errorf("%w: project_id is required", apperrors.ErrValidation)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}

	exists, err := s.nodeRepo.ProjectExists(ctx, *req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate project: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: project %s", apperrors.ErrNotFound, *req.ProjectID)
	}

	tx, err := s.nodeRepo.BeginTransaction()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	level := 1
	if req.ParentID != nil {
		parent, err := s.nodeRepo.GetByIDTx(tx, *req.ParentID)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if parent.ProjectID != *req.ProjectID {
			tx.Rollback()
			return nil, fmt.Errorf("%w: parent node belongs to a different project", apperrors.ErrValidation)
		}
		level = parent.Level + 1
	}

	if _, err := s.nodeRepo.GetByNameTx(tx, *req.ProjectID, req.Name); err == nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: node '%s' already exists in project", apperrors.ErrConflict, req.Name)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		tx.Rollback()
		return nil, err
	}

	node := &models.HierarchyNode{
		ProjectID:   *req.ProjectID,
		ParentID:    req.ParentID,
		Name:        req.Name,
		Description: req.Description,
		Level:       level,
		IsActive:    true,
	}

	if err := s.nodeRepo.CreateTx(tx, node); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}

	slog.Info("hierarchy node created", "node_id", node.ID, "project_id", node.ProjectID, "level", node.Level)
	return node, nil
}

// UpdateNode renames or reparents a node. On reparent the node's level is
// recomputed and every descendant level is rewritten in the same transaction,
// keeping the level invariant true across the whole subtree.
func (s *HierarchyService) UpdateNode(ctx context.Context, id uuid.UUID, req models.UpdateNodeRequest) (*models.HierarchyNode, error) {
	tx, err := s.nodeRepo.BeginTransaction()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	node, err := s.nodeRepo.GetByIDTx(tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if req.Name != nil && *req.Name != node.Name {
		if existing, err := s.nodeRepo.GetByNameTx(tx, node.ProjectID, *req.Name); err == nil && existing.ID != node.ID {
			tx.Rollback()
			return nil, fmt.Errorf("%w: node '%s' already exists in project", apperrors.ErrConflict, *req.Name)
		} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			tx.Rollback()
			return nil, err
		}
		node.Name = *req.Name
	}

	if req.Description != nil {
		node.Description = req.Description
	}
	if req.IsActive != nil {
		node.IsActive = *req.IsActive
	}

	reparented := false
	if req.ParentID != nil {
		if *req.ParentID == node.ID {
			tx.Rollback()
			return nil, fmt.Errorf("%w: node cannot be its own parent", apperrors.ErrValidation)
		}

		parent, err := s.nodeRepo.GetByIDTx(tx, *req.ParentID)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if parent.ProjectID != node.ProjectID {
			tx.Rollback()
			return nil, fmt.Errorf("%w: parent node belongs to a different project", apperrors.ErrValidation)
		}

		node.ParentID = req.ParentID
		node.Level = parent.Level + 1
		reparented = true
	}

	if err := s.nodeRepo.UpdateTx(tx, node); err != nil {
		tx.Rollback()
		return nil, err
	}

	if reparented {
		if err := s.recomputeSubtreeLevels(tx, node); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}

	slog.Info("hierarchy node updated", "node_id", node.ID, "reparented", reparented)
	return node, nil
}

// recomputeSubtreeLevels walks the subtree breadth-first and rewrites each
// descendant's level relative to its parent. The visited set keeps corrupt
// cyclic chains from looping.
func (s *HierarchyService) recomputeSubtreeLevels(tx *sqlx.Tx, root *models.HierarchyNode) error {
	visited := map[uuid.UUID]bool{root.ID: true}

	type entry struct {
		id    uuid.UUID
		level int
	}
	frontier := []entry{{id: root.ID, level: root.Level}}

	for len(frontier) > 0 {
		next := []entry{}
		for _, parent := range frontier {
			children, err := s.nodeRepo.GetChildrenTx(tx, parent.id)
			if err != nil {
				return err
			}

			for _, child := range children {
				if visited[child.ID] {
					continue
				}
				visited[child.ID] = true

				childLevel := parent.level + 1
				if child.Level != childLevel {
					if err := s.nodeRepo.UpdateLevelTx(tx, child.ID, childLevel); err != nil {
						return err
					}
				}
				next = append(next, entry{id: child.ID, level: childLevel})
			}
		}
		frontier = next
	}

	return nil
}

// GetNode retrieves a node by id, including deactivated ones
func (s *HierarchyService) GetNode(ctx context.Context, id uuid.UUID) (*models.HierarchyNode, error) {
	return s.nodeRepo.GetByID(ctx, id)
}

// GetTree returns the rooted forest of a project's active nodes
func (s *HierarchyService) GetTree(ctx context.Context, projectID uuid.UUID) ([]*models.HierarchyNode, error) {
	nodes, err := s.nodeRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return BuildForest(nodes), nil
}

// DeactivateNode soft-deletes a node. Refused while unresolved issues are
// still handled at the node.
func (s *HierarchyService) DeactivateNode(ctx context.Context, id uuid.UUID) error {
	count, err := s.nodeRepo.CountOpenIssues(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: node has %d unresolved issues", apperrors.ErrConflict, count)
	}

	tx, err := s.nodeRepo.BeginTransaction()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	node, err := s.nodeRepo.GetByIDTx(tx, id)
	if err != nil {
		tx.Rollback()
		return err
	}

	node.IsActive = false
	if err := s.nodeRepo.UpdateTx(tx, node); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error commiting transaction: %w", err)
	}

	return nil
}
