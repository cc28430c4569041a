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
)

// InternalNodeService manages the organization-wide tree used for internal
// staff assignment. Same contract as the project hierarchy, but names are
// unique globally and there is no project scope.
type InternalNodeService struct {
	nodeRepo repository.InternalNodeRepository
}

// NewInternalNodeService creates a new internal node service
func NewInternalNodeService(nodeRepo repository.InternalNodeRepository) *InternalNodeService {
	return &InternalNodeService{nodeRepo: nodeRepo}
}

// CreateNode creates an internal node; roots at level 1, children at
// parent.level + 1
func (s *InternalNodeService) CreateNode(ctx context.Context, req models.CreateNodeRequest) (*models.InternalNode, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
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
		level = parent.Level + 1
	}

	if _, err := s.nodeRepo.GetByNameTx(tx, req.Name); err == nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: internal node '%s' already exists", apperrors.ErrConflict, req.Name)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		tx.Rollback()
		return nil, err
	}

	node := &models.InternalNode{
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

	slog.Info("internal node created", "node_id", node.ID, "level", node.Level)
	return node, nil
}

// UpdateNode renames or reparents an internal node, cascading level
// recompute over the subtree on reparent
func (s *InternalNodeService) UpdateNode(ctx context.Context, id uuid.UUID, req models.UpdateNodeRequest) (*models.InternalNode, error) {
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
		if existing, err := s.nodeRepo.GetByNameTx(tx, *req.Name); err == nil && existing.ID != node.ID {
			tx.Rollback()
			return nil, fmt.Errorf("%w: internal node '%s' already exists", apperrors.ErrConflict, *req.Name)
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

		node.ParentID = req.ParentID
		node.Level = parent.Level + 1
		reparented = true
	}

	if err := s.nodeRepo.UpdateTx(tx, node); err != nil {
		tx.Rollback()
		return nil, err
	}

	if reparented {
		visited := map[uuid.UUID]bool{node.ID: true}

		type entry struct {
			id    uuid.UUID
			level int
		}
		frontier := []entry{{id: node.ID, level: node.Level}}

		for len(frontier) > 0 {
			next := []entry{}
			for _, parent := range frontier {
				children, err := s.nodeRepo.GetChildrenTx(tx, parent.id)
				if err != nil {
					tx.Rollback()
					return nil, err
				}

				for _, child := range children {
					if visited[child.ID] {
						continue
					}
					visited[child.ID] = true

					childLevel := parent.level + 1
					if child.Level != childLevel {
						if err := s.nodeRepo.UpdateLevelTx(tx, child.ID, childLevel); err != nil {
							tx.Rollback()
							return nil, err
						}
					}
					next = append(next, entry{id: child.ID, level: childLevel})
				}
			}
			frontier = next
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}

	return node, nil
}

// GetNode retrieves an internal node by id, including deactivated ones
func (s *InternalNodeService) GetNode(ctx context.Context, id uuid.UUID) (*models.InternalNode, error) {
	return s.nodeRepo.GetByID(ctx, id)
}

// GetTree returns the rooted forest of active internal nodes
func (s *InternalNodeService) GetTree(ctx context.Context) ([]*models.InternalNode, error) {
	nodes, err := s.nodeRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	return BuildForest(nodes), nil
}
