package repository

import (
	"context"
	"database/sql"
	"fmt"

	"support-service/internal/apperrors"
	"support-service/internal/models"
	"support-service/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// HierarchyNodeRepository handles project-scoped hierarchy node persistence
type HierarchyNodeRepository interface {
	BeginTransaction() (*sqlx.Tx, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.HierarchyNode, error)
	GetByIDTx(tx *sqlx.Tx, id uuid.UUID) (*models.HierarchyNode, error)
	GetByNameTx(tx *sqlx.Tx, projectID uuid.UUID, name string) (*models.HierarchyNode, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.HierarchyNode, error)
	GetChildIDs(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error)
	GetChildrenTx(tx *sqlx.Tx, parentID uuid.UUID) ([]*models.HierarchyNode, error)

	CreateTx(tx *sqlx.Tx, node *models.HierarchyNode) error
	UpdateTx(tx *sqlx.Tx, node *models.HierarchyNode) error
	UpdateLevelTx(tx *sqlx.Tx, id uuid.UUID, level int) error

	ProjectExists(ctx context.Context, projectID uuid.UUID) (bool, error)
	CountOpenIssues(ctx context.Context, nodeID uuid.UUID) (int, error)
	GetUserNodeID(ctx context.Context, userID string) (*uuid.UUID, error)
}

type hierarchyNodeRepository struct {
	db *sqlx.DB
}

// NewHierarchyNodeRepository creates a new hierarchy node repository
func NewHierarchyNodeRepository(db *sqlx.DB) HierarchyNodeRepository {
	return &hierarchyNodeRepository{db: db}
}

func (r *hierarchyNodeRepository) BeginTransaction() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

const hierarchyNodeColumns = `id, project_id, parent_id, name, description, level, is_active, created_at, updated_at`

// GetByID retrieves a node by id, including soft-deactivated ones
func (r *hierarchyNodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.HierarchyNode, error) {
	node := &models.HierarchyNode{}
	query := `SELECT ` + hierarchyNodeColumns + ` FROM hierarchy_nodes WHERE id = $1`

	err := r.db.GetContext(ctx, node, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: hierarchy node %s", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get hierarchy node: %w", err)
	}

	return node, nil
}

// GetByIDTx is the transaction-scoped variant of GetByID
func (r *hierarchyNodeRepository) GetByIDTx(tx *sqlx.Tx, id uuid.UUID) (*models.HierarchyNode, error) {
	node := &models.HierarchyNode{}
	query := `SELECT ` + hierarchyNodeColumns + ` FROM hierarchy_nodes WHERE id = $1`

	err := tx.Get(node, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: hierarchy node %s", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get hierarchy node: %w", err)
	}

	return node, nil
}

// GetByNameTx looks a node up by name inside its project scope. Used for the
// duplicate-name check, so it runs inside the mutating transaction.
func (r *hierarchyNodeRepository) GetByNameTx(tx *sqlx.Tx, projectID uuid.UUID, name string) (*models.HierarchyNode, error) {
	node := &models.HierarchyNode{}
	query := `SELECT ` + hierarchyNodeColumns + ` FROM hierarchy_nodes WHERE project_id = $1 AND name = $2`

	err := tx.Get(node, query, projectID, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: hierarchy node '%s'", apperrors.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to get hierarchy node by name: %w", err)
	}

	return node, nil
}

// ListByProject retrieves all active nodes of a project as a flat set
func (r *hierarchyNodeRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.HierarchyNode, error) {
	var nodes []*models.HierarchyNode
	query := `
		SELECT ` + hierarchyNodeColumns + `
		FROM hierarchy_nodes
		WHERE project_id = $1 AND is_active = true
		ORDER BY created_at`

	err := r.db.SelectContext(ctx, &nodes, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list hierarchy nodes: %w", err)
	}

	return nodes, nil
}

// GetChildIDs retrieves the ids of the direct active children of a node.
// The visibility resolver expands the tree one level at a time through this.
func (r *hierarchyNodeRepository) GetChildIDs(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `SELECT id FROM hierarchy_nodes WHERE parent_id = $1 AND is_active = true ORDER BY created_at`

	err := r.db.SelectContext(ctx, &ids, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get child node ids: %w", err)
	}

	return ids, nil
}

// GetChildrenTx retrieves the direct children of a node inside a transaction,
// used by the cascading level recompute on reparent
func (r *hierarchyNodeRepository) GetChildrenTx(tx *sqlx.Tx, parentID uuid.UUID) ([]*models.HierarchyNode, error) {
	var nodes []*models.HierarchyNode
	query := `SELECT ` + hierarchyNodeColumns + ` FROM hierarchy_nodes WHERE parent_id = $1 ORDER BY created_at`

	err := tx.Select(&nodes, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get child nodes: %w", err)
	}

	return nodes, nil
}

// CreateTx inserts a new node
func (r *hierarchyNodeRepository) CreateTx(tx *sqlx.Tx, node *models.HierarchyNode) error {
	query := `
		INSERT INTO hierarchy_nodes (project_id, parent_id, name, description, level, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := tx.QueryRow(query, node.ProjectID, node.ParentID, node.Name, node.Description, node.Level, node.IsActive).
		Scan(&node.ID, &node.CreatedAt, &node.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create hierarchy node: %w", err)
	}

	return nil
}

// UpdateTx updates name, description, parent, level and active flag
func (r *hierarchyNodeRepository) UpdateTx(tx *sqlx.Tx, node *models.HierarchyNode) error {
	query := `
		UPDATE hierarchy_nodes
		SET name = $2, description = $3, parent_id = $4, level = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1`

	result, err := tx.Exec(query, node.ID, node.Name, node.Description, node.ParentID, node.Level, node.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update hierarchy node: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: hierarchy node %s", apperrors.ErrNotFound, node.ID)
	}

	return nil
}

// UpdateLevelTx rewrites the denormalized level of one node
func (r *hierarchyNodeRepository) UpdateLevelTx(tx *sqlx.Tx, id uuid.UUID, level int) error {
	query := `UPDATE hierarchy_nodes SET level = $2, updated_at = NOW() WHERE id = $1`

	if err := utils.ExecTxWithCheck(tx, query, utils.ExecUpdate, id, level); err != nil {
		return fmt.Errorf("failed to update node level: %w", err)
	}

	return nil
}

// ProjectExists checks whether the referenced project exists
func (r *hierarchyNodeRepository) ProjectExists(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`

	err := r.db.GetContext(ctx, &exists, query, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to check project existence: %w", err)
	}

	return exists, nil
}

// GetUserNodeID resolves the hierarchy node a user handles issues at. Users
// are owned by the auth service; only the node link is read here.
func (r *hierarchyNodeRepository) GetUserNodeID(ctx context.Context, userID string) (*uuid.UUID, error) {
	var nodeID *uuid.UUID
	query := `SELECT hierarchy_node_id FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &nodeID, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get user hierarchy node: %w", err)
	}

	return nodeID, nil
}

// CountOpenIssues counts unresolved issues currently handled at a node
func (r *hierarchyNodeRepository) CountOpenIssues(ctx context.Context, nodeID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM issues WHERE hierarchy_node_id = $1 AND status != 'resolved'`

	err := r.db.GetContext(ctx, &count, query, nodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to count open issues: %w", err)
	}

	return count, nil
}
