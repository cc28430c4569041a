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

// InternalNodeRepository handles the organization-wide node structure used
// for internal staff assignment. Names are unique globally, not per project.
type InternalNodeRepository interface {
	BeginTransaction() (*sqlx.Tx, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.InternalNode, error)
	GetByIDTx(tx *sqlx.Tx, id uuid.UUID) (*models.InternalNode, error)
	GetByNameTx(tx *sqlx.Tx, name string) (*models.InternalNode, error)
	List(ctx context.Context) ([]*models.InternalNode, error)
	GetChildIDs(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error)
	GetChildrenTx(tx *sqlx.Tx, parentID uuid.UUID) ([]*models.InternalNode, error)

	CreateTx(tx *sqlx.Tx, node *models.InternalNode) error
	UpdateTx(tx *sqlx.Tx, node *models.InternalNode) error
	UpdateLevelTx(tx *sqlx.Tx, id uuid.UUID, level int) error
}

type internalNodeRepository struct {
	db *sqlx.DB
}

// NewInternalNodeRepository creates a new internal node repository
func NewInternalNodeRepository(db *sqlx.DB) InternalNodeRepository {
	return &internalNodeRepository{db: db}
}

func (r *internalNodeRepository) BeginTransaction() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

const internalNodeColumns = `id, parent_id, name, description, level, is_active, created_at, updated_at`

func (r *internalNodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.InternalNode, error) {
	node := &models.InternalNode{}
	query := `SELECT ` + internalNodeColumns + ` FROM internal_nodes WHERE id = $1`

	err := r.db.GetContext(ctx, node, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: internal node %s", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get internal node: %w", err)
	}

	return node, nil
}

func (r *internalNodeRepository) GetByIDTx(tx *sqlx.Tx, id uuid.UUID) (*models.InternalNode, error) {
	node := &models.InternalNode{}
	query := `SELECT ` + internalNodeColumns + ` FROM internal_nodes WHERE id = $1`

	err := tx.Get(node, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: internal node %s", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get internal node: %w", err)
	}

	return node, nil
}

func (r *internalNodeRepository) GetByNameTx(tx *sqlx.Tx, name string) (*models.InternalNode, error) {
	node := &models.InternalNode{}
	query := `SELECT ` + internalNodeColumns + ` FROM internal_nodes WHERE name = $1`

	err := tx.Get(node, query, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: internal node '%s'", apperrors.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to get internal node by name: %w", err)
	}

	return node, nil
}

func (r *internalNodeRepository) List(ctx context.Context) ([]*models.InternalNode, error) {
	var nodes []*models.InternalNode
	query := `SELECT ` + internalNodeColumns + ` FROM internal_nodes WHERE is_active = true ORDER BY created_at`

	err := r.db.SelectContext(ctx, &nodes, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list internal nodes: %w", err)
	}

	return nodes, nil
}

func (r *internalNodeRepository) GetChildIDs(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `SELECT id FROM internal_nodes WHERE parent_id = $1 AND is_active = true ORDER BY created_at`

	err := r.db.SelectContext(ctx, &ids, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get child node ids: %w", err)
	}

	return ids, nil
}

func (r *internalNodeRepository) GetChildrenTx(tx *sqlx.Tx, parentID uuid.UUID) ([]*models.InternalNode, error) {
	var nodes []*models.InternalNode
	query := `SELECT ` + internalNodeColumns + ` FROM internal_nodes WHERE parent_id = $1 ORDER BY created_at`

	err := tx.Select(&nodes, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get child nodes: %w", err)
	}

	return nodes, nil
}

func (r *internalNodeRepository) CreateTx(tx *sqlx.Tx, node *models.InternalNode) error {
	query := `
		INSERT INTO internal_nodes (parent_id, name, description, level, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := tx.QueryRow(query, node.ParentID, node.Name, node.Description, node.Level, node.IsActive).
		Scan(&node.ID, &node.CreatedAt, &node.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create internal node: %w", err)
	}

	return nil
}

func (r *internalNodeRepository) UpdateTx(tx *sqlx.Tx, node *models.InternalNode) error {
	query := `
		UPDATE internal_nodes
		SET name = $2, description = $3, parent_id = $4, level = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1`

	result, err := tx.Exec(query, node.ID, node.Name, node.Description, node.ParentID, node.Level, node.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update internal node: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: internal node %s", apperrors.ErrNotFound, node.ID)
	}

	return nil
}

func (r *internalNodeRepository) UpdateLevelTx(tx *sqlx.Tx, id uuid.UUID, level int) error {
	query := `UPDATE internal_nodes SET level = $2, updated_at = NOW() WHERE id = $1`

	if err := utils.ExecTxWithCheck(tx, query, utils.ExecUpdate, id, level); err != nil {
		return fmt.Errorf("failed to update node level: %w", err)
	}

	return nil
}
