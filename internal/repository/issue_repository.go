package repository

import (
	"context"
	"database/sql"
	"fmt"

	"support-service/internal/apperrors"
	"support-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type IssueRepository struct {
	db *sqlx.DB
}

func NewIssueRepository(db *sqlx.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

func (r *IssueRepository) BeginTransaction() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

const issueColumns = `id, hierarchy_node_id, title, description, priority_id, category_id,
	       assigned_to, reported_by, status, action_taken, resolved_at, created_at, updated_at`

// GetByID retrieves an issue by its ID
func (r *IssueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	var issue models.Issue
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = $1`

	err := r.db.GetContext(ctx, &issue, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: issue %s", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get issue by id: %w", err)
	}

	return &issue, nil
}

// GetByIDForUpdateTx loads an issue with a row lock so concurrent lifecycle
// operations on the same issue serialize instead of overwriting each other.
func (r *IssueRepository) GetByIDForUpdateTx(tx *sqlx.Tx, id uuid.UUID) (*models.Issue, error) {
	var issue models.Issue
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = $1 FOR UPDATE`

	err := tx.Get(&issue, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: issue %s", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to lock issue row: %w", err)
	}

	return &issue, nil
}

// CreateTx inserts a new issue within a transaction
func (r *IssueRepository) CreateTx(tx *sqlx.Tx, issue *models.Issue) error {
	query := `
		INSERT INTO issues (hierarchy_node_id, title, description, priority_id, category_id,
		                    assigned_to, reported_by, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := tx.QueryRow(query,
		issue.HierarchyNodeID, issue.Title, issue.Description, issue.PriorityID,
		issue.CategoryID, issue.AssignedTo, issue.ReportedBy, issue.Status).
		Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create issue: %w", err)
	}

	return nil
}

// UpdateTx writes the mutable lifecycle fields of an issue within a transaction
func (r *IssueRepository) UpdateTx(tx *sqlx.Tx, issue *models.Issue) error {
	query := `
		UPDATE issues
		SET hierarchy_node_id = $2, assigned_to = $3, status = $4,
		    action_taken = $5, resolved_at = $6, updated_at = NOW()
		WHERE id = $1`

	result, err := tx.Exec(query,
		issue.ID, issue.HierarchyNodeID, issue.AssignedTo,
		issue.Status, issue.ActionTaken, issue.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to update issue: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: issue %s", apperrors.ErrNotFound, issue.ID)
	}

	return nil
}

// List retrieves issues matching the filter. When VisibleNodeIDs is set, the
// result is restricted to issues handled at those nodes.
func (r *IssueRepository) List(ctx context.Context, filter models.IssueFilter) ([]models.Issue, error) {
	var issues []models.Issue
	query := `SELECT ` + issueColumns + ` FROM issues WHERE 1=1`

	args := []interface{}{}
	argCount := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filter.Status)
		argCount++
	}

	if filter.PriorityID != nil {
		query += fmt.Sprintf(" AND priority_id = $%d", argCount)
		args = append(args, *filter.PriorityID)
		argCount++
	}

	if filter.CategoryID != nil {
		query += fmt.Sprintf(" AND category_id = $%d", argCount)
		args = append(args, *filter.CategoryID)
		argCount++
	}

	if filter.AssignedTo != nil {
		query += fmt.Sprintf(" AND assigned_to = $%d", argCount)
		args = append(args, *filter.AssignedTo)
		argCount++
	}

	if filter.ReportedBy != nil {
		query += fmt.Sprintf(" AND reported_by = $%d", argCount)
		args = append(args, *filter.ReportedBy)
		argCount++
	}

	if filter.VisibleNodeIDs != nil {
		ids := make([]string, 0, len(filter.VisibleNodeIDs))
		for _, id := range filter.VisibleNodeIDs {
			ids = append(ids, id.String())
		}
		query += fmt.Sprintf(" AND hierarchy_node_id = ANY($%d)", argCount)
		args = append(args, pq.Array(ids))
		argCount++
	}

	query += " ORDER BY created_at DESC"

	err := r.db.SelectContext(ctx, &issues, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}

	return issues, nil
}

// CreateActionTx appends one audit action row within a transaction
func (r *IssueRepository) CreateActionTx(tx *sqlx.Tx, action *models.IssueAction) error {
	query := `
		INSERT INTO issue_actions (issue_id, action_name, action_description, performed_by, related_tier)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := tx.QueryRow(query,
		action.IssueID, action.ActionName, action.ActionDescription,
		action.PerformedBy, action.RelatedTier).
		Scan(&action.ID, &action.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create issue action: %w", err)
	}

	return nil
}

// CreateHistoryTx appends one status-history row within a transaction
func (r *IssueRepository) CreateHistoryTx(tx *sqlx.Tx, history *models.IssueStatusHistory) error {
	query := `
		INSERT INTO issue_status_history (issue_id, from_status, to_status, changed_by, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := tx.QueryRow(query,
		history.IssueID, history.FromStatus, history.ToStatus,
		history.ChangedBy, history.Reason).
		Scan(&history.ID, &history.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create issue status history: %w", err)
	}

	return nil
}

// CreateEscalationTx appends one escalation-path row within a transaction
func (r *IssueRepository) CreateEscalationTx(tx *sqlx.Tx, escalation *models.IssueEscalation) error {
	query := `
		INSERT INTO issue_escalations (issue_id, from_tier, to_tier, reason, escalated_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, escalated_at`

	err := tx.QueryRow(query,
		escalation.IssueID, escalation.FromTier, escalation.ToTier,
		escalation.Reason, escalation.EscalatedBy).
		Scan(&escalation.ID, &escalation.EscalatedAt)
	if err != nil {
		return fmt.Errorf("failed to create issue escalation: %w", err)
	}

	return nil
}

// GetActions retrieves the action trail of an issue, oldest first
func (r *IssueRepository) GetActions(ctx context.Context, issueID uuid.UUID) ([]models.IssueAction, error) {
	var actions []models.IssueAction
	query := `
		SELECT id, issue_id, action_name, action_description, performed_by, related_tier, created_at
		FROM issue_actions
		WHERE issue_id = $1
		ORDER BY created_at`

	err := r.db.SelectContext(ctx, &actions, query, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue actions: %w", err)
	}

	return actions, nil
}

// GetStatusHistory retrieves the status-history trail of an issue, oldest first
func (r *IssueRepository) GetStatusHistory(ctx context.Context, issueID uuid.UUID) ([]models.IssueStatusHistory, error) {
	var history []models.IssueStatusHistory
	query := `
		SELECT id, issue_id, from_status, to_status, changed_by, reason, created_at
		FROM issue_status_history
		WHERE issue_id = $1
		ORDER BY created_at`

	err := r.db.SelectContext(ctx, &history, query, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue status history: %w", err)
	}

	return history, nil
}

// GetEscalations retrieves the escalation path of an issue, oldest first
func (r *IssueRepository) GetEscalations(ctx context.Context, issueID uuid.UUID) ([]models.IssueEscalation, error) {
	var escalations []models.IssueEscalation
	query := `
		SELECT id, issue_id, from_tier, to_tier, reason, escalated_by, escalated_at
		FROM issue_escalations
		WHERE issue_id = $1
		ORDER BY escalated_at`

	err := r.db.SelectContext(ctx, &escalations, query, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue escalations: %w", err)
	}

	return escalations, nil
}
