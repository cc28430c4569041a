package repository

import (
	"context"
	"database/sql"
	"fmt"

	"support-service/internal/apperrors"
	"support-service/internal/models"
	"support-service/utils"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// RoleRepository handles role, sub-role and permission persistence
type RoleRepository interface {
	BeginTransaction() (*sqlx.Tx, error)

	// Role operations
	GetRoleByID(ctx context.Context, id int) (*models.Role, error)
	GetRoleByName(ctx context.Context, name string) (*models.Role, error)
	GetRoles(ctx context.Context, active *bool) ([]*models.Role, error)
	CreateRoleTx(tx *sqlx.Tx, role *models.Role) error
	UpdateRoleTx(tx *sqlx.Tx, role *models.Role) error
	DeleteRole(ctx context.Context, id int) error

	// Permission catalog
	GetPermissions(ctx context.Context, resource string) ([]models.Permission, error)
	CountActivePermissionsTx(tx *sqlx.Tx, ids []int) (int, error)

	// Sub-role operations
	GetSubRoleByIDTx(tx *sqlx.Tx, id int) (*models.SubRole, error)
	GetSubRoleByNameTx(tx *sqlx.Tx, name string) (*models.SubRole, error)
	CreateSubRoleTx(tx *sqlx.Tx, subRole *models.SubRole) error

	// Authorization surface
	CreateRoleSubRoleTx(tx *sqlx.Tx, roleID, subRoleID int) (int, error)
	BulkInsertSubRolePermissionsTx(tx *sqlx.Tx, roleSubRoleID int, permissionIDs []int) error
	DeactivateRoleSubRolesTx(tx *sqlx.Tx, roleID int) error
	RemoveDirectPermissionsTx(tx *sqlx.Tx, roleID int) error
	DeactivateDirectPermissionsTx(tx *sqlx.Tx, roleID int) error
	BulkInsertRolePermissionsTx(tx *sqlx.Tx, roleID int, permissionIDs []int) error

	GetRoleSubRoleDetails(ctx context.Context, roleID int) ([]models.RoleSubRoleDetail, error)
	GetDirectPermissions(ctx context.Context, roleID int) ([]models.Permission, error)

	// Project-user assignments
	CountActiveProjectUserRoles(ctx context.Context, roleID int) (int, error)
	AssignProjectUserRole(ctx context.Context, assignment *models.ProjectUserRole) error
	RemoveProjectUserRole(ctx context.Context, projectID, userID string, roleID int) error
}

type roleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *sqlx.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) BeginTransaction() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

// GetRoleByID retrieves a role by its ID
func (r *roleRepository) GetRoleByID(ctx context.Context, id int) (*models.Role, error) {
	role := &models.Role{}
	query := `SELECT id, name, role_type, is_active, created_at FROM roles WHERE id = $1`

	err := r.db.GetContext(ctx, role, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: role %d", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get role by ID: %w", err)
	}

	return role, nil
}

// GetRoleByName retrieves a role by its name
func (r *roleRepository) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	role := &models.Role{}
	query := `SELECT id, name, role_type, is_active, created_at FROM roles WHERE name = $1`

	err := r.db.GetContext(ctx, role, query, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: role '%s'", apperrors.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}

	return role, nil
}

// GetRoles retrieves roles with optional active filtering
func (r *roleRepository) GetRoles(ctx context.Context, active *bool) ([]*models.Role, error) {
	var roles []*models.Role
	query := `SELECT id, name, role_type, is_active, created_at FROM roles`
	args := []interface{}{}

	if active != nil {
		query += ` WHERE is_active = $1`
		args = append(args, *active)
	}

	query += ` ORDER BY name`

	err := r.db.SelectContext(ctx, &roles, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}

	return roles, nil
}

// CreateRoleTx creates a new role within a transaction
func (r *roleRepository) CreateRoleTx(tx *sqlx.Tx, role *models.Role) error {
	query := `
		INSERT INTO roles (name, role_type, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := tx.QueryRow(query, role.Name, role.RoleType, role.IsActive).
		Scan(&role.ID, &role.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	return nil
}

// UpdateRoleTx updates name, type and active flag of a role
func (r *roleRepository) UpdateRoleTx(tx *sqlx.Tx, role *models.Role) error {
	query := `UPDATE roles SET name = $2, role_type = $3, is_active = $4 WHERE id = $1`

	result, err := tx.Exec(query, role.ID, role.Name, role.RoleType, role.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: role %d", apperrors.ErrNotFound, role.ID)
	}

	return nil
}

// DeleteRole removes a role row. Callers must check the in-use guard first.
func (r *roleRepository) DeleteRole(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: role %d", apperrors.ErrNotFound, id)
	}

	return nil
}

// GetPermissions retrieves the permission catalog with optional resource filtering
func (r *roleRepository) GetPermissions(ctx context.Context, resource string) ([]models.Permission, error) {
	var permissions []models.Permission
	query := `SELECT id, resource, action, is_active, created_at FROM permissions`
	args := []interface{}{}

	if resource != "" {
		query += ` WHERE resource = $1`
		args = append(args, resource)
	}

	query += ` ORDER BY resource, action`

	err := r.db.SelectContext(ctx, &permissions, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get permissions: %w", err)
	}

	return permissions, nil
}

// CountActivePermissionsTx counts how many of the given ids resolve to active
// permissions. The assignment engine compares this against len(ids) to reject
// payloads carrying invalid or inactive permission ids. Runs inside the
// mutating transaction so validation sees a consistent snapshot.
func (r *roleRepository) CountActivePermissionsTx(tx *sqlx.Tx, ids []int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var count int
	query := `SELECT COUNT(*) FROM permissions WHERE id = ANY($1) AND is_active = true`

	err := tx.Get(&count, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to count active permissions: %w", err)
	}

	return count, nil
}

// GetSubRoleByIDTx retrieves a sub-role by id within a transaction
func (r *roleRepository) GetSubRoleByIDTx(tx *sqlx.Tx, id int) (*models.SubRole, error) {
	subRole := &models.SubRole{}
	query := `SELECT id, name, description, is_active, created_at FROM sub_roles WHERE id = $1`

	err := tx.Get(subRole, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: sub-role %d", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get sub-role: %w", err)
	}

	return subRole, nil
}

// GetSubRoleByNameTx retrieves a sub-role by name within a transaction
func (r *roleRepository) GetSubRoleByNameTx(tx *sqlx.Tx, name string) (*models.SubRole, error) {
	subRole := &models.SubRole{}
	query := `SELECT id, name, description, is_active, created_at FROM sub_roles WHERE name = $1`

	err := tx.Get(subRole, query, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: sub-role '%s'", apperrors.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to get sub-role by name: %w", err)
	}

	return subRole, nil
}

// CreateSubRoleTx creates a new sub-role within a transaction
func (r *roleRepository) CreateSubRoleTx(tx *sqlx.Tx, subRole *models.SubRole) error {
	query := `
		INSERT INTO sub_roles (name, description, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := tx.QueryRow(query, subRole.Name, subRole.Description, subRole.IsActive).
		Scan(&subRole.ID, &subRole.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create sub-role: %w", err)
	}

	return nil
}

// CreateRoleSubRoleTx links a sub-role to a role and returns the link id
func (r *roleRepository) CreateRoleSubRoleTx(tx *sqlx.Tx, roleID, subRoleID int) (int, error) {
	var id int
	query := `
		INSERT INTO roles_sub_roles (role_id, sub_role_id, is_active)
		VALUES ($1, $2, true)
		RETURNING id`

	err := tx.QueryRow(query, roleID, subRoleID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to link sub-role to role: %w", err)
	}

	return id, nil
}

// BulkInsertSubRolePermissionsTx grants permissions through a sub-role link
func (r *roleRepository) BulkInsertSubRolePermissionsTx(tx *sqlx.Tx, roleSubRoleID int, permissionIDs []int) error {
	query := `INSERT INTO roles_sub_roles_permissions (roles_sub_roles_id, permission_id) VALUES ($1, $2)`

	for _, permissionID := range permissionIDs {
		if err := utils.ExecTxWithCheck(tx, query, utils.ExecInsert, roleSubRoleID, permissionID); err != nil {
			return fmt.Errorf("failed to insert sub-role permission: %w", err)
		}
	}

	return nil
}

// DeactivateRoleSubRolesTx soft-deactivates every sub-role link of a role.
// Update semantics are replace-all, so the full prior set goes inactive
// before the payload set is recreated.
func (r *roleRepository) DeactivateRoleSubRolesTx(tx *sqlx.Tx, roleID int) error {
	query := `UPDATE roles_sub_roles SET is_active = false WHERE role_id = $1 AND is_active = true`

	_, err := tx.Exec(query, roleID)
	if err != nil {
		return fmt.Errorf("failed to deactivate role sub-roles: %w", err)
	}

	return nil
}

// RemoveDirectPermissionsTx removes every direct permission link of a role,
// enforcing the sub-role / direct-permission mutual exclusion
func (r *roleRepository) RemoveDirectPermissionsTx(tx *sqlx.Tx, roleID int) error {
	query := `DELETE FROM role_permissions WHERE role_id = $1`

	_, err := tx.Exec(query, roleID)
	if err != nil {
		return fmt.Errorf("failed to remove direct role permissions: %w", err)
	}

	return nil
}

// DeactivateDirectPermissionsTx soft-deactivates prior direct permissions
// before a replace-all direct-permission update
func (r *roleRepository) DeactivateDirectPermissionsTx(tx *sqlx.Tx, roleID int) error {
	query := `UPDATE role_permissions SET is_active = false WHERE role_id = $1 AND is_active = true`

	_, err := tx.Exec(query, roleID)
	if err != nil {
		return fmt.Errorf("failed to deactivate direct role permissions: %w", err)
	}

	return nil
}

// BulkInsertRolePermissionsTx grants direct permissions to a role
func (r *roleRepository) BulkInsertRolePermissionsTx(tx *sqlx.Tx, roleID int, permissionIDs []int) error {
	query := `INSERT INTO role_permissions (role_id, permission_id, is_active) VALUES ($1, $2, true)`

	for _, permissionID := range permissionIDs {
		if err := utils.ExecTxWithCheck(tx, query, utils.ExecInsert, roleID, permissionID); err != nil {
			return fmt.Errorf("failed to insert role permission: %w", err)
		}
	}

	return nil
}

// GetRoleSubRoleDetails retrieves the active sub-role links of a role with
// the permissions carried by each link
func (r *roleRepository) GetRoleSubRoleDetails(ctx context.Context, roleID int) ([]models.RoleSubRoleDetail, error) {
	type subRoleRow struct {
		LinkID int `db:"link_id"`
		models.SubRole
	}

	var rows []subRoleRow
	query := `
		SELECT rsr.id AS link_id, sr.id, sr.name, sr.description, sr.is_active, sr.created_at
		FROM sub_roles sr
		INNER JOIN roles_sub_roles rsr ON sr.id = rsr.sub_role_id
		WHERE rsr.role_id = $1 AND rsr.is_active = true
		ORDER BY sr.name`

	err := r.db.SelectContext(ctx, &rows, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role sub-roles: %w", err)
	}

	details := make([]models.RoleSubRoleDetail, 0, len(rows))
	for _, row := range rows {
		var permissions []models.Permission
		permQuery := `
			SELECT p.id, p.resource, p.action, p.is_active, p.created_at
			FROM permissions p
			INNER JOIN roles_sub_roles_permissions rsrp ON p.id = rsrp.permission_id
			WHERE rsrp.roles_sub_roles_id = $1
			ORDER BY p.resource, p.action`

		if err := r.db.SelectContext(ctx, &permissions, permQuery, row.LinkID); err != nil {
			return nil, fmt.Errorf("failed to get sub-role permissions: %w", err)
		}

		details = append(details, models.RoleSubRoleDetail{
			SubRole:     row.SubRole,
			Permissions: permissions,
		})
	}

	return details, nil
}

// GetDirectPermissions retrieves the active direct permissions of a role
func (r *roleRepository) GetDirectPermissions(ctx context.Context, roleID int) ([]models.Permission, error) {
	var permissions []models.Permission
	query := `
		SELECT p.id, p.resource, p.action, p.is_active, p.created_at
		FROM permissions p
		INNER JOIN role_permissions rp ON p.id = rp.permission_id
		WHERE rp.role_id = $1 AND rp.is_active = true
		ORDER BY p.resource, p.action`

	err := r.db.SelectContext(ctx, &permissions, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get direct role permissions: %w", err)
	}

	return permissions, nil
}

// CountActiveProjectUserRoles counts active project-user assignments of a
// role, the guard against deleting roles in use
func (r *roleRepository) CountActiveProjectUserRoles(ctx context.Context, roleID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM project_user_roles WHERE role_id = $1 AND is_active = true`

	err := r.db.GetContext(ctx, &count, query, roleID)
	if err != nil {
		return 0, fmt.Errorf("failed to count project user roles: %w", err)
	}

	return count, nil
}

// AssignProjectUserRole assigns a role to a user within a project
func (r *roleRepository) AssignProjectUserRole(ctx context.Context, assignment *models.ProjectUserRole) error {
	query := `
		INSERT INTO project_user_roles (project_id, user_id, role_id, assigned_by, is_active)
		VALUES ($1, $2, $3, $4, true)
		ON CONFLICT (project_id, user_id, role_id) DO UPDATE SET
		    assigned_by = EXCLUDED.assigned_by,
		    is_active = true
		RETURNING id, assigned_at`

	err := r.db.QueryRowContext(ctx, query,
		assignment.ProjectID, assignment.UserID, assignment.RoleID, assignment.AssignedBy).
		Scan(&assignment.ID, &assignment.AssignedAt)
	if err != nil {
		return fmt.Errorf("failed to assign project user role: %w", err)
	}

	return nil
}

// RemoveProjectUserRole deactivates a project-user role assignment
func (r *roleRepository) RemoveProjectUserRole(ctx context.Context, projectID, userID string, roleID int) error {
	query := `UPDATE project_user_roles SET is_active = false WHERE project_id = $1 AND user_id = $2 AND role_id = $3`

	result, err := r.db.ExecContext(ctx, query, projectID, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to remove project user role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: role not assigned to user", apperrors.ErrNotFound)
	}

	return nil
}
