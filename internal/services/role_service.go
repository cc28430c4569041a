package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"support-service/internal/apperrors"
	"support-service/internal/models"
	"support-service/internal/repository"

	"github.com/jmoiron/sqlx"
)

// RoleService manages a role's authorization surface. A role is granted
// permissions either through sub-role links or through direct permission
// links, never both at once. Updates replace the whole surface, the caller
// resends the full desired set.
type RoleService struct {
	roleRepo repository.RoleRepository
}

// NewRoleService creates a new role service
func NewRoleService(roleRepo repository.RoleRepository) *RoleService {
	return &RoleService{roleRepo: roleRepo}
}

// CreateRole creates a role together with its authorization surface in one
// transaction
func (s *RoleService) CreateRole(ctx context.Context, req models.RoleRequest) (*models.RoleDetail, error) {
	if !req.RoleType.Valid() {
		return nil, fmt.Errorf("%w: invalid role_type '%s'", apperrors.ErrInvalidState, req.RoleType)
	}

	auth, err := req.Authorization()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidState, err.Error())
	}

	if _, err := s.roleRepo.GetRoleByName(ctx, req.Name); err == nil {
		return nil, fmt.Errorf("%w: role '%s' already exists", apperrors.ErrConflict, req.Name)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	tx, err := s.roleRepo.BeginTransaction()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	role := &models.Role{
		Name:     req.Name,
		RoleType: req.RoleType,
		IsActive: true,
	}
	if err := s.roleRepo.CreateRoleTx(tx, role); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := s.applyAuthorization(tx, role.ID, auth, false); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}

	slog.Info("role created", "role_id", role.ID, "name", role.Name)
	return s.GetRoleDetail(ctx, role.ID)
}

// UpdateRole updates a role and replaces its authorization surface
func (s *RoleService) UpdateRole(ctx context.Context, id int, req models.RoleRequest) (*models.RoleDetail, error) {
	if !req.RoleType.Valid() {
		return nil, fmt.Errorf("%w: invalid role_type '%s'", apperrors.ErrInvalidState, req.RoleType)
	}

	auth, err := req.Authorization()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidState, err.Error())
	}

	role, err := s.roleRepo.GetRoleByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != role.Name {
		if existing, err := s.roleRepo.GetRoleByName(ctx, req.Name); err == nil && existing.ID != role.ID {
			return nil, fmt.Errorf("%w: role '%s' already exists", apperrors.ErrConflict, req.Name)
		} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}

	tx, err := s.roleRepo.BeginTransaction()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	role.Name = req.Name
	role.RoleType = req.RoleType
	if err := s.roleRepo.UpdateRoleTx(tx, role); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := s.applyAuthorization(tx, role.ID, auth, true); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}

	slog.Info("role updated", "role_id", role.ID, "name", role.Name)
	return s.GetRoleDetail(ctx, role.ID)
}

// applyAuthorization writes the role's authorization surface inside the
// caller's transaction. Sub-role payloads replace any direct permissions and
// vice versa, keeping the two shapes mutually exclusive.
func (s *RoleService) applyAuthorization(tx *sqlx.Tx, roleID int, auth *models.RoleAuthorization, isUpdate bool) error {
	switch auth.Kind {
	case models.AuthorizationSubRoleDelegated:
		if isUpdate {
			if err := s.roleRepo.DeactivateRoleSubRolesTx(tx, roleID); err != nil {
				return err
			}
		}

		for _, assignment := range auth.SubRoles {
			subRole, err := s.resolveSubRole(tx, assignment)
			if err != nil {
				return err
			}

			linkID, err := s.roleRepo.CreateRoleSubRoleTx(tx, roleID, subRole.ID)
			if err != nil {
				return err
			}

			if len(assignment.PermissionIDs) > 0 {
				if err := s.validatePermissions(tx, assignment.PermissionIDs); err != nil {
					return err
				}
				if err := s.roleRepo.BulkInsertSubRolePermissionsTx(tx, linkID, assignment.PermissionIDs); err != nil {
					return err
				}
			}
		}

		if err := s.roleRepo.RemoveDirectPermissionsTx(tx, roleID); err != nil {
			return err
		}

	case models.AuthorizationDirect:
		if isUpdate {
			if err := s.roleRepo.DeactivateDirectPermissionsTx(tx, roleID); err != nil {
				return err
			}
			if err := s.roleRepo.DeactivateRoleSubRolesTx(tx, roleID); err != nil {
				return err
			}
		}

		if len(auth.PermissionIDs) > 0 {
			if err := s.validatePermissions(tx, auth.PermissionIDs); err != nil {
				return err
			}
			if err := s.roleRepo.BulkInsertRolePermissionsTx(tx, roleID, auth.PermissionIDs); err != nil {
				return err
			}
		}
	}

	return nil
}

// resolveSubRole looks the sub-role up by id or name, creating it when the
// payload names one that does not exist yet
func (s *RoleService) resolveSubRole(tx *sqlx.Tx, assignment models.SubRoleAssignment) (*models.SubRole, error) {
	if assignment.SubRoleID != nil {
		return s.roleRepo.GetSubRoleByIDTx(tx, *assignment.SubRoleID)
	}

	if assignment.Name == "" {
		return nil, fmt.Errorf("%w: sub_role entry needs sub_role_id or name", apperrors.ErrValidation)
	}

	subRole, err := s.roleRepo.GetSubRoleByNameTx(tx, assignment.Name)
	if err == nil {
		return subRole, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	subRole = &models.SubRole{
		Name:        assignment.Name,
		Description: assignment.Description,
		IsActive:    true,
	}
	if err := s.roleRepo.CreateSubRoleTx(tx, subRole); err != nil {
		return nil, err
	}
	return subRole, nil
}

// validatePermissions checks every id resolves to an active permission,
// reading inside the mutating transaction so validation sees the same
// snapshot the writes will
func (s *RoleService) validatePermissions(tx *sqlx.Tx, ids []int) error {
	count, err := s.roleRepo.CountActivePermissionsTx(tx, ids)
	if err != nil {
		return err
	}
	if count != len(ids) {
		return fmt.Errorf("%w: one or more permission ids are invalid or inactive", apperrors.ErrValidation)
	}
	return nil
}

// GetRoleDetail returns a role with its full authorization surface
func (s *RoleService) GetRoleDetail(ctx context.Context, id int) (*models.RoleDetail, error) {
	role, err := s.roleRepo.GetRoleByID(ctx, id)
	if err != nil {
		return nil, err
	}

	subRoles, err := s.roleRepo.GetRoleSubRoleDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.RoleDetail{Role: *role, SubRoles: subRoles}

	if len(subRoles) == 0 {
		permissions, err := s.roleRepo.GetDirectPermissions(ctx, id)
		if err != nil {
			return nil, err
		}
		detail.Permissions = permissions
	}

	return detail, nil
}

// ListRoles returns roles, optionally filtered by active flag
func (s *RoleService) ListRoles(ctx context.Context, active *bool) ([]*models.Role, error) {
	return s.roleRepo.GetRoles(ctx, active)
}

// ListPermissions returns the permission catalog, optionally filtered by
// resource
func (s *RoleService) ListPermissions(ctx context.Context, resource string) ([]models.Permission, error) {
	return s.roleRepo.GetPermissions(ctx, resource)
}

// DeleteRole removes a role. Refused while any active project-user
// assignment still references it.
func (s *RoleService) DeleteRole(ctx context.Context, id int) error {
	if _, err := s.roleRepo.GetRoleByID(ctx, id); err != nil {
		return err
	}

	inUse, err := s.roleRepo.CountActiveProjectUserRoles(ctx, id)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return fmt.Errorf("%w: role %d is assigned to %d active project users", apperrors.ErrConflict, id, inUse)
	}

	if err := s.roleRepo.DeleteRole(ctx, id); err != nil {
		return err
	}

	slog.Info("role deleted", "role_id", id)
	return nil
}

// AssignProjectRole grants a role to a user within a project
func (s *RoleService) AssignProjectRole(ctx context.Context, req models.AssignProjectRoleRequest, assignedBy string) (*models.ProjectUserRole, error) {
	role, err := s.roleRepo.GetRoleByID(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}
	if !role.IsActive {
		return nil, fmt.Errorf("%w: role %d is deactivated", apperrors.ErrValidation, role.ID)
	}

	assignment := &models.ProjectUserRole{
		ProjectID:  req.ProjectID,
		UserID:     req.UserID,
		RoleID:     req.RoleID,
		AssignedBy: assignedBy,
		IsActive:   true,
	}
	if err := s.roleRepo.AssignProjectUserRole(ctx, assignment); err != nil {
		return nil, err
	}

	slog.Info("project role assigned", "project_id", req.ProjectID, "user_id", req.UserID, "role_id", req.RoleID, "assigned_by", assignedBy)
	return assignment, nil
}

// RemoveProjectRole revokes a user's role within a project
func (s *RoleService) RemoveProjectRole(ctx context.Context, projectID, userID string, roleID int) error {
	return s.roleRepo.RemoveProjectUserRole(ctx, projectID, userID, roleID)
}
