package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"support-service/internal/apperrors"
	"support-service/internal/models"
	"support-service/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRoleTest(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *RoleService) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := repository.NewRoleRepository(sqlxDB)

	return db, mock, NewRoleService(repo)
}

func roleRow(id int, name string, roleType models.RoleType) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "role_type", "is_active", "created_at"}).
		AddRow(id, name, string(roleType), true, time.Now())
}

func TestCreateRole_RejectsBothPayloadShapes(t *testing.T) {
	db, _, svc := setupRoleTest(t)
	defer db.Close()

	_, err := svc.CreateRole(context.Background(), models.RoleRequest{
		Name:          "support_agent",
		RoleType:      models.RoleTypeInternal,
		SubRoles:      []models.SubRoleAssignment{{Name: "tier1"}},
		PermissionIDs: []int{1, 2},
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestCreateRole_RejectsUnknownRoleType(t *testing.T) {
	db, _, svc := setupRoleTest(t)
	defer db.Close()

	_, err := svc.CreateRole(context.Background(), models.RoleRequest{
		Name:     "support_agent",
		RoleType: "superuser",
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestCreateRole_DuplicateNameConflicts(t *testing.T) {
	db, mock, svc := setupRoleTest(t)
	defer db.Close()

	mock.ExpectQuery(`FROM roles WHERE name =`).
		WithArgs("support_agent").
		WillReturnRows(roleRow(4, "support_agent", models.RoleTypeInternal))

	_, err := svc.CreateRole(context.Background(), models.RoleRequest{
		Name:     "support_agent",
		RoleType: models.RoleTypeInternal,
	})

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRole_DirectPermissions(t *testing.T) {
	db, mock, svc := setupRoleTest(t)
	defer db.Close()

	mock.ExpectQuery(`FROM roles WHERE name =`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO roles`).
		WithArgs("support_agent", string(models.RoleTypeInternal), true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(4, time.Now()))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM permissions`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO role_permissions`).
		WithArgs(4, 10).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO role_permissions`).
		WithArgs(4, 11).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	// detail read after commit
	mock.ExpectQuery(`FROM roles WHERE id =`).
		WillReturnRows(roleRow(4, "support_agent", models.RoleTypeInternal))
	mock.ExpectQuery(`FROM sub_roles sr`).
		WillReturnRows(sqlmock.NewRows([]string{"link_id", "id", "name", "description", "is_active", "created_at"}))
	mock.ExpectQuery(`FROM permissions p`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action", "is_active", "created_at"}).
			AddRow(10, "issues", "read", true, time.Now()).
			AddRow(11, "issues", "update", true, time.Now()))

	detail, err := svc.CreateRole(context.Background(), models.RoleRequest{
		Name:          "support_agent",
		RoleType:      models.RoleTypeInternal,
		PermissionIDs: []int{10, 11},
	})

	require.NoError(t, err)
	assert.Equal(t, 4, detail.Role.ID)
	assert.Empty(t, detail.SubRoles)
	assert.Len(t, detail.Permissions, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRole_InvalidPermissionRollsBackStagedSubRoles(t *testing.T) {
	db, mock, svc := setupRoleTest(t)
	defer db.Close()

	mock.ExpectQuery(`FROM roles WHERE name =`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO roles`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(4, time.Now()))
	mock.ExpectQuery(`FROM sub_roles WHERE name =`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO sub_roles`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(9, time.Now()))
	mock.ExpectQuery(`INSERT INTO roles_sub_roles`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(77))

	// only one of the two ids is an active permission
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM permissions`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := svc.CreateRole(context.Background(), models.RoleRequest{
		Name:     "support_agent",
		RoleType: models.RoleTypeInternal,
		SubRoles: []models.SubRoleAssignment{
			{Name: "tier1", PermissionIDs: []int{10, 999}},
		},
	})

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRole_SubRolesReplaceDirectPermissions(t *testing.T) {
	db, mock, svc := setupRoleTest(t)
	defer db.Close()

	mock.ExpectQuery(`FROM roles WHERE id =`).
		WillReturnRows(roleRow(4, "support_agent", models.RoleTypeInternal))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE roles SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE roles_sub_roles SET is_active = false`).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`FROM sub_roles WHERE id =`).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "is_active", "created_at"}).
			AddRow(9, "tier1", "first line", true, time.Now()))
	mock.ExpectQuery(`INSERT INTO roles_sub_roles`).
		WithArgs(4, 9).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(78))
	mock.ExpectExec(`DELETE FROM role_permissions`).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	// detail read after commit
	mock.ExpectQuery(`FROM roles WHERE id =`).
		WillReturnRows(roleRow(4, "support_agent", models.RoleTypeInternal))
	mock.ExpectQuery(`FROM sub_roles sr`).
		WillReturnRows(sqlmock.NewRows([]string{"link_id", "id", "name", "description", "is_active", "created_at"}).
			AddRow(78, 9, "tier1", "first line", true, time.Now()))
	mock.ExpectQuery(`FROM permissions p`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action", "is_active", "created_at"}))

	subRoleID := 9
	detail, err := svc.UpdateRole(context.Background(), 4, models.RoleRequest{
		Name:     "support_agent",
		RoleType: models.RoleTypeInternal,
		SubRoles: []models.SubRoleAssignment{{SubRoleID: &subRoleID}},
	})

	require.NoError(t, err)
	require.Len(t, detail.SubRoles, 1)
	assert.Equal(t, "tier1", detail.SubRoles[0].SubRole.Name)
	assert.Empty(t, detail.Permissions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRole_RefusedWhileInUse(t *testing.T) {
	db, mock, svc := setupRoleTest(t)
	defer db.Close()

	mock.ExpectQuery(`FROM roles WHERE id =`).
		WillReturnRows(roleRow(4, "support_agent", models.RoleTypeInternal))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM project_user_roles`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	err := svc.DeleteRole(context.Background(), 4)

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRole_UnusedRoleDeletes(t *testing.T) {
	db, mock, svc := setupRoleTest(t)
	defer db.Close()

	mock.ExpectQuery(`FROM roles WHERE id =`).
		WillReturnRows(roleRow(4, "support_agent", models.RoleTypeInternal))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM project_user_roles`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM roles`).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.DeleteRole(context.Background(), 4)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignProjectRole_RecordsActor(t *testing.T) {
	db, mock, svc := setupRoleTest(t)
	defer db.Close()

	mock.ExpectQuery(`FROM roles WHERE id =`).
		WillReturnRows(roleRow(4, "support_agent", models.RoleTypeInternal))
	mock.ExpectQuery(`INSERT INTO project_user_roles`).
		WithArgs("project-1", "user-9", 4, "admin-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assigned_at"}).AddRow(12, time.Now()))

	assignment, err := svc.AssignProjectRole(context.Background(), models.AssignProjectRoleRequest{
		ProjectID: "project-1",
		UserID:    "user-9",
		RoleID:    4,
	}, "admin-1")

	require.NoError(t, err)
	assert.Equal(t, "admin-1", assignment.AssignedBy)
	assert.True(t, assignment.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}
