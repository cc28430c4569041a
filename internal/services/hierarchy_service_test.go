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
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hierarchyNodeTestColumns = []string{
	"id", "project_id", "parent_id", "name", "description",
	"level", "is_active", "created_at", "updated_at",
}

func setupHierarchyTest(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *HierarchyService) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := repository.NewHierarchyNodeRepository(sqlxDB)

	return db, mock, NewHierarchyService(repo)
}

func hierarchyNodeRow(id, projectID uuid.UUID, parentID *uuid.UUID, name string, level int) *sqlmock.Rows {
	var parent interface{}
	if parentID != nil {
		parent = parentID.String()
	}
	now := time.Now()
	return sqlmock.NewRows(hierarchyNodeTestColumns).
		AddRow(id.String(), projectID.String(), parent, name, nil, level, true, now, now)
}

func TestCreateNode_RootGetsLevelOne(t *testing.T) {
	db, mock, svc := setupHierarchyTest(t)
	defer db.Close()

	projectID := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(projectID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE project_id =`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO hierarchy_nodes`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(uuid.New().String(), time.Now(), time.Now()))
	mock.ExpectCommit()

	node, err := svc.CreateNode(context.Background(), models.CreateNodeRequest{
		ProjectID: &projectID,
		Name:      "Head Office",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, node.Level)
	assert.Nil(t, node.ParentID)
	assert.True(t, node.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateNode_ChildLevelDerivedFromParent(t *testing.T) {
	db, mock, svc := setupHierarchyTest(t)
	defer db.Close()

	projectID := uuid.New()
	parentID := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE id =`).
		WithArgs(parentID.String()).
		WillReturnRows(hierarchyNodeRow(parentID, projectID, nil, "Branch", 2))
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE project_id =`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO hierarchy_nodes`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(uuid.New().String(), time.Now(), time.Now()))
	mock.ExpectCommit()

	node, err := svc.CreateNode(context.Background(), models.CreateNodeRequest{
		ProjectID: &projectID,
		ParentID:  &parentID,
		Name:      "Service Desk",
	})

	require.NoError(t, err)
	assert.Equal(t, 3, node.Level)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateNode_DuplicateNameConflicts(t *testing.T) {
	db, mock, svc := setupHierarchyTest(t)
	defer db.Close()

	projectID := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE project_id =`).
		WillReturnRows(hierarchyNodeRow(uuid.New(), projectID, nil, "Head Office", 1))
	mock.ExpectRollback()

	_, err := svc.CreateNode(context.Background(), models.CreateNodeRequest{
		ProjectID: &projectID,
		Name:      "Head Office",
	})

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateNode_ParentInDifferentProject(t *testing.T) {
	db, mock, svc := setupHierarchyTest(t)
	defer db.Close()

	projectID := uuid.New()
	otherProjectID := uuid.New()
	parentID := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE id =`).
		WillReturnRows(hierarchyNodeRow(parentID, otherProjectID, nil, "Foreign", 1))
	mock.ExpectRollback()

	_, err := svc.CreateNode(context.Background(), models.CreateNodeRequest{
		ProjectID: &projectID,
		ParentID:  &parentID,
		Name:      "Service Desk",
	})

	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCreateNode_MissingProject(t *testing.T) {
	db, mock, svc := setupHierarchyTest(t)
	defer db.Close()

	projectID := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := svc.CreateNode(context.Background(), models.CreateNodeRequest{
		ProjectID: &projectID,
		Name:      "Head Office",
	})

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateNode_ReparentRecomputesSubtreeLevels(t *testing.T) {
	db, mock, svc := setupHierarchyTest(t)
	defer db.Close()

	projectID := uuid.New()
	nodeID := uuid.New()
	oldParentID := uuid.New()
	newParentID := uuid.New()
	childID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE id =`).
		WithArgs(nodeID.String()).
		WillReturnRows(hierarchyNodeRow(nodeID, projectID, &oldParentID, "Desk", 2))
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE id =`).
		WithArgs(newParentID.String()).
		WillReturnRows(hierarchyNodeRow(newParentID, projectID, nil, "Deep Branch", 3))
	mock.ExpectExec(`UPDATE hierarchy_nodes`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// cascade: node moved to level 4, its child must follow to level 5
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE parent_id =`).
		WithArgs(nodeID.String()).
		WillReturnRows(hierarchyNodeRow(childID, projectID, &nodeID, "Sub Desk", 3))
	mock.ExpectExec(`UPDATE hierarchy_nodes SET level =`).
		WithArgs(childID.String(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE parent_id =`).
		WithArgs(childID.String()).
		WillReturnRows(sqlmock.NewRows(hierarchyNodeTestColumns))
	mock.ExpectCommit()

	node, err := svc.UpdateNode(context.Background(), nodeID, models.UpdateNodeRequest{
		ParentID: &newParentID,
	})

	require.NoError(t, err)
	assert.Equal(t, 4, node.Level)
	assert.Equal(t, newParentID, *node.ParentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNode_SelfParentRejected(t *testing.T) {
	db, mock, svc := setupHierarchyTest(t)
	defer db.Close()

	projectID := uuid.New()
	nodeID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE id =`).
		WillReturnRows(hierarchyNodeRow(nodeID, projectID, nil, "Root", 1))
	mock.ExpectRollback()

	_, err := svc.UpdateNode(context.Background(), nodeID, models.UpdateNodeRequest{
		ParentID: &nodeID,
	})

	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDeactivateNode_RefusedWithOpenIssues(t *testing.T) {
	db, mock, svc := setupHierarchyTest(t)
	defer db.Close()

	nodeID := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM issues`).
		WithArgs(nodeID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	err := svc.DeactivateNode(context.Background(), nodeID)

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTree_BuildsForestFromFlatRows(t *testing.T) {
	db, mock, svc := setupHierarchyTest(t)
	defer db.Close()

	projectID := uuid.New()
	rootID := uuid.New()
	childID := uuid.New()

	now := time.Now()
	rows := sqlmock.NewRows(hierarchyNodeTestColumns).
		AddRow(rootID.String(), projectID.String(), nil, "Head Office", nil, 1, true, now, now).
		AddRow(childID.String(), projectID.String(), rootID.String(), "Branch", nil, 2, true, now, now)

	mock.ExpectQuery(`FROM hierarchy_nodes`).
		WithArgs(projectID.String()).
		WillReturnRows(rows)

	tree, err := svc.GetTree(context.Background(), projectID)

	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, rootID, tree[0].ID)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, childID, tree[0].Children[0].ID)
}
