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

var issueTestColumns = []string{
	"id", "hierarchy_node_id", "title", "description", "priority_id", "category_id",
	"assigned_to", "reported_by", "status", "action_taken", "resolved_at", "created_at", "updated_at",
}

func setupIssueTest(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *IssueService) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	issueRepo := repository.NewIssueRepository(sqlxDB)
	nodeRepo := repository.NewHierarchyNodeRepository(sqlxDB)
	visSvc := NewVisibilityService(nodeRepo)

	return db, mock, NewIssueService(issueRepo, nodeRepo, visSvc, nil)
}

func issueRow(id, nodeID uuid.UUID, assignedTo *string, status models.IssueStatus) *sqlmock.Rows {
	var assigned interface{}
	if assignedTo != nil {
		assigned = *assignedTo
	}
	now := time.Now()
	return sqlmock.NewRows(issueTestColumns).
		AddRow(id.String(), nodeID.String(), "printer down", nil, nil, nil,
			assigned, "reporter-1", string(status), nil, nil, now, now)
}

func expectLockIssue(mock sqlmock.Sqlmock, issueID uuid.UUID, rows *sqlmock.Rows) {
	mock.ExpectQuery(`FROM issues WHERE id = (.+) FOR UPDATE`).
		WithArgs(issueID.String()).
		WillReturnRows(rows)
}

func TestAcceptIssue_WritesAuditWithoutStatusChange(t *testing.T) {
	db, mock, svc := setupIssueTest(t)
	defer db.Close()

	issueID := uuid.New()
	nodeID := uuid.New()

	mock.ExpectBegin()
	expectLockIssue(mock, issueID, issueRow(issueID, nodeID, nil, models.IssuePending))
	mock.ExpectQuery(`INSERT INTO issue_actions`).
		WithArgs(issueID.String(), string(models.ActionAccepted), sqlmock.AnyArg(), "handler-7", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(uuid.New().String(), time.Now()))
	mock.ExpectQuery(`INSERT INTO issue_status_history`).
		WithArgs(issueID.String(), string(models.IssuePending), string(models.IssuePending), "handler-7", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(uuid.New().String(), time.Now()))
	mock.ExpectCommit()

	issue, err := svc.AcceptIssue(context.Background(), issueID, "handler-7")

	require.NoError(t, err)
	assert.Equal(t, models.IssuePending, issue.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptIssue_ResolvedIsTerminal(t *testing.T) {
	db, mock, svc := setupIssueTest(t)
	defer db.Close()

	issueID := uuid.New()

	mock.ExpectBegin()
	expectLockIssue(mock, issueID, issueRow(issueID, uuid.New(), nil, models.IssueResolved))
	mock.ExpectRollback()

	_, err := svc.AcceptIssue(context.Background(), issueID, "handler-7")

	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveIssue_SetsResolutionFields(t *testing.T) {
	db, mock, svc := setupIssueTest(t)
	defer db.Close()

	issueID := uuid.New()
	nodeID := uuid.New()

	mock.ExpectBegin()
	expectLockIssue(mock, issueID, issueRow(issueID, nodeID, nil, models.IssueInProgress))
	mock.ExpectExec(`UPDATE issues`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO issue_actions`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(uuid.New().String(), time.Now()))
	mock.ExpectQuery(`INSERT INTO issue_status_history`).
		WithArgs(issueID.String(), string(models.IssueInProgress), string(models.IssueResolved),
			"handler-7", "replaced toner cartridge").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(uuid.New().String(), time.Now()))
	mock.ExpectCommit()

	issue, err := svc.ResolveIssue(context.Background(), issueID,
		models.ResolveIssueRequest{ResolutionNote: "replaced toner cartridge"}, "handler-7")

	require.NoError(t, err)
	assert.Equal(t, models.IssueResolved, issue.Status)
	require.NotNil(t, issue.ResolvedAt)
	require.NotNil(t, issue.ActionTaken)
	assert.Equal(t, "replaced toner cartridge", *issue.ActionTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveIssue_TwiceFails(t *testing.T) {
	db, mock, svc := setupIssueTest(t)
	defer db.Close()

	issueID := uuid.New()

	mock.ExpectBegin()
	expectLockIssue(mock, issueID, issueRow(issueID, uuid.New(), nil, models.IssueResolved))
	mock.ExpectRollback()

	_, err := svc.ResolveIssue(context.Background(), issueID,
		models.ResolveIssueRequest{ResolutionNote: "again"}, "handler-7")

	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalateIssue_MovesToParentTier(t *testing.T) {
	db, mock, svc := setupIssueTest(t)
	defer db.Close()

	issueID := uuid.New()
	projectID := uuid.New()
	midID := uuid.New()
	leafID := uuid.New()
	assigned := "handler-7"

	mock.ExpectBegin()
	expectLockIssue(mock, issueID, issueRow(issueID, leafID, &assigned, models.IssuePending))
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE id =`).
		WithArgs(leafID.String()).
		WillReturnRows(hierarchyNodeRow(leafID, projectID, &midID, "Leaf", 3))
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE id =`).
		WithArgs(midID.String()).
		WillReturnRows(hierarchyNodeRow(midID, projectID, nil, "Mid", 2))
	mock.ExpectExec(`UPDATE issues`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO issue_actions`).
		WithArgs(issueID.String(), string(models.ActionEscalated), "needs expert",
			"handler-7", "from Leaf to Mid").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(uuid.New().String(), time.Now()))
	mock.ExpectQuery(`INSERT INTO issue_status_history`).
		WithArgs(issueID.String(), string(models.IssuePending), string(models.IssuePending),
			"handler-7", "needs expert").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(uuid.New().String(), time.Now()))
	mock.ExpectQuery(`INSERT INTO issue_escalations`).
		WithArgs(issueID.String(), "Leaf", "Mid", "needs expert", "handler-7").
		WillReturnRows(sqlmock.NewRows([]string{"id", "escalated_at"}).
			AddRow(uuid.New().String(), time.Now()))
	mock.ExpectCommit()

	issue, err := svc.EscalateIssue(context.Background(), issueID,
		models.EscalateIssueRequest{Reason: "needs expert"}, "handler-7")

	require.NoError(t, err)
	assert.Equal(t, midID, issue.HierarchyNodeID)
	assert.Nil(t, issue.AssignedTo)
	assert.Equal(t, models.IssuePending, issue.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalateIssue_RootTierFails(t *testing.T) {
	db, mock, svc := setupIssueTest(t)
	defer db.Close()

	issueID := uuid.New()
	rootID := uuid.New()

	mock.ExpectBegin()
	expectLockIssue(mock, issueID, issueRow(issueID, rootID, nil, models.IssuePending))
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE id =`).
		WillReturnRows(hierarchyNodeRow(rootID, uuid.New(), nil, "Root", 1))
	mock.ExpectRollback()

	_, err := svc.EscalateIssue(context.Background(), issueID,
		models.EscalateIssueRequest{Reason: "push up"}, "handler-7")

	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Contains(t, err.Error(), "already at highest hierarchy")

	// rollback before any write, no audit rows leak out of the failed call
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalateIssue_AuditFailureRollsBack(t *testing.T) {
	db, mock, svc := setupIssueTest(t)
	defer db.Close()

	issueID := uuid.New()
	projectID := uuid.New()
	midID := uuid.New()
	leafID := uuid.New()

	mock.ExpectBegin()
	expectLockIssue(mock, issueID, issueRow(issueID, leafID, nil, models.IssuePending))
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE id =`).
		WillReturnRows(hierarchyNodeRow(leafID, projectID, &midID, "Leaf", 3))
	mock.ExpectQuery(`FROM hierarchy_nodes WHERE id =`).
		WillReturnRows(hierarchyNodeRow(midID, projectID, nil, "Mid", 2))
	mock.ExpectExec(`UPDATE issues`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO issue_actions`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := svc.EscalateIssue(context.Background(), issueID,
		models.EscalateIssueRequest{Reason: "needs expert"}, "handler-7")

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIssue_StartsPendingWithTrail(t *testing.T) {
	db, mock, svc := setupIssueTest(t)
	defer db.Close()

	nodeID := uuid.New()
	projectID := uuid.New()
	issueID := uuid.New()

	mock.ExpectQuery(`FROM hierarchy_nodes WHERE id =`).
		WithArgs(nodeID.String()).
		WillReturnRows(hierarchyNodeRow(nodeID, projectID, nil, "Service Desk", 1))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO issues`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(issueID.String(), time.Now(), time.Now()))
	mock.ExpectQuery(`INSERT INTO issue_actions`).
		WithArgs(issueID.String(), string(models.ActionReported), sqlmock.AnyArg(), "reporter-1", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(uuid.New().String(), time.Now()))
	mock.ExpectQuery(`INSERT INTO issue_status_history`).
		WithArgs(issueID.String(), string(models.IssuePending), string(models.IssuePending), "reporter-1", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(uuid.New().String(), time.Now()))
	mock.ExpectCommit()

	issue, err := svc.CreateIssue(context.Background(), models.CreateIssueRequest{
		HierarchyNodeID: nodeID,
		Title:           "printer down",
	}, "reporter-1")

	require.NoError(t, err)
	assert.Equal(t, models.IssuePending, issue.Status)
	assert.Equal(t, issueID, issue.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListIssues_ScopedByVisibilityClosure(t *testing.T) {
	db, mock, svc := setupIssueTest(t)
	defer db.Close()

	actorNodeID := uuid.New()
	childNodeID := uuid.New()
	issueID := uuid.New()

	mock.ExpectQuery(`SELECT hierarchy_node_id FROM users`).
		WithArgs("handler-7").
		WillReturnRows(sqlmock.NewRows([]string{"hierarchy_node_id"}).AddRow(actorNodeID.String()))
	expectChildren(mock, actorNodeID, childNodeID)
	expectChildren(mock, childNodeID)
	mock.ExpectQuery(`FROM issues WHERE 1=1 AND hierarchy_node_id = ANY`).
		WillReturnRows(issueRow(issueID, childNodeID, nil, models.IssuePending))

	issues, err := svc.ListIssues(context.Background(), models.IssueFilter{}, "handler-7")

	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, issueID, issues[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListIssues_ReportedByBypassesVisibility(t *testing.T) {
	db, mock, svc := setupIssueTest(t)
	defer db.Close()

	reporter := "reporter-1"
	issueID := uuid.New()

	mock.ExpectQuery(`FROM issues WHERE 1=1 AND reported_by =`).
		WithArgs(reporter).
		WillReturnRows(issueRow(issueID, uuid.New(), nil, models.IssueResolved))

	issues, err := svc.ListIssues(context.Background(),
		models.IssueFilter{ReportedBy: &reporter}, "someone-else")

	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
