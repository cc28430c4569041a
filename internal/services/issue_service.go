package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"support-service/internal/apperrors"
	"support-service/internal/event"
	"support-service/internal/models"
	"support-service/internal/repository"

	"github.com/google/uuid"
)

// IssueService drives the issue lifecycle: reported issues move through
// pending, in_progress, escalated and resolved. Every lifecycle operation
// runs in a single transaction that locks the issue row and writes its audit
// rows, so concurrent callers serialize and the trail never drifts from the
// issue state.
type IssueService struct {
	issueRepo *repository.IssueRepository
	nodeRepo  repository.HierarchyNodeRepository
	visSvc    *VisibilityService
	publisher *event.IssueEventPublisher
}

// NewIssueService creates a new issue service. publisher may be nil when
// RabbitMQ is not configured.
func NewIssueService(issueRepo *repository.IssueRepository, nodeRepo repository.HierarchyNodeRepository, visSvc *VisibilityService, publisher *event.IssueEventPublisher) *IssueService {
	return &IssueService{
		issueRepo: issueRepo,
		nodeRepo:  nodeRepo,
		visSvc:    visSvc,
		publisher: publisher,
	}
}

// CreateIssue reports a new issue at a hierarchy node. The issue starts as
// pending with a "reported" action in its trail.
func (s *IssueService) CreateIssue(ctx context.Context, req models.CreateIssueRequest, reportedBy string) (*models.Issue, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}

	node, err := s.nodeRepo.GetByID(ctx, req.HierarchyNodeID)
	if err != nil {
		return nil, err
	}
	if !node.IsActive {
		return nil, fmt.Errorf("%w: hierarchy node %s is deactivated", apperrors.ErrValidation, node.ID)
	}

	tx, err := s.issueRepo.BeginTransaction()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	issue := &models.Issue{
		HierarchyNodeID: req.HierarchyNodeID,
		Title:           req.Title,
		Description:     req.Description,
		PriorityID:      req.PriorityID,
		CategoryID:      req.CategoryID,
		ReportedBy:      reportedBy,
		Status:          models.IssuePending,
	}

	if err := s.issueRepo.CreateTx(tx, issue); err != nil {
		tx.Rollback()
		return nil, err
	}

	action := &models.IssueAction{
		IssueID:           issue.ID,
		ActionName:        models.ActionReported,
		ActionDescription: fmt.Sprintf("Issue reported at %s", node.Name),
		PerformedBy:       reportedBy,
	}
	if err := s.issueRepo.CreateActionTx(tx, action); err != nil {
		tx.Rollback()
		return nil, err
	}

	history := &models.IssueStatusHistory{
		IssueID:    issue.ID,
		FromStatus: models.IssuePending,
		ToStatus:   models.IssuePending,
		ChangedBy:  reportedBy,
	}
	if err := s.issueRepo.CreateHistoryTx(tx, history); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}

	slog.Info("issue created", "issue_id", issue.ID, "node_id", issue.HierarchyNodeID, "reported_by", reportedBy)

	s.publish(ctx, event.IssueEvent{
		EventType: event.EventIssueReported,
		IssueID:   issue.ID.String(),
		Actor:     reportedBy,
		ToTier:    node.Name,
		Timestamp: time.Now().Unix(),
	})

	return issue, nil
}

// AcceptIssue records that the actor is now working on the issue. The issue
// row is locked but not mutated, acceptance lives entirely in the audit
// trail as an "accepted" action plus a no-op history row.
func (s *IssueService) AcceptIssue(ctx context.Context, issueID uuid.UUID, actor string) (*models.Issue, error) {
	tx, err := s.issueRepo.BeginTransaction()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	issue, err := s.issueRepo.GetByIDForUpdateTx(tx, issueID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if issue.Status == models.IssueResolved {
		tx.Rollback()
		return nil, fmt.Errorf("%w: issue %s is already resolved", apperrors.ErrInvalidState, issueID)
	}

	action := &models.IssueAction{
		IssueID:           issue.ID,
		ActionName:        models.ActionAccepted,
		ActionDescription: fmt.Sprintf("Issue accepted by %s", actor),
		PerformedBy:       actor,
	}
	if err := s.issueRepo.CreateActionTx(tx, action); err != nil {
		tx.Rollback()
		return nil, err
	}

	history := &models.IssueStatusHistory{
		IssueID:    issue.ID,
		FromStatus: issue.Status,
		ToStatus:   issue.Status,
		ChangedBy:  actor,
	}
	if err := s.issueRepo.CreateHistoryTx(tx, history); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}

	slog.Info("issue accepted", "issue_id", issue.ID, "actor", actor)
	return issue, nil
}

// AssignIssue hands an issue to a specific handler
func (s *IssueService) AssignIssue(ctx context.Context, issueID uuid.UUID, req models.AssignIssueRequest, actor string) (*models.Issue, error) {
	tx, err := s.issueRepo.BeginTransaction()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	issue, err := s.issueRepo.GetByIDForUpdateTx(tx, issueID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if issue.Status == models.IssueResolved {
		tx.Rollback()
		return nil, fmt.Errorf("%w: issue %s is already resolved", apperrors.ErrInvalidState, issueID)
	}

	issue.AssignedTo = &req.AssignedTo

	if err := s.issueRepo.UpdateTx(tx, issue); err != nil {
		tx.Rollback()
		return nil, err
	}

	action := &models.IssueAction{
		IssueID:           issue.ID,
		ActionName:        models.ActionAssigned,
		ActionDescription: fmt.Sprintf("Issue assigned to %s", req.AssignedTo),
		PerformedBy:       actor,
	}
	if err := s.issueRepo.CreateActionTx(tx, action); err != nil {
		tx.Rollback()
		return nil, err
	}

	history := &models.IssueStatusHistory{
		IssueID:    issue.ID,
		FromStatus: issue.Status,
		ToStatus:   issue.Status,
		ChangedBy:  actor,
	}
	if err := s.issueRepo.CreateHistoryTx(tx, history); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}

	slog.Info("issue assigned", "issue_id", issue.ID, "assigned_to", req.AssignedTo, "actor", actor)
	return issue, nil
}

// ResolveIssue closes an issue with a resolution note. Resolved is terminal,
// resolving twice fails.
func (s *IssueService) ResolveIssue(ctx context.Context, issueID uuid.UUID, req models.ResolveIssueRequest, actor string) (*models.Issue, error) {
	if req.ResolutionNote == "" {
		return nil, fmt.Errorf("%w: resolution_note is required", apperrors.ErrValidation)
	}

	tx, err := s.issueRepo.BeginTransaction()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	issue, err := s.issueRepo.GetByIDForUpdateTx(tx, issueID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if issue.Status == models.IssueResolved {
		tx.Rollback()
		return nil, fmt.Errorf("%w: issue %s is already resolved", apperrors.ErrInvalidState, issueID)
	}

	now := time.Now()
	prevStatus := issue.Status
	issue.Status = models.IssueResolved
	issue.ActionTaken = &req.ResolutionNote
	issue.ResolvedAt = &now

	if err := s.issueRepo.UpdateTx(tx, issue); err != nil {
		tx.Rollback()
		return nil, err
	}

	action := &models.IssueAction{
		IssueID:           issue.ID,
		ActionName:        models.ActionResolved,
		ActionDescription: req.ResolutionNote,
		PerformedBy:       actor,
	}
	if err := s.issueRepo.CreateActionTx(tx, action); err != nil {
		tx.Rollback()
		return nil, err
	}

	history := &models.IssueStatusHistory{
		IssueID:    issue.ID,
		FromStatus: prevStatus,
		ToStatus:   models.IssueResolved,
		ChangedBy:  actor,
		Reason:     &req.ResolutionNote,
	}
	if err := s.issueRepo.CreateHistoryTx(tx, history); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}

	slog.Info("issue resolved", "issue_id", issue.ID, "actor", actor)

	s.publish(ctx, event.IssueEvent{
		EventType: event.EventIssueResolved,
		IssueID:   issue.ID.String(),
		Actor:     actor,
		Reason:    req.ResolutionNote,
		Timestamp: time.Now().Unix(),
	})

	return issue, nil
}

// EscalateIssue moves an issue one step up the hierarchy, to the parent of
// its current node. The current assignment is cleared so the receiving tier
// picks it up fresh. Escalating from a root node fails.
func (s *IssueService) EscalateIssue(ctx context.Context, issueID uuid.UUID, req models.EscalateIssueRequest, actor string) (*models.Issue, error) {
	if req.Reason == "" {
		return nil, fmt.Errorf("%w: reason is required", apperrors.ErrValidation)
	}

	tx, err := s.issueRepo.BeginTransaction()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	issue, err := s.issueRepo.GetByIDForUpdateTx(tx, issueID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if issue.Status == models.IssueResolved {
		tx.Rollback()
		return nil, fmt.Errorf("%w: issue %s is already resolved", apperrors.ErrInvalidState, issueID)
	}

	fromNode, err := s.nodeRepo.GetByIDTx(tx, issue.HierarchyNodeID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if fromNode.ParentID == nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: issue %s is already at highest hierarchy", apperrors.ErrInvalidState, issueID)
	}

	toNode, err := s.nodeRepo.GetByIDTx(tx, *fromNode.ParentID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	issue.HierarchyNodeID = toNode.ID
	issue.AssignedTo = nil

	if err := s.issueRepo.UpdateTx(tx, issue); err != nil {
		tx.Rollback()
		return nil, err
	}

	relatedTier := fmt.Sprintf("from %s to %s", fromNode.Name, toNode.Name)
	action := &models.IssueAction{
		IssueID:           issue.ID,
		ActionName:        models.ActionEscalated,
		ActionDescription: req.Reason,
		PerformedBy:       actor,
		RelatedTier:       &relatedTier,
	}
	if err := s.issueRepo.CreateActionTx(tx, action); err != nil {
		tx.Rollback()
		return nil, err
	}

	history := &models.IssueStatusHistory{
		IssueID:    issue.ID,
		FromStatus: issue.Status,
		ToStatus:   issue.Status,
		ChangedBy:  actor,
		Reason:     &req.Reason,
	}
	if err := s.issueRepo.CreateHistoryTx(tx, history); err != nil {
		tx.Rollback()
		return nil, err
	}

	escalation := &models.IssueEscalation{
		IssueID:     issue.ID,
		FromTier:    fromNode.Name,
		ToTier:      toNode.Name,
		Reason:      req.Reason,
		EscalatedBy: actor,
	}
	if err := s.issueRepo.CreateEscalationTx(tx, escalation); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}

	slog.Info("issue escalated", "issue_id", issue.ID, "from_tier", fromNode.Name, "to_tier", toNode.Name, "actor", actor)

	s.publish(ctx, event.IssueEvent{
		EventType: event.EventIssueEscalated,
		IssueID:   issue.ID.String(),
		Actor:     actor,
		FromTier:  fromNode.Name,
		ToTier:    toNode.Name,
		Reason:    req.Reason,
		Timestamp: time.Now().Unix(),
	})

	return issue, nil
}

// GetIssue retrieves a single issue by id
func (s *IssueService) GetIssue(ctx context.Context, issueID uuid.UUID) (*models.Issue, error) {
	return s.issueRepo.GetByID(ctx, issueID)
}

// ListIssues returns the issues the actor is allowed to see. A reported_by
// filter restricts to the reporter's own issues; otherwise visibility is the
// actor's node plus all nodes below it, resolved fresh on every call.
func (s *IssueService) ListIssues(ctx context.Context, filter models.IssueFilter, actor string) ([]models.Issue, error) {
	if filter.ReportedBy == nil {
		nodeID, err := s.nodeRepo.GetUserNodeID(ctx, actor)
		if err != nil {
			return nil, err
		}
		if nodeID == nil {
			return []models.Issue{}, nil
		}

		visible, err := s.visSvc.VisibilityClosure(ctx, *nodeID)
		if err != nil {
			return nil, err
		}
		filter.VisibleNodeIDs = visible
	}

	return s.issueRepo.List(ctx, filter)
}

// GetTrail returns the full audit history of an issue
func (s *IssueService) GetTrail(ctx context.Context, issueID uuid.UUID) (*models.IssueTrail, error) {
	if _, err := s.issueRepo.GetByID(ctx, issueID); err != nil {
		return nil, err
	}

	actions, err := s.issueRepo.GetActions(ctx, issueID)
	if err != nil {
		return nil, err
	}

	history, err := s.issueRepo.GetStatusHistory(ctx, issueID)
	if err != nil {
		return nil, err
	}

	escalations, err := s.issueRepo.GetEscalations(ctx, issueID)
	if err != nil {
		return nil, err
	}

	return &models.IssueTrail{
		Actions:     actions,
		History:     history,
		Escalations: escalations,
	}, nil
}

// publish sends an event after commit. Notification delivery is best effort,
// a failed publish never rolls back the issue change.
func (s *IssueService) publish(ctx context.Context, evt event.IssueEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, evt); err != nil {
		slog.Error("failed to publish issue event", "event_type", evt.EventType, "issue_id", evt.IssueID, "error", err)
	}
}
