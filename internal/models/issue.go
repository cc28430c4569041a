package models

import (
	"time"

	"github.com/google/uuid"
)

type Issue struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	HierarchyNodeID uuid.UUID   `json:"hierarchy_node_id" db:"hierarchy_node_id"`
	Title           string      `json:"title" db:"title"`
	Description     *string     `json:"description,omitempty" db:"description"`
	PriorityID      *uuid.UUID  `json:"priority_id,omitempty" db:"priority_id"`
	CategoryID      *uuid.UUID  `json:"category_id,omitempty" db:"category_id"`
	AssignedTo      *string     `json:"assigned_to,omitempty" db:"assigned_to"`
	ReportedBy      string      `json:"reported_by" db:"reported_by"`
	Status          IssueStatus `json:"status" db:"status"`
	ActionTaken     *string     `json:"action_taken,omitempty" db:"action_taken"`
	ResolvedAt      *time.Time  `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// IssueAction is one append-only audit row per lifecycle operation.
type IssueAction struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	IssueID           uuid.UUID       `json:"issue_id" db:"issue_id"`
	ActionName        IssueActionName `json:"action_name" db:"action_name"`
	ActionDescription string          `json:"action_description" db:"action_description"`
	PerformedBy       string          `json:"performed_by" db:"performed_by"`
	RelatedTier       *string         `json:"related_tier,omitempty" db:"related_tier"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// IssueStatusHistory records every transition attempt, including no-op ones
// where from and to status are equal (accept, escalate).
type IssueStatusHistory struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	IssueID    uuid.UUID   `json:"issue_id" db:"issue_id"`
	FromStatus IssueStatus `json:"from_status" db:"from_status"`
	ToStatus   IssueStatus `json:"to_status" db:"to_status"`
	ChangedBy  string      `json:"changed_by" db:"changed_by"`
	Reason     *string     `json:"reason,omitempty" db:"reason"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// IssueEscalation gives a queryable escalation path, separate from the
// generic action trail.
type IssueEscalation struct {
	ID          uuid.UUID `json:"id" db:"id"`
	IssueID     uuid.UUID `json:"issue_id" db:"issue_id"`
	FromTier    string    `json:"from_tier" db:"from_tier"`
	ToTier      string    `json:"to_tier" db:"to_tier"`
	Reason      string    `json:"reason" db:"reason"`
	EscalatedBy string    `json:"escalated_by" db:"escalated_by"`
	EscalatedAt time.Time `json:"escalated_at" db:"escalated_at"`
}

// IssueTrail bundles the full audit history of one issue.
type IssueTrail struct {
	Actions     []IssueAction        `json:"actions"`
	History     []IssueStatusHistory `json:"status_history"`
	Escalations []IssueEscalation    `json:"escalations"`
}

// IssueFilter narrows issue listings. VisibleNodeIDs is filled by the
// visibility resolver when no reported_by filter is given.
type IssueFilter struct {
	Status         *IssueStatus
	PriorityID     *uuid.UUID
	CategoryID     *uuid.UUID
	AssignedTo     *string
	ReportedBy     *string
	VisibleNodeIDs []uuid.UUID
}
