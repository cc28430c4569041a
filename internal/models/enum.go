package models

type IssueStatus string

const (
	IssuePending    IssueStatus = "pending"
	IssueInProgress IssueStatus = "in_progress"
	IssueResolved   IssueStatus = "resolved"
	IssueEscalated  IssueStatus = "escalated"
)

func (s IssueStatus) Valid() bool {
	switch s {
	case IssuePending, IssueInProgress, IssueResolved, IssueEscalated:
		return true
	}
	return false
}

type IssueActionName string

const (
	ActionReported  IssueActionName = "reported"
	ActionAccepted  IssueActionName = "accepted"
	ActionAssigned  IssueActionName = "assigned"
	ActionResolved  IssueActionName = "resolved"
	ActionEscalated IssueActionName = "escalated"
)

type RoleType string

const (
	RoleTypeInternal RoleType = "internal"
	RoleTypeExternal RoleType = "external"
)

func (rt RoleType) Valid() bool {
	return rt == RoleTypeInternal || rt == RoleTypeExternal
}
