package models

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	jwt.RegisteredClaims
	Id     string `json:"id"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type CreateNodeRequest struct {
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	Name        string     `json:"name" binding:"required"`
	Description *string    `json:"description,omitempty"`
}

type UpdateNodeRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

type CreateIssueRequest struct {
	HierarchyNodeID uuid.UUID  `json:"hierarchy_node_id" binding:"required"`
	Title           string     `json:"title" binding:"required"`
	Description     *string    `json:"description,omitempty"`
	PriorityID      *uuid.UUID `json:"priority_id,omitempty"`
	CategoryID      *uuid.UUID `json:"category_id,omitempty"`
}

type ResolveIssueRequest struct {
	ResolutionNote string `json:"resolution_note" binding:"required"`
}

type EscalateIssueRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type AssignIssueRequest struct {
	AssignedTo string `json:"assigned_to" binding:"required"`
}

type SubRoleAssignment struct {
	SubRoleID     *int   `json:"sub_role_id,omitempty"`
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	PermissionIDs []int  `json:"permission_ids,omitempty"`
}

type RoleRequest struct {
	Name          string              `json:"name" binding:"required"`
	RoleType      RoleType            `json:"role_type" binding:"required"`
	SubRoles      []SubRoleAssignment `json:"sub_roles,omitempty"`
	PermissionIDs []int               `json:"permission_ids,omitempty"`
}

// RoleAuthorizationKind tags the two mutually exclusive payload shapes a role
// request can carry.
type RoleAuthorizationKind int

const (
	AuthorizationDirect RoleAuthorizationKind = iota
	AuthorizationSubRoleDelegated
)

// RoleAuthorization is the resolved variant of a role request payload.
type RoleAuthorization struct {
	Kind          RoleAuthorizationKind
	SubRoles      []SubRoleAssignment
	PermissionIDs []int
}

// Authorization resolves the payload shape explicitly instead of inferring it
// downstream from field emptiness. Both fields non-empty is rejected; both
// empty resolves to an empty direct-permission grant.
func (r *RoleRequest) Authorization() (*RoleAuthorization, error) {
	if len(r.SubRoles) > 0 && len(r.PermissionIDs) > 0 {
		return nil, fmt.Errorf("role payload cannot carry both sub_roles and permission_ids")
	}
	if len(r.SubRoles) > 0 {
		return &RoleAuthorization{Kind: AuthorizationSubRoleDelegated, SubRoles: r.SubRoles}, nil
	}
	return &RoleAuthorization{Kind: AuthorizationDirect, PermissionIDs: r.PermissionIDs}, nil
}

type AssignProjectRoleRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
	RoleID    int    `json:"role_id" binding:"required"`
}
