package models

import "time"

type Role struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	RoleType  RoleType  `json:"role_type" db:"role_type"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type SubRole struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Permission struct {
	ID        int       `json:"id" db:"id"`
	Resource  string    `json:"resource" db:"resource"`
	Action    string    `json:"action" db:"action"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type RoleSubRole struct {
	ID        int       `json:"id" db:"id"`
	RoleID    int       `json:"role_id" db:"role_id"`
	SubRoleID int       `json:"sub_role_id" db:"sub_role_id"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type RoleSubRolePermission struct {
	ID              int       `json:"id" db:"id"`
	RolesSubRolesID int       `json:"roles_sub_roles_id" db:"roles_sub_roles_id"`
	PermissionID    int       `json:"permission_id" db:"permission_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type RolePermission struct {
	ID           int       `json:"id" db:"id"`
	RoleID       int       `json:"role_id" db:"role_id"`
	PermissionID int       `json:"permission_id" db:"permission_id"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type ProjectUserRole struct {
	ID         int       `json:"id" db:"id"`
	ProjectID  string    `json:"project_id" db:"project_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	RoleID     int       `json:"role_id" db:"role_id"`
	AssignedBy string    `json:"assigned_by" db:"assigned_by"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	AssignedAt time.Time `json:"assigned_at" db:"assigned_at"`
}

// RoleSubRoleDetail is the nested view of one sub-role link and the
// permissions granted through it.
type RoleSubRoleDetail struct {
	SubRole     SubRole      `json:"sub_role"`
	Permissions []Permission `json:"permissions"`
}

// RoleDetail is the full authorization surface of a role. Exactly one of
// SubRoles / Permissions is populated (mutual exclusion invariant).
type RoleDetail struct {
	Role        Role                `json:"role"`
	SubRoles    []RoleSubRoleDetail `json:"sub_roles,omitempty"`
	Permissions []Permission        `json:"permissions,omitempty"`
}
