package models

import (
	"time"

	"github.com/google/uuid"
)

// HierarchyNode is an organizational tier scoped to one project. Issues are
// handled at a node and escalate along the parent chain.
type HierarchyNode struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ProjectID   uuid.UUID  `json:"project_id" db:"project_id"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	Level       int        `json:"level" db:"level"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`

	Children []*HierarchyNode `json:"children,omitempty" db:"-"`
}

// InternalNode is an organization-wide tier, not tied to any project.
type InternalNode struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	Level       int        `json:"level" db:"level"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`

	Children []*InternalNode `json:"children,omitempty" db:"-"`
}

func (n *HierarchyNode) NodeID() uuid.UUID         { return n.ID }
func (n *HierarchyNode) NodeParentID() *uuid.UUID  { return n.ParentID }
func (n *InternalNode) NodeID() uuid.UUID          { return n.ID }
func (n *InternalNode) NodeParentID() *uuid.UUID   { return n.ParentID }
func (n *HierarchyNode) AddChild(c *HierarchyNode) { n.Children = append(n.Children, c) }
func (n *InternalNode) AddChild(c *InternalNode)   { n.Children = append(n.Children, c) }
