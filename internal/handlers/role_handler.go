package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"support-service/internal/models"
	"support-service/internal/services"
	"support-service/utils"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	roleService *services.RoleService
}

func NewRoleHandler(roleService *services.RoleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}

func (h *RoleHandler) RegisterRoutes(router *gin.Engine, m *Middleware) {
	gr := router.Group("/support/api/v1", m.RequireAuth())

	roleGr := gr.Group("/roles")
	roleGr.POST("", h.CreateRole)
	roleGr.GET("", h.ListRoles)
	roleGr.GET("/:id", h.GetRole)
	roleGr.PUT("/:id", h.UpdateRole)
	roleGr.DELETE("/:id", h.DeleteRole)

	gr.GET("/permissions", h.ListPermissions)

	gr.POST("/project-user-roles", h.AssignProjectRole)
	gr.DELETE("/project-user-roles", h.RemoveProjectRole)
}

// CreateRole creates a role with either sub-role delegation or direct
// permissions
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req models.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_REQUEST_FORMAT", "Invalid request format"))
		return
	}

	detail, err := h.roleService.CreateRole(c, req)
	if err != nil {
		slog.Error("failed to create role", "name", req.Name, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, utils.CreateSuccessResponse(detail))
}

// UpdateRole updates a role, replacing its authorization surface
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_ID", "Invalid role ID format"))
		return
	}

	var req models.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_REQUEST_FORMAT", "Invalid request format"))
		return
	}

	detail, err := h.roleService.UpdateRole(c, id, req)
	if err != nil {
		slog.Error("failed to update role", "role_id", id, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(detail))
}

// GetRole returns a role with its full authorization surface
func (h *RoleHandler) GetRole(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_ID", "Invalid role ID format"))
		return
	}

	detail, err := h.roleService.GetRoleDetail(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(detail))
}

// ListRoles lists roles, optionally filtered by is_active
func (h *RoleHandler) ListRoles(c *gin.Context) {
	var active *bool
	if v := c.Query("is_active"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("VALIDATION_ERROR", "invalid is_active filter"))
			return
		}
		active = &parsed
	}

	roles, err := h.roleService.ListRoles(c, active)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{
		"roles": roles,
		"count": len(roles),
	}))
}

// DeleteRole removes a role that is not in active use
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_ID", "Invalid role ID format"))
		return
	}

	if err := h.roleService.DeleteRole(c, id); err != nil {
		slog.Error("failed to delete role", "role_id", id, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{"message": "role deleted"}))
}

// ListPermissions returns the permission catalog
func (h *RoleHandler) ListPermissions(c *gin.Context) {
	permissions, err := h.roleService.ListPermissions(c, c.Query("resource"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{
		"permissions": permissions,
		"count":       len(permissions),
	}))
}

// AssignProjectRole grants a role to a user within a project
func (h *RoleHandler) AssignProjectRole(c *gin.Context) {
	var req models.AssignProjectRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_REQUEST_FORMAT", "Invalid request format"))
		return
	}

	assignment, err := h.roleService.AssignProjectRole(c, req, actorID(c))
	if err != nil {
		slog.Error("failed to assign project role", "role_id", req.RoleID, "user_id", req.UserID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, utils.CreateSuccessResponse(assignment))
}

// RemoveProjectRole revokes a user's role within a project
func (h *RoleHandler) RemoveProjectRole(c *gin.Context) {
	var req models.AssignProjectRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_REQUEST_FORMAT", "Invalid request format"))
		return
	}

	if err := h.roleService.RemoveProjectRole(c, req.ProjectID, req.UserID, req.RoleID); err != nil {
		slog.Error("failed to remove project role", "role_id", req.RoleID, "user_id", req.UserID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{"message": "project role removed"}))
}
