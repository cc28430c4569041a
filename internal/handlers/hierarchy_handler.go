package handlers

import (
	"log/slog"
	"net/http"

	"support-service/internal/models"
	"support-service/internal/services"
	"support-service/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type HierarchyHandler struct {
	hierarchyService    *services.HierarchyService
	internalNodeService *services.InternalNodeService
}

func NewHierarchyHandler(hierarchyService *services.HierarchyService, internalNodeService *services.InternalNodeService) *HierarchyHandler {
	return &HierarchyHandler{
		hierarchyService:    hierarchyService,
		internalNodeService: internalNodeService,
	}
}

func (h *HierarchyHandler) RegisterRoutes(router *gin.Engine, m *Middleware) {
	gr := router.Group("/support/api/v1", m.RequireAuth())

	nodeGr := gr.Group("/hierarchy-nodes")
	nodeGr.POST("", h.CreateNode)
	nodeGr.GET("/:id", h.GetNode)
	nodeGr.PUT("/:id", h.UpdateNode)
	nodeGr.DELETE("/:id", h.DeactivateNode)

	gr.GET("/projects/:project_id/tree", h.GetTree)

	internalGr := gr.Group("/internal-nodes")
	internalGr.POST("", h.CreateInternalNode)
	internalGr.GET("/:id", h.GetInternalNode)
	internalGr.PUT("/:id", h.UpdateInternalNode)
	internalGr.GET("", h.GetInternalTree)
}

// CreateNode creates a project hierarchy node
func (h *HierarchyHandler) CreateNode(c *gin.Context) {
	var req models.CreateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_REQUEST_FORMAT", "Invalid request format"))
		return
	}

	if req.ProjectID == nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("VALIDATION_ERROR", "project_id is required"))
		return
	}

	node, err := h.hierarchyService.CreateNode(c, req)
	if err != nil {
		slog.Error("failed to create hierarchy node", "project_id", req.ProjectID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, utils.CreateSuccessResponse(node))
}

// GetNode retrieves a node by id, including deactivated ones
func (h *HierarchyHandler) GetNode(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid node ID format"))
		return
	}

	node, err := h.hierarchyService.GetNode(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(node))
}

// UpdateNode renames or reparents a node
func (h *HierarchyHandler) UpdateNode(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid node ID format"))
		return
	}

	var req models.UpdateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_REQUEST_FORMAT", "Invalid request format"))
		return
	}

	node, err := h.hierarchyService.UpdateNode(c, id, req)
	if err != nil {
		slog.Error("failed to update hierarchy node", "node_id", id, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(node))
}

// DeactivateNode soft-deactivates a node with no open issues
func (h *HierarchyHandler) DeactivateNode(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid node ID format"))
		return
	}

	if err := h.hierarchyService.DeactivateNode(c, id); err != nil {
		slog.Error("failed to deactivate hierarchy node", "node_id", id, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{"message": "node deactivated"}))
}

// GetTree returns the rooted forest of a project's active nodes
func (h *HierarchyHandler) GetTree(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid project ID format"))
		return
	}

	tree, err := h.hierarchyService.GetTree(c, projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(tree))
}

// CreateInternalNode creates an organization-wide internal node
func (h *HierarchyHandler) CreateInternalNode(c *gin.Context) {
	var req models.CreateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_REQUEST_FORMAT", "Invalid request format"))
		return
	}

	node, err := h.internalNodeService.CreateNode(c, req)
	if err != nil {
		slog.Error("failed to create internal node", "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, utils.CreateSuccessResponse(node))
}

// GetInternalNode retrieves an internal node by id
func (h *HierarchyHandler) GetInternalNode(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid node ID format"))
		return
	}

	node, err := h.internalNodeService.GetNode(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(node))
}

// UpdateInternalNode renames or reparents an internal node
func (h *HierarchyHandler) UpdateInternalNode(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid node ID format"))
		return
	}

	var req models.UpdateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_REQUEST_FORMAT", "Invalid request format"))
		return
	}

	node, err := h.internalNodeService.UpdateNode(c, id, req)
	if err != nil {
		slog.Error("failed to update internal node", "node_id", id, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(node))
}

// GetInternalTree returns the rooted forest of active internal nodes
func (h *HierarchyHandler) GetInternalTree(c *gin.Context) {
	tree, err := h.internalNodeService.GetTree(c)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(tree))
}
