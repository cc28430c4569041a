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

type IssueHandler struct {
	issueService *services.IssueService
}

func NewIssueHandler(issueService *services.IssueService) *IssueHandler {
	return &IssueHandler{issueService: issueService}
}

func (h *IssueHandler) RegisterRoutes(router *gin.Engine, m *Middleware) {
	gr := router.Group("/support/api/v1/issues", m.RequireAuth())

	gr.POST("", h.CreateIssue)
	gr.GET("", h.ListIssues)
	gr.GET("/:id", h.GetIssue)
	gr.GET("/:id/trail", h.GetTrail)
	gr.POST("/:id/accept", h.AcceptIssue)
	gr.POST("/:id/resolve", h.ResolveIssue)
	gr.POST("/:id/escalate", h.EscalateIssue)
	gr.POST("/:id/assign", h.AssignIssue)
}

// CreateIssue reports a new issue at a hierarchy node
func (h *IssueHandler) CreateIssue(c *gin.Context) {
	var req models.CreateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_REQUEST_FORMAT", "Invalid request format"))
		return
	}

	issue, err := h.issueService.CreateIssue(c, req, actorID(c))
	if err != nil {
		slog.Error("failed to create issue", "node_id", req.HierarchyNodeID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, utils.CreateSuccessResponse(issue))
}

// ListIssues lists issues scoped by the caller's visibility closure, or by
// reporter when reported_by is given
func (h *IssueHandler) ListIssues(c *gin.Context) {
	filter, err := parseIssueFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("VALIDATION_ERROR", err.Error()))
		return
	}

	issues, err := h.issueService.ListIssues(c, filter, actorID(c))
	if err != nil {
		slog.Error("failed to list issues", "actor", actorID(c), "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(gin.H{
		"issues": issues,
		"count":  len(issues),
	}))
}

// GetIssue retrieves a single issue
func (h *IssueHandler) GetIssue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid issue ID format"))
		return
	}

	issue, err := h.issueService.GetIssue(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(issue))
}

// GetTrail returns the full audit history of an issue
func (h *IssueHandler) GetTrail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid issue ID format"))
		return
	}

	trail, err := h.issueService.GetTrail(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(trail))
}

// AcceptIssue records the caller as working on the issue
func (h *IssueHandler) AcceptIssue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid issue ID format"))
		return
	}

	issue, err := h.issueService.AcceptIssue(c, id, actorID(c))
	if err != nil {
		slog.Error("failed to accept issue", "issue_id", id, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(issue))
}

// ResolveIssue closes an issue with a resolution note
func (h *IssueHandler) ResolveIssue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid issue ID format"))
		return
	}

	var req models.ResolveIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_REQUEST_FORMAT", "Invalid request format"))
		return
	}

	issue, err := h.issueService.ResolveIssue(c, id, req, actorID(c))
	if err != nil {
		slog.Error("failed to resolve issue", "issue_id", id, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(issue))
}

// EscalateIssue moves an issue up to its node's parent tier
func (h *IssueHandler) EscalateIssue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid issue ID format"))
		return
	}

	var req models.EscalateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_REQUEST_FORMAT", "Invalid request format"))
		return
	}

	issue, err := h.issueService.EscalateIssue(c, id, req, actorID(c))
	if err != nil {
		slog.Error("failed to escalate issue", "issue_id", id, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(issue))
}

// AssignIssue hands an issue to a specific handler
func (h *IssueHandler) AssignIssue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_UUID", "Invalid issue ID format"))
		return
	}

	var req models.AssignIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.CreateErrorResponse("INVALID_REQUEST_FORMAT", "Invalid request format"))
		return
	}

	issue, err := h.issueService.AssignIssue(c, id, req, actorID(c))
	if err != nil {
		slog.Error("failed to assign issue", "issue_id", id, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.CreateSuccessResponse(issue))
}

// parseIssueFilter reads the optional listing filters from query params
func parseIssueFilter(c *gin.Context) (models.IssueFilter, error) {
	var filter models.IssueFilter

	if v := c.Query("status"); v != "" {
		status := models.IssueStatus(v)
		if !status.Valid() {
			return filter, &invalidFilterError{"status", v}
		}
		filter.Status = &status
	}
	if v := c.Query("priority_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, &invalidFilterError{"priority_id", v}
		}
		filter.PriorityID = &id
	}
	if v := c.Query("category_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, &invalidFilterError{"category_id", v}
		}
		filter.CategoryID = &id
	}
	if v := c.Query("assigned_to"); v != "" {
		filter.AssignedTo = &v
	}
	if v := c.Query("reported_by"); v != "" {
		filter.ReportedBy = &v
	}

	return filter, nil
}

type invalidFilterError struct {
	field string
	value string
}

func (e *invalidFilterError) Error() string {
	return "invalid " + e.field + " filter: " + e.value
}
