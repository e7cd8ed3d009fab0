package apihandlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"curator/internal/app"
	"curator/internal/models"
	"curator/internal/store"

	"github.com/gin-gonic/gin"
)

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(appInstance *app.App) *APIHandler {
	return &APIHandler{App: appInstance}
}

// parsePagination reads limit/offset query parameters with sane defaults.
func parsePagination(c *gin.Context) (limit, offset int, err error) {
	limit = 20
	offset = 0

	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		} else {
			return 0, 0, fmt.Errorf("invalid limit: %s", l)
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		} else {
			return 0, 0, fmt.Errorf("invalid offset: %s", o)
		}
	}
	return limit, offset, nil
}

// ListDecisionsHandler handles GET requests for curation decisions, newest first.
func (h *APIHandler) ListDecisionsHandler(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	decisions, err := h.App.Decisions.ListDecisions(c.Request.Context(), limit, offset)
	if err != nil {
		Internal(c, fmt.Sprintf("ListDecisionsHandler: failed to list decisions: %v", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": decisions})
}

// GetDecisionHandler handles GET requests for a single decision by item ID,
// including any theme assignments recorded for the item.
func (h *APIHandler) GetDecisionHandler(c *gin.Context) {
	itemID := c.Param("itemID")
	if itemID == "" {
		BadRequest(c, "missing item ID")
		return
	}

	decision, err := h.App.Decisions.GetDecision(c.Request.Context(), itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, fmt.Sprintf("No decision found for item: %s", itemID))
		} else {
			Internal(c, fmt.Sprintf("GetDecisionHandler: failed to retrieve decision: %v", err))
		}
		return
	}

	themes, err := h.App.Decisions.GetThemeAssignments(c.Request.Context(), itemID)
	if err != nil {
		fmt.Printf("WARN: Failed to retrieve themes for item %s: %v\n", itemID, err)
		themes = []models.ThemeAssignment{}
	}

	resp := struct {
		Decision models.Decision          `json:"decision"`
		Themes   []models.ThemeAssignment `json:"themes,omitempty"`
	}{
		Decision: *decision,
		Themes:   themes,
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListClustersHandler handles GET requests for duplicate clusters.
func (h *APIHandler) ListClustersHandler(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	clusters, err := h.App.Decisions.ListClusters(c.Request.Context(), limit, offset)
	if err != nil {
		Internal(c, fmt.Sprintf("ListClustersHandler: failed to list clusters: %v", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": clusters})
}

// ListTriageHandler handles GET requests for pending triage records, oldest first.
func (h *APIHandler) ListTriageHandler(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	records, err := h.App.TriageQueue.Pending(c.Request.Context(), limit, offset)
	if err != nil {
		Internal(c, fmt.Sprintf("ListTriageHandler: failed to list pending triage: %v", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": records})
}

type ResolveTriageRequest struct {
	Outcome string `json:"outcome"`
}

// ResolveTriageHandler handles PUT requests resolving a pending triage record.
// The resolved outcome replaces the item's decision and feeds the gold set.
func (h *APIHandler) ResolveTriageHandler(c *gin.Context) {
	itemID := c.Param("itemID")
	if itemID == "" {
		BadRequest(c, "missing item ID")
		return
	}

	var req ResolveTriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Outcome == "" {
		BadRequest(c, "missing required field: outcome")
		return
	}

	decision, err := h.App.TriageQueue.Resolve(c.Request.Context(), itemID, models.Outcome(req.Outcome))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			BadRequest(c, err.Error())
		case errors.Is(err, models.ErrTriageConflict):
			Conflict(c, err.Error())
		default:
			Internal(c, fmt.Sprintf("ResolveTriageHandler: failed to resolve triage: %v", err))
		}
		return
	}

	if err := h.App.Decisions.SaveDecision(c.Request.Context(), decision); err != nil {
		Internal(c, fmt.Sprintf("ResolveTriageHandler: failed to persist resolved decision: %v", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": decision})
}

// ListCalibrationsHandler handles GET requests for calibration model history
// of a content type.
func (h *APIHandler) ListCalibrationsHandler(c *gin.Context) {
	contentType := c.Param("contentType")
	if contentType == "" {
		BadRequest(c, "missing content type")
		return
	}

	modelsList, err := h.App.Calibrations.ListCalibrationModels(c.Request.Context(), contentType)
	if err != nil {
		Internal(c, fmt.Sprintf("ListCalibrationsHandler: failed to list calibration models: %v", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": modelsList})
}

// UsageSummaryHandler handles GET requests for aggregate oracle spend.
func (h *APIHandler) UsageSummaryHandler(c *gin.Context) {
	totalCost, inputTokens, outputTokens, err := h.App.Usage.GetUsageSummary(c.Request.Context())
	if err != nil {
		Internal(c, fmt.Sprintf("UsageSummaryHandler: failed to summarize usage: %v", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"total_cost":    totalCost,
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
	}})
}

type EnqueueBatchRequest struct {
	SourcePath string `json:"source_path"`
}

// EnqueueBatchHandler handles POST requests that enqueue a curation batch for
// background processing.
func (h *APIHandler) EnqueueBatchHandler(c *gin.Context) {
	if h.App.JobClient == nil {
		Unavailable(c, "background job queue is not configured")
		return
	}

	var req EnqueueBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.SourcePath == "" {
		BadRequest(c, "missing required field: source_path")
		return
	}

	if err := h.App.JobClient.EnqueueCurationBatch(c.Request.Context(), req.SourcePath); err != nil {
		Internal(c, fmt.Sprintf("EnqueueBatchHandler: failed to enqueue batch: %v", err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"source_path": req.SourcePath, "status": "enqueued"}})
}
