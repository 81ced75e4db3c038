// Package handler exposes the verification service over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/val-protocol/val-verify/internal/mirror"
	"github.com/val-protocol/val-verify/internal/runs"
	"github.com/val-protocol/val-verify/internal/server/service"
	"go.uber.org/zap"
)

// VerifyHandler serves verification runs and stored reports.
type VerifyHandler struct {
	svc         *service.VerifyService
	adminSecret string
	logger      *zap.Logger
}

// NewVerifyHandler creates a VerifyHandler. adminSecret guards destructive
// endpoints; empty disables them.
func NewVerifyHandler(svc *service.VerifyService, adminSecret string, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{svc: svc, adminSecret: adminSecret, logger: logger}
}

// Register mounts the verification routes on the given router group.
func (h *VerifyHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/verify", h.Verify)
	rg.POST("/verify/snapshot", h.VerifySnapshot)
	rg.GET("/runs", h.ListRuns)
	rg.GET("/runs/:id", h.GetRun)
	rg.DELETE("/runs/:id", AdminAuth(h.adminSecret), h.DeleteRun)
}

type verifyRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
	Limit   int    `json:"limit"`
}

// Verify handles POST /verify — fetches the agent's log, verifies it, and
// persists the run.
func (h *VerifyHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent_id is required"})
		return
	}

	run, err := h.svc.VerifyAgent(c.Request.Context(), req.AgentID, req.Limit)
	if err != nil {
		var fetchErr *mirror.FetchError
		switch {
		case errors.As(err, &fetchErr):
			// "Could not check" is not "checked and failed": fetch errors get
			// a gateway status, never a fail verdict.
			h.logger.Warn("fetch failed", zap.String("agent_id", req.AgentID), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": fetchErr.Error()})
		default:
			h.logger.Error("verification run failed", zap.String("agent_id", req.AgentID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "verification run failed"})
		}
		return
	}

	RecordRun(string(run.Report.Verdict), run.Report.Issues)
	c.JSON(http.StatusOK, run)
}

type snapshotRequest struct {
	AgentID  string                   `json:"agent_id"`
	Messages []mirror.RawTopicMessage `json:"messages"`
}

// VerifySnapshot handles POST /verify/snapshot — verifies caller-supplied raw
// messages without fetching or persisting.
func (h *VerifyHandler) VerifySnapshot(c *gin.Context) {
	var req snapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	report := h.svc.VerifySnapshot(req.AgentID, req.Messages)
	RecordRun(string(report.Verdict), report.Issues)
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// GetRun handles GET /runs/:id.
func (h *VerifyHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return
	}

	run, err := h.svc.GetRun(c.Request.Context(), id)
	if errors.Is(err, runs.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		h.logger.Error("get run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// ListRuns handles GET /runs?agent_id=…&limit=…
func (h *VerifyHandler) ListRuns(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	list, err := h.svc.ListRuns(c.Request.Context(), c.Query("agent_id"), limit)
	if err != nil {
		h.logger.Error("list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	if list == nil {
		list = []*runs.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": list})
}

// DeleteRun handles DELETE /runs/:id (admin only).
func (h *VerifyHandler) DeleteRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return
	}

	err = h.svc.DeleteRun(c.Request.Context(), id)
	if errors.Is(err, runs.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		h.logger.Error("delete run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
