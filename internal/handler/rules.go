package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quotaguard/gateway/internal/models"
	"github.com/quotaguard/gateway/internal/service"
)

type RuleHandler struct {
	service *service.RuleService
}

func NewRuleHandler(service *service.RuleService) *RuleHandler {
	return &RuleHandler{service: service}
}

// List returns the effective rule set (defaults merged with stored
// profiles)
func (h *RuleHandler) List(c *gin.Context) {
	rules := h.service.List()

	out := make([]gin.H, 0, len(rules))
	for _, r := range rules {
		out = append(out, gin.H{
			"name":              r.Name,
			"limit":             r.Limit,
			"window_ms":         r.Window.Milliseconds(),
			"block_duration_ms": r.BlockDuration.Milliseconds(),
		})
	}

	c.JSON(http.StatusOK, out)
}

func (h *RuleHandler) Upsert(c *gin.Context) {
	var req struct {
		Name            string `json:"name" binding:"required"`
		Limit           int    `json:"limit" binding:"required"`
		WindowMs        int64  `json:"window_ms" binding:"required"`
		BlockDurationMs int64  `json:"block_duration_ms"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	err := h.service.Upsert(ctx, models.RateLimitProfile{
		Name:            req.Name,
		Limit:           req.Limit,
		WindowMs:        req.WindowMs,
		BlockDurationMs: req.BlockDurationMs,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile saved"})
}

func (h *RuleHandler) Delete(c *gin.Context) {
	name := c.Param("name")

	ctx := c.Request.Context()
	if err := h.service.Delete(ctx, name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile deleted"})
}
