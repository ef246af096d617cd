package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quotaguard/gateway/internal/service"
)

type ViolationHandler struct {
	service *service.ViolationService
}

func NewViolationHandler(service *service.ViolationService) *ViolationHandler {
	return &ViolationHandler{service: service}
}

// Recent returns the newest recorded denials
func (h *ViolationHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	ctx := c.Request.Context()
	violations, err := h.service.Recent(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, violations)
}

// Summary aggregates denials per failed check over a lookback window
func (h *ViolationHandler) Summary(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		hours = 24
	}

	ctx := c.Request.Context()
	summary, err := h.service.Summary(ctx, time.Duration(hours)*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"lookback_hours": hours,
		"checks":         summary,
	})
}
