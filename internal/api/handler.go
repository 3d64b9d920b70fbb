package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"draftwire/internal/models"
	"draftwire/internal/pipeline"
	"draftwire/pkg/bus"
	"draftwire/pkg/logging"
)

// PipelineRunner is the slice of the orchestrator the API drives.
type PipelineRunner interface {
	Run(ctx context.Context, req models.GenerateRequest, platform string) (pipeline.Result, error)
	CancelScheduled(ctx context.Context, scheduleID, userID string) error
}

// ProfileCache drops stale cached voice profiles on demand.
type ProfileCache interface {
	Invalidate(userID string)
}

type Handler struct {
	Pipeline PipelineRunner
	Profiles ProfileCache
	Logger   logging.Logger
}

func NewHandler(p PipelineRunner, profiles ProfileCache, logger logging.Logger) *Handler {
	return &Handler{Pipeline: p, Profiles: profiles, Logger: logger}
}

func RegisterRoutes(router gin.IRoutes, handler *Handler) {
	router.POST("/v1/content/requests", handler.HandleContentRequest)
	router.DELETE("/v1/schedule/:id", handler.HandleCancelSchedule)
	router.DELETE("/v1/profiles/:id/cache", handler.HandleInvalidateProfile)
}

type ContentRequest struct {
	UserID      string `json:"user_id"`
	Topic       string `json:"topic,omitempty"`
	Angle       string `json:"angle,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Platform    string `json:"platform"`
}

func (h *Handler) HandleContentRequest(c *gin.Context) {
	var req ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	if req.Platform == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform is required"})
		return
	}

	result, err := h.Pipeline.Run(c.Request.Context(), models.GenerateRequest{
		UserID:      req.UserID,
		Topic:       req.Topic,
		Angle:       req.Angle,
		ContentType: models.ContentType(req.ContentType),
		Platform:    strings.ToLower(req.Platform),
	}, strings.ToLower(req.Platform))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) HandleCancelSchedule(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	err := h.Pipeline.CancelScheduled(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// HandleInvalidateProfile drops a user's cached voice profile, so the
// next generation re-reads it after the profile service re-analyzes.
func (h *Handler) HandleInvalidateProfile(c *gin.Context) {
	userID := c.Param("id")
	h.Profiles.Invalidate(userID)
	h.Logger.WithField("user_id", userID).Info("Voice profile cache invalidated")
	c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
}

// renderError maps the task-error taxonomy onto HTTP statuses.
func (h *Handler) renderError(c *gin.Context, err error) {
	var taskErr *bus.TaskError
	if errors.As(err, &taskErr) {
		status := http.StatusBadGateway
		switch taskErr.Code {
		case bus.CodeProfileNotFound:
			status = http.StatusNotFound
		case bus.CodeInvalidTask:
			status = http.StatusUnprocessableEntity
		case bus.CodeRateLimited:
			status = http.StatusTooManyRequests
		}
		body := gin.H{"error": taskErr.Message, "code": taskErr.Code}
		if retryAfter := taskErr.Context["retry_after"]; retryAfter != "" {
			body["retry_after"] = retryAfter
		}
		c.JSON(status, body)
		return
	}

	if errors.Is(err, bus.ErrAckTimeout) {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "pipeline did not respond in time"})
		return
	}

	h.Logger.WithError(err).Error("Content request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
