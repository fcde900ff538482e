package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"blockwatch/internal/models"
	"blockwatch/internal/repository"
	"blockwatch/internal/service"
)

type ActionHandler struct {
	Repo     repository.Repository
	Recorder *service.ActionRecorder
}

func (h *ActionHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/actions")
	group.GET("", h.list)
	group.POST("", h.record)
}

func (h *ActionHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	var sinceTime *time.Time
	if since := strings.TrimSpace(c.Query("since")); since != "" {
		if parsed, err := time.Parse(time.RFC3339, since); err == nil {
			parsed = parsed.UTC()
			sinceTime = &parsed
		}
	}

	params := repository.ListActionsParams{
		Limit:    limit,
		Offset:   offset,
		SourceID: strQueryPtr(c, "source_id"),
		SinkID:   strQueryPtr(c, "sink_id"),
		Type:     strQueryPtr(c, "type"),
		Cause:    strQueryPtr(c, "cause"),
		Status:   strQueryPtr(c, "status"),
		Since:    sinceTime,
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"id":         "id",
			"created_at": "created_at",
			"updated_at": "updated_at",
		}),
		Asc: boolQueryPtr(c, "ascending"),
	}
	items, err := h.Repo.ListActions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountActions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

type recordActionRequest struct {
	SourceID string `json:"source_id" binding:"required"`
	SinkID   string `json:"sink_id" binding:"required"`
	Type     string `json:"type" binding:"required"`
}

func (h *ActionHandler) record(c *gin.Context) {
	if h.Recorder == nil {
		Error(c, http.StatusInternalServerError, "recorder unavailable", nil)
		return
	}
	var req recordActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	action, err := h.Recorder.Record(c.Request.Context(), req.SourceID, req.SinkID,
		strings.ToLower(strings.TrimSpace(req.Type)), models.ActionCauseManual)
	if err != nil {
		if errors.Is(err, service.ErrInvalidActionType) {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Created(c, action)
}
