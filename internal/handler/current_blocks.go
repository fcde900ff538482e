package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"blockwatch/internal/repository"
)

type CurrentBlockHandler struct {
	Repo repository.Repository
}

func (h *CurrentBlockHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/current-blocks")
	group.GET("", h.list)
	group.GET("/:source_id/:sink_id", h.get)
}

func (h *CurrentBlockHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListCurrentBlocksParams{
		Limit:    limit,
		Offset:   offset,
		SourceID: strQueryPtr(c, "source_id"),
		SinkID:   strQueryPtr(c, "sink_id"),
		Shared:   boolQueryPtr(c, "shared"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"updated_at": "updated_at",
			"source_id":  "source_id",
			"sink_id":    "sink_id",
		}),
		Asc: boolQueryPtr(c, "ascending"),
	}
	items, err := h.Repo.ListCurrentBlocks(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountCurrentBlocks(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *CurrentBlockHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	sourceID := strings.TrimSpace(c.Param("source_id"))
	sinkID := strings.TrimSpace(c.Param("sink_id"))
	if sourceID == "" || sinkID == "" {
		Error(c, http.StatusBadRequest, "invalid pair", nil)
		return
	}
	item, err := h.Repo.GetCurrentBlock(c.Request.Context(), sourceID, sinkID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "pair not blocked", nil)
		return
	}
	Ok(c, item, nil)
}
