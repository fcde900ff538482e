package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"blockwatch/internal/repository"
)

type SnapshotHandler struct {
	Repo repository.Repository
}

func (h *SnapshotHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/snapshots")
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.GET("/:id/entries", h.listEntries)
}

func (h *SnapshotHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListSnapshotsParams{
		Limit:     limit,
		Offset:    offset,
		AccountID: strQueryPtr(c, "account_id"),
		Complete:  boolQueryPtr(c, "complete"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"id":         "id",
			"created_at": "created_at",
			"updated_at": "updated_at",
		}),
		Asc: boolQueryPtr(c, "ascending"),
	}
	items, err := h.Repo.ListSnapshots(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountSnapshots(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *SnapshotHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		Error(c, http.StatusBadRequest, "invalid snapshot id", nil)
		return
	}
	item, err := h.Repo.GetSnapshotByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "snapshot not found", nil)
		return
	}
	Ok(c, item, nil)
}

func (h *SnapshotHandler) listEntries(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		Error(c, http.StatusBadRequest, "invalid snapshot id", nil)
		return
	}
	snap, err := h.Repo.GetSnapshotByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if snap == nil {
		Error(c, http.StatusNotFound, "snapshot not found", nil)
		return
	}
	ids, err := h.Repo.ListSnapshotSubjectIDs(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{
		"snapshot_id": id,
		"complete":    snap.Complete,
		"subject_ids": ids,
	}, nil)
}
