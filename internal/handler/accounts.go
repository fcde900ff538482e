package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blockwatch/internal/models"
	"blockwatch/internal/repository"
	"blockwatch/internal/service"
)

type AccountHandler struct {
	Repo   repository.Repository
	Sync   *service.BlockSyncService
	Diff   *service.DiffService
	Pruner *service.RetentionService
	Logger *zap.Logger
}

func (h *AccountHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/accounts")
	group.POST("", h.create)
	group.GET("", h.list)
	group.GET("/syncs", h.listSyncs)
	group.GET("/:id", h.get)
	group.PUT("/:id/enabled", h.setEnabled)
	group.POST("/:id/sync", h.sync)
	group.POST("/:id/diff", h.diff)
	group.POST("/:id/prune", h.prune)
}

// accountView hides the stored credential from API responses.
type accountView struct {
	ID           string     `json:"id"`
	Handle       string     `json:"handle,omitempty"`
	Enabled      bool       `json:"enabled"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func viewOf(item *models.Account) accountView {
	return accountView{
		ID:           item.ID,
		Handle:       item.Handle,
		Enabled:      item.Enabled,
		LastSyncedAt: item.LastSyncedAt,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

type createAccountRequest struct {
	ID          string `json:"id" binding:"required"`
	AccessToken string `json:"access_token" binding:"required"`
	Handle      string `json:"handle"`
	Enabled     *bool  `json:"enabled"`
}

func (h *AccountHandler) create(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	id := strings.TrimSpace(req.ID)
	token := strings.TrimSpace(req.AccessToken)
	if id == "" || token == "" {
		Error(c, http.StatusBadRequest, "id and access_token are required", nil)
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	item := &models.Account{
		ID:         id,
		Handle:     strings.TrimSpace(req.Handle),
		Credential: service.SealCredential(id, token),
		Enabled:    enabled,
	}
	if err := h.Repo.UpsertAccount(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	saved, err := h.Repo.GetAccountByID(c.Request.Context(), id)
	if err != nil || saved == nil {
		Error(c, http.StatusBadGateway, "account not persisted", nil)
		return
	}
	Created(c, viewOf(saved))
}

func (h *AccountHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListAccountsParams{
		Limit:   limit,
		Offset:  offset,
		Enabled: boolQueryPtr(c, "enabled"),
		Handle:  strQueryPtr(c, "handle"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"created_at":     "created_at",
			"updated_at":     "updated_at",
			"last_synced_at": "last_synced_at",
			"id":             "id",
		}),
		Asc: boolQueryPtr(c, "ascending"),
	}
	items, err := h.Repo.ListAccounts(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountAccounts(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]accountView, 0, len(items))
	for i := range items {
		out = append(out, viewOf(&items[i]))
	}
	Ok(c, out, paginationMeta(limit, offset, total))
}

func (h *AccountHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid account id", nil)
		return
	}
	item, err := h.Repo.GetAccountByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "account not found", nil)
		return
	}
	Ok(c, viewOf(item), nil)
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *AccountHandler) setEnabled(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid account id", nil)
		return
	}
	var req setEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Repo.SetAccountEnabled(c.Request.Context(), id, req.Enabled); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	item, _ := h.Repo.GetAccountByID(c.Request.Context(), id)
	if item == nil {
		Error(c, http.StatusNotFound, "account not found", nil)
		return
	}
	Ok(c, viewOf(item), nil)
}

// @Summary Run block list sync
// @Tags accounts
// @Param id path string true "account id"
// @Param wait query bool false "block until the run finishes"
// @Success 200 {object} apiResponse
// @Router /api/v1/accounts/{id}/sync [post]
func (h *AccountHandler) sync(c *gin.Context) {
	if h.Sync == nil {
		Error(c, http.StatusInternalServerError, "sync service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid account id", nil)
		return
	}
	handle, started, err := h.Sync.StartSync(c.Request.Context(), id)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("sync start rejected", zap.String("account_id", id), zap.Error(err))
		}
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if boolQueryDefault(c, "wait", false) {
		result, err := handle.Wait(c.Request.Context())
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
		Ok(c, result, nil)
		return
	}
	Ok(c, map[string]any{
		"account_id": handle.AccountID,
		"started":    started,
		"started_at": handle.StartedAt,
	}, nil)
}

func (h *AccountHandler) listSyncs(c *gin.Context) {
	if h.Sync == nil {
		Error(c, http.StatusInternalServerError, "sync service unavailable", nil)
		return
	}
	Ok(c, map[string]any{"in_flight": h.Sync.InFlight()}, nil)
}

func (h *AccountHandler) diff(c *gin.Context) {
	if h.Diff == nil {
		Error(c, http.StatusInternalServerError, "diff service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid account id", nil)
		return
	}
	result, err := h.Diff.DiffAccount(c.Request.Context(), id)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("diff failed", zap.String("account_id", id), zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

func (h *AccountHandler) prune(c *gin.Context) {
	if h.Pruner == nil {
		Error(c, http.StatusInternalServerError, "retention service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid account id", nil)
		return
	}
	deleted, err := h.Pruner.PruneAccount(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{"account_id": id, "deleted": deleted}, nil)
}
