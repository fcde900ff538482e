package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"blockwatch/internal/repository"
)

type IdentityHandler struct {
	Repo repository.Repository
}

func (h *IdentityHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/identities")
	group.GET("", h.list)
}

func (h *IdentityHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ids := cleanStrings(strings.Split(c.Query("ids"), ","))
	if len(ids) == 0 {
		Error(c, http.StatusBadRequest, "ids query is required", nil)
		return
	}
	items, err := h.Repo.ListIdentitiesByIDs(c.Request.Context(), ids)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
