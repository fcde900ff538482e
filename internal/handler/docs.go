package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Blockwatch

Block list synchronization and diffing service.

## Auth

When BW_API_TOKEN is set, all /api/* routes require that value as a
Bearer token. Health endpoints are public.

## Notable Routes

- GET /healthz
- GET /readyz
- GET /swagger/index.html
- POST /api/v1/accounts
- GET /api/v1/accounts
- POST /api/v1/accounts/{id}/sync
- POST /api/v1/accounts/{id}/diff
- POST /api/v1/accounts/{id}/prune
- GET /api/v1/accounts/syncs
- GET /api/v1/snapshots
- GET /api/v1/snapshots/{id}/entries
- GET /api/v1/actions
- POST /api/v1/actions
- GET /api/v1/current-blocks
- GET /api/v1/identities?ids=1,2,3
- GET /api/v1/system-settings/switches
- GET /v1/stream (websocket)
`)
	})
}
