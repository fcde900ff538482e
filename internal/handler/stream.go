package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"blockwatch/internal/service"
)

type StreamHandler struct {
	Feed   *service.ActionFeed
	Logger *zap.Logger
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/v1/stream", h.stream)
}

// @Summary Stream recorded actions over websocket
// @Tags stream
// @Router /v1/stream [get]
func (h *StreamHandler) stream(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "feed unavailable", nil)
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer func() { _ = conn.Close(websocket.StatusInternalError, "stream closed") }()

	// The stream is push-only; CloseRead cancels the context when the peer
	// goes away or sends anything.
	ctx := conn.CloseRead(c.Request.Context())

	id, events := h.Feed.Subscribe(64)
	defer h.Feed.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case action, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			payload, err := json.Marshal(action)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				if h.Logger != nil {
					h.Logger.Debug("stream write failed", zap.Error(err))
				}
				return
			}
		}
	}
}
