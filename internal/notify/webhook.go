package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"blockwatch/internal/models"
)

// Notifier pushes recorded actions to an operator-configured HTTP endpoint.
// Deliveries are best effort; a failed push is logged and dropped, never
// retried into the recording path.
type Notifier struct {
	URL    string
	Secret string
	Logger *zap.Logger

	HTTP *http.Client

	// Gate is consulted per event; a nil Gate delivers everything.
	Gate func(ctx context.Context) bool
}

type actionEvent struct {
	Event     string        `json:"event"`
	Timestamp time.Time     `json:"timestamp"`
	Action    models.Action `json:"action"`
}

func (n *Notifier) Send(ctx context.Context, action models.Action) error {
	url := strings.TrimSpace(n.URL)
	if url == "" {
		return errors.New("webhook url is empty")
	}
	body, err := json.Marshal(actionEvent{
		Event:     "action." + action.Type,
		Timestamp: time.Now().UTC(),
		Action:    action,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret := strings.TrimSpace(n.Secret); secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		req.Header.Set("X-Blockwatch-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := n.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("webhook http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

// Consume drains the feed channel until ctx is done or the channel closes.
func (n *Notifier) Consume(ctx context.Context, events <-chan models.Action) {
	for {
		select {
		case <-ctx.Done():
			return
		case action, ok := <-events:
			if !ok {
				return
			}
			if n.Gate != nil && !n.Gate(ctx) {
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := n.Send(sendCtx, action)
			cancel()
			if err != nil && n.Logger != nil {
				n.Logger.Warn("webhook delivery failed",
					zap.Uint64("action_id", action.ID),
					zap.String("type", action.Type),
					zap.Error(err),
				)
			}
		}
	}
}

func (n *Notifier) httpClient() *http.Client {
	if n.HTTP != nil {
		return n.HTTP
	}
	return &http.Client{Timeout: 10 * time.Second}
}
