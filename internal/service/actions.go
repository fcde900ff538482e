package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"blockwatch/internal/models"
	"blockwatch/internal/repository"
)

// ErrInvalidActionType marks a Record call with a type other than block or
// unblock. Callers never pass one in correct usage.
var ErrInvalidActionType = errors.New("invalid action type")

const defaultDedupWindow = 60 * time.Second

// ActionRecorder persists detected transitions and keeps the current-block
// projection in step with them. Recording is idempotent over a trailing
// window: a transition some other path already recorded as done moments ago
// is returned as-is instead of duplicated.
type ActionRecorder struct {
	Store       repository.Repository
	Logger      *zap.Logger
	Feed        *ActionFeed
	DedupWindow time.Duration
}

func (r *ActionRecorder) Record(ctx context.Context, sourceID, sinkID, actionType, cause string) (*models.Action, error) {
	switch actionType {
	case models.ActionTypeBlock, models.ActionTypeUnblock:
	default:
		if r.Logger != nil {
			r.Logger.Error("action type rejected",
				zap.String("source_id", sourceID),
				zap.String("sink_id", sinkID),
				zap.String("type", actionType),
			)
		}
		return nil, fmt.Errorf("%w: %q", ErrInvalidActionType, actionType)
	}
	sourceID = strings.TrimSpace(sourceID)
	sinkID = strings.TrimSpace(sinkID)
	if sourceID == "" || sinkID == "" {
		return nil, fmt.Errorf("source and sink ids are required")
	}
	if cause == "" {
		cause = models.ActionCauseExternal
	}

	since := time.Now().UTC().Add(-r.dedupWindow())
	existing, err := r.Store.FindRecentDoneAction(ctx, sourceID, sinkID, actionType, since)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	action := &models.Action{
		SourceID: sourceID,
		SinkID:   sinkID,
		Type:     actionType,
		Cause:    cause,
		Status:   models.ActionStatusDone,
	}
	err = r.Store.InTx(ctx, func(tx *gorm.DB) error {
		if err := r.Store.CreateActionTx(ctx, tx, action); err != nil {
			return err
		}
		switch actionType {
		case models.ActionTypeBlock:
			return r.Store.UpsertCurrentBlockTx(ctx, tx, &models.CurrentBlock{
				SourceID: sourceID,
				SinkID:   sinkID,
				ActionID: action.ID,
				Shared:   cause == models.ActionCauseExternal,
			})
		default:
			return r.Store.DeleteCurrentBlockTx(ctx, tx, sourceID, sinkID)
		}
	})
	if err != nil {
		return nil, err
	}
	r.Feed.Publish(*action)
	return action, nil
}

func (r *ActionRecorder) dedupWindow() time.Duration {
	if r.DedupWindow > 0 {
		return r.DedupWindow
	}
	return defaultDedupWindow
}
