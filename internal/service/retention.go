package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"blockwatch/internal/repository"
)

const defaultRetainCount = 4

// RetentionService trims each account's snapshot history down to a fixed
// number of complete snapshots. Each snapshot goes with its entries as one
// transactional unit.
type RetentionService struct {
	Store  repository.Repository
	Logger *zap.Logger
	Keep   int
}

func (s *RetentionService) PruneAccount(ctx context.Context, accountID string) (int, error) {
	prunable, err := s.Store.ListPrunableSnapshots(ctx, accountID, s.keep())
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, snap := range prunable {
		err := s.Store.InTx(ctx, func(tx *gorm.DB) error {
			return s.Store.DeleteSnapshotTx(ctx, tx, snap.ID)
		})
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("snapshot prune failed",
					zap.String("account_id", accountID),
					zap.Uint64("snapshot_id", snap.ID),
					zap.Error(err),
				)
			}
			return deleted, err
		}
		deleted++
	}
	if deleted > 0 && s.Logger != nil {
		s.Logger.Info("snapshots pruned",
			zap.String("account_id", accountID),
			zap.Int("deleted", deleted),
			zap.Int("kept", s.keep()),
		)
	}
	return deleted, nil
}

func (s *RetentionService) keep() int {
	if s.Keep > 0 {
		return s.Keep
	}
	return defaultRetainCount
}
