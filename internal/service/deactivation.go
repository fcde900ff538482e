package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"blockwatch/internal/client/platform"
	"blockwatch/internal/models"
	"blockwatch/internal/repository"
)

// DeactivationService decides which identifiers that vanished from a block
// list are genuinely unblocked versus gone because the account deactivated.
// Lookups run with the shared app credential, not the tracked account's own.
type DeactivationService struct {
	Client    *platform.Client
	Store     repository.Repository
	Logger    *zap.Logger
	BatchSize int
}

// FilterRemoved returns the subset of removed still resolvable on the
// platform. Ids the lookup does not return are presumed deactivated and
// suppressed; a failed batch is suppressed whole rather than guessed at.
func (s *DeactivationService) FilterRemoved(ctx context.Context, sourceID string, removed []string) []string {
	if len(removed) == 0 {
		return nil
	}
	var active []string
	for _, batch := range platform.ChunkIDs(removed, s.batchSize()) {
		users, err := s.Client.LookupUsers(ctx, batch)
		if platform.IsNotFound(err) {
			continue
		}
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("deactivation lookup failed",
					zap.String("source_id", sourceID),
					zap.Int("batch_size", len(batch)),
					zap.Error(err),
				)
			}
			continue
		}
		now := time.Now().UTC()
		present := make(map[string]struct{}, len(users))
		for _, u := range users {
			present[u.ID] = struct{}{}
			s.enrichIdentity(ctx, u, now)
		}
		for _, id := range batch {
			if _, ok := present[id]; ok {
				active = append(active, id)
			}
		}
	}
	return active
}

func (s *DeactivationService) enrichIdentity(ctx context.Context, u platform.User, checkedAt time.Time) {
	if s.Store == nil {
		return
	}
	item := &models.Identity{ID: u.ID, CheckedAt: &checkedAt}
	if u.Handle != "" {
		item.Handle = &u.Handle
	}
	if u.DisplayName != "" {
		item.DisplayName = &u.DisplayName
	}
	_ = s.Store.SaveIdentityProfile(ctx, item)
}

func (s *DeactivationService) batchSize() int {
	if s.BatchSize > 0 && s.BatchSize <= platform.LookupMaxIDs {
		return s.BatchSize
	}
	return platform.LookupMaxIDs
}
