package service

import (
	"context"

	"go.uber.org/zap"

	"blockwatch/internal/models"
	"blockwatch/internal/repository"
)

type DiffService struct {
	Store    repository.Repository
	Filter   *DeactivationService
	Recorder *ActionRecorder
	Logger   *zap.Logger
}

type DiffResult struct {
	AccountID  string   `json:"account_id"`
	Previous   uint64   `json:"previous_snapshot_id"`
	Current    uint64   `json:"current_snapshot_id"`
	Added      []string `json:"added"`
	Removed    []string `json:"removed"`
	Blocks     int      `json:"blocks"`
	Unblocks   int      `json:"unblocks"`
	Suppressed int      `json:"suppressed"`
}

// DiffAccount compares the account's two newest complete snapshots and
// records the transitions between them. Additions become block actions;
// removals pass through the deactivation filter first and only confirmed
// survivors become unblock actions.
func (s *DiffService) DiffAccount(ctx context.Context, accountID string) (DiffResult, error) {
	result := DiffResult{AccountID: accountID}
	snaps, err := s.Store.LatestCompleteSnapshots(ctx, accountID, 2)
	if err != nil {
		return result, err
	}
	if len(snaps) < 2 {
		if s.Logger != nil {
			s.Logger.Warn("insufficient snapshots",
				zap.String("account_id", accountID),
				zap.Int("complete", len(snaps)),
			)
		}
		return result, nil
	}
	current, previous := snaps[0], snaps[1]
	result.Current = current.ID
	result.Previous = previous.ID

	currentIDs, err := s.Store.ListSnapshotSubjectIDs(ctx, current.ID)
	if err != nil {
		return result, err
	}
	previousIDs, err := s.Store.ListSnapshotSubjectIDs(ctx, previous.ID)
	if err != nil {
		return result, err
	}
	result.Added, result.Removed = diffSets(previousIDs, currentIDs)

	for _, id := range result.Added {
		if _, err := s.Recorder.Record(ctx, accountID, id, models.ActionTypeBlock, models.ActionCauseExternal); err != nil {
			return result, err
		}
		result.Blocks++
	}

	active := s.Filter.FilterRemoved(ctx, accountID, result.Removed)
	result.Suppressed = len(result.Removed) - len(active)
	for _, id := range active {
		if _, err := s.Recorder.Record(ctx, accountID, id, models.ActionTypeUnblock, models.ActionCauseExternal); err != nil {
			return result, err
		}
		result.Unblocks++
	}
	return result, nil
}

// diffSets compares the two listings as sets. Incidental duplicates within a
// snapshot never produce phantom transitions; first-seen order is kept.
func diffSets(previous, current []string) (added, removed []string) {
	prev := make(map[string]struct{}, len(previous))
	for _, id := range previous {
		prev[id] = struct{}{}
	}
	cur := make(map[string]struct{}, len(current))
	for _, id := range current {
		cur[id] = struct{}{}
	}
	seen := make(map[string]struct{}, len(current))
	for _, id := range current {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := prev[id]; !ok {
			added = append(added, id)
		}
	}
	seen = make(map[string]struct{}, len(previous))
	for _, id := range previous {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := cur[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}
