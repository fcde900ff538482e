package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"blockwatch/internal/client/platform"
	"blockwatch/internal/models"
	"blockwatch/internal/repository"
)

const defaultRateLimitBackoff = 15 * time.Minute

type SyncResult struct {
	AccountID  string `json:"account_id"`
	SnapshotID uint64 `json:"snapshot_id,omitempty"`
	Pages      int    `json:"pages"`
	Entries    int    `json:"entries"`
	Sealed     bool   `json:"sealed"`
	RateLimits int    `json:"rate_limits"`
}

// SyncHandle identifies one in-flight sync run. Concurrent StartSync calls
// for the same account observe the same handle.
type SyncHandle struct {
	AccountID string
	StartedAt time.Time

	done   chan struct{}
	result SyncResult
	err    error
}

func newSyncHandle(accountID string) *SyncHandle {
	return &SyncHandle{
		AccountID: accountID,
		StartedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
}

// Done closes once the run reaches a terminal outcome.
func (h *SyncHandle) Done() <-chan struct{} { return h.done }

func (h *SyncHandle) Wait(ctx context.Context) (SyncResult, error) {
	select {
	case <-ctx.Done():
		return SyncResult{AccountID: h.AccountID}, ctx.Err()
	case <-h.done:
		return h.result, h.err
	}
}

// finish publishes the outcome; result and err are safe to read after done.
func (h *SyncHandle) finish(result SyncResult, err error) {
	h.result = result
	h.err = err
	close(h.done)
}

// BlockSyncService mirrors each tracked account's remote block list into
// sealed snapshots. One sync per account runs at a time; sealing triggers the
// diff and the pruner as detached follow-ups.
type BlockSyncService struct {
	Store    repository.Repository
	Client   *platform.Client
	Logger   *zap.Logger
	Diff     *DiffService
	Pruner   *RetentionService
	Settings *SystemSettingsService
	Backoff  time.Duration

	mu       sync.Mutex
	inflight map[string]*SyncHandle
}

// StartSync begins a sync for the account unless one is already in flight, in
// which case the existing handle is returned. started reports whether this
// call created the run. The run itself is detached from ctx's cancellation;
// abandoning it mid-flight only leaves an incomplete snapshot behind, which
// the next cycle supersedes.
func (s *BlockSyncService) StartSync(ctx context.Context, accountID string) (handle *SyncHandle, started bool, err error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, false, fmt.Errorf("account id is required")
	}
	if s.Settings != nil && !s.Settings.IsEnabled(ctx, FeatureBlockSync, true) {
		return nil, false, fmt.Errorf("block sync is disabled")
	}
	account, err := s.Store.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, false, err
	}
	if account == nil {
		return nil, false, fmt.Errorf("account %s not found", accountID)
	}
	if !account.Enabled {
		return nil, false, fmt.Errorf("account %s is disabled", accountID)
	}

	s.mu.Lock()
	if existing, ok := s.inflight[accountID]; ok {
		s.mu.Unlock()
		return existing, false, nil
	}
	if s.inflight == nil {
		s.inflight = map[string]*SyncHandle{}
	}
	handle = newSyncHandle(accountID)
	s.inflight[accountID] = handle
	s.mu.Unlock()

	go s.run(context.WithoutCancel(ctx), account, handle)
	return handle, true, nil
}

// InFlight lists the account ids with a sync currently running.
func (s *BlockSyncService) InFlight() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.inflight))
	for id := range s.inflight {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *BlockSyncService) run(ctx context.Context, account *models.Account, handle *SyncHandle) {
	result, err := s.syncOnce(ctx, account)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("block sync aborted",
				zap.String("account_id", account.ID),
				zap.Int("pages", result.Pages),
				zap.Error(err),
			)
		}
	} else if result.Sealed {
		if err := s.Store.TouchAccountSynced(ctx, account.ID, time.Now().UTC()); err != nil && s.Logger != nil {
			s.Logger.Warn("failed to update last synced", zap.String("account_id", account.ID), zap.Error(err))
		}
		if s.Logger != nil {
			s.Logger.Info("snapshot sealed",
				zap.String("account_id", account.ID),
				zap.Uint64("snapshot_id", result.SnapshotID),
				zap.Int("entries", result.Entries),
				zap.Int("pages", result.Pages),
			)
		}
	}

	// The in-flight slot clears on every exit path before the handle
	// resolves; a waiter may start the next run immediately.
	s.mu.Lock()
	delete(s.inflight, account.ID)
	s.mu.Unlock()
	handle.finish(result, err)

	if err == nil && result.Sealed {
		go s.runDiff(ctx, account.ID)
		go s.runPrune(ctx, account.ID)
	}
}

func (s *BlockSyncService) syncOnce(ctx context.Context, account *models.Account) (SyncResult, error) {
	result := SyncResult{AccountID: account.ID}
	if s.Client == nil {
		return result, fmt.Errorf("platform client is nil")
	}
	token := RevealCredential(account.ID, account.Credential)
	cursor := platform.CursorStart
	var snap *models.Snapshot
	for {
		page, err := s.Client.ListBlocks(ctx, token, cursor)
		if platform.IsRateLimited(err) {
			result.RateLimits++
			if snap == nil {
				// Nothing persisted yet; give up quietly and let the next
				// scheduling pass retry from scratch.
				return result, nil
			}
			if s.Logger != nil {
				s.Logger.Info("rate limited, backing off",
					zap.String("account_id", account.ID),
					zap.String("cursor", cursor),
					zap.Duration("backoff", s.backoff()),
				)
			}
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(s.backoff()):
			}
			continue
		}
		if err != nil {
			return result, err
		}

		next := page.NextCursor
		sealing := next == platform.CursorEnd
		err = s.Store.InTx(ctx, func(tx *gorm.DB) error {
			if snap == nil {
				snap = &models.Snapshot{AccountID: account.ID, Cursor: cursor}
				if err := s.Store.CreateSnapshotTx(ctx, tx, snap); err != nil {
					return err
				}
			}
			if err := s.Store.AppendSnapshotEntriesTx(ctx, tx, snap.ID, page.IDs); err != nil {
				return err
			}
			identities := make([]models.Identity, 0, len(page.IDs))
			for _, id := range page.IDs {
				identities = append(identities, models.Identity{ID: id})
			}
			if err := s.Store.UpsertIdentitiesTx(ctx, tx, identities); err != nil {
				return err
			}
			if err := s.Store.AdvanceSnapshotCursorTx(ctx, tx, snap.ID, next, len(page.IDs)); err != nil {
				return err
			}
			if sealing {
				return s.Store.SealSnapshotTx(ctx, tx, snap.ID)
			}
			return nil
		})
		if err != nil {
			return result, err
		}
		result.SnapshotID = snap.ID
		result.Pages++
		result.Entries += len(page.IDs)
		if sealing {
			result.Sealed = true
			return result, nil
		}
		cursor = next
	}
}

func (s *BlockSyncService) runDiff(ctx context.Context, accountID string) {
	if s.Diff == nil {
		return
	}
	if s.Settings != nil && !s.Settings.IsEnabled(ctx, FeatureDiff, true) {
		return
	}
	if _, err := s.Diff.DiffAccount(ctx, accountID); err != nil && s.Logger != nil {
		s.Logger.Warn("diff failed", zap.String("account_id", accountID), zap.Error(err))
	}
}

func (s *BlockSyncService) runPrune(ctx context.Context, accountID string) {
	if s.Pruner == nil {
		return
	}
	if s.Settings != nil && !s.Settings.IsEnabled(ctx, FeaturePrune, true) {
		return
	}
	if _, err := s.Pruner.PruneAccount(ctx, accountID); err != nil && s.Logger != nil {
		s.Logger.Warn("prune failed", zap.String("account_id", accountID), zap.Error(err))
	}
}

func (s *BlockSyncService) backoff() time.Duration {
	if s.Backoff > 0 {
		return s.Backoff
	}
	return defaultRateLimitBackoff
}
