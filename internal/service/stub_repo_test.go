package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"blockwatch/internal/models"
	"blockwatch/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// The mutex matters: sync runs touch it from their own goroutines.
type stubRepo struct {
	mu             sync.Mutex
	accounts       map[string]models.Account
	snapshots      []models.Snapshot
	entries        map[uint64][]string
	identities     map[string]models.Identity
	actions        []models.Action
	currentBlocks  map[string]models.CurrentBlock
	settings       map[string]models.SystemSetting
	nextSnapshotID uint64
	nextActionID   uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		accounts:      map[string]models.Account{},
		entries:       map[uint64][]string{},
		identities:    map[string]models.Identity{},
		currentBlocks: map[string]models.CurrentBlock{},
		settings:      map[string]models.SystemSetting{},
	}
}

func blockKey(sourceID, sinkID string) string { return sourceID + "|" + sinkID }

func (r *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (r *stubRepo) UpsertAccount(ctx context.Context, item *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[item.ID] = *item
	return nil
}

func (r *stubRepo) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.accounts[id]; ok {
		out := item
		return &out, nil
	}
	return nil, nil
}

func (r *stubRepo) ListAccounts(ctx context.Context, params repository.ListAccountsParams) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Account, 0, len(r.accounts))
	for _, item := range r.accounts {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubRepo) CountAccounts(ctx context.Context, params repository.ListAccountsParams) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.accounts)), nil
}

func (r *stubRepo) ListStaleAccounts(ctx context.Context, syncedBefore time.Time, limit int) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Account
	for _, item := range r.accounts {
		if !item.Enabled {
			continue
		}
		if item.LastSyncedAt == nil || item.LastSyncedAt.Before(syncedBefore) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastSyncedAt, out[j].LastSyncedAt
		if a == nil {
			return true
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubRepo) SetAccountEnabled(ctx context.Context, id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.accounts[id]; ok {
		item.Enabled = enabled
		r.accounts[id] = item
	}
	return nil
}

func (r *stubRepo) TouchAccountSynced(ctx context.Context, id string, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.accounts[id]; ok {
		item.LastSyncedAt = &syncedAt
		r.accounts[id] = item
	}
	return nil
}

func (r *stubRepo) CreateSnapshotTx(ctx context.Context, tx *gorm.DB, item *models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSnapshotID++
	item.ID = r.nextSnapshotID
	item.CreatedAt = time.Now().UTC()
	r.snapshots = append(r.snapshots, *item)
	return nil
}

func (r *stubRepo) AppendSnapshotEntriesTx(ctx context.Context, tx *gorm.DB, snapshotID uint64, subjectIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range subjectIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		r.entries[snapshotID] = append(r.entries[snapshotID], id)
	}
	return nil
}

func (r *stubRepo) AdvanceSnapshotCursorTx(ctx context.Context, tx *gorm.DB, snapshotID uint64, cursor string, added int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.snapshots {
		if r.snapshots[i].ID == snapshotID {
			r.snapshots[i].Cursor = cursor
			r.snapshots[i].EntryCount += added
		}
	}
	return nil
}

func (r *stubRepo) SealSnapshotTx(ctx context.Context, tx *gorm.DB, snapshotID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.snapshots {
		if r.snapshots[i].ID == snapshotID {
			r.snapshots[i].Complete = true
		}
	}
	return nil
}

func (r *stubRepo) GetSnapshotByID(ctx context.Context, id uint64) (*models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, snap := range r.snapshots {
		if snap.ID == id {
			out := snap
			return &out, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) ListSnapshots(ctx context.Context, params repository.ListSnapshotsParams) ([]models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Snapshot
	for _, snap := range r.snapshots {
		if params.AccountID != nil && snap.AccountID != *params.AccountID {
			continue
		}
		if params.Complete != nil && snap.Complete != *params.Complete {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (r *stubRepo) CountSnapshots(ctx context.Context, params repository.ListSnapshotsParams) (int64, error) {
	items, _ := r.ListSnapshots(ctx, params)
	return int64(len(items)), nil
}

func (r *stubRepo) LatestCompleteSnapshots(ctx context.Context, accountID string, limit int) ([]models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Snapshot
	for _, snap := range r.snapshots {
		if snap.AccountID == accountID && snap.Complete {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubRepo) ListSnapshotSubjectIDs(ctx context.Context, snapshotID uint64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries[snapshotID]...), nil
}

func (r *stubRepo) ListPrunableSnapshots(ctx context.Context, accountID string, keep int) ([]models.Snapshot, error) {
	complete, _ := r.LatestCompleteSnapshots(ctx, accountID, 0)
	if keep <= 0 || len(complete) < keep {
		return nil, nil
	}
	pivot := complete[keep-1].ID
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Snapshot
	for _, snap := range r.snapshots {
		if snap.AccountID == accountID && snap.ID < pivot {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubRepo) DeleteSnapshotTx(ctx context.Context, tx *gorm.DB, snapshotID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.snapshots[:0]
	for _, snap := range r.snapshots {
		if snap.ID != snapshotID {
			kept = append(kept, snap)
		}
	}
	r.snapshots = kept
	delete(r.entries, snapshotID)
	return nil
}

func (r *stubRepo) UpsertIdentitiesTx(ctx context.Context, tx *gorm.DB, items []models.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		if _, ok := r.identities[item.ID]; ok {
			continue
		}
		item.FirstSeenAt = time.Now().UTC()
		r.identities[item.ID] = item
	}
	return nil
}

func (r *stubRepo) SaveIdentityProfile(ctx context.Context, item *models.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.identities[item.ID]
	if !ok {
		existing = models.Identity{ID: item.ID, FirstSeenAt: time.Now().UTC()}
	}
	existing.Handle = item.Handle
	existing.DisplayName = item.DisplayName
	existing.CheckedAt = item.CheckedAt
	r.identities[item.ID] = existing
	return nil
}

func (r *stubRepo) ListIdentitiesByIDs(ctx context.Context, ids []string) ([]models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Identity, 0, len(ids))
	for _, id := range ids {
		if item, ok := r.identities[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *stubRepo) CountIdentities(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.identities)), nil
}

func (r *stubRepo) FindRecentDoneAction(ctx context.Context, sourceID, sinkID, actionType string, since time.Time) (*models.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *models.Action
	for i := range r.actions {
		a := r.actions[i]
		if a.SourceID != sourceID || a.SinkID != sinkID || a.Type != actionType {
			continue
		}
		if a.Status != models.ActionStatusDone || a.Cause == models.ActionCauseExternal {
			continue
		}
		if a.UpdatedAt.Before(since) {
			continue
		}
		if found == nil || a.UpdatedAt.After(found.UpdatedAt) {
			out := a
			found = &out
		}
	}
	return found, nil
}

func (r *stubRepo) CreateActionTx(ctx context.Context, tx *gorm.DB, item *models.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextActionID++
	item.ID = r.nextActionID
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	r.actions = append(r.actions, *item)
	return nil
}

func (r *stubRepo) ListActions(ctx context.Context, params repository.ListActionsParams) ([]models.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Action
	for _, a := range r.actions {
		if params.SourceID != nil && a.SourceID != *params.SourceID {
			continue
		}
		if params.SinkID != nil && a.SinkID != *params.SinkID {
			continue
		}
		if params.Type != nil && a.Type != *params.Type {
			continue
		}
		if params.Cause != nil && a.Cause != *params.Cause {
			continue
		}
		if params.Status != nil && a.Status != *params.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *stubRepo) CountActions(ctx context.Context, params repository.ListActionsParams) (int64, error) {
	items, _ := r.ListActions(ctx, params)
	return int64(len(items)), nil
}

func (r *stubRepo) UpsertCurrentBlockTx(ctx context.Context, tx *gorm.DB, item *models.CurrentBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.UpdatedAt = time.Now().UTC()
	r.currentBlocks[blockKey(item.SourceID, item.SinkID)] = *item
	return nil
}

func (r *stubRepo) DeleteCurrentBlockTx(ctx context.Context, tx *gorm.DB, sourceID, sinkID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.currentBlocks, blockKey(sourceID, sinkID))
	return nil
}

func (r *stubRepo) GetCurrentBlock(ctx context.Context, sourceID, sinkID string) (*models.CurrentBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.currentBlocks[blockKey(sourceID, sinkID)]; ok {
		out := item
		return &out, nil
	}
	return nil, nil
}

func (r *stubRepo) ListCurrentBlocks(ctx context.Context, params repository.ListCurrentBlocksParams) ([]models.CurrentBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CurrentBlock
	for _, item := range r.currentBlocks {
		if params.SourceID != nil && item.SourceID != *params.SourceID {
			continue
		}
		if params.SinkID != nil && item.SinkID != *params.SinkID {
			continue
		}
		if params.Shared != nil && item.Shared != *params.Shared {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *stubRepo) CountCurrentBlocks(ctx context.Context, params repository.ListCurrentBlocksParams) (int64, error) {
	items, _ := r.ListCurrentBlocks(ctx, params)
	return int64(len(items)), nil
}

func (r *stubRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[item.Key] = *item
	return nil
}

func (r *stubRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.settings[key]; ok {
		out := item
		return &out, nil
	}
	return nil, nil
}

func (r *stubRepo) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SystemSetting
	for _, item := range r.settings {
		if params.Prefix != nil && !strings.HasPrefix(item.Key, *params.Prefix) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *stubRepo) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	items, _ := r.ListSystemSettings(ctx, params)
	return int64(len(items)), nil
}

func (r *stubRepo) snapshotCount(accountID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, snap := range r.snapshots {
		if snap.AccountID == accountID {
			n++
		}
	}
	return n
}
