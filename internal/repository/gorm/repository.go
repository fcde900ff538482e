package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blockwatch/internal/models"
	"blockwatch/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Accounts ---------------------------------------------------------------

func (s *Store) UpsertAccount(ctx context.Context, item *models.Account) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"handle",
			"credential",
			"enabled",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var item models.Account
	err := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListAccounts(ctx context.Context, params repository.ListAccountsParams) ([]models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.accountsQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Account
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountAccounts(ctx context.Context, params repository.ListAccountsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.accountsQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) accountsQuery(ctx context.Context, params repository.ListAccountsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Account{})
	if params.Enabled != nil {
		query = query.Where("enabled = ?", *params.Enabled)
	}
	if params.Handle != nil && strings.TrimSpace(*params.Handle) != "" {
		query = query.Where("handle = ?", strings.TrimSpace(*params.Handle))
	}
	return query
}

func (s *Store) ListStaleAccounts(ctx context.Context, syncedBefore time.Time, limit int) ([]models.Account, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 50)
	var items []models.Account
	err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("enabled = ?", true).
		Where("last_synced_at IS NULL OR last_synced_at < ?", syncedBefore).
		// never-synced accounts sort first on both postgres and sqlite
		Order("last_synced_at IS NOT NULL, last_synced_at asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SetAccountEnabled(ctx context.Context, id string, enabled bool) error {
	if s == nil || s.db == nil {
		return nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"enabled": enabled, "updated_at": time.Now().UTC()}).
		Error
}

func (s *Store) TouchAccountSynced(ctx context.Context, id string, syncedAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_synced_at": syncedAt, "updated_at": time.Now().UTC()}).
		Error
}

// --- Snapshots & entries ----------------------------------------------------

func (s *Store) CreateSnapshotTx(ctx context.Context, tx *gorm.DB, item *models.Snapshot) error {
	if item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) AppendSnapshotEntriesTx(ctx context.Context, tx *gorm.DB, snapshotID uint64, subjectIDs []string) error {
	subjectIDs = cleanStrings(subjectIDs)
	if snapshotID == 0 || len(subjectIDs) == 0 {
		return nil
	}
	entries := make([]models.SnapshotEntry, 0, len(subjectIDs))
	for _, id := range subjectIDs {
		entries = append(entries, models.SnapshotEntry{SnapshotID: snapshotID, SubjectID: id})
	}
	return createInBatches(tx.WithContext(ctx), entries, 200)
}

func (s *Store) AdvanceSnapshotCursorTx(ctx context.Context, tx *gorm.DB, snapshotID uint64, cursor string, added int) error {
	if snapshotID == 0 {
		return nil
	}
	updates := map[string]any{
		"cursor":     cursor,
		"updated_at": time.Now().UTC(),
	}
	if added > 0 {
		updates["entry_count"] = gorm.Expr("entry_count + ?", added)
	}
	return tx.WithContext(ctx).
		Model(&models.Snapshot{}).
		Where("id = ?", snapshotID).
		Updates(updates).
		Error
}

func (s *Store) SealSnapshotTx(ctx context.Context, tx *gorm.DB, snapshotID uint64) error {
	if snapshotID == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Model(&models.Snapshot{}).
		Where("id = ?", snapshotID).
		Updates(map[string]any{"complete": true, "updated_at": time.Now().UTC()}).
		Error
}

func (s *Store) GetSnapshotByID(ctx context.Context, id uint64) (*models.Snapshot, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Snapshot
	err := s.db.WithContext(ctx).Model(&models.Snapshot{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSnapshots(ctx context.Context, params repository.ListSnapshotsParams) ([]models.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.snapshotsQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Snapshot
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSnapshots(ctx context.Context, params repository.ListSnapshotsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.snapshotsQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) snapshotsQuery(ctx context.Context, params repository.ListSnapshotsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Snapshot{})
	if params.AccountID != nil && strings.TrimSpace(*params.AccountID) != "" {
		query = query.Where("account_id = ?", strings.TrimSpace(*params.AccountID))
	}
	if params.Complete != nil {
		query = query.Where("complete = ?", *params.Complete)
	}
	return query
}

func (s *Store) LatestCompleteSnapshots(ctx context.Context, accountID string, limit int) ([]models.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, nil
	}
	limit = normalizeLimit(limit, 2)
	var items []models.Snapshot
	err := s.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Where("account_id = ?", accountID).
		Where("complete = ?", true).
		Order("id desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListSnapshotSubjectIDs(ctx context.Context, snapshotID uint64) ([]string, error) {
	if s == nil || s.db == nil || snapshotID == 0 {
		return nil, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.SnapshotEntry{}).
		Where("snapshot_id = ?", snapshotID).
		Order("id asc").
		Pluck("subject_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListPrunableSnapshots returns the snapshots older than the keep-th newest
// complete snapshot of the account, oldest first. Incomplete snapshots newer
// than that pivot are left alone.
func (s *Store) ListPrunableSnapshots(ctx context.Context, accountID string, keep int) ([]models.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" || keep <= 0 {
		return nil, nil
	}
	var pivot models.Snapshot
	err := s.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Where("account_id = ?", accountID).
		Where("complete = ?", true).
		Order("id desc").
		Offset(keep - 1).
		First(&pivot).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []models.Snapshot
	err = s.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Where("account_id = ?", accountID).
		Where("id < ?", pivot.ID).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteSnapshotTx(ctx context.Context, tx *gorm.DB, snapshotID uint64) error {
	if snapshotID == 0 {
		return nil
	}
	if err := tx.WithContext(ctx).
		Where("snapshot_id = ?", snapshotID).
		Delete(&models.SnapshotEntry{}).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).
		Where("id = ?", snapshotID).
		Delete(&models.Snapshot{}).Error
}

// --- Identifier directory ---------------------------------------------------

func (s *Store) UpsertIdentitiesTx(ctx context.Context, tx *gorm.DB, items []models.Identity) error {
	kept := make([]models.Identity, 0, len(items))
	for _, item := range items {
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			continue
		}
		kept = append(kept, item)
	}
	if len(kept) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).CreateInBatches(kept, 200).Error
}

func (s *Store) SaveIdentityProfile(ctx context.Context, item *models.Identity) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"handle",
			"display_name",
			"checked_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListIdentitiesByIDs(ctx context.Context, ids []string) ([]models.Identity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	ids = cleanStrings(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Identity
	if err := s.db.WithContext(ctx).
		Model(&models.Identity{}).
		Where("id IN ?", ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountIdentities(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Identity{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// --- Actions ----------------------------------------------------------------

func (s *Store) FindRecentDoneAction(ctx context.Context, sourceID, sinkID, actionType string, since time.Time) (*models.Action, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	sourceID = strings.TrimSpace(sourceID)
	sinkID = strings.TrimSpace(sinkID)
	if sourceID == "" || sinkID == "" {
		return nil, nil
	}
	var item models.Action
	err := s.db.WithContext(ctx).
		Model(&models.Action{}).
		Where("source_id = ?", sourceID).
		Where("sink_id = ?", sinkID).
		Where("type = ?", actionType).
		Where("status = ?", models.ActionStatusDone).
		Where("cause <> ?", models.ActionCauseExternal).
		Where("updated_at >= ?", since).
		Order("updated_at desc").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateActionTx(ctx context.Context, tx *gorm.DB, item *models.Action) error {
	if item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) ListActions(ctx context.Context, params repository.ListActionsParams) ([]models.Action, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.actionsQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Action
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountActions(ctx context.Context, params repository.ListActionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.actionsQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) actionsQuery(ctx context.Context, params repository.ListActionsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Action{})
	if params.SourceID != nil && strings.TrimSpace(*params.SourceID) != "" {
		query = query.Where("source_id = ?", strings.TrimSpace(*params.SourceID))
	}
	if params.SinkID != nil && strings.TrimSpace(*params.SinkID) != "" {
		query = query.Where("sink_id = ?", strings.TrimSpace(*params.SinkID))
	}
	if params.Type != nil && strings.TrimSpace(*params.Type) != "" {
		query = query.Where("type = ?", strings.TrimSpace(*params.Type))
	}
	if params.Cause != nil && strings.TrimSpace(*params.Cause) != "" {
		query = query.Where("cause = ?", strings.TrimSpace(*params.Cause))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	return query
}

// --- Current-block projection -----------------------------------------------

func (s *Store) UpsertCurrentBlockTx(ctx context.Context, tx *gorm.DB, item *models.CurrentBlock) error {
	if item == nil {
		return nil
	}
	item.SourceID = strings.TrimSpace(item.SourceID)
	item.SinkID = strings.TrimSpace(item.SinkID)
	if item.SourceID == "" || item.SinkID == "" {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source_id"}, {Name: "sink_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"action_id",
			"shared",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) DeleteCurrentBlockTx(ctx context.Context, tx *gorm.DB, sourceID, sinkID string) error {
	sourceID = strings.TrimSpace(sourceID)
	sinkID = strings.TrimSpace(sinkID)
	if sourceID == "" || sinkID == "" {
		return nil
	}
	return tx.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Where("sink_id = ?", sinkID).
		Delete(&models.CurrentBlock{}).Error
}

func (s *Store) GetCurrentBlock(ctx context.Context, sourceID, sinkID string) (*models.CurrentBlock, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	sourceID = strings.TrimSpace(sourceID)
	sinkID = strings.TrimSpace(sinkID)
	if sourceID == "" || sinkID == "" {
		return nil, nil
	}
	var item models.CurrentBlock
	err := s.db.WithContext(ctx).
		Model(&models.CurrentBlock{}).
		Where("source_id = ?", sourceID).
		Where("sink_id = ?", sinkID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListCurrentBlocks(ctx context.Context, params repository.ListCurrentBlocksParams) ([]models.CurrentBlock, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.currentBlocksQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "updated_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.CurrentBlock
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountCurrentBlocks(ctx context.Context, params repository.ListCurrentBlocksParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.currentBlocksQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) currentBlocksQuery(ctx context.Context, params repository.ListCurrentBlocksParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.CurrentBlock{})
	if params.SourceID != nil && strings.TrimSpace(*params.SourceID) != "" {
		query = query.Where("source_id = ?", strings.TrimSpace(*params.SourceID))
	}
	if params.SinkID != nil && strings.TrimSpace(*params.SinkID) != "" {
		query = query.Where("sink_id = ?", strings.TrimSpace(*params.SinkID))
	}
	if params.Shared != nil {
		query = query.Where("shared = ?", *params.Shared)
	}
	return query
}

// --- System settings ----------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SystemSetting{})
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		pattern := strings.TrimSpace(*params.Prefix) + "%"
		query = query.Where("key LIKE ?", pattern)
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "key")
	limit := normalizeLimit(params.Limit, 500)
	offset := normalizeOffset(params.Offset)
	var items []models.SystemSetting
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SystemSetting{})
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		pattern := strings.TrimSpace(*params.Prefix) + "%"
		query = query.Where("key LIKE ?", pattern)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// --- helpers ------------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return db.CreateInBatches(items, batchSize).Error
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
