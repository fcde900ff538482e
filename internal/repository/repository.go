package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"blockwatch/internal/models"
)

// Repository is the persistence boundary of the sync engine. Methods with a
// Tx suffix run inside a caller-owned transaction opened via InTx; a page
// append, an action with its projection effect, and a snapshot delete must
// each land as one durable unit.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Accounts
	UpsertAccount(ctx context.Context, item *models.Account) error
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context, params ListAccountsParams) ([]models.Account, error)
	CountAccounts(ctx context.Context, params ListAccountsParams) (int64, error)
	ListStaleAccounts(ctx context.Context, syncedBefore time.Time, limit int) ([]models.Account, error)
	SetAccountEnabled(ctx context.Context, id string, enabled bool) error
	TouchAccountSynced(ctx context.Context, id string, syncedAt time.Time) error

	// Snapshots & entries
	CreateSnapshotTx(ctx context.Context, tx *gorm.DB, item *models.Snapshot) error
	AppendSnapshotEntriesTx(ctx context.Context, tx *gorm.DB, snapshotID uint64, subjectIDs []string) error
	AdvanceSnapshotCursorTx(ctx context.Context, tx *gorm.DB, snapshotID uint64, cursor string, added int) error
	SealSnapshotTx(ctx context.Context, tx *gorm.DB, snapshotID uint64) error
	GetSnapshotByID(ctx context.Context, id uint64) (*models.Snapshot, error)
	ListSnapshots(ctx context.Context, params ListSnapshotsParams) ([]models.Snapshot, error)
	CountSnapshots(ctx context.Context, params ListSnapshotsParams) (int64, error)
	LatestCompleteSnapshots(ctx context.Context, accountID string, limit int) ([]models.Snapshot, error)
	ListSnapshotSubjectIDs(ctx context.Context, snapshotID uint64) ([]string, error)
	ListPrunableSnapshots(ctx context.Context, accountID string, keep int) ([]models.Snapshot, error)
	DeleteSnapshotTx(ctx context.Context, tx *gorm.DB, snapshotID uint64) error

	// Identifier directory
	UpsertIdentitiesTx(ctx context.Context, tx *gorm.DB, items []models.Identity) error
	SaveIdentityProfile(ctx context.Context, item *models.Identity) error
	ListIdentitiesByIDs(ctx context.Context, ids []string) ([]models.Identity, error)
	CountIdentities(ctx context.Context) (int64, error)

	// Actions
	FindRecentDoneAction(ctx context.Context, sourceID, sinkID, actionType string, since time.Time) (*models.Action, error)
	CreateActionTx(ctx context.Context, tx *gorm.DB, item *models.Action) error
	ListActions(ctx context.Context, params ListActionsParams) ([]models.Action, error)
	CountActions(ctx context.Context, params ListActionsParams) (int64, error)

	// Current-block projection
	UpsertCurrentBlockTx(ctx context.Context, tx *gorm.DB, item *models.CurrentBlock) error
	DeleteCurrentBlockTx(ctx context.Context, tx *gorm.DB, sourceID, sinkID string) error
	GetCurrentBlock(ctx context.Context, sourceID, sinkID string) (*models.CurrentBlock, error)
	ListCurrentBlocks(ctx context.Context, params ListCurrentBlocksParams) ([]models.CurrentBlock, error)
	CountCurrentBlocks(ctx context.Context, params ListCurrentBlocksParams) (int64, error)

	// System settings
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
	CountSystemSettings(ctx context.Context, params ListSystemSettingsParams) (int64, error)
}

type ListAccountsParams struct {
	Limit   int
	Offset  int
	Enabled *bool
	Handle  *string
	OrderBy string
	Asc     *bool
}

type ListSnapshotsParams struct {
	Limit     int
	Offset    int
	AccountID *string
	Complete  *bool
	OrderBy   string
	Asc       *bool
}

type ListActionsParams struct {
	Limit    int
	Offset   int
	SourceID *string
	SinkID   *string
	Type     *string
	Cause    *string
	Status   *string
	Since    *time.Time
	OrderBy  string
	Asc      *bool
}

type ListCurrentBlocksParams struct {
	Limit    int
	Offset   int
	SourceID *string
	SinkID   *string
	Shared   *bool
	OrderBy  string
	Asc      *bool
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}
