package db

import (
	"blockwatch/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Account{},
		&models.Snapshot{},
		&models.SnapshotEntry{},
		&models.Identity{},
		&models.Action{},
		&models.CurrentBlock{},
		&models.SystemSetting{},
	)
}
