package models

import "time"

// Snapshot is one capture of an account's remote block list. The autoincrement
// id defines recency ordering. Cursor and EntryCount advance page by page while
// the snapshot is incomplete; a sealed snapshot is never written again.
type Snapshot struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	AccountID  string    `gorm:"type:text;index;not null"`
	Complete   bool      `gorm:"not null;default:false;index"`
	Cursor     string    `gorm:"type:text;not null"`
	EntryCount int       `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Snapshot) TableName() string {
	return "snapshots"
}
