package models

import "time"

// Account is a tracked account whose remote block list this service mirrors.
// Rows are created through the registration API; the sync engine only reads
// Credential and writes LastSyncedAt.
type Account struct {
	ID           string     `gorm:"primaryKey;type:text"`
	Handle       string     `gorm:"type:text;index"`
	Credential   string     `gorm:"type:text;not null"`
	Enabled      bool       `gorm:"not null;default:true"`
	LastSyncedAt *time.Time `gorm:"type:timestamptz;index"`
	CreatedAt    time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Account) TableName() string {
	return "accounts"
}
