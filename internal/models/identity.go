package models

import "time"

// Identity is the global directory row for an identifier observed anywhere in
// any snapshot. Directory inserts are ignore-if-exists; profile fields are only
// filled by enrichment from lookup responses, never by the bulk insert path.
type Identity struct {
	ID          string     `gorm:"primaryKey;type:text"`
	Handle      *string    `gorm:"type:text"`
	DisplayName *string    `gorm:"type:text"`
	FirstSeenAt time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	CheckedAt   *time.Time `gorm:"type:timestamptz"`
}

func (Identity) TableName() string {
	return "identities"
}
