package models

import "time"

// CurrentBlock is the derived per-(source, sink) projection: a row exists iff
// the source blocked the sink as of the engine's last observation. The
// composite primary key keeps the pair unique by construction.
type CurrentBlock struct {
	SourceID  string    `gorm:"primaryKey;type:text"`
	SinkID    string    `gorm:"primaryKey;type:text"`
	ActionID  uint64    `gorm:"not null"`
	Shared    bool      `gorm:"not null;default:false"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (CurrentBlock) TableName() string {
	return "current_blocks"
}
