package models

import "time"

const (
	ActionTypeBlock   = "block"
	ActionTypeUnblock = "unblock"

	ActionCauseExternal = "external"
	ActionCauseManual   = "manual"

	ActionStatusPending = "pending"
	ActionStatusDone    = "done"
)

// Action records one observed or requested block/unblock transition between a
// source account and a sink identifier.
type Action struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	SourceID  string    `gorm:"type:text;index:idx_actions_source_sink;not null"`
	SinkID    string    `gorm:"type:text;index:idx_actions_source_sink;not null"`
	Type      string    `gorm:"type:text;not null"`
	Cause     string    `gorm:"type:text;not null"`
	Status    string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (Action) TableName() string {
	return "actions"
}
