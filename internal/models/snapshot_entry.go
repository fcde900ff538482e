package models

// SnapshotEntry is one blocked identifier captured within a snapshot. SubjectID
// stays text end to end; large identifiers lose precision as numbers.
type SnapshotEntry struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	SnapshotID uint64 `gorm:"index;not null"`
	SubjectID  string `gorm:"type:text;not null"`
}

func (SnapshotEntry) TableName() string {
	return "snapshot_entries"
}
