package entities

import "time"

// SchemaVersion tracks applied migration steps.
// This is a singleton table (only one row with ID=1).
type SchemaVersion struct {
	ID        uint `gorm:"primaryKey;check:id = 1"`
	Version   int  `gorm:"not null;default:0"`
	Dirty     bool `gorm:"not null;default:false"`
	AppliedAt *time.Time
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (SchemaVersion) TableName() string {
	return "schema_version"
}
