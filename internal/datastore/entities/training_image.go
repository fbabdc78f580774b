package entities

import (
	"regexp"
	"time"
)

// Training image sources.
const (
	SourceManualUpload = "manual_upload"
	SourceProduction   = "production"
	SourceCamera       = "camera"
)

// TrainingImage is a labelled image collected for a workplace dataset.
type TrainingImage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	WorkplaceID    uint      `gorm:"not null;index" json:"workplace_id"`
	ImagePath      string    `gorm:"type:varchar(500);not null" json:"image_path"`
	Label          string    `gorm:"type:varchar(64);not null;index" json:"label"`
	ClassID        *int      `json:"class_id"`
	Source         string    `gorm:"type:varchar(20);not null;default:manual_upload" json:"source"`
	Validated      bool      `gorm:"not null;default:false" json:"validated"`
	UsedInTraining bool      `gorm:"not null;default:false" json:"used_in_training"`
	ModelVersion   *string   `gorm:"type:varchar(50)" json:"model_version"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (TrainingImage) TableName() string {
	return "training_images"
}

var labelPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidLabel reports whether label is a single safe path segment. Labels name
// class directories in dataset archives.
func ValidLabel(label string) bool {
	return labelPattern.MatchString(label)
}
