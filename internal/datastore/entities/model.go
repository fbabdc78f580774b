package entities

import "time"

// ModelType distinguishes the inference adapters.
type ModelType string

const (
	ModelTypeClassification ModelType = "classification"
	ModelTypeDetection      ModelType = "detection"
	ModelTypeDummy          ModelType = "dummy"
)

// ModelStatus is the lifecycle state of an uploaded model.
type ModelStatus string

const (
	ModelStatusUploaded ModelStatus = "uploaded"
	ModelStatusActive   ModelStatus = "active"
	ModelStatusArchived ModelStatus = "archived"
)

// Model is a model artifact registered for a workplace.
// At most one model per workplace has status active.
type Model struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	WorkplaceID  uint        `gorm:"not null;index" json:"workplace_id"`
	Version      string      `gorm:"type:varchar(50);not null" json:"version"`
	ModelPath    string      `gorm:"type:varchar(500);not null" json:"model_path"`
	ModelType    ModelType   `gorm:"type:varchar(20);not null;default:classification" json:"model_type"`
	Scheme       string      `gorm:"type:varchar(20);not null;default:seven_class" json:"scheme"`
	Status       ModelStatus `gorm:"type:varchar(20);not null;default:uploaded;index" json:"status"`
	UploadedAt   time.Time   `gorm:"autoCreateTime" json:"uploaded_at"`
	UploadedBy   string      `gorm:"type:varchar(100);not null;default:admin" json:"uploaded_by"`
	TestAccuracy *float64    `json:"test_accuracy"`
	Config       *string     `gorm:"type:text" json:"config"`
	Notes        *string     `gorm:"type:text" json:"notes"`
}

// TableName returns the table name for GORM.
func (Model) TableName() string {
	return "models"
}
