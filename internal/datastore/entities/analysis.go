package entities

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Inspection verdict statuses.
const (
	StatusOK  = "OK"
	StatusNOK = "NOK"
)

// DefaultDeviceID is recorded when the client cannot be identified.
const DefaultDeviceID = "onbekend"

// Analysis is one inspection record. Prediction fields are written once at
// creation; corrections are stored next to them.
type Analysis struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time      `gorm:"not null;index" json:"timestamp"`
	ImagePath      *string        `gorm:"type:varchar(500)" json:"image_path"`
	PredictedClass int            `gorm:"not null" json:"predicted_class"`
	PredictedLabel string         `gorm:"type:varchar(64);not null;index" json:"predicted_label"`
	Confidence     float64        `gorm:"not null" json:"confidence"`
	Status         string         `gorm:"type:varchar(8);not null;index" json:"status"`
	MissingItems   datatypes.JSON `gorm:"not null" json:"missing_items"`

	CorrectedClass      *int    `json:"corrected_class"`
	CorrectedLabel      *string `gorm:"type:varchar(64);index" json:"corrected_label"`
	Notes               *string `gorm:"type:text" json:"notes"`
	TrainingCandidate   bool    `gorm:"not null;default:false;index" json:"training_candidate"`
	ExportedForTraining bool    `gorm:"not null;default:false;index" json:"exported_for_training"`

	FaceCount    int    `gorm:"not null;default:0" json:"face_count"`
	DeviceID     string `gorm:"type:varchar(100);not null;default:onbekend" json:"device_id"`
	WorkplaceID  *uint  `gorm:"index" json:"workplace_id"`
	ModelType    string `gorm:"type:varchar(20)" json:"model_type"`
	ModelVersion string `gorm:"type:varchar(50);index" json:"model_version"`
	Scheme       string `gorm:"type:varchar(20)" json:"scheme"`

	DetectedHamer   int `gorm:"not null;default:0" json:"detected_hamer"`
	DetectedSchaar  int `gorm:"not null;default:0" json:"detected_schaar"`
	DetectedSleutel int `gorm:"not null;default:0" json:"detected_sleutel"`
	TotalDetections int `gorm:"not null;default:0" json:"total_detections"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName returns the table name for GORM.
func (Analysis) TableName() string {
	return "analyses"
}

// BeforeSave fills empty JSON columns and the device id.
func (a *Analysis) BeforeSave(*gorm.DB) error {
	if len(a.MissingItems) == 0 {
		a.MissingItems = datatypes.JSON("[]")
	}
	if a.DeviceID == "" {
		a.DeviceID = DefaultDeviceID
	}
	return nil
}

// MissingItemList decodes the missing tool names.
func (a *Analysis) MissingItemList() []string {
	return decodeStrings(a.MissingItems)
}

// SetMissingItems stores the missing tool names.
func (a *Analysis) SetMissingItems(items []string) {
	a.MissingItems = encodeStrings(items)
}

// IsReviewed reports whether a human correction exists.
func (a *Analysis) IsReviewed() bool {
	return a.CorrectedLabel != nil
}
