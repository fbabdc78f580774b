package entities

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatasetExport records a packaged dataset archive.
type DatasetExport struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	WorkplaceID       uint           `gorm:"not null;index" json:"workplace_id"`
	ExportPath        string         `gorm:"type:varchar(500);not null" json:"export_path"`
	ImageCount        int            `gorm:"not null;default:0" json:"image_count"`
	ClassDistribution datatypes.JSON `gorm:"not null" json:"class_distribution"`
	ExportedAt        time.Time      `gorm:"autoCreateTime" json:"exported_at"`
	ExportedBy        string         `gorm:"type:varchar(100);not null;default:admin" json:"exported_by"`
	Notes             *string        `gorm:"type:text" json:"notes"`
}

// TableName returns the table name for GORM.
func (DatasetExport) TableName() string {
	return "dataset_exports"
}

// BeforeSave fills the distribution column.
func (d *DatasetExport) BeforeSave(*gorm.DB) error {
	if len(d.ClassDistribution) == 0 {
		d.ClassDistribution = datatypes.JSON("{}")
	}
	return nil
}

// SetDistribution stores the per-label image counts.
func (d *DatasetExport) SetDistribution(dist map[string]int) {
	data, _ := json.Marshal(dist)
	d.ClassDistribution = datatypes.JSON(data)
}

// Distribution decodes the per-label image counts.
func (d *DatasetExport) Distribution() map[string]int {
	out := map[string]int{}
	if len(d.ClassDistribution) > 0 {
		_ = json.Unmarshal(d.ClassDistribution, &out)
	}
	return out
}
