package entities

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultConfidenceThreshold is the detector threshold given to new workplaces.
const DefaultConfidenceThreshold = 0.25

// Region is a rectangle in normalized [0,1] image coordinates.
type Region struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Valid reports whether the region lies inside the unit square with positive area.
func (r Region) Valid() bool {
	inUnit := func(v float64) bool { return v >= 0 && v <= 1 }
	return inUnit(r.X1) && inUnit(r.Y1) && inUnit(r.X2) && inUnit(r.Y2) && r.X2 > r.X1 && r.Y2 > r.Y1
}

// Contains reports whether the normalized point lies inside the region.
func (r Region) Contains(x, y float64) bool {
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

// Workplace is a physical inspection station with its expected tool set.
type Workplace struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Name                string         `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description         string         `gorm:"type:text" json:"description"`
	Items               datatypes.JSON `gorm:"not null" json:"items"`
	ReferencePhoto      *string        `gorm:"type:varchar(500)" json:"reference_photo"`
	Active              bool           `gorm:"not null;default:true;index" json:"active"`
	ConfidenceThreshold float64        `gorm:"not null;default:0.25" json:"confidence_threshold"`
	WhiteboardRegion    datatypes.JSON `gorm:"not null" json:"whiteboard_region"`
	ActiveModelType     *string        `gorm:"type:varchar(20)" json:"active_model_type"`
	ActiveModelPath     *string        `gorm:"type:varchar(500)" json:"active_model_path"`
	CreatedAt           time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime" json:"updated_at"`

	Models         []Model         `gorm:"foreignKey:WorkplaceID;constraint:OnDelete:CASCADE" json:"-"`
	TrainingImages []TrainingImage `gorm:"foreignKey:WorkplaceID;constraint:OnDelete:CASCADE" json:"-"`
	DatasetExports []DatasetExport `gorm:"foreignKey:WorkplaceID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (Workplace) TableName() string {
	return "workplaces"
}

// BeforeSave fills empty JSON columns.
func (w *Workplace) BeforeSave(*gorm.DB) error {
	if len(w.Items) == 0 {
		w.Items = datatypes.JSON("[]")
	}
	if len(w.WhiteboardRegion) == 0 {
		w.WhiteboardRegion = datatypes.JSON("null")
	}
	return nil
}

// ItemList decodes the expected tool list, preserving order.
func (w *Workplace) ItemList() []string {
	return decodeStrings(w.Items)
}

// SetItems stores the expected tool list.
func (w *Workplace) SetItems(items []string) {
	w.Items = encodeStrings(items)
}

// Region decodes the whiteboard region; nil when none is configured.
func (w *Workplace) Region() *Region {
	if len(w.WhiteboardRegion) == 0 {
		return nil
	}
	var r *Region
	if err := json.Unmarshal(w.WhiteboardRegion, &r); err != nil {
		return nil
	}
	return r
}

// SetRegion stores the whiteboard region; nil clears it.
func (w *Workplace) SetRegion(r *Region) {
	w.WhiteboardRegion = EncodeRegion(r)
}

// EncodeRegion returns the JSON column value for a region.
func EncodeRegion(r *Region) datatypes.JSON {
	if r == nil {
		return datatypes.JSON("null")
	}
	data, _ := json.Marshal(r)
	return datatypes.JSON(data)
}

func encodeStrings(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	return datatypes.JSON(data)
}

func decodeStrings(raw datatypes.JSON) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
