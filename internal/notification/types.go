// Package notification delivers inspection events to external sinks (MQTT
// and webhooks). Delivery is asynchronous and best effort.
package notification

import (
	"context"
	"time"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
)

// InspectionEvent describes a finished inspection.
type InspectionEvent struct {
	AnalysisID   uint      `json:"analysis_id"`
	WorkplaceID  *uint     `json:"workplace_id,omitempty"`
	Workplace    string    `json:"workplace,omitempty"`
	Status       string    `json:"status"`
	ClassID      int       `json:"class_id"`
	ClassName    string    `json:"class_name"`
	Label        string    `json:"label"`
	Confidence   float64   `json:"confidence"`
	MissingItems []string  `json:"missing_items"`
	DeviceID     string    `json:"device_id"`
	ModelType    string    `json:"model_type"`
	ModelVersion string    `json:"model_version"`
	Stored       bool      `json:"stored"`
	Timestamp    time.Time `json:"timestamp"`
}

// IsNOK reports whether the inspection failed.
func (e InspectionEvent) IsNOK() bool {
	return e.Status == entities.StatusNOK
}

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, event InspectionEvent) error
	Close() error
}
