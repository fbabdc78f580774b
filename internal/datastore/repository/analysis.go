package repository

import (
	"context"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
)

// AnalysisRepository is the audit log of inspections.
type AnalysisRepository interface {
	// Create inserts a new analysis. Prediction fields are never updated afterwards.
	Create(ctx context.Context, a *entities.Analysis) error

	// GetByID retrieves an analysis.
	// Returns ErrAnalysisNotFound if not found.
	GetByID(ctx context.Context, id uint) (*entities.Analysis, error)

	// List returns analyses newest first, honoring all filter fields.
	List(ctx context.Context, filter AnalysisFilter) ([]entities.Analysis, error)

	// Count returns the number of analyses matching the filter, ignoring pagination.
	Count(ctx context.Context, filter AnalysisFilter) (int64, error)

	// Statistics aggregates analyses scoped by the filter's workplace and model version.
	Statistics(ctx context.Context, filter AnalysisFilter) (*Statistics, error)

	// AccuracyTimeline returns per-week accuracy of reviewed analyses, oldest week first.
	AccuracyTimeline(ctx context.Context) ([]WeeklyAccuracy, error)

	// ApplyCorrection writes only the correction fields and the candidate flag.
	// Returns ErrAnalysisNotFound if not found.
	ApplyCorrection(ctx context.Context, id uint, c Correction) error

	// ClearImagePath sets the image path to NULL after the file was purged.
	ClearImagePath(ctx context.Context, id uint) error

	// MarkExported flags the analyses as exported for training. Calling it
	// again for the same ids is a no-op. Returns ErrInvalidInput for no ids.
	MarkExported(ctx context.Context, ids []uint) error

	// TrainingCandidates returns reviewed, not yet exported analyses that were
	// wrong, below thresholdPercent confidence, or flagged, newest first.
	TrainingCandidates(ctx context.Context, thresholdPercent float64) ([]entities.Analysis, error)

	// TrainingStatistics summarizes the retraining queue against target.
	TrainingStatistics(ctx context.Context, target int) (*TrainingStatistics, error)

	// DatasetStats reports model errors for a workplace, optionally for one model version.
	DatasetStats(ctx context.Context, workplaceID uint, modelVersion string) (*DatasetStats, error)

	// Delete removes an analysis row.
	// Returns ErrAnalysisNotFound if not found.
	Delete(ctx context.Context, id uint) error

	// All streams every analysis newest first. Iteration stops at the first error from fn.
	All(ctx context.Context, fn func(*entities.Analysis) error) error
}
