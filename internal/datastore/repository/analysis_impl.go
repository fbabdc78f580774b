package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

const commonIssuesLimit = 5

// analysisRepository implements AnalysisRepository.
type analysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository creates a new AnalysisRepository.
func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) model(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&entities.Analysis{})
}

// scope applies the non-pagination filter fields.
func scope(q *gorm.DB, f AnalysisFilter, withStatus bool) *gorm.DB {
	if f.WorkplaceID != nil {
		q = q.Where("workplace_id = ?", *f.WorkplaceID)
	}
	if f.ModelVersion != "" {
		q = q.Where("model_version = ?", f.ModelVersion)
	}
	if withStatus && f.Status != "" {
		q = q.Where("status = ?", strings.ToUpper(f.Status))
	}
	return q
}

// Create inserts a new analysis.
func (r *analysisRepository) Create(ctx context.Context, a *entities.Analysis) error {
	if a == nil {
		return ErrInvalidInput
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	return mapWriteError(r.db.WithContext(ctx).Create(a).Error)
}

// GetByID retrieves an analysis.
func (r *analysisRepository) GetByID(ctx context.Context, id uint) (*entities.Analysis, error) {
	var a entities.Analysis
	err := r.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns analyses newest first.
func (r *analysisRepository) List(ctx context.Context, filter AnalysisFilter) ([]entities.Analysis, error) {
	q := scope(r.model(ctx), filter, true).Order("timestamp DESC, id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var out []entities.Analysis
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of matching analyses.
func (r *analysisRepository) Count(ctx context.Context, filter AnalysisFilter) (int64, error) {
	var count int64
	err := scope(r.model(ctx), filter, true).Count(&count).Error
	return count, err
}

// Statistics aggregates analyses. The status filter is ignored so that
// OK and NOK counts stay comparable.
func (r *analysisRepository) Statistics(ctx context.Context, filter AnalysisFilter) (*Statistics, error) {
	stats := &Statistics{CommonIssues: []IssueCount{}}

	if err := scope(r.model(ctx), filter, false).Count(&stats.TotalAnalyses).Error; err != nil {
		return nil, err
	}

	var byStatus []struct {
		Status string
		Count  int64
	}
	if err := scope(r.model(ctx), filter, false).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, s := range byStatus {
		switch s.Status {
		case entities.StatusOK:
			stats.OKCount = s.Count
		case entities.StatusNOK:
			stats.NOKCount = s.Count
		}
	}

	if err := scope(r.model(ctx), filter, false).
		Select("predicted_label AS label, COUNT(*) AS count").
		Where("status = ?", entities.StatusNOK).
		Group("predicted_label").
		Order("count DESC").
		Limit(commonIssuesLimit).
		Scan(&stats.CommonIssues).Error; err != nil {
		return nil, err
	}

	var avg float64
	if err := scope(r.model(ctx), filter, false).
		Select("COALESCE(AVG(confidence), 0)").
		Row().Scan(&avg); err != nil {
		return nil, err
	}
	stats.AvgConfidence = round(avg, 2)

	if err := scope(r.model(ctx), filter, false).
		Where("corrected_class IS NOT NULL").
		Count(&stats.CorrectionsCount).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// AccuracyTimeline groups reviewed analyses by year and Monday-based week number.
func (r *analysisRepository) AccuracyTimeline(ctx context.Context) ([]WeeklyAccuracy, error) {
	var rows []struct {
		CreatedAt      time.Time
		PredictedLabel string
		CorrectedLabel string
	}
	if err := r.model(ctx).
		Select("created_at, predicted_label, corrected_label").
		Where("corrected_label IS NOT NULL").
		Order("created_at ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	timeline := []WeeklyAccuracy{}
	index := map[string]int{}
	for _, row := range rows {
		week := WeekKey(row.CreatedAt)
		i, ok := index[week]
		if !ok {
			i = len(timeline)
			index[week] = i
			timeline = append(timeline, WeeklyAccuracy{
				Week: week,
				Date: row.CreatedAt.Format(time.DateOnly),
			})
		}
		timeline[i].Total++
		if row.PredictedLabel == row.CorrectedLabel {
			timeline[i].Correct++
		}
	}

	for i := range timeline {
		timeline[i].Accuracy = percent(int64(timeline[i].Correct), int64(timeline[i].Total))
	}
	return timeline, nil
}

// WeekKey formats t as "YYYY-Www" where weeks start on Monday and days
// before the first Monday of the year belong to week 00.
func WeekKey(t time.Time) string {
	mondayBased := (int(t.Weekday()) + 6) % 7
	week := (t.YearDay() - 1 + 7 - mondayBased) / 7
	return fmt.Sprintf("%d-W%02d", t.Year(), week)
}

// ApplyCorrection writes the correction fields.
func (r *analysisRepository) ApplyCorrection(ctx context.Context, id uint, c Correction) error {
	if strings.TrimSpace(c.CorrectedLabel) == "" {
		return ErrInvalidInput
	}
	result := r.model(ctx).Where("id = ?", id).UpdateColumns(map[string]any{
		"corrected_class":    c.CorrectedClass,
		"corrected_label":    c.CorrectedLabel,
		"notes":              c.Notes,
		"training_candidate": c.TrainingCandidate,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// MySQL reports zero affected rows when the values are unchanged
		return r.requireExists(ctx, id)
	}
	return nil
}

// ClearImagePath sets the image path to NULL.
func (r *analysisRepository) ClearImagePath(ctx context.Context, id uint) error {
	result := r.model(ctx).Where("id = ?", id).UpdateColumn("image_path", gorm.Expr("NULL"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.requireExists(ctx, id)
	}
	return nil
}

// MarkExported flags the analyses as exported.
func (r *analysisRepository) MarkExported(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return ErrInvalidInput
	}
	return r.model(ctx).Where("id IN ?", ids).UpdateColumn("exported_for_training", true).Error
}

// TrainingCandidates returns analyses ready for retraining.
func (r *analysisRepository) TrainingCandidates(ctx context.Context, thresholdPercent float64) ([]entities.Analysis, error) {
	var out []entities.Analysis
	err := r.model(ctx).
		Where("corrected_label IS NOT NULL").
		Where("exported_for_training = ?", false).
		Where("predicted_label <> corrected_label OR confidence < ? OR training_candidate = ?", thresholdPercent/100, true).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TrainingStatistics summarizes the retraining queue.
func (r *analysisRepository) TrainingStatistics(ctx context.Context, target int) (*TrainingStatistics, error) {
	if target <= 0 {
		return nil, ErrInvalidInput
	}
	stats := &TrainingStatistics{TrainingTarget: target}

	if err := r.model(ctx).Where("corrected_label IS NULL").Count(&stats.UnreviewedCount).Error; err != nil {
		return nil, err
	}
	if err := r.model(ctx).
		Where("training_candidate = ? AND exported_for_training = ?", true, false).
		Count(&stats.TrainingQueueCount).Error; err != nil {
		return nil, err
	}
	if err := r.model(ctx).Where("exported_for_training = ?", true).Count(&stats.ExportedCount).Error; err != nil {
		return nil, err
	}

	stats.TrainingProgressPercent = math.Min(100, percent(stats.TrainingQueueCount, int64(target)))
	return stats, nil
}

// reviewNotes is the structured form reviewers may store in notes.
type reviewNotes struct {
	MissingItems    []string `json:"missing_items"`
	FalsePositives  []string `json:"false_positives"`
	IncorrectCounts map[string]struct {
		Detected int `json:"detected"`
		Expected int `json:"expected"`
	} `json:"incorrect_counts"`
}

// DatasetStats reports model errors for a workplace.
func (r *analysisRepository) DatasetStats(ctx context.Context, workplaceID uint, modelVersion string) (*DatasetStats, error) {
	base := func() *gorm.DB {
		return scope(r.model(ctx), AnalysisFilter{WorkplaceID: &workplaceID, ModelVersion: modelVersion}, false)
	}
	reviewed := func() *gorm.DB {
		return base().Where("corrected_label IS NOT NULL AND corrected_label <> ''")
	}

	stats := &DatasetStats{
		ErrorTypes:        []ErrorType{},
		LabelDistribution: map[string]int64{},
		DetectionErrors: DetectionErrors{
			Missing:       map[string]int{},
			FalsePositive: map[string]int{},
			CountError:    map[string]int{},
		},
	}

	if err := base().Count(&stats.TotalImages).Error; err != nil {
		return nil, err
	}
	if err := reviewed().Count(&stats.LabeledCount).Error; err != nil {
		return nil, err
	}
	stats.UnlabeledCount = stats.TotalImages - stats.LabeledCount
	stats.TrainingReady = stats.LabeledCount

	if err := reviewed().Where("predicted_label = corrected_label").Count(&stats.CorrectPredictions).Error; err != nil {
		return nil, err
	}
	if err := reviewed().Where("predicted_label <> corrected_label").Count(&stats.IncorrectPredictions).Error; err != nil {
		return nil, err
	}
	stats.Accuracy = percent(stats.CorrectPredictions, stats.LabeledCount)

	if err := reviewed().
		Select("predicted_label AS predicted, corrected_label AS actual, COUNT(*) AS count").
		Where("predicted_label <> corrected_label").
		Group("predicted_label, corrected_label").
		Order("count DESC").
		Scan(&stats.ErrorTypes).Error; err != nil {
		return nil, err
	}
	for i := range stats.ErrorTypes {
		et := &stats.ErrorTypes[i]
		et.Description = fmt.Sprintf("Model zei '%s' maar was '%s'", et.Predicted, et.Actual)
	}

	var dist []struct {
		Label string
		Count int64
	}
	if err := reviewed().
		Select("corrected_label AS label, COUNT(*) AS count").
		Group("corrected_label").
		Scan(&dist).Error; err != nil {
		return nil, err
	}
	for _, d := range dist {
		stats.LabelDistribution[d.Label] = d.Count
	}

	var notes []string
	if err := base().
		Where("notes IS NOT NULL AND notes <> '' AND notes <> '{}'").
		Pluck("notes", &notes).Error; err != nil {
		return nil, err
	}
	for _, raw := range notes {
		var n reviewNotes
		if json.Unmarshal([]byte(raw), &n) != nil {
			// Free-text notes carry no per-item detail
			continue
		}
		for _, item := range n.MissingItems {
			stats.DetectionErrors.Missing[item]++
		}
		for _, item := range n.FalsePositives {
			stats.DetectionErrors.FalsePositive[item]++
		}
		for item, c := range n.IncorrectCounts {
			key := fmt.Sprintf("%s (%dx ipv %dx)", item, c.Detected, c.Expected)
			stats.DetectionErrors.CountError[key]++
		}
	}

	return stats, nil
}

// Delete removes an analysis row.
func (r *analysisRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.Analysis{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAnalysisNotFound
	}
	return nil
}

// All streams every analysis newest first.
func (r *analysisRepository) All(ctx context.Context, fn func(*entities.Analysis) error) error {
	db := r.db.WithContext(ctx)
	rows, err := db.Model(&entities.Analysis{}).Order("timestamp DESC, id DESC").Rows()
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var a entities.Analysis
		if err := db.ScanRows(rows, &a); err != nil {
			return err
		}
		if err := fn(&a); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *analysisRepository) requireExists(ctx context.Context, id uint) error {
	var count int64
	if err := r.model(ctx).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrAnalysisNotFound
	}
	return nil
}

// round rounds v to the given number of decimals.
func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// percent returns part/total as a percentage with one decimal, 0 when total is 0.
func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(part)/float64(total)*100, 1)
}
