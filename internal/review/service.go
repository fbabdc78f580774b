package review

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inference"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// CorrectionRecorder counts corrections by candidate outcome.
type CorrectionRecorder interface {
	RecordCorrection(candidate bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordCorrection(bool) {}

// Correction is a reviewer's verdict on an analysis.
type Correction struct {
	CorrectedClass   int     `json:"corrected_class"`
	CorrectedLabel   string  `json:"corrected_label"`
	Notes            string  `json:"notes"`
	ThresholdPercent float64 `json:"confidence_threshold"`
}

// CorrectResult reports the outcome of a correction.
type CorrectResult struct {
	AnalysisID  uint     `json:"analysis_id"`
	Decision    Decision `json:"decision"`
	ImagePurged bool     `json:"image_purged"`
}

// SkippedAnalysis is an analysis that could not be copied into an export.
type SkippedAnalysis struct {
	ID     uint   `json:"id"`
	Reason string `json:"reason"`
}

// ExportResult summarizes a training export.
type ExportResult struct {
	ExportPath        string            `json:"export_path"`
	Requested         int               `json:"requested"`
	TotalExported     int               `json:"total_exported"`
	Skipped           []SkippedAnalysis `json:"skipped"`
	ClassDistribution map[string]int    `json:"class_distribution"`
}

// Service applies corrections and exports reviewed analyses for retraining.
type Service struct {
	analyses  repository.AnalysisRepository
	exportDir string
	target    int
	metrics   CorrectionRecorder
	log       logger.Logger
	now       func() time.Time
}

// NewService creates a review service. Exports are written below exportDir;
// target is the retraining goal reported by TrainingStatistics.
func NewService(analyses repository.AnalysisRepository, exportDir string, target int, metrics CorrectionRecorder) *Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{
		analyses:  analyses,
		exportDir: exportDir,
		target:    target,
		metrics:   metrics,
		log:       GetLogger(),
		now:       time.Now,
	}
}

func validationError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("review").
		Category(errors.CategoryValidation).
		Build()
}

// Correct stores a correction and decides whether the analysis is kept for
// retraining. Images of analyses that are not kept are purged.
func (s *Service) Correct(ctx context.Context, id uint, c Correction) (*CorrectResult, error) {
	label := strings.TrimSpace(c.CorrectedLabel)
	if label == "" {
		return nil, validationError("corrected label is required")
	}
	if c.CorrectedClass < 0 {
		return nil, validationError("corrected class must not be negative")
	}
	threshold := c.ThresholdPercent
	if threshold == 0 {
		threshold = DefaultThresholdPercent
	}
	if threshold < 0 || threshold > 100 {
		return nil, validationError("confidence threshold must be between 0 and 100")
	}

	a, err := s.analyses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	label = canonicalLabel(a.Scheme, label)

	decision := Decide(a.PredictedLabel, label, a.Confidence, threshold, c.Notes)

	var notes *string
	if strings.TrimSpace(c.Notes) != "" {
		n := c.Notes
		notes = &n
	}
	if err := s.analyses.ApplyCorrection(ctx, id, repository.Correction{
		CorrectedClass:    c.CorrectedClass,
		CorrectedLabel:    label,
		Notes:             notes,
		TrainingCandidate: decision.Candidate,
	}); err != nil {
		return nil, err
	}
	s.metrics.RecordCorrection(decision.Candidate)

	result := &CorrectResult{AnalysisID: id, Decision: decision}
	if !decision.Candidate && a.ImagePath != nil {
		result.ImagePurged = s.purgeImage(ctx, a)
	}

	s.log.Info("analysis corrected",
		logger.Uint64("analysis_id", uint64(id)),
		logger.String("predicted", a.PredictedLabel),
		logger.String("corrected", label),
		logger.Float64("confidence", a.Confidence),
		logger.Bool("candidate", decision.Candidate),
		logger.Bool("image_purged", result.ImagePurged))

	return result, nil
}

// canonicalLabel maps a display name such as "OK" to the stored label of the
// analysis' class table. Unknown labels are kept as given.
func canonicalLabel(scheme, label string) string {
	cs, err := inference.SchemeFor(scheme)
	if err != nil {
		return label
	}
	if c, ok := cs.Resolve(label); ok {
		return c.Label
	}
	return label
}

// purgeImage removes the stored photo. Failures are logged and leave the
// path in place.
func (s *Service) purgeImage(ctx context.Context, a *entities.Analysis) bool {
	path := *a.ImagePath
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to remove analysis image",
			logger.Uint64("analysis_id", uint64(a.ID)),
			logger.String("path", path),
			logger.Error(err))
		return false
	}
	if err := s.analyses.ClearImagePath(ctx, a.ID); err != nil {
		s.log.Warn("failed to clear analysis image path",
			logger.Uint64("analysis_id", uint64(a.ID)),
			logger.Error(err))
		return false
	}
	return true
}

// Delete removes an analysis and its stored photo. A photo that cannot be
// removed is logged and does not fail the call.
func (s *Service) Delete(ctx context.Context, id uint) error {
	a, err := s.analyses.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.analyses.Delete(ctx, id); err != nil {
		return err
	}
	if a.ImagePath != nil {
		if err := os.Remove(*a.ImagePath); err != nil && !os.IsNotExist(err) {
			s.log.Warn("failed to remove image of deleted analysis",
				logger.Uint64("analysis_id", uint64(id)),
				logger.Error(err))
		}
	}
	s.log.Info("analysis deleted", logger.Uint64("analysis_id", uint64(id)))
	return nil
}

// TrainingCandidates lists reviewed analyses waiting for export.
func (s *Service) TrainingCandidates(ctx context.Context, thresholdPercent float64) ([]entities.Analysis, error) {
	if thresholdPercent == 0 {
		thresholdPercent = DefaultThresholdPercent
	}
	if thresholdPercent < 0 || thresholdPercent > 100 {
		return nil, validationError("confidence threshold must be between 0 and 100")
	}
	return s.analyses.TrainingCandidates(ctx, thresholdPercent)
}

// TrainingStatistics reports progress toward the retraining target.
func (s *Service) TrainingStatistics(ctx context.Context) (*repository.TrainingStatistics, error) {
	return s.analyses.TrainingStatistics(ctx, s.target)
}

var exportNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ExportForTraining copies the images of the given analyses into
// <exportDir>/<name>/<corrected_class>/ and marks the copied analyses as
// exported. Skipped analyses stay unexported. Calling it twice for the same
// ids is harmless.
func (s *Service) ExportForTraining(ctx context.Context, ids []uint, name string) (*ExportResult, error) {
	if len(ids) == 0 {
		return nil, validationError("no analyses selected")
	}
	if name == "" {
		name = "export_" + s.now().Format("20060102_150405")
	}
	if !exportNamePattern.MatchString(name) || strings.Contains(name, "..") {
		return nil, validationError("invalid export name %q", name)
	}

	dir := filepath.Join(s.exportDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("review").
			Category(errors.CategoryFileIO).
			Context("operation", "training_export").
			Build()
	}

	result := &ExportResult{
		ExportPath:        dir,
		Requested:         len(ids),
		ClassDistribution: map[string]int{},
	}
	exported := make([]uint, 0, len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := s.analyses.GetByID(ctx, id)
		if errors.Is(err, repository.ErrAnalysisNotFound) {
			result.Skipped = append(result.Skipped, SkippedAnalysis{ID: id, Reason: "not found"})
			continue
		}
		if err != nil {
			return nil, err
		}
		if a.CorrectedClass == nil {
			result.Skipped = append(result.Skipped, SkippedAnalysis{ID: id, Reason: "not reviewed"})
			continue
		}
		if a.ImagePath == nil {
			result.Skipped = append(result.Skipped, SkippedAnalysis{ID: id, Reason: "no image"})
			continue
		}

		class := strconv.Itoa(*a.CorrectedClass)
		dst := filepath.Join(dir, class, filepath.Base(*a.ImagePath))
		if err := copyFile(*a.ImagePath, dst); err != nil {
			reason := "copy failed"
			if os.IsNotExist(err) {
				reason = "image missing"
			} else {
				s.log.Warn("failed to copy analysis image",
					logger.Uint64("analysis_id", uint64(id)),
					logger.Error(err))
			}
			result.Skipped = append(result.Skipped, SkippedAnalysis{ID: id, Reason: reason})
			continue
		}
		exported = append(exported, id)
		result.TotalExported++
		result.ClassDistribution[class]++
	}

	// Skipped records stay unexported so they can be retried
	if len(exported) > 0 {
		if err := s.analyses.MarkExported(ctx, exported); err != nil {
			return nil, err
		}
	}

	s.log.Info("training export written",
		logger.String("path", dir),
		logger.Int("requested", result.Requested),
		logger.Int("exported", result.TotalExported),
		logger.Int("skipped", len(result.Skipped)))

	return result, nil
}

// copyFile copies src to dst, creating dst's directory.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return out.Close()
}
