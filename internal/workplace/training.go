package workplace

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/imaging"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// UnlabeledLabel is assigned to training images uploaded without a label.
const UnlabeledLabel = "unlabeled"

// TrainingUpload describes an uploaded training image.
type TrainingUpload struct {
	Filename string
	Data     []byte
	Label    string
	ClassID  *int
	Source   string
}

// TrainingDatasetStats summarizes a workplace's training images.
type TrainingDatasetStats struct {
	TotalImages       int            `json:"total_images"`
	ValidatedImages   int            `json:"validated_images"`
	UsedInTraining    int            `json:"used_in_training"`
	LabelDistribution map[string]int `json:"label_distribution"`
}

func invalidLabelError(label string) error {
	return validationError("invalid label %q: use letters, digits, '_' or '-' (max 64)", label)
}

func validSource(source string) bool {
	switch source {
	case entities.SourceManualUpload, entities.SourceProduction, entities.SourceCamera:
		return true
	}
	return false
}

// AddTrainingImage stores an uploaded image below
// training_images/workplace_<id>/ and registers it.
func (s *Service) AddTrainingImage(ctx context.Context, workplaceID uint, up TrainingUpload) (*entities.TrainingImage, error) {
	if _, err := s.Get(ctx, workplaceID); err != nil {
		return nil, err
	}
	if _, _, err := imaging.Decode(up.Data); err != nil {
		return nil, err
	}

	label := strings.TrimSpace(up.Label)
	if label == "" {
		label = UnlabeledLabel
	}
	if !entities.ValidLabel(label) {
		return nil, invalidLabelError(label)
	}
	source := up.Source
	if source == "" {
		source = entities.SourceManualUpload
	}
	if !validSource(source) {
		return nil, validationError("unknown training image source %q", source)
	}

	name := fmt.Sprintf("training_%d_%s_%s", workplaceID, s.timestamp(), safeFileName(up.Filename))
	path := filepath.Join(s.paths.TrainingImages, fmt.Sprintf("workplace_%d", workplaceID), name)
	if err := writeFile(path, up.Data); err != nil {
		return nil, err
	}

	img := &entities.TrainingImage{
		WorkplaceID: workplaceID,
		ImagePath:   toSlash(path),
		Label:       label,
		ClassID:     up.ClassID,
		Source:      source,
	}
	if err := s.store.TrainingImages.Create(ctx, img); err != nil {
		s.removeBestEffort(path, "training image")
		return nil, classify(err, "add_training_image")
	}

	s.log.Debug("training image added",
		logger.Uint64("workplace_id", uint64(workplaceID)),
		logger.Uint64("image_id", uint64(img.ID)),
		logger.String("label", label))
	return img, nil
}

// ListTrainingImages returns a workplace's training images newest first.
func (s *Service) ListTrainingImages(ctx context.Context, workplaceID uint, validatedOnly bool) ([]entities.TrainingImage, error) {
	if _, err := s.Get(ctx, workplaceID); err != nil {
		return nil, err
	}
	images, err := s.store.TrainingImages.List(ctx, workplaceID, validatedOnly)
	return images, classify(err, "list_training_images")
}

// UpdateTrainingImage relabels or validates a training image.
func (s *Service) UpdateTrainingImage(ctx context.Context, id uint, u repository.TrainingImageUpdate) (*entities.TrainingImage, error) {
	if u.Label != nil {
		label := strings.TrimSpace(*u.Label)
		if label == "" {
			return nil, validationError("label must not be empty")
		}
		if !entities.ValidLabel(label) {
			return nil, invalidLabelError(label)
		}
		u.Label = &label
	}
	img, err := s.store.TrainingImages.Update(ctx, id, u)
	return img, classify(err, "update_training_image")
}

// DeleteTrainingImage removes the row and, best effort, the file.
func (s *Service) DeleteTrainingImage(ctx context.Context, id uint) error {
	img, err := s.store.TrainingImages.GetByID(ctx, id)
	if err != nil {
		return classify(err, "delete_training_image")
	}
	if err := s.store.TrainingImages.Delete(ctx, id); err != nil {
		return classify(err, "delete_training_image")
	}
	s.removeBestEffort(img.ImagePath, "training image")
	return nil
}

// TrainingDatasetStats counts a workplace's training images by label.
func (s *Service) TrainingDatasetStats(ctx context.Context, workplaceID uint) (*TrainingDatasetStats, error) {
	images, err := s.store.TrainingImages.List(ctx, workplaceID, false)
	if err != nil {
		return nil, classify(err, "training_dataset_stats")
	}
	stats := &TrainingDatasetStats{LabelDistribution: map[string]int{}}
	for i := range images {
		stats.TotalImages++
		if images[i].Validated {
			stats.ValidatedImages++
		}
		if images[i].UsedInTraining {
			stats.UsedInTraining++
		}
		stats.LabelDistribution[images[i].Label]++
	}
	return stats, nil
}

// PerformanceStats reports model errors on the workplace's reviewed analyses.
func (s *Service) PerformanceStats(ctx context.Context, workplaceID uint, modelVersion string) (*repository.DatasetStats, error) {
	if _, err := s.Get(ctx, workplaceID); err != nil {
		return nil, err
	}
	stats, err := s.store.Analyses.DatasetStats(ctx, workplaceID, modelVersion)
	return stats, classify(err, "performance_stats")
}

// Exports lists a workplace's dataset exports newest first.
func (s *Service) Exports(ctx context.Context, workplaceID uint) ([]entities.DatasetExport, error) {
	if _, err := s.Get(ctx, workplaceID); err != nil {
		return nil, err
	}
	exports, err := s.store.DatasetExports.List(ctx, workplaceID)
	return exports, classify(err, "list_exports")
}
