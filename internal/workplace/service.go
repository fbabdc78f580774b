// Package workplace manages workplaces together with their reference photos,
// uploaded models and training images.
package workplace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/imaging"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inference"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// Paths are the storage roots for uploaded files.
type Paths struct {
	ReferencePhotos string
	TrainingImages  string
	Models          string
}

// ModelSwapper loads a model and replaces the cached handle for its path.
type ModelSwapper interface {
	Swap(ref inference.ModelRef) (inference.Inferrer, error)
}

// Service implements workplace management.
type Service struct {
	store   *repository.Store
	swapper ModelSwapper
	paths   Paths
	log     logger.Logger
	now     func() time.Time
}

// NewService creates a workplace service. swapper may be nil, in which case
// activation does not preload the model.
func NewService(store *repository.Store, swapper ModelSwapper, paths Paths) *Service {
	return &Service{
		store:   store,
		swapper: swapper,
		paths:   paths,
		log:     GetLogger(),
		now:     time.Now,
	}
}

// CreateInput holds the fields of a new workplace.
type CreateInput struct {
	Name                string           `json:"name"`
	Description         string           `json:"description"`
	Items               []string         `json:"items"`
	Active              *bool            `json:"active"`
	ConfidenceThreshold *float64         `json:"confidence_threshold"`
	WhiteboardRegion    *entities.Region `json:"whiteboard_region"`
}

// Detail is a workplace with its related records.
type Detail struct {
	Workplace    *entities.Workplace      `json:"workplace"`
	DatasetStats *TrainingDatasetStats    `json:"dataset_stats"`
	Models       []entities.Model         `json:"models"`
	Exports      []entities.DatasetExport `json:"exports"`
}

func validateThreshold(v float64) error {
	if v <= 0 || v > 1 {
		return validationError("confidence threshold must be in (0, 1]")
	}
	return nil
}

func normalizeItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Create registers a new workplace. A duplicate name is a conflict.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entities.Workplace, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("workplace name is required")
	}

	w := &entities.Workplace{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Active:      true,
	}
	w.SetItems(normalizeItems(in.Items))
	if in.Active != nil {
		w.Active = *in.Active
	}
	if in.ConfidenceThreshold != nil {
		if err := validateThreshold(*in.ConfidenceThreshold); err != nil {
			return nil, err
		}
		w.ConfidenceThreshold = *in.ConfidenceThreshold
	}
	if in.WhiteboardRegion != nil {
		if !in.WhiteboardRegion.Valid() {
			return nil, validationError("whiteboard region must lie inside the unit square")
		}
		w.SetRegion(in.WhiteboardRegion)
	}

	if err := s.store.Workplaces.Create(ctx, w); err != nil {
		return nil, classify(err, "create_workplace")
	}
	s.log.Info("workplace created",
		logger.Uint64("workplace_id", uint64(w.ID)),
		logger.String("name", w.Name))
	return w, nil
}

// Get returns a workplace.
func (s *Service) Get(ctx context.Context, id uint) (*entities.Workplace, error) {
	w, err := s.store.Workplaces.GetByID(ctx, id)
	return w, classify(err, "get_workplace")
}

// Detail returns a workplace with dataset statistics, models and exports.
func (s *Service) Detail(ctx context.Context, id uint) (*Detail, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.TrainingDatasetStats(ctx, id)
	if err != nil {
		return nil, err
	}
	models, err := s.store.Models.List(ctx, id, "")
	if err != nil {
		return nil, classify(err, "list_models")
	}
	exports, err := s.store.DatasetExports.List(ctx, id)
	if err != nil {
		return nil, classify(err, "list_exports")
	}
	return &Detail{Workplace: w, DatasetStats: stats, Models: models, Exports: exports}, nil
}

// List returns workplaces ordered by name.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]entities.Workplace, error) {
	out, err := s.store.Workplaces.List(ctx, activeOnly)
	return out, classify(err, "list_workplaces")
}

// Update applies the provided fields only.
func (s *Service) Update(ctx context.Context, id uint, u repository.WorkplaceUpdate) (*entities.Workplace, error) {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, validationError("workplace name must not be empty")
		}
		u.Name = &name
	}
	if u.Items != nil {
		u.Items = normalizeItems(u.Items)
	}
	if u.ConfidenceThreshold != nil {
		if err := validateThreshold(*u.ConfidenceThreshold); err != nil {
			return nil, err
		}
	}
	if r := u.WhiteboardRegion; r != nil && !r.Clear {
		region := entities.Region{X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2}
		if !region.Valid() {
			return nil, validationError("whiteboard region must lie inside the unit square")
		}
	}

	w, err := s.store.Workplaces.Update(ctx, id, u)
	if err != nil {
		return nil, classify(err, "update_workplace")
	}
	return w, nil
}

// Delete removes a workplace and its models, training images and exports.
func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.store.Workplaces.Delete(ctx, id); err != nil {
		return classify(err, "delete_workplace")
	}
	s.log.Info("workplace deleted", logger.Uint64("workplace_id", uint64(id)))
	return nil
}

func (s *Service) timestamp() string {
	return s.now().Format("20060102_150405")
}

// SetReferencePhoto stores an uploaded reference photo and returns its path.
func (s *Service) SetReferencePhoto(ctx context.Context, id uint, filename string, data []byte) (string, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return "", err
	}
	if _, _, err := imaging.Decode(data); err != nil {
		return "", err
	}

	name := fmt.Sprintf("reference_%d_%s_%s", id, s.timestamp(), safeFileName(filename))
	path := filepath.Join(s.paths.ReferencePhotos, name)
	if err := writeFile(path, data); err != nil {
		return "", err
	}

	stored := toSlash(path)
	if err := s.store.Workplaces.SetReferencePhoto(ctx, id, stored); err != nil {
		_ = os.Remove(path)
		return "", classify(err, "set_reference_photo")
	}
	return stored, nil
}

// removeBestEffort deletes a file and only logs failures.
func (s *Service) removeBestEffort(path, what string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("failed to remove "+what,
			logger.String("path", path),
			logger.Error(err))
	}
}
