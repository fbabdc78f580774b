package workplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inference"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// ModelUpload describes an uploaded model file.
type ModelUpload struct {
	Filename     string
	Data         io.Reader
	Version      string
	Type         entities.ModelType
	Scheme       string
	TestAccuracy *float64
	Config       string
	Notes        string
	UploadedBy   string
}

var modelVersionPattern = regexp.MustCompile(`^v[0-9]+(\.[0-9]+)*$`)

// UploadModel stores a model file below models/workplace_<id>/ and registers
// it with status uploaded.
func (s *Service) UploadModel(ctx context.Context, workplaceID uint, up ModelUpload) (*entities.Model, error) {
	if _, err := s.Get(ctx, workplaceID); err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(up.Filename), inference.ModelExtension) {
		return nil, validationError("only %s model files are accepted", inference.ModelExtension)
	}
	if up.Data == nil {
		return nil, validationError("model file is empty")
	}

	modelType := up.Type
	if modelType == "" {
		modelType = entities.ModelTypeClassification
	}
	if modelType != entities.ModelTypeClassification && modelType != entities.ModelTypeDetection {
		return nil, validationError("unsupported model type %q", modelType)
	}

	scheme := up.Scheme
	if scheme == "" {
		scheme = string(inference.DefaultScheme)
		if modelType == entities.ModelTypeDetection {
			scheme = string(inference.SchemeEightClass)
		}
	}
	if _, err := inference.SchemeFor(scheme); err != nil {
		return nil, err
	}

	if up.Config != "" && !json.Valid([]byte(up.Config)) {
		return nil, validationError("model config must be valid JSON")
	}
	if up.TestAccuracy != nil && (*up.TestAccuracy < 0 || *up.TestAccuracy > 100) {
		return nil, validationError("test accuracy must be a percentage")
	}

	version := strings.TrimSpace(up.Version)
	if version == "" {
		count, err := s.store.Models.Count(ctx, workplaceID)
		if err != nil {
			return nil, classify(err, "count_models")
		}
		version = fmt.Sprintf("v%d.0", count+1)
	}
	if !modelVersionPattern.MatchString(version) {
		return nil, validationError("invalid model version %q", version)
	}

	dir := filepath.Join(s.paths.Models, fmt.Sprintf("workplace_%d", workplaceID))
	path := filepath.Join(dir, fmt.Sprintf("model_%s%s", version, inference.ModelExtension))
	if _, err := os.Stat(path); err == nil {
		return nil, errors.Newf("model version %s already exists", version).
			Component("workplace").
			Category(errors.CategoryConflict).
			Build()
	}

	size, err := s.storeModelFile(dir, path, up.Data)
	if err != nil {
		return nil, err
	}

	m := &entities.Model{
		WorkplaceID:  workplaceID,
		Version:      version,
		ModelPath:    toSlash(path),
		ModelType:    modelType,
		Scheme:       scheme,
		Status:       entities.ModelStatusUploaded,
		UploadedBy:   up.UploadedBy,
		TestAccuracy: up.TestAccuracy,
	}
	if m.UploadedBy == "" {
		m.UploadedBy = "admin"
	}
	if up.Config != "" {
		m.Config = &up.Config
	}
	if up.Notes != "" {
		m.Notes = &up.Notes
	}
	if err := s.store.Models.Create(ctx, m); err != nil {
		s.removeBestEffort(path, "model file")
		return nil, classify(err, "register_model")
	}

	s.log.Info("model uploaded",
		logger.Uint64("workplace_id", uint64(workplaceID)),
		logger.Uint64("model_id", uint64(m.ID)),
		logger.String("version", version),
		logger.String("type", string(modelType)),
		logger.Int64("bytes", size))
	return m, nil
}

// storeModelFile streams data into a temp file and renames it into place.
func (s *Service) storeModelFile(dir, path string, data io.Reader) (int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fileError(err, "create_model_dir", dir)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fileError(err, "store_model", path)
	}
	size, err := io.Copy(tmp, data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil && size == 0 {
		err = validationError("model file is empty")
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		if errors.IsCategory(err, errors.CategoryValidation) {
			return 0, err
		}
		return 0, fileError(err, "store_model", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fileError(err, "store_model", path)
	}
	return size, nil
}

// ListModels returns a workplace's models newest first. An empty status lists all.
func (s *Service) ListModels(ctx context.Context, workplaceID uint, status entities.ModelStatus) ([]entities.Model, error) {
	if _, err := s.Get(ctx, workplaceID); err != nil {
		return nil, err
	}
	switch status {
	case "", entities.ModelStatusUploaded, entities.ModelStatusActive, entities.ModelStatusArchived:
	default:
		return nil, validationError("unknown model status %q", status)
	}
	models, err := s.store.Models.List(ctx, workplaceID, status)
	return models, classify(err, "list_models")
}

// ActivateModel loads the model, archives the workplace's other active
// models and points the workplace at it. A model that fails to load is not
// activated.
func (s *Service) ActivateModel(ctx context.Context, id uint) (*entities.Model, error) {
	m, err := s.store.Models.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err, "activate_model")
	}

	if s.swapper != nil {
		if _, err := s.swapper.Swap(inference.RefFromModel(m)); err != nil {
			return nil, errors.New(err).
				Component("workplace").
				Category(errors.CategoryModelLoad).
				ModelContext(m.ModelPath, string(m.ModelType)).
				Build()
		}
	}

	activated, err := s.store.Models.Activate(ctx, id)
	if err != nil {
		return nil, classify(err, "activate_model")
	}
	s.log.Info("model activated",
		logger.Uint64("workplace_id", uint64(activated.WorkplaceID)),
		logger.Uint64("model_id", uint64(activated.ID)),
		logger.String("version", activated.Version))
	return activated, nil
}
