package inference

import (
	"context"
	"encoding/json"
	"path/filepath"
	"regexp"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// ModelRef identifies a model file and how to interpret its output.
type ModelRef struct {
	Type    entities.ModelType `json:"type"`
	Path    string             `json:"path"`
	Version string             `json:"version"`
	Scheme  SchemeKind         `json:"scheme"`
	Labels  []string           `json:"labels,omitempty"`
}

// DefaultModelRef builds the process default model from configuration.
func DefaultModelRef(settings *conf.ModelSettings) ModelRef {
	ref := ModelRef{
		Type:    entities.ModelType(settings.Type),
		Path:    settings.Path,
		Version: settings.Version,
		Scheme:  SchemeKind(settings.Scheme),
	}
	if ref.Type == "" {
		ref.Type = entities.ModelTypeClassification
	}
	if ref.Scheme == "" {
		ref.Scheme = defaultSchemeFor(ref.Type)
	}
	return ref
}

// RefFromModel builds a reference to an uploaded model.
func RefFromModel(m *entities.Model) ModelRef {
	ref := ModelRef{
		Type:    m.ModelType,
		Path:    m.ModelPath,
		Version: m.Version,
		Scheme:  SchemeKind(m.Scheme),
	}
	if ref.Scheme == "" {
		ref.Scheme = defaultSchemeFor(ref.Type)
	}
	if m.Config != nil {
		var cfg struct {
			Names []string `json:"names"`
		}
		if err := json.Unmarshal([]byte(*m.Config), &cfg); err == nil {
			ref.Labels = cfg.Names
		}
	}
	return ref
}

func defaultSchemeFor(t entities.ModelType) SchemeKind {
	if t == entities.ModelTypeDetection {
		return SchemeEightClass
	}
	return DefaultScheme
}

var versionPattern = regexp.MustCompile(`model_(v[0-9]+(?:\.[0-9]+)*)\.tflite$`)

// Selector picks the model for a workplace.
type Selector struct {
	models     repository.ModelRepository
	workplaces repository.WorkplaceRepository
	fallback   ModelRef
	log        logger.Logger
}

// NewSelector creates a selector that falls back to the given default model.
func NewSelector(models repository.ModelRepository, workplaces repository.WorkplaceRepository, fallback ModelRef) *Selector {
	return &Selector{
		models:     models,
		workplaces: workplaces,
		fallback:   fallback,
		log:        GetLogger().Module("selector"),
	}
}

// Default returns the process default model.
func (s *Selector) Default() ModelRef {
	return s.fallback
}

// Select returns the workplace's active model, then the model path stored on
// the workplace, then the process default. Lookup failures fall back to the
// default and are logged.
func (s *Selector) Select(ctx context.Context, workplaceID *uint) (ModelRef, error) {
	if workplaceID == nil {
		return s.fallback, nil
	}
	id := *workplaceID

	m, err := s.models.Active(ctx, id)
	switch {
	case err == nil:
		return RefFromModel(m), nil
	case errors.Is(err, repository.ErrModelNotFound):
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ModelRef{}, ctxErr
		}
		s.log.Warn("active model lookup failed, using default model",
			logger.Uint64("workplace_id", uint64(id)),
			logger.Error(err))
		return s.fallback, nil
	}

	w, err := s.workplaces.GetByID(ctx, id)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ModelRef{}, ctxErr
		}
		s.log.Info("workplace not usable for model selection, using default model",
			logger.Uint64("workplace_id", uint64(id)),
			logger.Error(err))
		return s.fallback, nil
	}

	if w.ActiveModelPath != nil && *w.ActiveModelPath != "" {
		ref := ModelRef{
			Type:    entities.ModelTypeClassification,
			Path:    *w.ActiveModelPath,
			Version: s.fallback.Version,
		}
		if w.ActiveModelType != nil && *w.ActiveModelType != "" {
			ref.Type = entities.ModelType(*w.ActiveModelType)
		}
		if m := versionPattern.FindStringSubmatch(filepath.Base(ref.Path)); m != nil {
			ref.Version = m[1]
		}
		ref.Scheme = defaultSchemeFor(ref.Type)
		return ref, nil
	}

	return s.fallback, nil
}
