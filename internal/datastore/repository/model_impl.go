package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

// modelRepository implements ModelRepository.
type modelRepository struct {
	db *gorm.DB
}

// NewModelRepository creates a new ModelRepository.
func NewModelRepository(db *gorm.DB) ModelRepository {
	return &modelRepository{db: db}
}

// Create registers an uploaded model.
func (r *modelRepository) Create(ctx context.Context, m *entities.Model) error {
	if m == nil || m.WorkplaceID == 0 || m.Version == "" || m.ModelPath == "" {
		return ErrInvalidInput
	}
	return mapWriteError(r.db.WithContext(ctx).Create(m).Error)
}

// GetByID retrieves a model by its ID.
func (r *modelRepository) GetByID(ctx context.Context, id uint) (*entities.Model, error) {
	var m entities.Model
	err := r.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns a workplace's models newest first.
func (r *modelRepository) List(ctx context.Context, workplaceID uint, status entities.ModelStatus) ([]entities.Model, error) {
	q := r.db.WithContext(ctx).Where("workplace_id = ?", workplaceID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []entities.Model
	if err := q.Order("uploaded_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Active returns the workplace's active model.
func (r *modelRepository) Active(ctx context.Context, workplaceID uint) (*entities.Model, error) {
	var m entities.Model
	err := r.db.WithContext(ctx).
		Where("workplace_id = ? AND status = ?", workplaceID, entities.ModelStatusActive).
		Order("id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Count returns the number of models registered for a workplace.
func (r *modelRepository) Count(ctx context.Context, workplaceID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Model{}).
		Where("workplace_id = ?", workplaceID).
		Count(&count).Error
	return count, err
}

// Activate archives the active siblings, activates the model and updates the workplace.
func (r *modelRepository) Activate(ctx context.Context, id uint) (*entities.Model, error) {
	var activated entities.Model
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&activated, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrModelNotFound
			}
			return err
		}

		if err := tx.Model(&entities.Model{}).
			Where("workplace_id = ? AND status = ? AND id <> ?", activated.WorkplaceID, entities.ModelStatusActive, id).
			Update("status", entities.ModelStatusArchived).Error; err != nil {
			return err
		}

		if err := tx.Model(&entities.Model{}).
			Where("id = ?", id).
			Update("status", entities.ModelStatusActive).Error; err != nil {
			return err
		}
		activated.Status = entities.ModelStatusActive

		return tx.Model(&entities.Workplace{}).
			Where("id = ?", activated.WorkplaceID).
			UpdateColumns(map[string]any{
				"active_model_type": string(activated.ModelType),
				"active_model_path": activated.ModelPath,
				"updated_at":        gorm.Expr("CURRENT_TIMESTAMP"),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &activated, nil
}
