package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

// TrainingImageRepository provides access to the training_images table.
type TrainingImageRepository interface {
	Create(ctx context.Context, img *entities.TrainingImage) error
	// GetByID returns ErrTrainingImageNotFound if not found.
	GetByID(ctx context.Context, id uint) (*entities.TrainingImage, error)
	List(ctx context.Context, workplaceID uint, validatedOnly bool) ([]entities.TrainingImage, error)
	Update(ctx context.Context, id uint, u TrainingImageUpdate) (*entities.TrainingImage, error)
	Delete(ctx context.Context, id uint) error
}

type trainingImageRepository struct {
	db *gorm.DB
}

// NewTrainingImageRepository creates a new TrainingImageRepository.
func NewTrainingImageRepository(db *gorm.DB) TrainingImageRepository {
	return &trainingImageRepository{db: db}
}

func (r *trainingImageRepository) Create(ctx context.Context, img *entities.TrainingImage) error {
	if img == nil || img.WorkplaceID == 0 || img.Label == "" || img.ImagePath == "" {
		return ErrInvalidInput
	}
	return mapWriteError(r.db.WithContext(ctx).Create(img).Error)
}

func (r *trainingImageRepository) GetByID(ctx context.Context, id uint) (*entities.TrainingImage, error) {
	var img entities.TrainingImage
	err := r.db.WithContext(ctx).First(&img, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrainingImageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (r *trainingImageRepository) List(ctx context.Context, workplaceID uint, validatedOnly bool) ([]entities.TrainingImage, error) {
	q := r.db.WithContext(ctx).Where("workplace_id = ?", workplaceID)
	if validatedOnly {
		q = q.Where("validated = ?", true)
	}
	var out []entities.TrainingImage
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *trainingImageRepository) Update(ctx context.Context, id uint, u TrainingImageUpdate) (*entities.TrainingImage, error) {
	img, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if u.Label != nil {
		if *u.Label == "" {
			return nil, ErrInvalidInput
		}
		updates["label"] = *u.Label
	}
	if u.ClassID != nil {
		updates["class_id"] = *u.ClassID
	}
	if u.Validated != nil {
		updates["validated"] = *u.Validated
	}
	if len(updates) == 0 {
		return img, nil
	}

	if err := r.db.WithContext(ctx).Model(img).Updates(updates).Error; err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *trainingImageRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.TrainingImage{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTrainingImageNotFound
	}
	return nil
}
