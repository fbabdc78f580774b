package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

// workplaceRepository implements WorkplaceRepository.
type workplaceRepository struct {
	db *gorm.DB
}

// NewWorkplaceRepository creates a new WorkplaceRepository.
func NewWorkplaceRepository(db *gorm.DB) WorkplaceRepository {
	return &workplaceRepository{db: db}
}

// Create inserts a workplace.
func (r *workplaceRepository) Create(ctx context.Context, w *entities.Workplace) error {
	if w == nil || w.Name == "" {
		return ErrInvalidInput
	}
	if w.ConfidenceThreshold == 0 {
		w.ConfidenceThreshold = entities.DefaultConfidenceThreshold
	}
	active := w.Active
	if err := mapWriteError(r.db.WithContext(ctx).Create(w).Error); err != nil {
		return err
	}
	// zero values of columns with a default are skipped on insert
	if !active {
		w.Active = false
		return r.db.WithContext(ctx).Model(&entities.Workplace{}).
			Where("id = ?", w.ID).
			UpdateColumn("active", false).Error
	}
	return nil
}

// GetByID retrieves a workplace.
func (r *workplaceRepository) GetByID(ctx context.Context, id uint) (*entities.Workplace, error) {
	var w entities.Workplace
	err := r.db.WithContext(ctx).First(&w, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkplaceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// List returns workplaces ordered by name.
func (r *workplaceRepository) List(ctx context.Context, activeOnly bool) ([]entities.Workplace, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []entities.Workplace
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies the non-nil fields.
func (r *workplaceRepository) Update(ctx context.Context, id uint, u WorkplaceUpdate) (*entities.Workplace, error) {
	w, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if u.Name != nil {
		if *u.Name == "" {
			return nil, ErrInvalidInput
		}
		updates["name"] = *u.Name
	}
	if u.Description != nil {
		updates["description"] = *u.Description
	}
	if u.Items != nil {
		w.SetItems(u.Items)
		updates["items"] = w.Items
	}
	if u.Active != nil {
		updates["active"] = *u.Active
	}
	if u.ConfidenceThreshold != nil {
		updates["confidence_threshold"] = *u.ConfidenceThreshold
	}
	if u.WhiteboardRegion != nil {
		if u.WhiteboardRegion.Clear {
			updates["whiteboard_region"] = entities.EncodeRegion(nil)
		} else {
			region := entities.Region{
				X1: u.WhiteboardRegion.X1, Y1: u.WhiteboardRegion.Y1,
				X2: u.WhiteboardRegion.X2, Y2: u.WhiteboardRegion.Y2,
			}
			if !region.Valid() {
				return nil, ErrInvalidInput
			}
			updates["whiteboard_region"] = entities.EncodeRegion(&region)
		}
	}

	if len(updates) == 0 {
		return w, nil
	}
	if err := r.db.WithContext(ctx).Model(w).Updates(updates).Error; err != nil {
		return nil, mapWriteError(err)
	}
	return r.GetByID(ctx, id)
}

// SetReferencePhoto stores the reference photo path.
func (r *workplaceRepository) SetReferencePhoto(ctx context.Context, id uint, path string) error {
	result := r.db.WithContext(ctx).Model(&entities.Workplace{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"reference_photo": path, "updated_at": gorm.Expr("CURRENT_TIMESTAMP")})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWorkplaceNotFound
	}
	return nil
}

// Delete removes a workplace and the rows it owns in one transaction.
// Dependent rows are removed explicitly so the result does not depend on
// foreign key enforcement being enabled.
func (r *workplaceRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, owned := range []any{&entities.Model{}, &entities.TrainingImage{}, &entities.DatasetExport{}} {
			if err := tx.Where("workplace_id = ?", id).Delete(owned).Error; err != nil {
				return err
			}
		}
		result := tx.Delete(&entities.Workplace{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrWorkplaceNotFound
		}
		return nil
	})
}
