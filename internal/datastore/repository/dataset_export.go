package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
)

// DatasetExportRepository records packaged dataset archives.
type DatasetExportRepository interface {
	Create(ctx context.Context, e *entities.DatasetExport) error
	GetByID(ctx context.Context, id uint) (*entities.DatasetExport, error)
	// List returns a workplace's exports newest first.
	List(ctx context.Context, workplaceID uint) ([]entities.DatasetExport, error)
}

type datasetExportRepository struct {
	db *gorm.DB
}

// NewDatasetExportRepository creates a new DatasetExportRepository.
func NewDatasetExportRepository(db *gorm.DB) DatasetExportRepository {
	return &datasetExportRepository{db: db}
}

func (r *datasetExportRepository) Create(ctx context.Context, e *entities.DatasetExport) error {
	if e == nil || e.WorkplaceID == 0 || e.ExportPath == "" {
		return ErrInvalidInput
	}
	return mapWriteError(r.db.WithContext(ctx).Create(e).Error)
}

func (r *datasetExportRepository) GetByID(ctx context.Context, id uint) (*entities.DatasetExport, error) {
	var e entities.DatasetExport
	err := r.db.WithContext(ctx).First(&e, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDatasetExportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *datasetExportRepository) List(ctx context.Context, workplaceID uint) ([]entities.DatasetExport, error) {
	var out []entities.DatasetExport
	err := r.db.WithContext(ctx).
		Where("workplace_id = ?", workplaceID).
		Order("exported_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
