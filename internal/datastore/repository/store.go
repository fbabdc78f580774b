package repository

import "gorm.io/gorm"

// Store bundles the repositories that share one database handle.
type Store struct {
	Analyses       AnalysisRepository
	Workplaces     WorkplaceRepository
	Models         ModelRepository
	TrainingImages TrainingImageRepository
	DatasetExports DatasetExportRepository
}

// NewStore creates all repositories over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		Analyses:       NewAnalysisRepository(db),
		Workplaces:     NewWorkplaceRepository(db),
		Models:         NewModelRepository(db),
		TrainingImages: NewTrainingImageRepository(db),
		DatasetExports: NewDatasetExportRepository(db),
	}
}
