package repository

import (
	"context"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
)

// WorkplaceRepository provides access to the workplaces table.
type WorkplaceRepository interface {
	// Create inserts a workplace.
	// Returns ErrDuplicateKey when the name is taken.
	Create(ctx context.Context, w *entities.Workplace) error

	// GetByID retrieves a workplace.
	// Returns ErrWorkplaceNotFound if not found.
	GetByID(ctx context.Context, id uint) (*entities.Workplace, error)

	// List returns workplaces ordered by name.
	List(ctx context.Context, activeOnly bool) ([]entities.Workplace, error)

	// Update applies the non-nil fields and returns the updated row.
	// Returns ErrWorkplaceNotFound or ErrDuplicateKey.
	Update(ctx context.Context, id uint, u WorkplaceUpdate) (*entities.Workplace, error)

	// SetReferencePhoto stores the reference photo path.
	SetReferencePhoto(ctx context.Context, id uint, path string) error

	// Delete removes a workplace with its models, training images and dataset exports.
	// Analyses keep their workplace id.
	Delete(ctx context.Context, id uint) error
}
