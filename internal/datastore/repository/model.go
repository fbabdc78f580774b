package repository

import (
	"context"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
)

// ModelRepository provides access to the models table.
type ModelRepository interface {
	// Create registers an uploaded model.
	Create(ctx context.Context, m *entities.Model) error

	// GetByID retrieves a model by its ID.
	// Returns ErrModelNotFound if not found.
	GetByID(ctx context.Context, id uint) (*entities.Model, error)

	// List returns a workplace's models newest first, optionally filtered by status.
	List(ctx context.Context, workplaceID uint, status entities.ModelStatus) ([]entities.Model, error)

	// Active returns the workplace's active model.
	// Returns ErrModelNotFound when none is active.
	Active(ctx context.Context, workplaceID uint) (*entities.Model, error)

	// Count returns the number of models registered for a workplace.
	Count(ctx context.Context, workplaceID uint) (int64, error)

	// Activate makes the model the only active model of its workplace and
	// points the workplace at it, in one transaction.
	// Returns ErrModelNotFound if not found.
	Activate(ctx context.Context, id uint) (*entities.Model, error)
}
