package db

import (
	"context"
	"errors"

	"github.com/ukydev/fleet-checklist/internal/models"
)

var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrWrite           = errors.New("write failed")
)

// VehicleDataStore is the data access layer a checklist session talks to.
type VehicleDataStore interface {
	// GetNextServices returns the vehicle's current mileage and next service thresholds.
	GetNextServices(ctx context.Context, plate string) (*models.Vehicle, error)
	UpdateMileage(ctx context.Context, plate string, km int) error
	AppendChecklist(ctx context.Context, checklist models.Checklist) error
}

// ChecklistCommitter is implemented by stores that can update the mileage and
// append the checklist in a single transaction.
type ChecklistCommitter interface {
	CommitChecklist(ctx context.Context, checklist models.Checklist) error
}

// VehicleCollection adds the fleet management operations on top of VehicleDataStore.
type VehicleCollection interface {
	VehicleDataStore
	UpsertVehicle(ctx context.Context, vehicle models.Vehicle) error
	// RecordService marks an oil change done at km and moves the category's
	// threshold to km+interval.
	RecordService(ctx context.Context, plate string, category models.ServiceCategory, km, interval int) (*models.Vehicle, error)
	ListChecklists(ctx context.Context, plate string, limit int) ([]models.Checklist, error)
}

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
}
