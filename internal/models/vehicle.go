package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vehicle represents a fleet vehicle identified by its licence plate.
type Vehicle struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Plate          string             `bson:"plate" json:"plate"`
	CurrentMileage int                `bson:"current_km" json:"current_km"` // odometer, in kilometers
	NextService    ServiceThresholds  `bson:"next_service" json:"next_service"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// VehicleSnapshot is the part of a vehicle a checklist session edits.
type VehicleSnapshot struct {
	CurrentMileage int `json:"current_km"`
}

// Snapshot returns the vehicle's current odometer reading.
func (v *Vehicle) Snapshot() VehicleSnapshot {
	return VehicleSnapshot{CurrentMileage: v.CurrentMileage}
}
