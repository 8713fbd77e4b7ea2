package models

import "fmt"

// ServiceCategory names one of the oil change thresholds tracked per vehicle.
type ServiceCategory string

const (
	CategoryEngine       ServiceCategory = "engine"
	CategoryTransmission ServiceCategory = "transmission"
	CategoryDifferential ServiceCategory = "differential"
)

// Upper bounds for odometer readings and service intervals, in km.
const (
	MaxMileage         = 10_000_000
	MaxServiceInterval = 1_000_000
)

// ServiceCategories lists the categories in the order alerts are reported.
var ServiceCategories = []ServiceCategory{CategoryEngine, CategoryTransmission, CategoryDifferential}

// ParseServiceCategory parses a category name.
func ParseServiceCategory(s string) (ServiceCategory, error) {
	switch c := ServiceCategory(s); c {
	case CategoryEngine, CategoryTransmission, CategoryDifferential:
		return c, nil
	default:
		return "", fmt.Errorf("unknown service category %q", s)
	}
}

// Label returns a human readable name for the category.
func (c ServiceCategory) Label() string {
	switch c {
	case CategoryEngine:
		return "engine oil"
	case CategoryTransmission:
		return "transmission oil"
	case CategoryDifferential:
		return "differential oil"
	default:
		return string(c)
	}
}

// ServiceThresholds holds the odometer readings at which the next oil change
// of each category is due.
type ServiceThresholds struct {
	Engine       int `bson:"engine" json:"engine"`
	Transmission int `bson:"transmission" json:"transmission"`
	Differential int `bson:"differential" json:"differential"`
}

// Limit returns the threshold for a category.
func (t ServiceThresholds) Limit(c ServiceCategory) int {
	switch c {
	case CategoryEngine:
		return t.Engine
	case CategoryTransmission:
		return t.Transmission
	case CategoryDifferential:
		return t.Differential
	default:
		return 0
	}
}

// Validate checks that every threshold is an odometer reading between 0 and
// MaxMileage.
func (t ServiceThresholds) Validate() error {
	for _, c := range ServiceCategories {
		if km := t.Limit(c); km < 0 || km > MaxMileage {
			return fmt.Errorf("%s threshold must be between 0 and %d km, got %d", c, MaxMileage, km)
		}
	}
	return nil
}

// WithLimit returns a copy of t with the category's threshold replaced.
func (t ServiceThresholds) WithLimit(c ServiceCategory, km int) ServiceThresholds {
	switch c {
	case CategoryEngine:
		t.Engine = km
	case CategoryTransmission:
		t.Transmission = km
	case CategoryDifferential:
		t.Differential = km
	}
	return t
}
