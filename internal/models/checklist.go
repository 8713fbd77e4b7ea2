package models

import (
	"fmt"
	"strings"
	"time"
)

// ItemStatus is the yes/no answer recorded for a checklist item.
type ItemStatus string

const (
	StatusUnset ItemStatus = ""
	StatusYes   ItemStatus = "yes"
	StatusNo    ItemStatus = "no"
)

// ParseItemStatus accepts yes/no in English or Portuguese, and the empty string for unset.
func ParseItemStatus(s string) (ItemStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return StatusUnset, nil
	case "yes", "y", "sim", "s":
		return StatusYes, nil
	case "no", "n", "não", "nao":
		return StatusNo, nil
	default:
		return StatusUnset, fmt.Errorf("invalid item status %q", s)
	}
}

// ChecklistItem is a single line of a maintenance checklist.
type ChecklistItem struct {
	Label  string     `bson:"label" json:"label"`
	Status ItemStatus `bson:"status" json:"status"`
}

// Checklist is a saved maintenance checklist for a vehicle.
type Checklist struct {
	ID        string          `bson:"_id,omitempty" json:"id,omitempty"`
	Plate     string          `bson:"plate" json:"plate"`
	Timestamp time.Time       `bson:"timestamp" json:"timestamp"`
	Mileage   int             `bson:"km" json:"km"`
	Items     []ChecklistItem `bson:"items" json:"items"`
}

// Labels returns the item labels in checklist order.
func (c Checklist) Labels() []string {
	out := make([]string, len(c.Items))
	for i, it := range c.Items {
		out[i] = it.Label
	}
	return out
}

// Statuses returns the item statuses, positionally paired with Labels.
func (c Checklist) Statuses() []ItemStatus {
	out := make([]ItemStatus, len(c.Items))
	for i, it := range c.Items {
		out[i] = it.Status
	}
	return out
}
