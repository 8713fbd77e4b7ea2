package models

import "fmt"

// AlertLevel tells how close a vehicle is to a service threshold.
type AlertLevel string

const (
	AlertOverdue     AlertLevel = "overdue"
	AlertApproaching AlertLevel = "approaching"
)

// Alert is a maintenance warning for one service category.
type Alert struct {
	Category ServiceCategory `json:"category"`
	Level    AlertLevel      `json:"level"`
	Mileage  int             `json:"km"`
	Limit    int             `json:"limit"`
}

// String returns the short form, e.g. "engine approaching".
func (a Alert) String() string {
	return string(a.Category) + " " + string(a.Level)
}

// Message returns the text shown to the driver.
func (a Alert) Message() string {
	if a.Level == AlertOverdue {
		return fmt.Sprintf("%s change overdue by %d km", a.Category.Label(), a.Mileage-a.Limit)
	}
	return fmt.Sprintf("%d km left until the %s change", a.Limit-a.Mileage, a.Category.Label())
}
