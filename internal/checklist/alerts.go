package checklist

import "github.com/ukydev/fleet-checklist/internal/models"

// DefaultApproachWindow is how many kilometers before a threshold the
// "approaching" alert starts.
const DefaultApproachWindow = 2000

// EvaluateAlerts compares mileage against each service threshold, in
// category order. Both boundaries are inclusive: mileage == limit is overdue
// and mileage == limit-DefaultApproachWindow is approaching. A nil thresholds
// (context not loaded yet) yields no alerts.
func EvaluateAlerts(mileage int, thresholds *models.ServiceThresholds) []models.Alert {
	return evaluateAlerts(mileage, thresholds, DefaultApproachWindow)
}

func evaluateAlerts(mileage int, thresholds *models.ServiceThresholds, window int) []models.Alert {
	alerts := []models.Alert{}
	if thresholds == nil {
		return alerts
	}
	for _, category := range models.ServiceCategories {
		limit := thresholds.Limit(category)
		switch {
		case mileage >= limit:
			alerts = append(alerts, models.Alert{Category: category, Level: models.AlertOverdue, Mileage: mileage, Limit: limit})
		case mileage >= limit-window:
			alerts = append(alerts, models.Alert{Category: category, Level: models.AlertApproaching, Mileage: mileage, Limit: limit})
		}
	}
	return alerts
}
