// Package metrics exposes checklist activity as Prometheus collectors.
//
// All collectors live on a private registry so tests and multiple servers in
// one process do not collide on the default registerer.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ukydev/fleet-checklist/internal/models"
)

// Result labels for checklist saves.
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
	ResultFailed  = "failed"
)

// Recorder counts saved checklists, emitted alerts and vehicle load failures.
type Recorder struct {
	reg *prometheus.Registry

	checklists   *prometheus.CounterVec // "fleet_checklists_saved_total"
	alerts       *prometheus.CounterVec // "fleet_alerts_emitted_total"
	loadFailures prometheus.Counter     // "fleet_vehicle_load_failures_total"
	saveDuration prometheus.Histogram   // "fleet_checklist_save_duration_seconds"
}

// NewRecorder builds a Recorder with its own registry.
func NewRecorder() (*Recorder, error) {
	reg := prometheus.NewRegistry()

	checklists := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_checklists_saved_total",
			Help: "Checklist save attempts partitioned by result (ok, invalid, failed).",
		},
		[]string{"result"},
	)
	alerts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_alerts_emitted_total",
			Help: "Maintenance alerts produced, partitioned by service category and level.",
		},
		[]string{"category", "level"},
	)
	loadFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_vehicle_load_failures_total",
			Help: "Vehicle context loads that failed or found no vehicle.",
		},
	)
	saveDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleet_checklist_save_duration_seconds",
			Help:    "Time spent persisting a checklist and its mileage.",
			Buckets: prometheus.DefBuckets,
		},
	)

	for name, c := range map[string]prometheus.Collector{
		"checklists":    checklists,
		"alerts":        alerts,
		"load failures": loadFailures,
		"save duration": saveDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register %s: %w", name, err)
		}
	}

	return &Recorder{
		reg:          reg,
		checklists:   checklists,
		alerts:       alerts,
		loadFailures: loadFailures,
		saveDuration: saveDuration,
	}, nil
}

// ChecklistSaved counts one save attempt with the given result label.
func (r *Recorder) ChecklistSaved(result string, seconds float64) {
	if r == nil {
		return
	}
	r.checklists.WithLabelValues(result).Inc()
	if result == ResultOK {
		r.saveDuration.Observe(seconds)
	}
}

// AlertsEmitted counts each alert by category and level.
func (r *Recorder) AlertsEmitted(alerts []models.Alert) {
	if r == nil {
		return
	}
	for _, a := range alerts {
		r.alerts.WithLabelValues(string(a.Category), string(a.Level)).Inc()
	}
}

// LoadFailed counts a failed vehicle context load.
func (r *Recorder) LoadFailed() {
	if r == nil {
		return
	}
	r.loadFailures.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
