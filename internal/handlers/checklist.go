package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-checklist/internal/checklist"
	"github.com/ukydev/fleet-checklist/internal/db"
	"github.com/ukydev/fleet-checklist/internal/metrics"
	"github.com/ukydev/fleet-checklist/internal/middleware"
	"github.com/ukydev/fleet-checklist/internal/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// ItemRequest is one checklist item as sent by a client.
type ItemRequest struct {
	Label  string `json:"label"`
	Status string `json:"status"`
}

// SubmitChecklistRequest is the body of POST /api/vehicles/{plate}/checklists.
// The mileage is the odometer reading as typed.
type SubmitChecklistRequest struct {
	Mileage json.Number   `json:"km"`
	Items   []ItemRequest `json:"items"`
}

// EvaluateAlertsRequest is the body of POST /api/vehicles/{plate}/alerts.
type EvaluateAlertsRequest struct {
	Mileage json.Number `json:"km"`
}

// UpsertVehicleRequest is the body of PUT /api/vehicles/{plate}.
type UpsertVehicleRequest struct {
	CurrentMileage int                      `json:"current_km"`
	NextService    models.ServiceThresholds `json:"next_service"`
}

// RecordServiceRequest is the body of POST /api/vehicles/{plate}/services.
type RecordServiceRequest struct {
	Category string `json:"category"`
	Mileage  int    `json:"km"`
	// Interval overrides the configured service interval when positive.
	Interval int `json:"interval,omitempty"`
}

// VehicleContextResponse is the vehicle state shown before filling in a checklist.
type VehicleContextResponse struct {
	Plate          string                   `json:"plate"`
	CurrentMileage int                      `json:"current_km"`
	NextService    models.ServiceThresholds `json:"next_service"`
	Alerts         []AlertResponse          `json:"alerts"`
}

// AlertResponse is an alert with its rendered message.
type AlertResponse struct {
	models.Alert
	Message string `json:"message"`
}

// SubmitChecklistResponse is returned once a checklist is saved.
type SubmitChecklistResponse struct {
	Checklist      models.Checklist         `json:"checklist"`
	CurrentMileage int                      `json:"current_km"`
	NextService    models.ServiceThresholds `json:"next_service"`
	Alerts         []AlertResponse          `json:"alerts"`
}

// ChecklistHandler serves the vehicle and checklist endpoints.
type ChecklistHandler struct {
	vehicles        db.VehicleCollection
	publisher       checklist.Publisher
	metrics         *metrics.Recorder
	window          int
	serviceInterval int
	now             func() time.Time
}

// HandlerOption configures a ChecklistHandler.
type HandlerOption func(*ChecklistHandler)

// WithPublisher publishes alerts after each saved checklist.
func WithPublisher(p checklist.Publisher) HandlerOption {
	return func(h *ChecklistHandler) { h.publisher = p }
}

// WithMetrics records saves, alerts and load failures.
func WithMetrics(m *metrics.Recorder) HandlerOption {
	return func(h *ChecklistHandler) { h.metrics = m }
}

// WithApproachWindow sets the distance before a threshold at which alerts start.
func WithApproachWindow(km int) HandlerOption {
	return func(h *ChecklistHandler) { h.window = km }
}

// WithServiceInterval sets the distance between a recorded service and the next one.
func WithServiceInterval(km int) HandlerOption {
	return func(h *ChecklistHandler) { h.serviceInterval = km }
}

// NewChecklistHandler creates the handler over the given vehicle store.
func NewChecklistHandler(vehicles db.VehicleCollection, opts ...HandlerOption) *ChecklistHandler {
	h := &ChecklistHandler{
		vehicles:        vehicles,
		window:          checklist.DefaultApproachWindow,
		serviceInterval: 10000,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the vehicle routes on mux, each behind its permission.
func (h *ChecklistHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/vehicles/{plate}", middleware.RequirePermission(models.ActionManageVehicles, h.UpsertVehicle))
	mux.HandleFunc("/api/vehicles/{plate}/context", middleware.RequirePermission(models.ActionViewVehicles, h.VehicleContext))
	mux.HandleFunc("/api/vehicles/{plate}/alerts", middleware.RequirePermission(models.ActionEvaluateAlerts, h.EvaluateAlerts))
	mux.HandleFunc("/api/vehicles/{plate}/services", middleware.RequirePermission(models.ActionManageVehicles, h.RecordService))
	mux.HandleFunc("/api/vehicles/{plate}/checklists", h.Checklists)
}

func (h *ChecklistHandler) session(r *http.Request, plate string) *checklist.Session {
	opts := []checklist.Option{
		checklist.WithLogger(middleware.Logger(r.Context())),
		checklist.WithApproachWindow(h.window),
		checklist.WithClock(h.now),
	}
	if h.publisher != nil {
		opts = append(opts, checklist.WithPublisher(h.publisher))
	}
	return checklist.NewSession(h.vehicles, plate, opts...)
}

func plateOf(r *http.Request) (string, error) {
	plate := strings.TrimSpace(r.PathValue("plate"))
	if plate == "" {
		return "", fmt.Errorf("%w: empty vehicle id", checklist.ErrInvalidInput)
	}
	return plate, nil
}

// VehicleContext returns the current mileage, thresholds and alerts of a vehicle.
func (h *ChecklistHandler) VehicleContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	plate, err := plateOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s := h.session(r, plate)
	snapshot, thresholds, err := s.LoadVehicleContext(r.Context())
	if err != nil {
		h.metrics.LoadFailed()
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, VehicleContextResponse{
		Plate:          plate,
		CurrentMileage: snapshot.CurrentMileage,
		NextService:    thresholds,
		Alerts:         alertResponses(s.Alerts()),
	})
}

// EvaluateAlerts checks a typed mileage against the stored thresholds without
// saving anything.
func (h *ChecklistHandler) EvaluateAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	plate, err := plateOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req EvaluateAlertsRequest
	if !readJSON(w, r, &req) {
		return
	}
	km, err := checklist.ParseMileage(req.Mileage.String())
	if err != nil {
		writeError(w, r, err)
		return
	}

	s := h.session(r, plate)
	if _, _, err := s.LoadVehicleContext(r.Context()); err != nil {
		h.metrics.LoadFailed()
		writeError(w, r, err)
		return
	}
	s.SetMileage(strconv.Itoa(km))
	writeJSON(w, http.StatusOK, alertResponses(s.Alerts()))
}

// Checklists dispatches GET (history) and POST (submit) on the checklist collection.
func (h *ChecklistHandler) Checklists(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		middleware.RequirePermission(models.ActionViewChecklists, h.ListChecklists)(w, r)
	case http.MethodPost:
		middleware.RequirePermission(models.ActionSubmitChecklist, h.SubmitChecklist)(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// SubmitChecklist fills a session from the request and saves it.
func (h *ChecklistHandler) SubmitChecklist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	plate, err := plateOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req SubmitChecklistRequest
	if !readJSON(w, r, &req) {
		return
	}

	s := h.session(r, plate)
	if _, _, err := s.LoadVehicleContext(r.Context()); err != nil {
		h.metrics.LoadFailed()
		writeError(w, r, err)
		return
	}

	s.SetMileage(req.Mileage.String())
	for i, item := range req.Items {
		if !s.AddItem(item.Label) {
			h.metrics.ChecklistSaved(metrics.ResultInvalid, 0)
			writeError(w, r, fmt.Errorf("%w: item %d has no label", checklist.ErrInvalidInput, i))
			return
		}
		status, err := models.ParseItemStatus(item.Status)
		if err == nil {
			err = s.SetItemStatus(i, status)
		}
		if err != nil {
			h.metrics.ChecklistSaved(metrics.ResultInvalid, 0)
			writeError(w, r, fmt.Errorf("%w: item %d: %w", checklist.ErrInvalidInput, i, err))
			return
		}
	}

	start := time.Now()
	record, err := s.Submit(r.Context())
	if err != nil {
		result := metrics.ResultFailed
		if !errors.Is(err, checklist.ErrWrite) {
			result = metrics.ResultInvalid
		}
		h.metrics.ChecklistSaved(result, 0)
		writeError(w, r, err)
		return
	}
	h.metrics.ChecklistSaved(metrics.ResultOK, time.Since(start).Seconds())

	alerts := s.Alerts()
	h.metrics.AlertsEmitted(alerts)

	resp := SubmitChecklistResponse{
		Checklist:      record,
		CurrentMileage: record.Mileage,
		Alerts:         alertResponses(alerts),
	}
	if t := s.Thresholds(); t != nil {
		resp.NextService = *t
	}

	middleware.Logger(r.Context()).WithFields(log.Fields{
		"plate":  plate,
		"km":     record.Mileage,
		"items":  len(record.Items),
		"alerts": len(alerts),
	}).Info("Checklist submitted")
	writeJSON(w, http.StatusCreated, resp)
}

// ListChecklists returns the most recent checklists of a vehicle, newest first.
func (h *ChecklistHandler) ListChecklists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	plate, err := plateOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	checklists, err := h.vehicles.ListChecklists(r.Context(), plate, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if checklists == nil {
		checklists = []models.Checklist{}
	}
	writeJSON(w, http.StatusOK, checklists)
}

// UpsertVehicle registers a vehicle or replaces its mileage and thresholds.
func (h *ChecklistHandler) UpsertVehicle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	plate, err := plateOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req UpsertVehicleRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.CurrentMileage < 0 || req.CurrentMileage > models.MaxMileage {
		writeError(w, r, fmt.Errorf("%w: mileage %d is out of range", checklist.ErrInvalidInput, req.CurrentMileage))
		return
	}
	if err := req.NextService.Validate(); err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", checklist.ErrInvalidInput, err))
		return
	}

	vehicle := models.Vehicle{
		Plate:          plate,
		CurrentMileage: req.CurrentMileage,
		NextService:    req.NextService,
		UpdatedAt:      h.now(),
	}
	if err := h.vehicles.UpsertVehicle(r.Context(), vehicle); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

// RecordService marks an oil change as done and moves its next threshold.
func (h *ChecklistHandler) RecordService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	plate, err := plateOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req RecordServiceRequest
	if !readJSON(w, r, &req) {
		return
	}
	category, err := models.ParseServiceCategory(req.Category)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", checklist.ErrInvalidInput, err))
		return
	}
	if req.Mileage < 0 || req.Mileage > models.MaxMileage {
		writeError(w, r, fmt.Errorf("%w: mileage %d is out of range", checklist.ErrInvalidInput, req.Mileage))
		return
	}
	if req.Interval < 0 || req.Interval > models.MaxServiceInterval {
		writeError(w, r, fmt.Errorf("%w: interval %d is out of range", checklist.ErrInvalidInput, req.Interval))
		return
	}
	interval := h.serviceInterval
	if req.Interval > 0 {
		interval = req.Interval
	}

	vehicle, err := h.vehicles.RecordService(r.Context(), plate, category, req.Mileage, interval)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.Logger(r.Context()).WithFields(log.Fields{
		"plate":    plate,
		"category": category,
		"km":       req.Mileage,
		"next":     vehicle.NextService.Limit(category),
	}).Info("Service recorded")
	writeJSON(w, http.StatusOK, vehicle)
}

func alertResponses(alerts []models.Alert) []AlertResponse {
	out := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertResponse{Alert: a, Message: a.Message()})
	}
	return out
}
