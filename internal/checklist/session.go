// Package checklist holds the state of one maintenance checklist being filled
// in for a vehicle: the odometer reading typed by the driver, the ad-hoc
// items with their yes/no answers and the service thresholds loaded from the
// store. A Session belongs to a single caller and is not safe for concurrent use.
package checklist

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-checklist/internal/db"
	"github.com/ukydev/fleet-checklist/internal/models"
)

// Publisher receives the alerts of a vehicle after a checklist is saved.
type Publisher interface {
	PublishAlerts(ctx context.Context, plate string, alerts []models.Alert) error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for load and save outcomes.
func WithLogger(logger *log.Entry) Option {
	return func(s *Session) { s.logger = logger.WithField("plate", s.plate) }
}

// WithPublisher publishes the alerts computed after each successful save.
func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

// WithApproachWindow overrides DefaultApproachWindow.
func WithApproachWindow(km int) Option {
	return func(s *Session) {
		if km >= 0 {
			s.window = km
		}
	}
}

// WithClock sets the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is the editing state of one checklist.
type Session struct {
	store      db.VehicleDataStore
	plate      string
	mileage    string
	items      []models.ChecklistItem
	thresholds *models.ServiceThresholds

	window    int
	now       func() time.Time
	publisher Publisher
	logger    *log.Entry
}

// NewSession starts an empty checklist for the vehicle with the given plate.
func NewSession(store db.VehicleDataStore, plate string, opts ...Option) *Session {
	s := &Session{
		store:  store,
		plate:  plate,
		window: DefaultApproachWindow,
		now:    time.Now,
		logger: log.WithField("plate", plate),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plate returns the vehicle the session edits.
func (s *Session) Plate() string { return s.plate }

// LoadVehicleContext fetches the current mileage and the next service
// thresholds. On success the mileage input is replaced by the stored reading.
func (s *Session) LoadVehicleContext(ctx context.Context) (models.VehicleSnapshot, models.ServiceThresholds, error) {
	vehicle, err := s.store.GetNextServices(ctx, s.plate)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load vehicle data")
		return models.VehicleSnapshot{}, models.ServiceThresholds{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	thresholds := vehicle.NextService
	s.thresholds = &thresholds
	s.mileage = strconv.Itoa(vehicle.CurrentMileage)

	s.logger.WithFields(log.Fields{
		"current_km":   vehicle.CurrentMileage,
		"engine":       thresholds.Engine,
		"transmission": thresholds.Transmission,
		"differential": thresholds.Differential,
	}).Debug("Loaded vehicle data")
	return vehicle.Snapshot(), thresholds, nil
}

// SetMileage stores the odometer reading as typed. It is validated when the
// record is built.
func (s *Session) SetMileage(input string) { s.mileage = input }

// Mileage returns the odometer reading as typed.
func (s *Session) Mileage() string { return s.mileage }

// Thresholds returns the loaded service thresholds, or nil before the first load.
func (s *Session) Thresholds() *models.ServiceThresholds {
	if s.thresholds == nil {
		return nil
	}
	t := *s.thresholds
	return &t
}

// AddItem appends an unanswered item. Blank labels are ignored and reported
// by a false return.
func (s *Session) AddItem(label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	s.items = append(s.items, models.ChecklistItem{Label: label, Status: models.StatusUnset})
	return true
}

// SetItemStatus records the answer for the item at index.
func (s *Session) SetItemStatus(index int, status models.ItemStatus) error {
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("%w: %d (have %d items)", ErrIndexOutOfRange, index, len(s.items))
	}
	switch status {
	case models.StatusUnset, models.StatusYes, models.StatusNo:
	default:
		return fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}
	s.items[index].Status = status
	return nil
}

// Items returns a copy of the checklist items in insertion order.
func (s *Session) Items() []models.ChecklistItem {
	out := make([]models.ChecklistItem, len(s.items))
	copy(out, s.items)
	return out
}

// Reset drops all items and keeps the loaded vehicle context.
func (s *Session) Reset() { s.items = nil }

// Alerts evaluates the typed mileage against the loaded thresholds. An
// unparsable mileage yields no alerts.
func (s *Session) Alerts() []models.Alert {
	km, err := ParseMileage(s.mileage)
	if err != nil {
		return []models.Alert{}
	}
	return evaluateAlerts(km, s.thresholds, s.window)
}

// BuildRecord assembles the record that Save persists from the session state.
func (s *Session) BuildRecord() (models.Checklist, error) {
	return buildRecord(s.now(), s.plate, s.mileage, s.items)
}

// Save writes the mileage and then the checklist. When the store is a
// db.ChecklistCommitter both writes happen in one transaction; otherwise a
// failed append leaves the mileage updated. On failure the session is left
// untouched. On success the items are cleared and the vehicle context is
// reloaded.
func (s *Session) Save(ctx context.Context, record models.Checklist) error {
	logger := s.logger.WithFields(log.Fields{"km": record.Mileage, "items": len(record.Items)})

	var err error
	if committer, ok := s.store.(db.ChecklistCommitter); ok {
		err = committer.CommitChecklist(ctx, record)
	} else if err = s.store.UpdateMileage(ctx, record.Plate, record.Mileage); err == nil {
		err = s.store.AppendChecklist(ctx, record)
	}
	if err != nil {
		logger.WithError(err).Error("Failed to save checklist")
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	logger.Info("Saved checklist")

	s.items = nil
	s.mileage = strconv.Itoa(record.Mileage)
	if _, _, err := s.LoadVehicleContext(ctx); err != nil {
		logger.WithError(err).Warn("Checklist saved but vehicle data could not be reloaded")
	}

	// The published state is retained, so an empty list is sent too once
	// the alerts clear.
	if s.publisher != nil && s.thresholds != nil {
		if err := s.publisher.PublishAlerts(ctx, s.plate, s.Alerts()); err != nil {
			logger.WithError(err).Warn("Failed to publish maintenance alerts")
		}
	}
	return nil
}

// Submit builds the record from the session state and saves it.
func (s *Session) Submit(ctx context.Context) (models.Checklist, error) {
	record, err := s.BuildRecord()
	if err != nil {
		return models.Checklist{}, err
	}
	if err := s.Save(ctx, record); err != nil {
		return models.Checklist{}, err
	}
	return record, nil
}

// ParseMileage parses an odometer reading typed by the user.
func ParseMileage(input string) (int, error) {
	km, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, fmt.Errorf("%w: mileage %q is not a number", ErrInvalidInput, input)
	}
	if km < 0 {
		return 0, fmt.Errorf("%w: mileage %d is negative", ErrInvalidInput, km)
	}
	if km > models.MaxMileage {
		return 0, fmt.Errorf("%w: mileage %d is above %d", ErrInvalidInput, km, models.MaxMileage)
	}
	return km, nil
}

// BuildRecord assembles a checklist record stamped with the current time.
// Items are copied pairwise so labels and statuses cannot drift apart.
func BuildRecord(vehicleID, mileage string, items []models.ChecklistItem) (models.Checklist, error) {
	return buildRecord(time.Now(), vehicleID, mileage, items)
}

func buildRecord(now time.Time, vehicleID, mileage string, items []models.ChecklistItem) (models.Checklist, error) {
	if strings.TrimSpace(vehicleID) == "" {
		return models.Checklist{}, fmt.Errorf("%w: empty vehicle id", ErrInvalidInput)
	}
	km, err := ParseMileage(mileage)
	if err != nil {
		return models.Checklist{}, err
	}

	record := models.Checklist{
		Plate:     vehicleID,
		Timestamp: now,
		Mileage:   km,
		Items:     make([]models.ChecklistItem, len(items)),
	}
	copy(record.Items, items)
	return record, nil
}
