package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ukydev/fleet-checklist/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vehicles (
	plate        TEXT PRIMARY KEY,
	current_km   INTEGER NOT NULL DEFAULT 0,
	engine       INTEGER NOT NULL DEFAULT 0,
	transmission INTEGER NOT NULL DEFAULT 0,
	differential INTEGER NOT NULL DEFAULT 0,
	updated_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS checklists (
	id          TEXT PRIMARY KEY,
	plate       TEXT NOT NULL REFERENCES vehicles(plate),
	recorded_at TEXT NOT NULL,
	km          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checklists_plate ON checklists(plate, recorded_at);
CREATE TABLE IF NOT EXISTS checklist_items (
	checklist_id TEXT NOT NULL REFERENCES checklists(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	label        TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (checklist_id, position)
);
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	is_active     INTEGER NOT NULL DEFAULT 1,
	last_login    TEXT,
	created_at    TEXT NOT NULL
);
`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore is a single-file store for running without a MongoDB server.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite doesn't handle multiple writers well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks if the database is accessible.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetNextServices finds a vehicle by plate.
func (s *SQLiteStore) GetNextServices(ctx context.Context, plate string) (*models.Vehicle, error) {
	return getVehicle(ctx, s.db, plate)
}

func getVehicle(ctx context.Context, q querier, plate string) (*models.Vehicle, error) {
	var (
		v         models.Vehicle
		updatedAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT plate, current_km, engine, transmission, differential, updated_at FROM vehicles WHERE plate = ?`,
		plate,
	).Scan(&v.Plate, &v.CurrentMileage, &v.NextService.Engine, &v.NextService.Transmission, &v.NextService.Differential, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrVehicleNotFound, plate)
		}
		return nil, err
	}
	v.UpdatedAt = parseTime(updatedAt)
	return &v, nil
}

// UpdateMileage sets the vehicle's odometer reading.
func (s *SQLiteStore) UpdateMileage(ctx context.Context, plate string, km int) error {
	return updateMileage(ctx, s.db, plate, km)
}

func updateMileage(ctx context.Context, q querier, plate string, km int) error {
	res, err := q.ExecContext(ctx,
		`UPDATE vehicles SET current_km = ?, updated_at = ? WHERE plate = ?`,
		km, formatTime(time.Now()), plate,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %w: %s", ErrWrite, ErrVehicleNotFound, plate)
	}
	return nil
}

// AppendChecklist inserts a checklist and its items.
func (s *SQLiteStore) AppendChecklist(ctx context.Context, checklist models.Checklist) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := appendChecklist(ctx, tx, checklist); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func appendChecklist(ctx context.Context, q querier, checklist models.Checklist) error {
	if checklist.ID == "" {
		checklist.ID = uuid.New().String()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO checklists (id, plate, recorded_at, km) VALUES (?, ?, ?, ?)`,
		checklist.ID, checklist.Plate, formatTime(checklist.Timestamp), checklist.Mileage,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	for i, item := range checklist.Items {
		_, err := q.ExecContext(ctx,
			`INSERT INTO checklist_items (checklist_id, position, label, status) VALUES (?, ?, ?, ?)`,
			checklist.ID, i, item.Label, string(item.Status),
		)
		if err != nil {
			return fmt.Errorf("%w: item %d: %w", ErrWrite, i, err)
		}
	}
	return nil
}

// CommitChecklist updates the mileage and appends the checklist in one transaction.
func (s *SQLiteStore) CommitChecklist(ctx context.Context, checklist models.Checklist) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := updateMileage(ctx, tx, checklist.Plate, checklist.Mileage); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := appendChecklist(ctx, tx, checklist); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// UpsertVehicle creates or replaces the vehicle with the given plate.
func (s *SQLiteStore) UpsertVehicle(ctx context.Context, vehicle models.Vehicle) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO vehicles (plate, current_km, engine, transmission, differential, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(plate) DO UPDATE SET
	current_km = excluded.current_km,
	engine = excluded.engine,
	transmission = excluded.transmission,
	differential = excluded.differential,
	updated_at = excluded.updated_at`,
		vehicle.Plate, vehicle.CurrentMileage,
		vehicle.NextService.Engine, vehicle.NextService.Transmission, vehicle.NextService.Differential,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// RecordService moves the category's threshold to km+interval and raises the
// odometer to km if it was lower.
func (s *SQLiteStore) RecordService(ctx context.Context, plate string, category models.ServiceCategory, km, interval int) (*models.Vehicle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	defer func() { _ = tx.Rollback() }()

	vehicle, err := getVehicle(ctx, tx, plate)
	if err != nil {
		return nil, err
	}
	vehicle.NextService = vehicle.NextService.WithLimit(category, km+interval)
	if km > vehicle.CurrentMileage {
		vehicle.CurrentMileage = km
	}
	vehicle.UpdatedAt = time.Now()

	_, err = tx.ExecContext(ctx,
		`UPDATE vehicles SET current_km = ?, engine = ?, transmission = ?, differential = ?, updated_at = ? WHERE plate = ?`,
		vehicle.CurrentMileage, vehicle.NextService.Engine, vehicle.NextService.Transmission,
		vehicle.NextService.Differential, formatTime(vehicle.UpdatedAt), plate,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return vehicle, nil
}

// ListChecklists returns the most recent checklists of a vehicle, newest first.
func (s *SQLiteStore) ListChecklists(ctx context.Context, plate string, limit int) ([]models.Checklist, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plate, recorded_at, km FROM checklists WHERE plate = ? ORDER BY recorded_at DESC LIMIT ?`,
		plate, limit,
	)
	if err != nil {
		return nil, err
	}

	checklists := []models.Checklist{}
	for rows.Next() {
		var (
			c          models.Checklist
			recordedAt string
		)
		if err := rows.Scan(&c.ID, &c.Plate, &recordedAt, &c.Mileage); err != nil {
			_ = rows.Close()
			return nil, err
		}
		c.Timestamp = parseTime(recordedAt)
		checklists = append(checklists, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Items are loaded after the outer rows are closed: the pool has a single connection.
	for i := range checklists {
		items, err := s.checklistItems(ctx, checklists[i].ID)
		if err != nil {
			return nil, err
		}
		checklists[i].Items = items
	}
	return checklists, nil
}

func (s *SQLiteStore) checklistItems(ctx context.Context, id string) ([]models.ChecklistItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label, status FROM checklist_items WHERE checklist_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.ChecklistItem{}
	for rows.Next() {
		var (
			item   models.ChecklistItem
			status string
		)
		if err := rows.Scan(&item.Label, &status); err != nil {
			return nil, err
		}
		item.Status = models.ItemStatus(status)
		items = append(items, item)
	}
	return items, rows.Err()
}

// InsertUser inserts a new user into the database
func (s *SQLiteStore) InsertUser(ctx context.Context, user models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, password_hash, role, is_active, created_at) VALUES (?, ?, ?, ?, ?, 1, ?)`,
		user.ID.Hex(), user.Username, user.DisplayName, user.PasswordHash, string(user.Role), formatTime(time.Now()),
	)
	return err
}

// FindUserByID finds a user by their ID
func (s *SQLiteStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, `WHERE id = ?`, id)
}

// FindUserByUsername finds a user by their username
func (s *SQLiteStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, `WHERE username = ?`, username)
}

func (s *SQLiteStore) findUser(ctx context.Context, where string, arg string) (*models.User, error) {
	var (
		u         models.User
		id, role  string
		active    int
		lastLogin sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, password_hash, role, is_active, last_login, created_at FROM users `+where, arg,
	).Scan(&id, &u.Username, &u.DisplayName, &u.PasswordHash, &role, &active, &lastLogin, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u.ID, err = primitive.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("invalid user ID %q: %w", id, err)
	}
	u.Role = models.Role(role)
	u.IsActive = active == 1
	u.CreatedAt = parseTime(createdAt)
	if lastLogin.Valid {
		t := parseTime(lastLogin.String)
		u.LastLogin = &t
	}
	return &u, nil
}

// UpdateLastLogin updates the last login time for a user
func (s *SQLiteStore) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, formatTime(time.Now()), id)
	return err
}

// timeLayout is fixed width so that text columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
