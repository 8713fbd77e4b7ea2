package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-checklist/internal/checklist"
	"github.com/ukydev/fleet-checklist/internal/db"
	"github.com/ukydev/fleet-checklist/internal/middleware"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

// readJSON decodes the request body into v. It writes the 400 response itself
// and returns false when the body is unreadable or not JSON.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps checklist and store errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, checklist.ErrInvalidInput), errors.Is(err, checklist.ErrIndexOutOfRange):
		status = http.StatusBadRequest
	case errors.Is(err, db.ErrVehicleNotFound):
		status = http.StatusNotFound
	case errors.Is(err, checklist.ErrLoad), errors.Is(err, checklist.ErrWrite), errors.Is(err, db.ErrWrite):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		middleware.Logger(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	}
	http.Error(w, err.Error(), status)
}
