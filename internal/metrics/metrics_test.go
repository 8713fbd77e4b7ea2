package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-checklist/internal/models"
)

func TestRecorder_Counts(t *testing.T) {
	r, err := NewRecorder()
	require.NoError(t, err)

	r.ChecklistSaved(ResultOK, 0.01)
	r.ChecklistSaved(ResultOK, 0.02)
	r.ChecklistSaved(ResultFailed, 0)
	r.AlertsEmitted([]models.Alert{
		{Category: models.CategoryEngine, Level: models.AlertApproaching},
		{Category: models.CategoryTransmission, Level: models.AlertOverdue},
		{Category: models.CategoryEngine, Level: models.AlertApproaching},
	})
	r.LoadFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.checklists.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.checklists.WithLabelValues(ResultFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.alerts.WithLabelValues("engine", "approaching")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.alerts.WithLabelValues("transmission", "overdue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.loadFailures))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ChecklistSaved(ResultOK, 1)
		r.AlertsEmitted([]models.Alert{{Category: models.CategoryEngine, Level: models.AlertOverdue}})
		r.LoadFailed()
	})
}

func TestRecorder_Handler(t *testing.T) {
	r, err := NewRecorder()
	require.NoError(t, err)
	r.LoadFailed()

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fleet_vehicle_load_failures_total 1")
}
