package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-checklist/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

func TestConnectMongo_BadURI(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := ConnectMongo(ctx, "mongodb://bad:uri")
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestMongoStore_NilCollections(t *testing.T) {
	ctx := context.Background()
	store := &MongoStore{}

	_, err := store.GetNextServices(ctx, "ABC1234")
	assert.Error(t, err)

	err = store.UpdateMileage(ctx, "ABC1234", 100)
	assert.True(t, errors.Is(err, ErrWrite))

	err = store.AppendChecklist(ctx, models.Checklist{Plate: "ABC1234"})
	assert.True(t, errors.Is(err, ErrWrite))

	err = store.CommitChecklist(ctx, models.Checklist{Plate: "ABC1234"})
	assert.True(t, errors.Is(err, ErrWrite))

	_, err = store.RecordService(ctx, "ABC1234", models.CategoryEngine, 100, 10000)
	assert.True(t, errors.Is(err, ErrWrite))

	_, err = store.ListChecklists(ctx, "ABC1234", 10)
	assert.Error(t, err)

	assert.Error(t, store.EnsureIndexes(ctx))
}

// Integration test (requires running MongoDB)
func TestChecklistDocument(t *testing.T) {
	checklist := models.Checklist{
		ID:      "c1",
		Plate:   "ABC1234",
		Mileage: 59000,
		Items: []models.ChecklistItem{
			{Label: "Oil level", Status: models.StatusYes},
			{Label: "Wipers", Status: models.StatusUnset},
		},
	}

	data, err := bson.Marshal(newChecklistDocument(checklist))
	require.NoError(t, err)

	var raw struct {
		ID       string                 `bson:"_id"`
		Plate    string                 `bson:"plate"`
		Items    []models.ChecklistItem `bson:"items"`
		Labels   []string               `bson:"labels"`
		Statuses []string               `bson:"statuses"`
	}
	require.NoError(t, bson.Unmarshal(data, &raw))
	assert.Equal(t, "c1", raw.ID)
	assert.Equal(t, "ABC1234", raw.Plate)
	assert.Len(t, raw.Items, 2)
	assert.Equal(t, []string{"Oil level", "Wipers"}, raw.Labels)
	assert.Equal(t, []string{"yes", ""}, raw.Statuses)

	var decoded models.Checklist
	require.NoError(t, bson.Unmarshal(data, &decoded))
	assert.Equal(t, checklist.Items, decoded.Items)
}

func TestMongoStore_Integration(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := ConnectMongo(ctx, uri)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	defer client.Disconnect(context.Background())

	database := client.Database(fmt.Sprintf("fleet_checklist_test_%d", time.Now().UnixNano()))
	defer database.Drop(context.Background())

	store := NewMongoStore(database, os.Getenv("MONGO_TRANSACTIONS") == "true")
	require.NoError(t, store.EnsureIndexes(ctx))

	_, err = store.GetNextServices(ctx, "ABC1234")
	assert.True(t, errors.Is(err, ErrVehicleNotFound))

	require.NoError(t, store.UpsertVehicle(ctx, models.Vehicle{
		Plate:          "ABC1234",
		CurrentMileage: 57000,
		NextService:    models.ServiceThresholds{Engine: 60000, Transmission: 58000, Differential: 60000},
	}))

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, km := range []int{58000, 59000} {
		require.NoError(t, store.CommitChecklist(ctx, models.Checklist{
			Plate:     "ABC1234",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Mileage:   km,
			Items:     []models.ChecklistItem{{Label: "Oil level", Status: models.StatusYes}},
		}))
	}

	vehicle, err := store.GetNextServices(ctx, "ABC1234")
	require.NoError(t, err)
	assert.Equal(t, 59000, vehicle.CurrentMileage)

	checklists, err := store.ListChecklists(ctx, "ABC1234", 1)
	require.NoError(t, err)
	require.Len(t, checklists, 1)
	assert.Equal(t, 59000, checklists[0].Mileage)
	assert.NotEmpty(t, checklists[0].ID)

	vehicle, err = store.RecordService(ctx, "ABC1234", models.CategoryTransmission, 59500, 10000)
	require.NoError(t, err)
	assert.Equal(t, 69500, vehicle.NextService.Transmission)
	assert.Equal(t, 59500, vehicle.CurrentMileage)

	err = store.CommitChecklist(ctx, models.Checklist{Plate: "XYZ0000", Mileage: 1})
	assert.True(t, errors.Is(err, ErrVehicleNotFound))
}
