package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-checklist/internal/models"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient only implements Publish; other mqtt.Client methods panic.
type fakeClient struct {
	mqtt.Client
	err  error
	sent []published
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return newFakeToken(c.err)
}

func TestMQTTPublisher_PublishAlerts(t *testing.T) {
	client := &fakeClient{}
	p := NewMQTTPublisher(client, "")

	alerts := []models.Alert{
		{Category: models.CategoryEngine, Level: models.AlertApproaching, Mileage: 58000, Limit: 60000},
		{Category: models.CategoryTransmission, Level: models.AlertOverdue, Mileage: 58000, Limit: 55000},
	}
	err := p.PublishAlerts(context.Background(), "ABC1D23", alerts)
	require.NoError(t, err)

	require.Len(t, client.sent, 1)
	sent := client.sent[0]
	assert.Equal(t, "fleet/vehicles/ABC1D23/alerts", sent.topic)
	assert.Equal(t, byte(1), sent.qos)
	assert.True(t, sent.retained)

	var msg AlertMessage
	require.NoError(t, json.Unmarshal(sent.payload, &msg))
	assert.Equal(t, "ABC1D23", msg.Plate)
	require.Len(t, msg.Alerts, 2)
	assert.Equal(t, models.CategoryTransmission, msg.Alerts[1].Category)
	assert.Equal(t, models.AlertOverdue, msg.Alerts[1].Level)
	assert.Equal(t, "transmission oil change overdue by 3000 km", msg.Alerts[1].Message)
}

func TestMQTTPublisher_PublishError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := NewMQTTPublisher(client, "depot-1")

	err := p.PublishAlerts(context.Background(), "ABC1D23", nil)

	assert.ErrorContains(t, err, "not connected")
	assert.Equal(t, "depot-1/ABC1D23/alerts", client.sent[0].topic)
}

func TestMQTTPublisher_PublishClearedAlerts(t *testing.T) {
	client := &fakeClient{}
	p := NewMQTTPublisher(client, "")

	require.NoError(t, p.PublishAlerts(context.Background(), "ABC1D23", nil))

	require.Len(t, client.sent, 1)
	assert.True(t, client.sent[0].retained)
	assert.JSONEq(t, `[]`, string(mustField(t, client.sent[0].payload, "alerts")))
}

func mustField(t *testing.T, payload []byte, key string) json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &fields))
	require.Contains(t, fields, key)
	return fields[key]
}
