// Package notify fans maintenance alerts out to the fleet's MQTT broker so that
// dashboards and the workshop can react to overdue services.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-checklist/internal/models"
)

const publishTimeout = 5 * time.Second

// AlertMessage is the JSON payload published for a vehicle.
type AlertMessage struct {
	Plate     string         `json:"plate"`
	Timestamp time.Time      `json:"timestamp"`
	Alerts    []AlertPayload `json:"alerts"`
}

// AlertPayload is one alert with its rendered message.
type AlertPayload struct {
	models.Alert
	Message string `json:"message"`
}

// MQTTPublisher publishes alerts to <prefix>/<plate>/alerts.
type MQTTPublisher struct {
	client      mqtt.Client
	topicPrefix string
	qos         byte
}

// Connect dials the broker and returns a publisher on top of the connection.
func Connect(broker, clientID, topicPrefix string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return NewMQTTPublisher(client, topicPrefix), nil
}

// NewMQTTPublisher wraps an already connected client.
func NewMQTTPublisher(client mqtt.Client, topicPrefix string) *MQTTPublisher {
	if topicPrefix == "" {
		topicPrefix = "fleet/vehicles"
	}
	return &MQTTPublisher{client: client, topicPrefix: topicPrefix, qos: 1}
}

// Topic returns the topic alerts for plate are published on.
func (p *MQTTPublisher) Topic(plate string) string {
	return p.topicPrefix + "/" + plate + "/alerts"
}

// PublishAlerts sends the alerts as one retained message, so late subscribers
// see the latest state of the vehicle. An empty list replaces earlier alerts.
func (p *MQTTPublisher) PublishAlerts(ctx context.Context, plate string, alerts []models.Alert) error {
	msg := AlertMessage{Plate: plate, Timestamp: time.Now().UTC(), Alerts: make([]AlertPayload, len(alerts))}
	for i, a := range alerts {
		msg.Alerts[i] = AlertPayload{Alert: a, Message: a.Message()}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	token := p.client.Publish(p.Topic(plate), p.qos, true, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("mqtt publish to %s: timed out", p.Topic(plate))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", p.Topic(plate), err)
	}

	log.WithFields(log.Fields{"plate": plate, "alerts": len(alerts)}).Debug("Published maintenance alerts")
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
