package notification

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/mqtt"
)

const (
	mqttSinkName       = "mqtt"
	inspectionsSubject = "inspections"
)

// MQTTSink publishes each event as JSON on <topic>/inspections.
type MQTTSink struct {
	client mqtt.Client
	topic  string
}

// NewMQTTSink wraps client. The connection is established on first use.
func NewMQTTSink(client mqtt.Client, baseTopic string) *MQTTSink {
	return &MQTTSink{client: client, topic: InspectionsTopic(baseTopic)}
}

// InspectionsTopic returns the topic inspection events are published on.
func InspectionsTopic(baseTopic string) string {
	base := strings.Trim(strings.TrimSpace(baseTopic), "/")
	if base == "" {
		return inspectionsSubject
	}
	return base + "/" + inspectionsSubject
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return mqttSinkName }

// Topic returns the publish topic.
func (s *MQTTSink) Topic() string { return s.topic }

// Send implements Sink.
func (s *MQTTSink) Send(ctx context.Context, event InspectionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("operation", "marshal_event").
			Build()
	}

	if !s.client.IsConnected() {
		if err := s.client.Connect(ctx); err != nil {
			return err
		}
	}
	return s.client.Publish(ctx, s.topic, payload)
}

// Close implements Sink.
func (s *MQTTSink) Close() error {
	s.client.Disconnect()
	return nil
}
