// Package mqtt provides a small MQTT publishing client on top of paho.
package mqtt

import (
	"context"
	"time"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected returns true if the client is currently connected.
	IsConnected() bool

	// Disconnect closes the connection to the broker.
	Disconnect()
}

// Metrics receives connection and delivery observations.
type Metrics interface {
	UpdateMQTTConnectionStatus(connected bool)
	IncrementMQTTReconnects()
	RecordDelivery(sink string, sizeBytes int, latency time.Duration, err error)
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	Retain            bool
	QoS               byte
	ReconnectCooldown time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values.
func DefaultConfig() Config {
	return Config{
		ReconnectCooldown: 5 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// GetLogger returns the mqtt package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}

type nopMetrics struct{}

func (nopMetrics) UpdateMQTTConnectionStatus(bool)                  {}
func (nopMetrics) IncrementMQTTReconnects()                         {}
func (nopMetrics) RecordDelivery(string, int, time.Duration, error) {}
