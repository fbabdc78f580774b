package notification

import (
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/mqtt"
)

// FromSettings builds a notifier with the sinks enabled in settings. It
// returns a notifier without sinks when nothing is enabled.
func FromSettings(settings *conf.NotificationSettings, metrics mqtt.Metrics) (*Notifier, error) {
	var recorder DeliveryRecorder = nopRecorder{}
	if metrics != nil {
		recorder = metrics
	}

	var sinks []Sink
	if settings.MQTT.Enabled {
		cfg := mqtt.DefaultConfig()
		cfg.Broker = settings.MQTT.Broker
		cfg.ClientID = settings.MQTT.ClientID
		cfg.Username = settings.MQTT.Username
		cfg.Password = settings.MQTT.Password

		client, err := mqtt.NewClient(cfg, metrics)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, NewMQTTSink(client, settings.MQTT.Topic))
	}

	if settings.Webhook.Enabled {
		sink, err := NewWebhookSink(WebhookConfig{
			URL:        settings.Webhook.URL,
			Timeout:    settings.Webhook.Timeout,
			RetryCount: 2,
		}, recorder)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	return NewNotifier(Options{OnlyNOK: settings.OnlyNOK}, sinks...), nil
}
