package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

const webhookSinkName = "webhook"

// DeliveryRecorder receives per-sink delivery observations.
type DeliveryRecorder interface {
	RecordDelivery(sink string, sizeBytes int, latency time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordDelivery(string, int, time.Duration, error) {}

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
	Headers    map[string]string
}

// WebhookSink POSTs each event as JSON to a fixed URL.
type WebhookSink struct {
	url     string
	client  *resty.Client
	metrics DeliveryRecorder
}

// NewWebhookSink creates a webhook sink. A nil metrics discards observations.
func NewWebhookSink(config WebhookConfig, metrics DeliveryRecorder) (*WebhookSink, error) {
	if config.URL == "" {
		return nil, errors.Newf("webhook url is not configured").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RetryWait <= 0 {
		config.RetryWait = 500 * time.Millisecond
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}

	client := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(config.RetryWait).
		SetRetryMaxWaitTime(4 * config.RetryWait).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "VirtualTeamLeader")
	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	GetLogger().Info("webhook sink configured", logger.String("url", logger.RedactURL(config.URL)))

	return &WebhookSink{url: config.URL, client: client, metrics: metrics}, nil
}

// Name implements Sink.
func (w *WebhookSink) Name() string { return webhookSinkName }

// Client exposes the underlying resty client.
func (w *WebhookSink) Client() *resty.Client { return w.client }

// Send implements Sink.
func (w *WebhookSink) Send(ctx context.Context, event InspectionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("operation", "marshal_event").
			Build()
	}

	start := time.Now()
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(w.url)

	if err == nil && !resp.IsSuccess() {
		err = fmt.Errorf("webhook responded with status %d", resp.StatusCode())
	}
	if err != nil {
		err = errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("sink", webhookSinkName).
			Context("url", logger.RedactURL(w.url)).
			Build()
	}

	w.metrics.RecordDelivery(webhookSinkName, len(payload), time.Since(start), err)
	return err
}

// Close implements Sink.
func (w *WebhookSink) Close() error {
	w.client.GetClient().CloseIdleConnections()
	return nil
}
