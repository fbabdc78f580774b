// Package telemetry provides privacy-compliant error tracking through Sentry.
// Reporting is opt-in and every outgoing event is stripped of host and user
// data before it leaves the process.
package telemetry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/privacy"
)

// ReleasePrefix prefixes the version in the Sentry release name.
const ReleasePrefix = "virtualteamleader@"

var sentryInitialized atomic.Bool

// GetLogger returns the telemetry package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// Option adjusts the Sentry client options before Init.
type Option func(*sentry.ClientOptions)

// WithTransport replaces the HTTP transport, used by tests.
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) {
		o.Transport = t
	}
}

// InitSentry initializes the Sentry SDK when it is enabled in settings and
// connects the errors package to it. With Sentry disabled the errors package
// still scrubs messages but reports nothing.
func InitSentry(settings *conf.SentrySettings, version string, opts ...Option) error {
	log := GetLogger()

	errors.SetPrivacyScrubber(privacy.ScrubMessage)

	if settings == nil || !settings.Enabled {
		errors.SetTelemetryReporter(errors.NewSentryReporter(false))
		log.Debug("sentry telemetry is disabled")
		return nil
	}
	if settings.DSN == "" {
		return fmt.Errorf("sentry enabled without dsn")
	}

	environment := settings.Environment
	if environment == "" {
		environment = "production"
	}

	options := sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          ReleasePrefix + version,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	sentryInitialized.Store(true)

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	log.Info("sentry telemetry initialized",
		logger.String("environment", environment),
		logger.String("release", options.Release))
	return nil
}

// IsInitialized reports whether InitSentry enabled reporting.
func IsInitialized() bool {
	return sentryInitialized.Load()
}

// Flush waits for queued events. It returns false on timeout.
func Flush(timeout time.Duration) bool {
	if !sentryInitialized.Load() {
		return true
	}
	return sentry.Flush(timeout)
}

// applyPrivacyFilters removes data that identifies the host or the operator
// and scrubs URLs out of messages and exception values.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	if event == nil {
		return nil
	}

	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}

	if event.Request != nil {
		event.Request.Cookies = ""
		event.Request.Headers = nil
		event.Request.QueryString = ""
		event.Request.URL = privacy.ScrubMessage(event.Request.URL)
	}

	return event
}
