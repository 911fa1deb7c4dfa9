// Package sentryx provides error tracking integration with Sentry.
package sentryx

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Init initializes Sentry. Returns nil if the DSN is empty (graceful
// degradation).
func Init(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			sanitizeEvent(event)
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	return nil
}

// Flush flushes any buffered events before shutdown.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// CaptureError captures an error with optional tags and extras.
func CaptureError(err error, tags map[string]string, extras map[string]any) {
	if err == nil {
		return
	}

	hub := sentry.CurrentHub().Clone()
	scope := hub.Scope()
	for k, v := range tags {
		scope.SetTag(k, v)
	}
	for k, v := range extras {
		scope.SetExtra(k, v)
	}
	hub.CaptureException(err)
}

// CapturePanic reports a recovered panic value with its raw message body.
func CapturePanic(recovered any, tags map[string]string, extras map[string]any) {
	hub := sentry.CurrentHub().Clone()
	scope := hub.Scope()
	for k, v := range tags {
		scope.SetTag(k, v)
	}
	for k, v := range extras {
		scope.SetExtra(k, v)
	}
	hub.CaptureMessage(fmt.Sprintf("panic: %v", recovered))
}

func sanitizeEvent(event *sentry.Event) {
	if event.Request != nil {
		delete(event.Request.Headers, "Authorization")
		delete(event.Request.Headers, "Cookie")
	}
}
