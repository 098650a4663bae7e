// Package errtrack reports unexpected failures to Sentry when a DSN is set.
package errtrack

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

type Reporter struct {
	enabled bool
}

func Init(dsn string, environment string, release string) (Reporter, error) {
	if strings.TrimSpace(dsn) == "" {
		return Reporter{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		TracesSampleRate: 0.2,
	})
	if err != nil {
		return Reporter{}, err
	}
	return Reporter{enabled: true}, nil
}

func (r Reporter) Enabled() bool {
	return r.enabled
}

// Capture records err with request-scoped tags.
func (r Reporter) Capture(ctx context.Context, err error, tags map[string]string) {
	if !r.enabled || err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range tags {
			scope.SetTag(key, value)
		}
		hub.CaptureException(err)
	})
}

func (r Reporter) Flush(timeout time.Duration) {
	if r.enabled {
		sentry.Flush(timeout)
	}
}
