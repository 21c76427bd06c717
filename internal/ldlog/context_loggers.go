package ldlog

import (
	"context"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

type contextLoggersKey string

const globalContextLoggersKey contextLoggersKey = "loggers"

// WithLoggers returns a context carrying the given Loggers, so that background components
// constructed further down the call chain can pick up the client's logging configuration
// without a process-wide singleton.
func WithLoggers(ctx context.Context, loggers ldlog.Loggers) context.Context {
	return context.WithValue(ctx, globalContextLoggersKey, loggers)
}

// FromContext returns the Loggers attached to ctx, or disabled loggers if none were attached.
func FromContext(ctx context.Context) ldlog.Loggers {
	if value := ctx.Value(globalContextLoggersKey); value != nil {
		if l, ok := value.(ldlog.Loggers); ok {
			return l
		}
	}
	return ldlog.NewDisabledLoggers()
}
