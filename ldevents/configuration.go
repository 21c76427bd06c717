package ldevents

import (
	"time"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
)

// Default tuning values, matching the vendored event processor's defaults.
const (
	DefaultFlushInterval               = 5 * time.Second
	DefaultUserKeysFlushInterval       = 5 * time.Minute
	DefaultUserKeysCapacity            = 1000
	DefaultCapacity                    = 10000
	DefaultDiagnosticRecordingInterval = 15 * time.Minute
	MinimumDiagnosticRecordingInterval = 60 * time.Second
)

// EventsConfiguration bundles the tuning parameters and collaborators the event dispatcher needs.
// Every tunable with a default and a validity floor (a capacity must be positive, an interval
// non-negative) is an Opt type from go-configtypes rather than a bare int/time.Duration, so an
// unset field and an explicitly-zeroed one can't be confused.
type EventsConfiguration struct {
	Capacity                    ct.OptIntGreaterThanZero
	FlushInterval               ct.OptDuration
	UserKeysCapacity            ct.OptIntGreaterThanZero
	UserKeysFlushInterval       ct.OptDuration
	InlineUsersInEvents         bool
	EventSender                 EventSender
	Loggers                     ldlog.Loggers
	DiagnosticsManager          *DiagnosticsManager
	DiagnosticRecordingInterval ct.OptDuration

	// currentTimeProvider is test instrumentation allowing a fixed clock; nil means
	// ldtime.UnixMillisNow.
	currentTimeProvider func() ldtime.UnixMillisecondTime

	// forceDiagnosticRecordingInterval bypasses MinimumDiagnosticRecordingInterval; test-only.
	forceDiagnosticRecordingInterval time.Duration
}
