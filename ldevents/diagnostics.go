package ldevents

import (
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

type diagnosticStreamInitInfo struct {
	timestamp      ldtime.UnixMillisecondTime
	failed         bool
	durationMillis uint64
}

// DiagnosticsManager maintains state for the periodic diagnostic-event stream and produces its
// opaque JSON payloads. Diagnostic events are entirely separate from the analytics stream.
type DiagnosticsManager struct {
	id                ldvalue.Value
	configData        ldvalue.Value
	sdkData           ldvalue.Value
	startTime         ldtime.UnixMillisecondTime
	dataSinceTime     ldtime.UnixMillisecondTime
	streamInits       []diagnosticStreamInitInfo
	periodicEventGate <-chan struct{}
	lock              sync.Mutex
}

// NewDiagnosticID creates a unique identifier for one SDK instance's diagnostic stream.
func NewDiagnosticID(sdkKey string) ldvalue.Value {
	id, _ := uuid.NewRandom()
	suffix := sdkKey
	if len(sdkKey) > 6 {
		suffix = sdkKey[len(sdkKey)-6:]
	}
	return ldvalue.ObjectBuild().
		Set("diagnosticId", ldvalue.String(id.String())).
		Set("sdkKeySuffix", ldvalue.String(suffix)).
		Build()
}

// NewDiagnosticsManager creates a DiagnosticsManager. periodicEventGate is test instrumentation;
// production callers pass nil.
func NewDiagnosticsManager(
	id ldvalue.Value,
	configData ldvalue.Value,
	sdkData ldvalue.Value,
	startTime time.Time,
	periodicEventGate <-chan struct{},
) *DiagnosticsManager {
	timestamp := ldtime.UnixMillisFromTime(startTime)
	return &DiagnosticsManager{
		id:                id,
		configData:        configData,
		sdkData:           sdkData,
		startTime:         timestamp,
		dataSinceTime:     timestamp,
		periodicEventGate: periodicEventGate,
	}
}

// RecordStreamInit is called by the streaming processor after each connection attempt.
func (m *DiagnosticsManager) RecordStreamInit(timestamp ldtime.UnixMillisecondTime, failed bool, durationMillis uint64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.streamInits = append(m.streamInits, diagnosticStreamInitInfo{timestamp, failed, durationMillis})
}

// CreateInitEvent produces the one-time "diagnostic-init" record sent at startup.
func (m *DiagnosticsManager) CreateInitEvent() ldvalue.Value {
	platformData := ldvalue.ObjectBuild().
		Set("name", ldvalue.String("Go")).
		Set("goVersion", ldvalue.String(runtime.Version())).
		Set("osName", ldvalue.String(normalizeOSName(runtime.GOOS))).
		Set("osArch", ldvalue.String(runtime.GOARCH)).
		Build()
	return ldvalue.ObjectBuild().
		Set("kind", ldvalue.String("diagnostic-init")).
		Set("id", m.id).
		Set("creationDate", ldvalue.Float64(float64(m.startTime))).
		Set("sdk", m.sdkData).
		Set("configuration", m.configData).
		Set("platform", platformData).
		Build()
}

// CanSendStatsEvent reports whether a periodic event may be sent yet. Outside of tests this is
// always true.
func (m *DiagnosticsManager) CanSendStatsEvent() bool {
	if m.periodicEventGate == nil {
		return true
	}
	select {
	case <-m.periodicEventGate:
		return true
	default:
		return false
	}
}

// CreateStatsEventAndReset produces a periodic "diagnostic" record and resets the
// stream-init history for the next interval.
func (m *DiagnosticsManager) CreateStatsEventAndReset(droppedEvents, deduplicatedUsers, eventsInLastBatch int) ldvalue.Value {
	m.lock.Lock()
	defer m.lock.Unlock()
	timestamp := ldtime.UnixMillisNow()
	streamInits := ldvalue.ArrayBuildWithCapacity(len(m.streamInits))
	for _, si := range m.streamInits {
		streamInits.Add(ldvalue.ObjectBuild().
			Set("timestamp", ldvalue.Float64(float64(si.timestamp))).
			Set("failed", ldvalue.Bool(si.failed)).
			Set("durationMillis", ldvalue.Float64(float64(si.durationMillis))).
			Build())
	}
	event := ldvalue.ObjectBuild().
		Set("kind", ldvalue.String("diagnostic")).
		Set("id", m.id).
		Set("creationDate", ldvalue.Float64(float64(timestamp))).
		Set("dataSinceDate", ldvalue.Float64(float64(m.dataSinceTime))).
		Set("droppedEvents", ldvalue.Int(droppedEvents)).
		Set("deduplicatedUsers", ldvalue.Int(deduplicatedUsers)).
		Set("eventsInLastBatch", ldvalue.Int(eventsInLastBatch)).
		Set("streamInits", streamInits.Build()).
		Build()
	m.streamInits = nil
	m.dataSinceTime = timestamp
	return event
}

func normalizeOSName(osName string) string {
	switch osName {
	case "darwin":
		return "MacOS"
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	}
	return osName
}
