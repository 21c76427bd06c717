package ldevents

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// EventProcessor dispatches analytics events asynchronously.
type EventProcessor interface {
	SendEvent(Event)
	Flush()
	Close() error
}

const maxFlushWorkers = 5

type defaultEventProcessor struct {
	inboxCh       chan eventDispatcherMessage
	inboxFullOnce sync.Once
	closeOnce     sync.Once
	loggers       ldlog.Loggers
}

// NewDefaultEventProcessor creates the standard EventProcessor implementation.
func NewDefaultEventProcessor(config EventsConfiguration) EventProcessor {
	inboxCh := make(chan eventDispatcherMessage, config.Capacity.GetOrElse(DefaultCapacity))
	startEventDispatcher(config, inboxCh)
	return &defaultEventProcessor{inboxCh: inboxCh, loggers: config.Loggers}
}

func (ep *defaultEventProcessor) SendEvent(e Event) {
	ep.postNonBlockingMessageToInbox(sendEventMessage{event: e})
}

func (ep *defaultEventProcessor) Flush() {
	ep.postNonBlockingMessageToInbox(flushEventsMessage{})
}

func (ep *defaultEventProcessor) postNonBlockingMessageToInbox(m eventDispatcherMessage) {
	select {
	case ep.inboxCh <- m:
		return
	default:
	}
	ep.inboxFullOnce.Do(func() {
		ep.loggers.Warn("Events are being produced faster than they can be processed; some events will be dropped")
	})
}

func (ep *defaultEventProcessor) Close() error {
	ep.closeOnce.Do(func() {
		ep.inboxCh <- flushEventsMessage{}
		m := shutdownEventsMessage{replyCh: make(chan struct{})}
		ep.inboxCh <- m
		<-m.replyCh
	})
	return nil
}

type eventDispatcherMessage interface{}

type sendEventMessage struct{ event Event }
type flushEventsMessage struct{}
type shutdownEventsMessage struct{ replyCh chan struct{} }
type syncEventsMessage struct{ replyCh chan struct{} }

type flushPayload struct {
	diagnosticEvent ldvalue.Value
	events          []Event
	summary         eventSummary
}

type eventDispatcher struct {
	config             EventsConfiguration
	outbox             *eventBuffer
	flushCh            chan *flushPayload
	workersGroup       *sync.WaitGroup
	userKeys           lruCache
	lastKnownPastTime  ldtime.UnixMillisecondTime
	deduplicatedUsers  int
	eventsInLastBatch  int
	disabled           bool
	currentTimestampFn func() ldtime.UnixMillisecondTime
	stateLock          sync.Mutex
}

func startEventDispatcher(config EventsConfiguration, inboxCh <-chan eventDispatcherMessage) {
	ed := &eventDispatcher{
		config:             config,
		outbox:             newEventBuffer(config.Capacity.GetOrElse(DefaultCapacity), config.Loggers),
		flushCh:            make(chan *flushPayload, 1),
		workersGroup:       &sync.WaitGroup{},
		userKeys:           newLruCache(config.UserKeysCapacity.GetOrElse(DefaultUserKeysCapacity)),
		currentTimestampFn: config.currentTimeProvider,
	}
	if ed.currentTimestampFn == nil {
		ed.currentTimestampFn = ldtime.UnixMillisNow
	}

	for i := 0; i < maxFlushWorkers; i++ {
		go runFlushTask(config, ed.flushCh, ed.workersGroup, ed.handleResult)
	}
	if config.DiagnosticsManager != nil {
		ed.sendDiagnosticsEvent(config.DiagnosticsManager.CreateInitEvent())
	}
	go ed.runMainLoop(inboxCh)
}

func (ed *eventDispatcher) runMainLoop(inboxCh <-chan eventDispatcherMessage) {
	defer func() {
		if err := recover(); err != nil {
			ed.config.Loggers.Errorf("Unexpected panic in event processing thread: %+v", err)
		}
	}()

	flushInterval := ed.config.FlushInterval.GetOrElse(DefaultFlushInterval)
	userKeysFlushInterval := ed.config.UserKeysFlushInterval.GetOrElse(DefaultUserKeysFlushInterval)
	flushTicker := time.NewTicker(flushInterval)
	usersResetTicker := time.NewTicker(userKeysFlushInterval)
	defer flushTicker.Stop()
	defer usersResetTicker.Stop()

	var diagnosticsTickerCh <-chan time.Time
	diagnosticsManager := ed.config.DiagnosticsManager
	if diagnosticsManager != nil {
		var interval time.Duration
		switch {
		case ed.config.DiagnosticRecordingInterval.IsDefined() &&
			ed.config.DiagnosticRecordingInterval.GetOrElse(0) < MinimumDiagnosticRecordingInterval:
			// A configured interval below the floor is not honored even via the test-only
			// override below; DefaultDiagnosticRecordingInterval is used instead.
			interval = DefaultDiagnosticRecordingInterval
		case ed.config.DiagnosticRecordingInterval.IsDefined():
			interval = ed.config.DiagnosticRecordingInterval.GetOrElse(DefaultDiagnosticRecordingInterval)
		case ed.config.forceDiagnosticRecordingInterval > 0:
			interval = ed.config.forceDiagnosticRecordingInterval
		default:
			interval = DefaultDiagnosticRecordingInterval
		}
		diagnosticsTicker := time.NewTicker(interval)
		defer diagnosticsTicker.Stop()
		diagnosticsTickerCh = diagnosticsTicker.C
	}

	for {
		select {
		case message := <-inboxCh:
			switch m := message.(type) {
			case sendEventMessage:
				ed.processEvent(m.event)
			case flushEventsMessage:
				ed.triggerFlush()
			case syncEventsMessage:
				ed.workersGroup.Wait()
				m.replyCh <- struct{}{}
			case shutdownEventsMessage:
				ed.workersGroup.Wait()
				close(ed.flushCh)
				m.replyCh <- struct{}{}
				return
			}
		case <-flushTicker.C:
			ed.triggerFlush()
		case <-usersResetTicker.C:
			ed.userKeys.clear()
		case <-diagnosticsTickerCh:
			if diagnosticsManager == nil || !diagnosticsManager.CanSendStatsEvent() {
				continue
			}
			event := diagnosticsManager.CreateStatsEventAndReset(
				ed.outbox.droppedEvents, ed.deduplicatedUsers, ed.eventsInLastBatch)
			ed.outbox.droppedEvents = 0
			ed.deduplicatedUsers = 0
			ed.eventsInLastBatch = 0
			ed.sendDiagnosticsEvent(event)
		}
	}
}

func (ed *eventDispatcher) processEvent(evt Event) {
	ed.outbox.addToSummary(evt)

	willAddFullEvent := true
	var debugEvent Event
	inlinedUser := ed.config.InlineUsersInEvents

	switch typed := evt.(type) {
	case FeatureRequestEvent:
		willAddFullEvent = typed.TrackEvents
		if ed.shouldDebugEvent(&typed) {
			de := typed
			de.Debug = true
			debugEvent = de
		}
	case IdentifyEvent:
		inlinedUser = true
	}

	user := evt.GetBase().User
	alreadySeenUser := ed.userKeys.add(user.Key)
	if !(willAddFullEvent && inlinedUser) {
		if alreadySeenUser {
			ed.deduplicatedUsers++
		} else {
			ed.outbox.addEvent(IndexEvent{BaseEvent{CreationDate: evt.GetBase().CreationDate, User: user}})
		}
	}
	if willAddFullEvent {
		ed.outbox.addEvent(evt)
	}
	if debugEvent != nil {
		ed.outbox.addEvent(debugEvent)
	}
}

func (ed *eventDispatcher) shouldDebugEvent(evt *FeatureRequestEvent) bool {
	if evt.DebugEventsUntilDate == 0 {
		return false
	}
	ed.stateLock.Lock()
	defer ed.stateLock.Unlock()
	return evt.DebugEventsUntilDate > ed.lastKnownPastTime && evt.DebugEventsUntilDate > ed.currentTimestampFn()
}

func (ed *eventDispatcher) triggerFlush() {
	if ed.isDisabled() {
		ed.outbox.clear()
		return
	}
	payload := ed.outbox.getPayload()
	totalEventCount := len(payload.events)
	if len(payload.summary.counters) > 0 {
		totalEventCount++
	}
	if totalEventCount == 0 {
		ed.eventsInLastBatch = 0
		return
	}
	ed.workersGroup.Add(1)
	select {
	case ed.flushCh <- &payload:
		ed.eventsInLastBatch = totalEventCount
		ed.outbox.clear()
	default:
		ed.workersGroup.Done()
	}
}

func (ed *eventDispatcher) isDisabled() bool {
	ed.stateLock.Lock()
	defer ed.stateLock.Unlock()
	return ed.disabled
}

func (ed *eventDispatcher) handleResult(result EventSenderResult) {
	ed.stateLock.Lock()
	defer ed.stateLock.Unlock()
	if result.MustShutDown {
		ed.disabled = true
	} else if result.TimeFromServer > 0 {
		ed.lastKnownPastTime = result.TimeFromServer
	}
}

func (ed *eventDispatcher) sendDiagnosticsEvent(event ldvalue.Value) {
	payload := flushPayload{diagnosticEvent: event}
	ed.workersGroup.Add(1)
	select {
	case ed.flushCh <- &payload:
	default:
		ed.workersGroup.Done()
	}
}

func runFlushTask(config EventsConfiguration, flushCh <-chan *flushPayload, workersGroup *sync.WaitGroup, resultFn func(EventSenderResult)) {
	formatter := eventOutputFormatter{config: config}
	for {
		payload, more := <-flushCh
		if !more {
			return
		}
		if !payload.diagnosticEvent.IsNull() {
			bytes, err := json.Marshal(payload.diagnosticEvent)
			if err != nil {
				config.Loggers.Errorf("Unexpected error marshalling diagnostic event: %+v", err)
			} else {
				_ = config.EventSender.SendEventData(DiagnosticEventDataKind, bytes, 1)
			}
		} else {
			outputEvents := formatter.makeOutputEvents(payload.events, payload.summary)
			if len(outputEvents) > 0 {
				bytes, err := json.Marshal(outputEvents)
				if err != nil {
					config.Loggers.Errorf("Unexpected error marshalling event JSON: %+v", err)
				} else {
					result := config.EventSender.SendEventData(AnalyticsEventDataKind, bytes, len(outputEvents))
					resultFn(result)
				}
			}
		}
		workersGroup.Done()
	}
}
