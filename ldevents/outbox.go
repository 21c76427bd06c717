package ldevents

import "github.com/launchdarkly/go-sdk-common/v3/ldlog"

// eventBuffer accumulates events awaiting the next flush and feeds them to the summarizer. It
// belongs entirely to the dispatcher goroutine and is never touched concurrently, so it needs no
// locking of its own.
type eventBuffer struct {
	pending       []Event
	summarizer    eventSummarizer
	capacity      int
	atCapacity    bool
	droppedEvents int
	loggers       ldlog.Loggers
}

func newEventBuffer(capacity int, loggers ldlog.Loggers) *eventBuffer {
	return &eventBuffer{
		pending:    make([]Event, 0, capacity),
		summarizer: newEventSummarizer(),
		capacity:   capacity,
		loggers:    loggers,
	}
}

func (b *eventBuffer) addEvent(event Event) {
	if len(b.pending) >= b.capacity {
		if !b.atCapacity {
			b.atCapacity = true
			b.loggers.Warn("Exceeded event queue capacity. Increase capacity to avoid dropping events.")
		}
		b.droppedEvents++
		return
	}
	b.atCapacity = false
	b.pending = append(b.pending, event)
}

func (b *eventBuffer) addToSummary(event Event) {
	b.summarizer.summarizeEvent(event)
}

func (b *eventBuffer) getPayload() flushPayload {
	return flushPayload{
		events:  b.pending,
		summary: b.summarizer.snapshot(),
	}
}

func (b *eventBuffer) clear() {
	b.pending = make([]Event, 0, b.capacity)
	b.summarizer.reset()
}
