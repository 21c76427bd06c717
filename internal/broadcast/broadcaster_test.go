package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := NewBroadcaster[int]()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	b.Publish(42)

	assert.Equal(t, 42, <-ch1)
	assert.Equal(t, 42, <-ch2)
}

func TestPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	b := NewBroadcaster[string]()
	assert.NotPanics(t, func() { b.Publish("hello") })
}

func TestUnsubscribeStopsDeliveryAndClosesChannel(t *testing.T) {
	b := NewBroadcaster[int]()
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	b.Publish(1)
	_, open := <-ch
	assert.False(t, open, "the channel must be closed on unsubscribe")
}

func TestPublishDropsRatherThanBlocksOnAFullSubscriber(t *testing.T) {
	b := NewBroadcaster[int]()
	ch := b.Subscribe()

	// The channel is buffered with capacity 10; fill it, then publish once more and confirm
	// Publish itself doesn't block even though the subscriber never drains.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			b.Publish(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-ch: // draining one entry frees room, but the test only needs Publish to return
	}
}

func TestCloseUnsubscribesEveryChannel(t *testing.T) {
	b := NewBroadcaster[int]()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	b.Close()

	_, open1 := <-ch1
	_, open2 := <-ch2
	assert.False(t, open1)
	assert.False(t, open2)

	// Subscribing again after Close must still work: Close leaves the broadcaster reusable.
	ch3 := b.Subscribe()
	b.Publish(7)
	require.Equal(t, 7, <-ch3)
}
