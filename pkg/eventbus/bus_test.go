package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillBus_PublishSubscribeRoundTrip(t *testing.T) {
	ctx := context.Background()
	bus := NewTestBus()

	var (
		mu       sync.Mutex
		received []Event
	)

	err := bus.Subscribe(ctx, ContactAutoTagEvent, func(_ context.Context, event Event) error {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()

		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(ctx, ContactAutoTag{
		ContactID: "c1",
		Tags:      []string{"refund-risk"},
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	tag, ok := received[0].(ContactAutoTag)
	require.True(t, ok)
	assert.Equal(t, "c1", tag.ContactID)
	assert.Equal(t, []string{"refund-risk"}, tag.Tags)
}

func TestWatermillBus_UnhandledEventTypeIsAcked(t *testing.T) {
	ctx := context.Background()
	bus := NewTestBus()

	handled := make(chan Event, 1)

	err := bus.Subscribe(ctx, AnalyticsInvalidateEvent, func(_ context.Context, event Event) error {
		handled <- event

		return nil
	})
	require.NoError(t, err)

	// No handler registered for autotag: the message is dropped, not
	// redelivered, and later events still flow.
	require.NoError(t, bus.Publish(ctx, ContactAutoTag{ContactID: "c1"}))
	require.NoError(t, bus.Publish(ctx, AnalyticsInvalidate{MerchantID: "m1"}))

	select {
	case event := <-handled:
		invalidate, ok := event.(AnalyticsInvalidate)
		require.True(t, ok)
		assert.Equal(t, "m1", invalidate.MerchantID)
	case <-time.After(time.Second):
		t.Fatal("analytics event was not delivered")
	}
}
