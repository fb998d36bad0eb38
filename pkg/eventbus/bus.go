package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Handler consumes one decoded side-channel event.
type Handler func(ctx context.Context, event Event) error

// Bus is the detached side-effect channel.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, eventType EventType, handler Handler) error
	Close() error
}

// WatermillBus implements Bus on any watermill publisher/subscriber
// pair (gochannel in-process, kafka across processes).
type WatermillBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	handlers   map[EventType]Handler
}

func NewWatermillBus(pub message.Publisher, sub message.Subscriber) *WatermillBus {
	return &WatermillBus{
		publisher:  pub,
		subscriber: sub,
		handlers:   make(map[EventType]Handler),
	}
}

func (b *WatermillBus) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.GetType(), err)
	}

	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set(eventTypeMetadataKey, string(event.GetType()))

	return b.publisher.Publish(Topic, msg)
}

// Subscribe registers a handler and starts the consume loop on first
// call. Handler errors ack the message anyway: side effects are
// best-effort and must not poison the channel.
func (b *WatermillBus) Subscribe(ctx context.Context, eventType EventType, handler Handler) error {
	started := len(b.handlers) > 0
	b.handlers[eventType] = handler

	if started {
		return nil
	}

	messages, err := b.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Topic, err)
	}

	go func() {
		for msg := range messages {
			b.dispatch(ctx, msg)
			msg.Ack()
		}
	}()

	return nil
}

func (b *WatermillBus) dispatch(ctx context.Context, msg *message.Message) {
	eventType := EventType(msg.Metadata.Get(eventTypeMetadataKey))

	handler, ok := b.handlers[eventType]
	if !ok {
		return
	}

	var event Event

	switch eventType {
	case AnalyticsInvalidateEvent:
		decoded := &AnalyticsInvalidate{}
		if json.Unmarshal(msg.Payload, decoded) != nil {
			return
		}

		event = *decoded
	case ContactAutoTagEvent:
		decoded := &ContactAutoTag{}
		if json.Unmarshal(msg.Payload, decoded) != nil {
			return
		}

		event = *decoded
	default:
		return
	}

	_ = handler(ctx, event)
}

func (b *WatermillBus) Close() error {
	if err := b.publisher.Close(); err != nil {
		return fmt.Errorf("failed to close publisher: %w", err)
	}

	return nil
}
