package eventbus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewGoChannelBus builds an in-process bus. The default for single-node
// deployments and tests.
func NewGoChannelBus(logger watermill.LoggerAdapter) *WatermillBus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            256,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)

	return NewWatermillBus(pubSub, pubSub)
}

// NewTestBus blocks publishes until ack so tests observe side effects
// deterministically.
func NewTestBus() *WatermillBus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            16,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NopLogger{},
	)

	return NewWatermillBus(pubSub, pubSub)
}
