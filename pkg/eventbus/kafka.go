package eventbus

import (
	"errors"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
)

// NewKafkaBus builds a bus on Kafka for multi-node deployments where
// side-effect consumers run in a separate process.
func NewKafkaBus(logger watermill.LoggerAdapter, brokerList, consumerGroup string) (*WatermillBus, error) {
	brokers := strings.Split(brokerList, ",")
	if len(brokers) == 0 || brokers[0] == "" {
		return nil, errors.New("kafka brokers are required")
	}

	subscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	subscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: subscriberConfig,
			ConsumerGroup:         "cg-" + consumerGroup,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	publisherConfig := sarama.NewConfig()
	publisherConfig.Producer.Return.Successes = true

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: publisherConfig,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	return NewWatermillBus(publisher, subscriber), nil
}
