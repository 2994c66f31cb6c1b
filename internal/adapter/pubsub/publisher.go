package pubsub

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/webitel/pricing-sync-service/config"
)

// NewWatermillLogger bridges watermill's logger onto slog.
func NewWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With("component", "watermill"))
}

// NewPublisher picks the export backend: AMQP when a broker URL is configured,
// otherwise an in-process channel that nobody but tests subscribe to.
// On AMQP every topic goes to one durable topic exchange, the topic being the
// routing key, so consumers can bind with patterns like "pricing_sync.#".
func NewPublisher(cfg *config.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if cfg.Export.AMQPURL == "" {
		return gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: int64(cfg.Export.Buffer),
		}, logger), nil
	}

	amqpCfg := amqp.NewDurablePubSubConfig(cfg.Export.AMQPURL, amqp.GenerateQueueNameTopicName)
	amqpCfg.Exchange.GenerateName = func(string) string { return cfg.Export.Exchange }
	amqpCfg.Exchange.Type = "topic"
	amqpCfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }

	pub, err := amqp.NewPublisher(amqpCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher: %w", err)
	}
	return pub, nil
}
