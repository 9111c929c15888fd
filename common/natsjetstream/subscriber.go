package natsjetstream

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Sakethtadimeti/checkin-app/common/logger"
)

type Subscriber struct {
	client *Client
	logger *logger.Logger
}

type MessageHandler func(ctx context.Context, msg jetstream.Msg) error

func NewSubscriber(client *Client, log *logger.Logger) *Subscriber {
	return &Subscriber{client: client, logger: log}
}

// Subscribe starts consuming; stop the returned context to end delivery.
func (s *Subscriber) Subscribe(ctx context.Context, cfg ConsumerConfig, handler MessageHandler) (jetstream.ConsumeContext, error) {
	consumer, err := s.client.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, ToJetStreamConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	return consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(ctx, msg); err != nil {
			s.logger.Error("Error handling message", "subject", msg.Subject(), "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
}

func ToJetStreamConfig(cfg ConsumerConfig) jetstream.ConsumerConfig {
	out := jetstream.ConsumerConfig{
		Name:          cfg.ConsumerName,
		Durable:       cfg.Durable,
		FilterSubject: cfg.FilterSubject,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
	}

	switch cfg.AckPolicy {
	case "none":
		out.AckPolicy = jetstream.AckNonePolicy
	case "all":
		out.AckPolicy = jetstream.AckAllPolicy
	default:
		out.AckPolicy = jetstream.AckExplicitPolicy
	}
	return out
}
