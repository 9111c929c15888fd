package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	commonevents "github.com/Sakethtadimeti/checkin-app/common/events"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/natsjetstream"
)

// UserCacheEvictor drops cached user summaries.
type UserCacheEvictor interface {
	Evict(ctx context.Context, ids ...string)
}

type EventSubscriber struct {
	subscriber *natsjetstream.Subscriber
	cache      UserCacheEvictor
	logger     *logger.Logger

	consumers []jetstream.ConsumeContext
}

func NewEventSubscriber(
	natsClient *natsjetstream.Client,
	cache UserCacheEvictor,
	logger *logger.Logger,
) *EventSubscriber {
	log := logger.With("component", "event-subscriber")
	return &EventSubscriber{
		subscriber: natsjetstream.NewSubscriber(natsClient, log),
		cache:      cache,
		logger:     log,
	}
}

func (s *EventSubscriber) Start(ctx context.Context) error {
	s.logger.Info("Starting event subscriptions")

	if err := s.subscribeToUserEvents(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to user events: %w", err)
	}

	s.logger.Info("All event subscriptions started")
	return nil
}

// Stop ends delivery on every consumer started by Start.
func (s *EventSubscriber) Stop() error {
	for _, c := range s.consumers {
		c.Stop()
	}
	s.consumers = nil
	return nil
}

func (s *EventSubscriber) subscribeToUserEvents(ctx context.Context) error {
	cfg := natsjetstream.ConsumerConfig{
		StreamName:    commonevents.UserEventsStream,
		ConsumerName:  "checkin-service-user",
		Durable:       "checkin-service-user",
		FilterSubject: commonevents.UserEventsWildcard,
		AckPolicy:     "explicit",
	}

	s.logger.Info("Subscribing to user events",
		"stream", cfg.StreamName,
		"consumer", cfg.ConsumerName,
	)

	consumer, err := s.subscriber.Subscribe(ctx, cfg, s.HandleUserEvent)
	if err != nil {
		return err
	}
	s.consumers = append(s.consumers, consumer)
	return nil
}

// HandleUserEvent evicts the cached summary of the user named in the event.
func (s *EventSubscriber) HandleUserEvent(ctx context.Context, msg jetstream.Msg) error {
	subject := msg.Subject()

	s.logger.Debug("Received user event", "subject", subject)

	switch subject {
	case commonevents.UserCreated, commonevents.UserRemoved:
	default:
		s.logger.Warn("Unknown user event subject", "subject", subject)
		return nil
	}

	event, err := commonevents.Decode(msg.Data())
	if err != nil {
		s.logger.Error("Failed to decode user event", "error", err, "subject", subject)
		return fmt.Errorf("unmarshal error: %w", err)
	}

	userID := event.String("userId")
	if userID == "" {
		s.logger.Warn("User event without user id", "subject", subject)
		return nil
	}

	s.cache.Evict(ctx, userID)
	s.logger.Info("Evicted cached user summary",
		"subject", subject,
		"user_id", userID,
		"occurred_at", event.OccurredAt,
	)
	return nil
}
