package publisher

import (
	"context"
	"fmt"

	"github.com/Sakethtadimeti/checkin-app/common/clock"
	commonevents "github.com/Sakethtadimeti/checkin-app/common/events"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/models"
)

// Publisher is the JetStream publish call; natsjetstream.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

type EventPublisher struct {
	publisher Publisher
	clock     clock.Clock
	logger    *logger.Logger
}

func NewEventPublisher(publisher Publisher, clk clock.Clock, logger *logger.Logger) *EventPublisher {
	if clk == nil {
		clk = clock.Real()
	}
	return &EventPublisher{
		publisher: publisher,
		clock:     clk,
		logger:    logger,
	}
}

func (p *EventPublisher) PublishCheckInCreated(ctx context.Context, checkIn *models.CheckIn, assignedUserIDs []string) error {
	if err := p.publish(ctx, commonevents.CheckInCreated, commonevents.CheckInCreatedData(checkIn, assignedUserIDs)); err != nil {
		return err
	}

	p.logger.Info(fmt.Sprintf("Published check-in created event for check-in: %s", checkIn.ID))
	return nil
}

func (p *EventPublisher) PublishResponseSubmitted(ctx context.Context, checkInID, userID string, answerCount int) error {
	if err := p.publish(ctx, commonevents.CheckInResponseSubmitted, commonevents.ResponseSubmittedData(checkInID, userID, answerCount)); err != nil {
		return err
	}

	p.logger.Info(fmt.Sprintf("Published response submitted event for user: %s", userID))
	return nil
}

func (p *EventPublisher) publish(ctx context.Context, subject string, data map[string]any) error {
	payload, err := commonevents.Encode(p.clock.Now(), data)
	if err != nil {
		p.logger.Error("Failed to encode event", "subject", subject, "error", err)
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := p.publisher.Publish(ctx, subject, payload); err != nil {
		p.logger.Error("Failed to publish event", "subject", subject, "error", err)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
