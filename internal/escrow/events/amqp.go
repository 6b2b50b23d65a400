package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tdhoang/escrow-be/shared/rabbitmq"
)

// AMQPPublisher publishes notification records to the marketplace topic
// exchange, one routing key per event kind.
type AMQPPublisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewAMQPPublisher creates a publisher over an established RabbitMQ client.
func NewAMQPPublisher(client *rabbitmq.Client, logger *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		client: client,
		logger: logger,
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.PublishWithRetry(ctx, string(event.Kind), body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published",
		slog.String("event_id", event.ID),
		slog.String("kind", string(event.Kind)),
		slog.Int64("job_id", event.JobID),
	)
	return nil
}
