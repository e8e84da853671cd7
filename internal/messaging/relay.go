package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/domain"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/eventstore"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/subscription"
)

// Subscriber names keying the relay's durable checkpoints.
const (
	AccountRelaySubscriberName  = "relay::accounts"
	TransferRelaySubscriberName = "relay::transfers"
)

// IntegrationEvent is the message shape published to RabbitMQ. The domain
// payload is forwarded verbatim; the envelope fields let consumers dedup and
// order within one aggregate type.
type IntegrationEvent struct {
	EventID       string          `json:"event_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Sequence      int64           `json:"sequence"`
	Name          string          `json:"name"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// EventPublisher is the broker the relay publishes to.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Relay republishes every committed domain event to the integration
// exchange. It is an ordinary checkpointed subscriber, so delivery to
// RabbitMQ inherits the at-least-once guarantee of the subscription layer.
type Relay struct {
	publisher EventPublisher
	logger    *zap.Logger
}

// NewRelay creates the integration event relay.
func NewRelay(publisher EventPublisher, logger *zap.Logger) *Relay {
	return &Relay{
		publisher: publisher,
		logger:    logger,
	}
}

// Register attaches the relay to both aggregate types' streams.
func (r *Relay) Register(manager *subscription.Manager) error {
	if err := manager.Subscribe(domain.AccountAggregateType, AccountRelaySubscriberName, r.Handle); err != nil {
		return err
	}
	return manager.Subscribe(domain.TransferAggregateType, TransferRelaySubscriberName, r.Handle)
}

// Handle republishes one committed event. The routing key is
// "bank.<event-name>", e.g. "bank.account.deposited".
func (r *Relay) Handle(ctx context.Context, envelope eventstore.Envelope) error {
	message := IntegrationEvent{
		EventID:       envelope.EventID.String(),
		AggregateType: envelope.AggregateType,
		AggregateID:   envelope.AggregateID.String(),
		Sequence:      envelope.Sequence,
		Name:          envelope.Name,
		Payload:       envelope.Payload,
		OccurredAt:    envelope.OccurredAt,
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal integration event: %w", err)
	}

	if err := r.publisher.Publish(ctx, "bank."+envelope.Name, body); err != nil {
		return err
	}

	r.logger.Debug("event relayed",
		zap.String("event", envelope.Name),
		zap.Int64("sequence", envelope.Sequence),
	)
	return nil
}
