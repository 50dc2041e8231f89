package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"pos-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishCartCreated publishes a CartCreated event
func (ep *EventPublisher) PublishCartCreated(ctx context.Context, event *models.CartCreatedEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCartItemUpdated publishes a CartItemUpdated event
func (ep *EventPublisher) PublishCartItemUpdated(ctx context.Context, event *models.CartItemUpdatedEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCartCleared publishes a CartCleared event
func (ep *EventPublisher) PublishCartCleared(ctx context.Context, event *models.CartClearedEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSaleCompleted publishes a SaleCompleted event
func (ep *EventPublisher) PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	key := fmt.Sprintf("sale-%d", event.SaleID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishStateDrift publishes a StateDrift event
func (ep *EventPublisher) PublishStateDrift(ctx context.Context, event *models.StateDriftEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onCartCreated     func(context.Context, *models.CartCreatedEvent) error
	onCartItemUpdated func(context.Context, *models.CartItemUpdatedEvent) error
	onCartCleared     func(context.Context, *models.CartClearedEvent) error
	onSaleCompleted   func(context.Context, *models.SaleCompletedEvent) error
	onStateDrift      func(context.Context, *models.StateDriftEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnCartCreated registers a handler for CartCreated events
func (eh *EventHandler) OnCartCreated(handler func(context.Context, *models.CartCreatedEvent) error) {
	eh.onCartCreated = handler
}

// OnCartItemUpdated registers a handler for CartItemUpdated events
func (eh *EventHandler) OnCartItemUpdated(handler func(context.Context, *models.CartItemUpdatedEvent) error) {
	eh.onCartItemUpdated = handler
}

// OnCartCleared registers a handler for CartCleared events
func (eh *EventHandler) OnCartCleared(handler func(context.Context, *models.CartClearedEvent) error) {
	eh.onCartCleared = handler
}

// OnSaleCompleted registers a handler for SaleCompleted events
func (eh *EventHandler) OnSaleCompleted(handler func(context.Context, *models.SaleCompletedEvent) error) {
	eh.onSaleCompleted = handler
}

// OnStateDrift registers a handler for StateDrift events
func (eh *EventHandler) OnStateDrift(handler func(context.Context, *models.StateDriftEvent) error) {
	eh.onStateDrift = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeCartCreated:
		if eh.onCartCreated != nil {
			var event models.CartCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CartCreated event: %w", err)
			}
			return eh.onCartCreated(ctx, &event)
		}

	case models.EventTypeCartItemUpdated:
		if eh.onCartItemUpdated != nil {
			var event models.CartItemUpdatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CartItemUpdated event: %w", err)
			}
			return eh.onCartItemUpdated(ctx, &event)
		}

	case models.EventTypeCartCleared:
		if eh.onCartCleared != nil {
			var event models.CartClearedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CartCleared event: %w", err)
			}
			return eh.onCartCleared(ctx, &event)
		}

	case models.EventTypeSaleCompleted:
		if eh.onSaleCompleted != nil {
			var event models.SaleCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SaleCompleted event: %w", err)
			}
			return eh.onSaleCompleted(ctx, &event)
		}

	case models.EventTypeStateDrift:
		if eh.onStateDrift != nil {
			var event models.StateDriftEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StateDrift event: %w", err)
			}
			return eh.onStateDrift(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
