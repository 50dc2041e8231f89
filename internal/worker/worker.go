package worker

import (
	"context"
	"log"

	"pos-service/internal/broker"
	"pos-service/internal/models"
	"pos-service/internal/service"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// DashboardWorker consumes POS domain events and invalidates the dashboard's
// cached snapshots, so the next dashboard read reflects the mutation. This is
// the revalidation path for every mutating endpoint.
type DashboardWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	dashboard    *service.DashboardService
	logger       *zap.Logger
}

// NewDashboardWorker creates a new dashboard worker
func NewDashboardWorker(consumer *broker.Consumer, dashboard *service.DashboardService) *DashboardWorker {
	w := &DashboardWorker{
		consumer:  consumer,
		dashboard: dashboard,
		logger:    util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnCartCreated(func(ctx context.Context, event *models.CartCreatedEvent) error {
		return w.invalidate(ctx, event.RestaurantID)
	})
	eventHandler.OnCartItemUpdated(func(ctx context.Context, event *models.CartItemUpdatedEvent) error {
		return w.invalidate(ctx, event.RestaurantID)
	})
	eventHandler.OnCartCleared(func(ctx context.Context, event *models.CartClearedEvent) error {
		return w.invalidate(ctx, event.RestaurantID)
	})
	eventHandler.OnSaleCompleted(func(ctx context.Context, event *models.SaleCompletedEvent) error {
		return w.invalidate(ctx, event.RestaurantID)
	})
	eventHandler.OnStateDrift(w.handleStateDrift)

	w.eventHandler = eventHandler
	return w
}

// Start starts the worker
func (w *DashboardWorker) Start(ctx context.Context) error {
	log.Println("Starting dashboard worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *DashboardWorker) Stop() error {
	log.Println("Stopping dashboard worker...")
	return w.consumer.Close()
}

func (w *DashboardWorker) invalidate(ctx context.Context, restaurantID int64) error {
	if err := w.dashboard.Invalidate(ctx, restaurantID); err != nil {
		w.logger.Error("Failed to invalidate dashboard cache",
			zap.Int64("restaurant_id", restaurantID),
			zap.Error(err))
		return err
	}
	return nil
}

// handleStateDrift surfaces drift between cart/sale state and table state.
// The cache is invalidated too so the dashboard shows the stale side as-is
// rather than an even older snapshot.
func (w *DashboardWorker) handleStateDrift(ctx context.Context, event *models.StateDriftEvent) error {
	w.logger.Warn("State drift reported",
		zap.String("operation", event.Operation),
		zap.Int64("cart_id", event.CartID),
		zap.Int64("table_id", event.TableID),
		zap.String("reason", event.Reason))
	return w.invalidate(ctx, event.RestaurantID)
}
