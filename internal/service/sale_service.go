package service

import (
	"context"
	"fmt"

	"pos-service/internal/broker"
	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// SaleService converts a completed cart into an immutable sale record and
// releases the associated table. The sale row is the source of truth for
// "did this order complete"; the cart status update and table release are
// best-effort bookkeeping.
type SaleService struct {
	store     *store.Store
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewSaleService creates a new sale service
func NewSaleService(store *store.Store, publisher *broker.EventPublisher) *SaleService {
	return &SaleService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// FinalizeSaleRequest represents a checkout
type FinalizeSaleRequest struct {
	CartID        int64
	RestaurantID  int64
	CustomerID    *int64
	Total         float64
	CashTendered  float64
	Change        float64
	OrderType     string
	PaymentMethod string
}

// FinalizeSale records the sale for a cart. The cart must exist. The sale
// insert is all-or-nothing with a server-assigned timestamp; a cart that was
// already finalized returns its existing sale. Marking the cart completed and
// releasing the table happen after the sale exists and never fail the call.
func (s *SaleService) FinalizeSale(ctx context.Context, req *FinalizeSaleRequest) (*models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.FinalizeSale")
	defer span.End()

	cart, err := s.store.GetCartByID(ctx, req.CartID)
	if err != nil {
		util.SalesFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to fetch cart: %w", err)
	}
	if cart == nil {
		util.SalesFailedTotal.WithLabelValues("cart_not_found").Inc()
		return nil, ErrCartNotFound
	}

	if existing, err := s.store.GetSaleByCartID(ctx, req.CartID); err == nil && existing != nil {
		s.logger.Info("Cart already finalized, returning existing sale",
			zap.Int64("cart_id", req.CartID),
			zap.Int64("sale_id", existing.ID))
		return existing, nil
	}

	sale := &models.Sale{
		CartID:        req.CartID,
		RestaurantID:  req.RestaurantID,
		CustomerID:    req.CustomerID,
		Total:         req.Total,
		CashTendered:  req.CashTendered,
		ChangeGiven:   req.Change,
		OrderType:     req.OrderType,
		PaymentMethod: req.PaymentMethod,
	}

	if err := s.store.CreateSale(ctx, sale); err != nil {
		util.SalesFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}

	util.SalesCompletedTotal.Inc()
	s.logger.Info("Sale recorded",
		zap.Int64("sale_id", sale.ID),
		zap.Int64("cart_id", sale.CartID),
		zap.Float64("total", sale.Total))

	if err := s.store.UpdateCartStatus(ctx, cart.ID, models.CartStatusCompleted); err != nil {
		s.reportDrift(ctx, "cart_complete", sale, 0, err)
	}

	if req.OrderType == models.SaleOrderTypeTable {
		s.releaseTable(ctx, cart, sale)
	}

	event := &models.SaleCompletedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeSaleCompleted),
		SaleID:       sale.ID,
		CartID:       sale.CartID,
		RestaurantID: sale.RestaurantID,
		Total:        sale.Total,
		OrderType:    sale.OrderType,
	}
	if err := s.publisher.PublishSaleCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish SaleCompleted event", zap.Error(err))
	}

	return sale, nil
}

// releaseTable marks the cart's table available again. Best-effort.
func (s *SaleService) releaseTable(ctx context.Context, cart *models.Cart, sale *models.Sale) {
	if cart.TargetKind != models.TargetKindTable {
		return
	}
	if err := s.store.UpdateTableStatus(ctx, cart.TargetID, models.TableStatusAvailable); err != nil {
		s.reportDrift(ctx, "table_release", sale, cart.TargetID, err)
	}
}

func (s *SaleService) reportDrift(ctx context.Context, operation string, sale *models.Sale, tableID int64, cause error) {
	s.logger.Error("Secondary write failed",
		zap.String("operation", operation),
		zap.Int64("sale_id", sale.ID),
		zap.Int64("cart_id", sale.CartID),
		zap.Int64("table_id", tableID),
		zap.Error(cause))
	util.SecondaryWriteFailuresTotal.WithLabelValues(operation).Inc()

	event := &models.StateDriftEvent{
		BaseEvent:    newBaseEvent(models.EventTypeStateDrift),
		Operation:    operation,
		CartID:       sale.CartID,
		SaleID:       sale.ID,
		TableID:      tableID,
		RestaurantID: sale.RestaurantID,
		Reason:       cause.Error(),
	}
	if err := s.publisher.PublishStateDrift(ctx, event); err != nil {
		s.logger.Error("Failed to publish StateDrift event", zap.Error(err))
	}
}
