package service

import (
	"context"
	"fmt"
	"time"

	"pos-service/internal/models"
	"pos-service/internal/redisclient"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// DashboardService serves the read-only tables/deliveries view. Reads go
// through a redis snapshot cache; the dashboard worker invalidates it when a
// mutation event arrives, so the next read reflects the new state.
type DashboardService struct {
	store    *store.Store
	redis    *redisclient.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(store *store.Store, redis *redisclient.Client, cacheTTL time.Duration) *DashboardService {
	return &DashboardService{
		store:    store,
		redis:    redis,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

func tablesKey(restaurantID int64) string {
	return fmt.Sprintf("dashboard:tables:%d", restaurantID)
}

func deliveriesKey(restaurantID int64) string {
	return fmt.Sprintf("dashboard:deliveries:%d", restaurantID)
}

// Tables returns the restaurant's tables with their occupancy state
func (d *DashboardService) Tables(ctx context.Context, restaurantID int64) ([]models.Table, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Tables")
	defer span.End()

	var tables []models.Table
	hit, err := d.redis.GetJSON(ctx, tablesKey(restaurantID), &tables)
	if err != nil {
		d.logger.Warn("Dashboard cache read failed", zap.Error(err))
	}
	if hit {
		return tables, nil
	}

	tables, err = d.store.ListTables(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	if err := d.redis.SetJSON(ctx, tablesKey(restaurantID), tables, d.cacheTTL); err != nil {
		d.logger.Warn("Dashboard cache write failed", zap.Error(err))
	}
	return tables, nil
}

// Deliveries returns the restaurant's deliveries with an active cart
func (d *DashboardService) Deliveries(ctx context.Context, restaurantID int64) ([]models.Delivery, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Deliveries")
	defer span.End()

	var deliveries []models.Delivery
	hit, err := d.redis.GetJSON(ctx, deliveriesKey(restaurantID), &deliveries)
	if err != nil {
		d.logger.Warn("Dashboard cache read failed", zap.Error(err))
	}
	if hit {
		return deliveries, nil
	}

	deliveries, err = d.store.ListDeliveries(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}

	if err := d.redis.SetJSON(ctx, deliveriesKey(restaurantID), deliveries, d.cacheTTL); err != nil {
		d.logger.Warn("Dashboard cache write failed", zap.Error(err))
	}
	return deliveries, nil
}

// Invalidate drops the cached snapshots for a restaurant
func (d *DashboardService) Invalidate(ctx context.Context, restaurantID int64) error {
	util.DashboardCacheInvalidationsTotal.Inc()
	return d.redis.Invalidate(ctx, tablesKey(restaurantID), deliveriesKey(restaurantID))
}
