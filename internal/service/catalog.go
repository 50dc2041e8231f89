package service

import (
	"context"
	"time"

	"pos-service/internal/redisclient"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// CatalogResolver maps global product ids to their restaurant-scoped catalog
// rows. Read-only; lookups that fail at the store level degrade to "no
// mapping" rather than propagating, so callers own validation.
type CatalogResolver struct {
	store    *store.Store
	redis    *redisclient.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCatalogResolver creates a new catalog resolver
func NewCatalogResolver(store *store.Store, redis *redisclient.Client, cacheTTL time.Duration) *CatalogResolver {
	return &CatalogResolver{
		store:    store,
		redis:    redis,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// ResolveProducts returns a mapping from global product id to restaurant-
// scoped product id for the given restaurant. Products without a mapping are
// omitted. Cached mappings are served from redis; the rest are fetched in one
// batch query and backfilled into the cache.
func (r *CatalogResolver) ResolveProducts(ctx context.Context, restaurantID int64, productIDs []int64) map[int64]int64 {
	ctx, span := util.StartSpan(ctx, "CatalogResolver.ResolveProducts")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CatalogResolveLatency.Observe(time.Since(start).Seconds())
	}()

	resolved := make(map[int64]int64, len(productIDs))
	misses := make([]int64, 0, len(productIDs))

	for _, productID := range productIDs {
		if _, ok := resolved[productID]; ok {
			continue
		}
		scopedID, hit, err := r.redis.GetCatalogMapping(ctx, restaurantID, productID)
		if err != nil {
			r.logger.Warn("Catalog cache lookup failed",
				zap.Int64("restaurant_id", restaurantID),
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
		if hit {
			util.CatalogCacheHitsTotal.Inc()
			resolved[productID] = scopedID
			continue
		}
		misses = append(misses, productID)
	}

	if len(misses) == 0 {
		return resolved
	}
	util.CatalogCacheMissesTotal.Inc()

	rows, err := r.store.GetRestaurantProducts(ctx, restaurantID, misses)
	if err != nil {
		r.logger.Error("Catalog lookup failed",
			zap.Int64("restaurant_id", restaurantID),
			zap.Error(err))
		return resolved
	}

	fetched := make(map[int64]int64, len(rows))
	for _, rp := range rows {
		resolved[rp.ProductID] = rp.ID
		fetched[rp.ProductID] = rp.ID
	}

	if err := r.redis.SetCatalogMappings(ctx, restaurantID, fetched, r.cacheTTL); err != nil {
		r.logger.Warn("Failed to backfill catalog cache", zap.Error(err))
	}

	return resolved
}

// ResolveProduct returns the restaurant-scoped id for a single product, or
// false when the restaurant does not offer it.
func (r *CatalogResolver) ResolveProduct(ctx context.Context, restaurantID, productID int64) (int64, bool) {
	mapping := r.ResolveProducts(ctx, restaurantID, []int64{productID})
	scopedID, ok := mapping[productID]
	return scopedID, ok
}
