// Package stats computes the dashboard aggregates over the orders a caller
// may see, optionally cached in Redis.
package stats

import (
	"context"
	"fmt"
	"time"

	"order-crm/internal/logger"
	"order-crm/internal/metrics"
	"order-crm/internal/models"
	"order-crm/internal/order/db"

	"golang.org/x/sync/errgroup"
)

type OrderLister interface {
	ListOrders(ctx context.Context, filter *db.ListFilter) ([]models.Order, error)
}

type FieldCatalog interface {
	List(ctx context.Context) ([]models.FieldDefinition, error)
}

type Service struct {
	Orders OrderLister
	Fields FieldCatalog
	Cache  *Cache
	Logger *logger.Logger
	now    func() time.Time
}

// NewService builds the statistics service. cache may be nil.
func NewService(orders OrderLister, fields FieldCatalog, cache *Cache, l *logger.Logger) *Service {
	return &Service{Orders: orders, Fields: fields, Cache: cache, Logger: l, now: time.Now}
}

// Dashboard returns statistics over the shops actor is granted; admins see
// everything and a non-admin without grants gets zeroes.
func (s *Service) Dashboard(ctx context.Context, actor models.Principal) (*models.DashboardStats, error) {
	if !actor.IsAdmin() && len(actor.Shops) == 0 {
		empty := Empty()
		return &empty, nil
	}

	scope := Scope(actor)
	if s.Cache != nil {
		cached, ok, err := s.Cache.Get(ctx, scope)
		switch {
		case err != nil:
			metrics.StatsCache.WithLabelValues("error").Inc()
			s.Logger.Warn("STATS", fmt.Sprintf("cache read failed, computing directly: %v", err))
		case ok:
			metrics.StatsCache.WithLabelValues("hit").Inc()
			return &cached, nil
		default:
			metrics.StatsCache.WithLabelValues("miss").Inc()
		}
	}

	var filter *db.ListFilter
	if !actor.IsAdmin() {
		filter = &db.ListFilter{Shops: actor.Shops}
	}
	var (
		orders []models.Order
		defs   []models.FieldDefinition
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if orders, err = s.Orders.ListOrders(gctx, filter); err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if defs, err = s.Fields.List(gctx); err != nil {
			return fmt.Errorf("list fields: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := Compute(orders, defs, s.now())
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, scope, result); err != nil {
			s.Logger.Warn("STATS", fmt.Sprintf("cache write failed: %v", err))
		}
	}
	return &result, nil
}

// Invalidate drops cached statistics after an order mutation.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.Cache == nil {
		return nil
	}
	return s.Cache.Invalidate(ctx)
}
