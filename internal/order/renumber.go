package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"order-crm/internal/logger"
	"order-crm/internal/metrics"
	"order-crm/internal/models"
)

// Renumber triggers.
const (
	TriggerCreate    = "create"
	TriggerUpdate    = "update"
	TriggerDelete    = "delete"
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

const renumberLockName = "orders:renumber"

// ErrRowUpdateFailed marks a single order whose order_id could not be written.
var ErrRowUpdateFailed = errors.New("row update failed")

// RenumberStore is the storage a pass reads and rewrites.
type RenumberStore interface {
	ListOrdersByCreation(ctx context.Context) ([]models.Order, error)
	UpdateOrderData(ctx context.Context, id int64, data map[string]any) error
}

// DistributedLock serialises passes across service instances.
type DistributedLock interface {
	Acquire(ctx context.Context, name string, ttl, wait time.Duration) (func(), error)
}

// Renumberer keeps every order's order_id equal to
// "AM" + order_type + "-" + shop_name + "-" + rank, where rank is the order's
// 1-based position in creation order.
type Renumberer struct {
	store   RenumberStore
	lock    DistributedLock
	lockTTL time.Duration
	logger  *logger.Logger

	mu sync.Mutex
}

// NewRenumberer builds a renumberer. lock may be nil for a single instance.
func NewRenumberer(store RenumberStore, lock DistributedLock, lockTTL time.Duration, l *logger.Logger) *Renumberer {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Renumberer{store: store, lock: lock, lockTTL: lockTTL, logger: l}
}

// ComputeOrderID formats the derived identifier for one order.
func ComputeOrderID(orderType, shopName string, row int) string {
	return fmt.Sprintf("%s%s-%s-%d", models.OrderIDPrefix, orderType, shopName, row)
}

// designatedValue returns the textual form of a type or shop value, or ""
// when the order does not carry one.
func designatedValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == 0 {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		if x == 0 {
			return ""
		}
		return strconv.Itoa(x)
	case int64:
		if x == 0 {
			return ""
		}
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}

// Run performs one full pass. Passes never overlap. A failure to write one
// row is logged and counted; the pass continues with the next row.
func (r *Renumberer) Run(ctx context.Context, trigger string) (models.RenumberResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() { metrics.RenumberDuration.Observe(time.Since(start).Seconds()) }()

	if r.lock != nil {
		release, err := r.lock.Acquire(ctx, renumberLockName, r.lockTTL, r.lockTTL)
		if err != nil {
			metrics.RenumberPasses.WithLabelValues(trigger, "lock_failed").Inc()
			return models.RenumberResult{}, fmt.Errorf("acquire renumber lock: %w", err)
		}
		defer release()
	}

	orders, err := r.store.ListOrdersByCreation(ctx)
	if err != nil {
		metrics.RenumberPasses.WithLabelValues(trigger, "error").Inc()
		return models.RenumberResult{}, fmt.Errorf("list orders: %w", err)
	}

	result := models.RenumberResult{Total: len(orders)}
	for i, o := range orders {
		row := i + 1
		orderType := designatedValue(o.Data[models.FieldOrderType])
		shopName := designatedValue(o.Data[models.FieldShopName])
		if orderType == "" || shopName == "" {
			result.Skipped++
			continue
		}

		orderID := ComputeOrderID(orderType, shopName, row)
		if current, ok := o.Data[models.FieldOrderID].(string); ok && current == orderID {
			result.Unchanged++
			continue
		}

		data := make(map[string]any, len(o.Data)+1)
		for k, v := range o.Data {
			data[k] = v
		}
		data[models.FieldOrderID] = orderID

		if err := r.store.UpdateOrderData(ctx, o.ID, data); err != nil {
			result.Failed++
			metrics.RenumberRowFailures.Inc()
			r.logger.Error("RENUMBER", fmt.Sprintf("%v: order #%d -> %s: %v", ErrRowUpdateFailed, o.ID, orderID, err))
			continue
		}
		result.Updated++
	}

	outcome := "ok"
	if result.Failed > 0 {
		outcome = "partial"
	}
	metrics.RenumberPasses.WithLabelValues(trigger, outcome).Inc()
	r.logger.LogRenumber(trigger, fmt.Sprintf("total=%d updated=%d unchanged=%d skipped=%d failed=%d (%s)",
		result.Total, result.Updated, result.Unchanged, result.Skipped, result.Failed, time.Since(start).Round(time.Millisecond)))

	return result, nil
}
