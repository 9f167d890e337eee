package stats

import (
	"context"
	"testing"
	"time"

	"order-crm/internal/logger"
	"order-crm/internal/models"
	"order-crm/internal/order/db"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	orders  []models.Order
	calls   int
	filters []*db.ListFilter
}

func (f *fakeOrders) ListOrders(ctx context.Context, filter *db.ListFilter) ([]models.Order, error) {
	f.calls++
	f.filters = append(f.filters, filter)
	return f.orders, nil
}

type fakeFields []models.FieldDefinition

func (f fakeFields) List(ctx context.Context) ([]models.FieldDefinition, error) {
	return f, nil
}

func newTestService(t *testing.T, withCache bool) (*Service, *fakeOrders, *miniredis.Miniredis) {
	orders := &fakeOrders{orders: []models.Order{statOrder(at(time.Hour), map[string]any{"shop_name": "S1", "amount": 4.0})}}
	var cache *Cache
	var mr *miniredis.Miniredis
	if withCache {
		mr = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		cache = NewCache(client, time.Minute)
	}
	s := NewService(orders, fakeFields{}, cache, logger.Nop())
	s.now = func() time.Time { return testNow }
	return s, orders, mr
}

func TestDashboard_Scope(t *testing.T) {
	s, orders, _ := newTestService(t, false)
	ctx := context.Background()

	got, err := s.Dashboard(ctx, models.Principal{UserID: 3, Role: models.RoleOperator})
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalOrders)
	assert.Zero(t, orders.calls)

	got, err = s.Dashboard(ctx, models.Principal{UserID: 3, Role: models.RoleOperator, Shops: []string{"S1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalOrders)
	assert.Equal(t, "4.00", got.TotalRevenue)
	require.NotNil(t, orders.filters[0])
	assert.Equal(t, []string{"S1"}, orders.filters[0].Shops)
	assert.Zero(t, orders.filters[0].CreatorID)

	_, err = s.Dashboard(ctx, models.Principal{UserID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Nil(t, orders.filters[1])
}

func TestDashboard_CachedUntilInvalidated(t *testing.T) {
	s, orders, _ := newTestService(t, true)
	ctx := context.Background()
	admin := models.Principal{UserID: 1, Role: models.RoleAdmin}

	_, err := s.Dashboard(ctx, admin)
	require.NoError(t, err)
	got, err := s.Dashboard(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, orders.calls)
	assert.Equal(t, 1, got.TotalOrders)

	require.NoError(t, s.Invalidate(ctx))
	_, err = s.Dashboard(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, orders.calls)
}

func TestDashboard_CacheFailureFallsBack(t *testing.T) {
	s, orders, _ := newTestService(t, false)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { client.Close() })
	s.Cache = NewCache(client, time.Minute)

	got, err := s.Dashboard(context.Background(), models.Principal{UserID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalOrders)
	assert.Equal(t, 1, orders.calls)
}

func TestScope(t *testing.T) {
	assert.Equal(t, "all", Scope(models.Principal{Role: models.RoleAdmin}))
	a := Scope(models.Principal{Role: models.RoleOperator, Shops: []string{"S2", "S1"}})
	b := Scope(models.Principal{Role: models.RoleOperator, Shops: []string{"S1", "S2"}})
	c := Scope(models.Principal{Role: models.RoleOperator, Shops: []string{"S1"}})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
