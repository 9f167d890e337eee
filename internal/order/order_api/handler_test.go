package order_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"order-crm/internal/auth"
	"order-crm/internal/database"
	"order-crm/internal/fields"
	fielddb "order-crm/internal/fields/db"
	"order-crm/internal/logger"
	"order-crm/internal/models"
	"order-crm/internal/order"
	"order-crm/internal/order/db"
	"order-crm/internal/stats"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	handler *Handler
	admin   models.Principal
	viewer  models.Principal
}

func setupEnv(t *testing.T) *testEnv {
	ctx := context.Background()
	bunDB, err := database.OpenSQLiteMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	admin, _, err := database.EnsureAdmin(ctx, bunDB)
	require.NoError(t, err)
	_, err = database.SeedFields(ctx, bunDB, admin.ID)
	require.NoError(t, err)

	fieldSvc := fields.NewService(&fielddb.DB{Bun: bunDB}, logger.Nop())
	store := &db.DB{Bun: bunDB}
	statsSvc := stats.NewService(store, fieldSvc, nil, logger.Nop())
	svc := order.NewOrderService(store, fieldSvc, order.NewRenumberer(store, nil, time.Second, logger.Nop()), nil, statsSvc, logger.Nop())

	return &testEnv{
		handler: NewHandler(svc, statsSvc, logger.Nop(), 100),
		admin:   models.Principal{UserID: admin.ID, Username: admin.Username, Role: models.RoleAdmin},
		viewer:  models.Principal{UserID: admin.ID + 100, Username: "viewer", Role: models.RoleTracker, Shops: []string{"S2"}},
	}
}

func (e *testEnv) router(p models.Principal) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), p)))
		})
	})
	e.handler.RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Data    T      `json:"data"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) envelope[T] {
	var env envelope[T]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func TestOrderLifecycle(t *testing.T) {
	e := setupEnv(t)
	r := e.router(e.admin)

	rr := do(r, http.MethodPost, "/orders", `{"order_data":{"order_type":"A","shop_name":"S1","price":"9.5","quantity":2}}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[models.OrderMutationResult](t, rr)
	assert.Equal(t, "AMA-S1-1", created.Data.Order.Data["order_id"])
	assert.Equal(t, "19.00", created.Data.Order.Computed["total_amount"])

	rr = do(r, http.MethodPost, "/orders", `{"orderData":{"order_type":"B","shop_name":"S2"}}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	second := decode[models.OrderMutationResult](t, rr).Data.Order

	rr = do(r, http.MethodPut, fmt.Sprintf("/orders/%d", created.Data.Order.ID), `{"order_data":{"order_type":"C","shop_name":"S1"}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decode[models.OrderMutationResult](t, rr)
	assert.True(t, updated.Data.Regenerated)
	assert.Equal(t, "AMC-S1-1", updated.Data.Order.Data["order_id"])

	rr = do(r, http.MethodDelete, fmt.Sprintf("/orders/%d", created.Data.Order.ID), "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(r, http.MethodGet, fmt.Sprintf("/orders/%d", second.ID), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "AMB-S2-1", decode[models.OrderView](t, rr).Data.Data["order_id"])

	rr = do(r, http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]models.OrderView](t, rr).Data, 1)
}

func TestOrderErrors(t *testing.T) {
	e := setupEnv(t)
	r := e.router(e.admin)

	rr := do(r, http.MethodPost, "/orders", `{"order_data":{"order_type":"A"}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "店铺名称")

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/orders", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/orders/zero", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/orders/77", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/orders/export?format=pdf", "").Code)
}

func TestStatsShopsAndDashboard(t *testing.T) {
	e := setupEnv(t)
	admin := e.router(e.admin)
	viewer := e.router(e.viewer)

	do(admin, http.MethodPost, "/orders", `{"order_data":{"order_type":"A","shop_name":"S1","price":10,"quantity":1}}`)
	do(admin, http.MethodPost, "/orders", `{"order_data":{"order_type":"A","shop_name":"S2","price":5,"quantity":2}}`)

	rr := do(admin, http.MethodGet, "/orders/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	st := decode[models.DashboardStats](t, rr).Data
	assert.Equal(t, 2, st.TotalOrders)
	assert.Equal(t, "20.00", st.TotalRevenue)

	rr = do(viewer, http.MethodGet, "/orders/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[models.DashboardStats](t, rr).Data.TotalOrders)

	rr = do(viewer, http.MethodGet, "/orders/dashboard", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]models.OrderView](t, rr).Data, 1)

	rr = do(admin, http.MethodGet, "/orders/shops", "")
	assert.Equal(t, []string{"S1", "S2"}, decode[[]string](t, rr).Data)
}

func TestRenumberIsAdminOnly(t *testing.T) {
	e := setupEnv(t)
	assert.Equal(t, http.StatusForbidden, do(e.router(e.viewer), http.MethodPost, "/orders/renumber", "").Code)

	rr := do(e.router(e.admin), http.MethodPost, "/orders/renumber", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decode[models.RenumberResult](t, rr).Data.Total)
}

func TestEvaluateFormulaAndExport(t *testing.T) {
	e := setupEnv(t)
	r := e.router(e.admin)

	rr := do(r, http.MethodPost, "/orders/formula/evaluate", `{"formula":"price * quantity","values":{"price":"1.25","quantity":4}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "5.00", decode[map[string]string](t, rr).Data["result"])

	rr = do(r, http.MethodPost, "/orders/formula/evaluate", `{"formula":"(price","values":{}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "UNBALANCED_PARENTHESES", decode[any](t, rr).Code)

	do(r, http.MethodPost, "/orders", `{"order_data":{"order_type":"A","shop_name":"S1"}}`)
	rr = do(r, http.MethodGet, "/orders/export?format=csv", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, "1", rr.Header().Get("X-Export-Rows"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rr.Body.String(), "AMA-S1-1")
}
