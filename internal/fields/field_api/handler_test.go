package field_api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"order-crm/internal/auth"
	"order-crm/internal/database"
	"order-crm/internal/fields"
	fielddb "order-crm/internal/fields/db"
	"order-crm/internal/logger"
	"order-crm/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T, p models.Principal) http.Handler {
	bunDB, err := database.OpenSQLiteMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	h := NewHandler(fields.NewService(&fielddb.DB{Bun: bunDB}, logger.Nop()), logger.Nop())
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), p)))
		})
	})
	h.RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestFieldRoutes_AdminFlow(t *testing.T) {
	r := setupRouter(t, models.Principal{UserID: 1, Role: models.RoleAdmin})

	rr := do(r, http.MethodPost, "/fields", `{"field_name":"qty","field_label":"Qty","field_type":"number"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(r, http.MethodPost, "/fields/formula/preview", `{"formula":"qty * 3"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var preview struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &preview))
	assert.Equal(t, "30.00", preview.Data["result"])

	rr = do(r, http.MethodPost, "/fields/formula/preview", `{"formula":"qty +"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "MISPLACED_OPERATOR")

	rr = do(r, http.MethodGet, "/fields", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"field_name":"qty"`)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodDelete, "/fields/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/fields/42", "").Code)
}

func TestFieldRoutes_NonAdminCannotMutate(t *testing.T) {
	r := setupRouter(t, models.Principal{UserID: 2, Role: models.RoleOperator})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/fields", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/fields", `{"field_name":"x","field_label":"X","field_type":"text"}`).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPut, "/fields/sort-order", `{"fields":[]}`).Code)
}
