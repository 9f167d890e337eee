package order_api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"order-crm/internal/apperrors"
	"order-crm/internal/auth"
	"order-crm/internal/logger"
	"order-crm/internal/models"
	"order-crm/internal/order"
	"order-crm/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Export response headers.
const (
	RowsHeader      = "X-Export-Rows"
	TruncatedHeader = "X-Export-Truncated"
)

// StatsProvider computes the dashboard statistics.
type StatsProvider interface {
	Dashboard(ctx context.Context, actor models.Principal) (*models.DashboardStats, error)
}

type Handler struct {
	OrderService  *order.OrderService
	Stats         StatsProvider
	Logger        *logger.Logger
	ExportMaxRows int
}

func NewHandler(orderService *order.OrderService, stats StatsProvider, l *logger.Logger, exportMaxRows int) *Handler {
	return &Handler{
		OrderService:  orderService,
		Stats:         stats,
		Logger:        l,
		ExportMaxRows: exportMaxRows,
	}
}

type orderRequest struct {
	OrderData map[string]any `json:"order_data"`
	Legacy    map[string]any `json:"orderData"`
}

func (r orderRequest) data() map[string]any {
	if r.OrderData != nil {
		return r.OrderData
	}
	return r.Legacy
}

// RegisterRoutes mounts the order endpoints under /orders.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Post("/", h.CreateOrder)
		r.Get("/dashboard", h.DashboardOrders)
		r.Get("/stats", h.GetStats)
		r.Get("/shops", h.ListShops)
		r.Get("/export", h.ExportOrders)
		r.Post("/formula/evaluate", h.EvaluateFormula)
		r.With(auth.RequireRole(models.RoleAdmin)).Post("/renumber", h.RenumberOrders)

		r.Get("/{orderId}", h.GetOrder)
		r.Put("/{orderId}", h.UpdateOrder)
		r.Delete("/{orderId}", h.DeleteOrder)
	})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.PrincipalFrom(r.Context())
	views, err := h.OrderService.List(r.Context(), actor)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListOrders: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", views)
}

func (h *Handler) DashboardOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.PrincipalFrom(r.Context())
	views, err := h.OrderService.DashboardOrders(r.Context(), actor)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("DashboardOrders: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", views)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.PrincipalFrom(r.Context())
	stats, err := h.Stats.Dashboard(r.Context(), actor)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetStats: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", stats)
}

func (h *Handler) ListShops(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.PrincipalFrom(r.Context())
	shops, err := h.OrderService.Shops(r.Context(), actor)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListShops: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", shops)
}

func (h *Handler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.PrincipalFrom(r.Context())
	file, err := h.OrderService.Export(r.Context(), actor, r.URL.Query().Get("format"), h.ExportMaxRows)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("ExportOrders: %v", err))
		utils.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(file.Filename)))
	w.Header().Set(RowsHeader, strconv.Itoa(file.Rows))
	if file.Truncated {
		w.Header().Set(TruncatedHeader, "true")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ExportOrders: failed to write body: %v", err))
	}
}

func (h *Handler) EvaluateFormula(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Formula string         `json:"formula"`
		Values  map[string]any `json:"values"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.WriteError(w, err)
		return
	}
	result, err := h.OrderService.EvaluateFormula(r.Context(), body.Formula, body.Values)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]string{"result": result})
}

func (h *Handler) RenumberOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.PrincipalFrom(r.Context())
	result, err := h.OrderService.Renumber(r.Context(), actor, order.TriggerManual)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RenumberOrders: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "orders renumbered", result)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	actor, _ := auth.PrincipalFrom(r.Context())
	view, err := h.OrderService.Get(r.Context(), actor, id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", view)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	actor, _ := auth.PrincipalFrom(r.Context())
	result, err := h.OrderService.Create(r.Context(), actor, req.data())
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateOrder: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "order created", result)
}

func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var req orderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	actor, _ := auth.PrincipalFrom(r.Context())
	result, err := h.OrderService.Update(r.Context(), actor, id, req.data())
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("UpdateOrder #%d: %v", id, err))
		utils.WriteError(w, err)
		return
	}
	message := "order updated"
	if result.Regenerated {
		message = "order updated, order ids regenerated"
	}
	utils.WriteSuccess(w, http.StatusOK, message, result)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	actor, _ := auth.PrincipalFrom(r.Context())
	if err := h.OrderService.Delete(r.Context(), actor, id); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("DeleteOrder #%d: %v", id, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "order deleted", nil)
}

func orderID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("id", "invalid order id")
	}
	return id, nil
}
