package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"order-crm/internal/apperrors"
	"order-crm/internal/formula"
	"order-crm/internal/kafka"
	"order-crm/internal/logger"
	"order-crm/internal/metrics"
	"order-crm/internal/models"
	"order-crm/internal/order/db"
)

type DBLayer interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, filter *db.ListFilter) ([]models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	DeleteOrder(ctx context.Context, id int64) error
	DistinctShops(ctx context.Context) ([]string, error)
}

// FieldCatalog supplies the current field definitions.
type FieldCatalog interface {
	List(ctx context.Context) ([]models.FieldDefinition, error)
}

// CacheInvalidator is told whenever the order set changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type OrderService struct {
	DB         DBLayer
	Fields     FieldCatalog
	Renumberer *Renumberer
	Events     kafka.EventPublisher
	Cache      CacheInvalidator
	Logger     *logger.Logger
	now        func() time.Time
}

func NewOrderService(store DBLayer, fields FieldCatalog, renumberer *Renumberer, events kafka.EventPublisher, cache CacheInvalidator, l *logger.Logger) *OrderService {
	if events == nil {
		events = kafka.NoopPublisher{}
	}
	return &OrderService{
		DB:         store,
		Fields:     fields,
		Renumberer: renumberer,
		Events:     events,
		Cache:      cache,
		Logger:     l,
		now:        time.Now,
	}
}

// ---------------- QUERIES ----------------

// List returns the orders visible to actor in creation order.
func (s *OrderService) List(ctx context.Context, actor models.Principal) ([]models.OrderView, error) {
	orders, err := s.DB.ListOrders(ctx, VisibilityFilter(actor))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defs, err := s.Fields.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}

	views := make([]models.OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, BuildView(&orders[i], defs))
	}
	return views, nil
}

func (s *OrderService) Get(ctx context.Context, actor models.Principal, id int64) (*models.OrderView, error) {
	order, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	defs, err := s.Fields.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	view := BuildView(order, defs)
	return &view, nil
}

// DashboardOrders lists orders of the shops actor is granted. Unlike List it
// ignores authorship, and a non-admin without grants sees nothing.
func (s *OrderService) DashboardOrders(ctx context.Context, actor models.Principal) ([]models.OrderView, error) {
	filter := ShopFilter(actor)
	if filter != nil && len(filter.Shops) == 0 {
		return []models.OrderView{}, nil
	}
	orders, err := s.DB.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defs, err := s.Fields.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	views := make([]models.OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, BuildView(&orders[i], defs))
	}
	return views, nil
}

// Shops lists the shops actor may filter by: every shop in use for admins,
// the granted shops for everyone else.
func (s *OrderService) Shops(ctx context.Context, actor models.Principal) ([]string, error) {
	if actor.IsAdmin() {
		shops, err := s.DB.DistinctShops(ctx)
		if err != nil {
			return nil, fmt.Errorf("list shops: %w", err)
		}
		return shops, nil
	}
	shops := append([]string{}, actor.Shops...)
	sort.Strings(shops)
	return shops, nil
}

// EvaluateFormula computes src against values using the current catalog.
func (s *OrderService) EvaluateFormula(ctx context.Context, src string, values map[string]any) (string, error) {
	defs, err := s.Fields.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list fields: %w", err)
	}
	result, err := formula.NewEvaluator(defs).Evaluate(src, values)
	if err != nil {
		metrics.FormulaErrors.WithLabelValues(formula.Code(err)).Inc()
		return "", &apperrors.ValidationError{Field: "formula", Message: err.Error(), Reason: formula.Code(err)}
	}
	return formula.Format(result), nil
}

// ---------------- MUTATIONS ----------------

func (s *OrderService) Create(ctx context.Context, actor models.Principal, data map[string]any) (*models.OrderMutationResult, error) {
	if data == nil {
		return nil, apperrors.NewValidationError("order_data", "order data is required")
	}
	defs, err := s.Fields.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	if err := ValidateRequired(defs, data); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &models.Order{
		Data:      data,
		CreatedBy: actor.UserID,
		UpdatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.DB.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.Logger.LogOrder("CREATE", order.ID, fmt.Sprintf("created by user %d", actor.UserID))

	s.afterMutation(ctx, TriggerCreate, true)
	s.publish(ctx, models.EventOrderCreated, order.ID, actor.UserID, order.Data)

	return s.mutationResult(ctx, actor, order.ID, true)
}

// Update replaces the order data. The order is renumbered only when its
// type or shop changed.
func (s *OrderService) Update(ctx context.Context, actor models.Principal, id int64, data map[string]any) (*models.OrderMutationResult, error) {
	if data == nil {
		return nil, apperrors.NewValidationError("order_data", "order data is required")
	}
	defs, err := s.Fields.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	if err := ValidateRequired(defs, data); err != nil {
		return nil, err
	}

	current, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	regenerate := designatedValue(current.Data[models.FieldOrderType]) != designatedValue(data[models.FieldOrderType]) ||
		designatedValue(current.Data[models.FieldShopName]) != designatedValue(data[models.FieldShopName])
	// order_id is system-managed; the stored value always wins.
	if existing, ok := current.Data[models.FieldOrderID]; ok {
		data[models.FieldOrderID] = existing
	} else {
		delete(data, models.FieldOrderID)
	}

	current.Data = data
	current.UpdatedBy = actor.UserID
	current.UpdatedAt = s.now().UTC()
	if err := s.DB.UpdateOrder(ctx, current); err != nil {
		return nil, s.mapErr(err, id)
	}
	s.Logger.LogOrder("UPDATE", id, fmt.Sprintf("updated by user %d (renumber=%t)", actor.UserID, regenerate))

	s.afterMutation(ctx, TriggerUpdate, regenerate)
	s.publish(ctx, models.EventOrderUpdated, id, actor.UserID, map[string]any{"order_data": data, "regenerated": regenerate})

	return s.mutationResult(ctx, actor, id, regenerate)
}

// Delete removes an order. Only administrators and the creator may delete.
func (s *OrderService) Delete(ctx context.Context, actor models.Principal, id int64) error {
	order, err := s.DB.GetOrderByID(ctx, id)
	if err != nil {
		return s.mapErr(err, id)
	}
	if !actor.IsAdmin() && order.CreatedBy != actor.UserID {
		s.Logger.LogSecurity("DELETE_DENIED", fmt.Sprintf("user %d tried to delete order #%d", actor.UserID, id))
		return apperrors.NewPermissionError("delete", "this order")
	}

	if err := s.DB.DeleteOrder(ctx, id); err != nil {
		return s.mapErr(err, id)
	}
	s.Logger.LogOrder("DELETE", id, fmt.Sprintf("deleted by user %d", actor.UserID))

	s.afterMutation(ctx, TriggerDelete, true)
	s.publish(ctx, models.EventOrderDeleted, id, actor.UserID, nil)
	return nil
}

// Renumber runs a pass on demand and reports its outcome.
func (s *OrderService) Renumber(ctx context.Context, actor models.Principal, trigger string) (models.RenumberResult, error) {
	result, err := s.Renumberer.Run(ctx, trigger)
	if err != nil {
		return result, apperrors.NewInternalError("renumber orders", err)
	}
	s.invalidate(ctx)
	s.publish(ctx, models.EventOrdersRenumbered, 0, actor.UserID, result)
	return result, nil
}

// afterMutation renumbers when asked and drops cached statistics. Renumber
// failures are logged; the mutation itself has already succeeded.
func (s *OrderService) afterMutation(ctx context.Context, trigger string, renumber bool) {
	if renumber && s.Renumberer != nil {
		result, err := s.Renumberer.Run(ctx, trigger)
		if err != nil {
			s.Logger.Error("RENUMBER", fmt.Sprintf("pass after %s failed: %v", trigger, err))
		} else {
			s.publish(ctx, models.EventOrdersRenumbered, 0, 0, result)
		}
	}
	s.invalidate(ctx)
}

func (s *OrderService) invalidate(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx); err != nil {
		s.Logger.Warn("STATS", fmt.Sprintf("cache invalidation failed: %v", err))
	}
}

func (s *OrderService) publish(ctx context.Context, eventType string, orderID, actorID int64, payload any) {
	err := s.Events.PublishOrderEvent(ctx, models.OrderEvent{
		Type:    eventType,
		OrderID: orderID,
		ActorID: actorID,
		Payload: payload,
	})
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish %s for order #%d: %v", eventType, orderID, err))
	}
}

func (s *OrderService) mutationResult(ctx context.Context, actor models.Principal, id int64, regenerated bool) (*models.OrderMutationResult, error) {
	order, err := s.DB.GetOrderByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, id)
	}
	defs, err := s.Fields.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	return &models.OrderMutationResult{Order: BuildView(order, defs), Regenerated: regenerated}, nil
}

// load fetches an order and hides it from callers who may not see it.
func (s *OrderService) load(ctx context.Context, actor models.Principal, id int64) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, id)
	}
	if !CanSee(actor, order) {
		return nil, apperrors.NewNotFoundError("order", strconv.FormatInt(id, 10))
	}
	return order, nil
}

func (s *OrderService) mapErr(err error, id int64) error {
	if errors.Is(err, db.ErrOrderNotFound) {
		return apperrors.NewNotFoundError("order", strconv.FormatInt(id, 10))
	}
	return err
}

// ---------------- HELPERS ----------------

// VisibilityFilter returns the list filter for actor, nil for admins.
func VisibilityFilter(actor models.Principal) *db.ListFilter {
	if actor.IsAdmin() {
		return nil
	}
	return &db.ListFilter{Shops: actor.Shops, CreatorID: actor.UserID}
}

// ShopFilter scopes by granted shops only, nil for admins.
func ShopFilter(actor models.Principal) *db.ListFilter {
	if actor.IsAdmin() {
		return nil
	}
	return &db.ListFilter{Shops: actor.Shops}
}

// CanSee reports whether actor may read order.
func CanSee(actor models.Principal, order *models.Order) bool {
	if actor.IsAdmin() || order.CreatedBy == actor.UserID {
		return true
	}
	shop := designatedValue(order.Data[models.FieldShopName])
	return shop != "" && actor.CanSeeShop(shop)
}

// ValidateRequired reports every required field that data leaves empty.
// Formula fields and the derived order_id are never required input.
func ValidateRequired(defs []models.FieldDefinition, data map[string]any) error {
	var missing []string
	for _, d := range defs {
		if !d.IsRequired || d.FieldType == models.FieldTypeFormula || d.FieldName == models.FieldOrderID {
			continue
		}
		value := data[d.FieldName]
		if d.FieldType == models.FieldTypeMultiselect {
			if list, ok := value.([]any); !ok || len(list) == 0 {
				missing = append(missing, d.FieldLabel)
			}
			continue
		}
		if isEmpty(value) {
			missing = append(missing, d.FieldLabel)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("order_data", "missing required fields: "+strings.Join(missing, ", "))
	}
	return nil
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

// BuildView attaches user names and display-time formula values.
func BuildView(order *models.Order, defs []models.FieldDefinition) models.OrderView {
	view := models.OrderView{
		ID:        order.ID,
		Data:      order.Data,
		CreatedBy: order.CreatedBy,
		UpdatedBy: order.UpdatedBy,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
	if order.Creator != nil {
		view.CreatedByName = order.Creator.Username
	}
	if order.Updater != nil {
		view.UpdatedByName = order.Updater.Username
	}

	eval := formula.NewEvaluator(defs)
	for _, d := range defs {
		src := d.Formula()
		if src == "" {
			continue
		}
		result, err := eval.Evaluate(src, order.Data)
		if err != nil {
			if view.ComputeErrors == nil {
				view.ComputeErrors = make(map[string]string)
			}
			view.ComputeErrors[d.FieldName] = formula.Code(err)
			continue
		}
		if view.Computed == nil {
			view.Computed = make(map[string]string)
		}
		view.Computed[d.FieldName] = formula.Format(result)
	}
	return view
}
