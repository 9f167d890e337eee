package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Keys inside Order.Data with reserved meaning.
const (
	FieldOrderType   = "order_type"
	FieldShopName    = "shop_name"
	FieldOrderID     = "order_id"
	FieldOrderStatus = "order_status"

	// OrderIDPrefix starts every generated order_id.
	OrderIDPrefix = "AM"
)

// Order is one CRM record. Data keys informally match FieldDefinition names.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID        int64          `bun:"id,pk,autoincrement" json:"id"`
	Data      map[string]any `bun:"order_data,type:json,notnull" json:"order_data"`
	CreatedBy int64          `bun:"created_by,notnull" json:"created_by"`
	UpdatedBy int64          `bun:"updated_by,nullzero" json:"updated_by,omitempty"`
	CreatedAt time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time      `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	Creator *User `bun:"rel:belongs-to,join:created_by=id" json:"-"`
	Updater *User `bun:"rel:belongs-to,join:updated_by=id" json:"-"`
}

// StringValue returns Data[key] when it is a non-empty string.
func (o *Order) StringValue(key string) string {
	if o == nil || o.Data == nil {
		return ""
	}
	if s, ok := o.Data[key].(string); ok {
		return s
	}
	return ""
}

// OrderView is the API representation of an order with its display-time
// formula values.
type OrderView struct {
	ID            int64             `json:"id"`
	Data          map[string]any    `json:"order_data"`
	Computed      map[string]string `json:"computed,omitempty"`
	ComputeErrors map[string]string `json:"compute_errors,omitempty"`
	CreatedBy     int64             `json:"created_by"`
	CreatedByName string            `json:"created_by_name,omitempty"`
	UpdatedBy     int64             `json:"updated_by,omitempty"`
	UpdatedByName string            `json:"updated_by_name,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// OrderMutationResult is returned by create and update.
type OrderMutationResult struct {
	Order       OrderView `json:"order"`
	Regenerated bool      `json:"regenerated"`
}

// RenumberResult summarises one renumbering pass.
type RenumberResult struct {
	Total     int `json:"total"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}
