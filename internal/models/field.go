package models

import (
	"time"

	"github.com/uptrace/bun"
)

type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeNumber      FieldType = "number"
	FieldTypeCurrency    FieldType = "currency"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiselect FieldType = "multiselect"
	FieldTypeDate        FieldType = "date"
	FieldTypeRichText    FieldType = "richtext"
	FieldTypeFile        FieldType = "file"
	FieldTypeFormula     FieldType = "formula"
)

var fieldTypes = map[FieldType]bool{
	FieldTypeText:        true,
	FieldTypeNumber:      true,
	FieldTypeCurrency:    true,
	FieldTypeSelect:      true,
	FieldTypeMultiselect: true,
	FieldTypeDate:        true,
	FieldTypeRichText:    true,
	FieldTypeFile:        true,
	FieldTypeFormula:     true,
}

func (t FieldType) Valid() bool {
	return fieldTypes[t]
}

// Numeric reports whether values of this type may be referenced by formulas.
func (t FieldType) Numeric() bool {
	return t == FieldTypeNumber || t == FieldTypeCurrency
}

// FieldDefinition describes one column of the order grid. For formula fields
// Options[0] holds the formula source.
type FieldDefinition struct {
	bun.BaseModel `bun:"table:field_definitions,alias:fd"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	FieldName  string    `bun:"field_name,unique,notnull" json:"field_name"`
	FieldLabel string    `bun:"field_label,notnull" json:"field_label"`
	FieldType  FieldType `bun:"field_type,notnull" json:"field_type"`
	Options    []string  `bun:"options,type:json" json:"options,omitempty"`
	IsRequired bool      `bun:"is_required,notnull" json:"is_required"`
	SortOrder  int       `bun:"sort_order,notnull" json:"sort_order"`
	IsHidden   bool      `bun:"is_hidden,notnull" json:"is_hidden"`
	CreatedBy  int64     `bun:"created_by,nullzero" json:"created_by,omitempty"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// Formula returns the formula source of a formula field.
func (f FieldDefinition) Formula() string {
	if f.FieldType != FieldTypeFormula || len(f.Options) == 0 {
		return ""
	}
	return f.Options[0]
}

// FieldInput is the writable part of a FieldDefinition.
type FieldInput struct {
	FieldName  string    `json:"field_name"`
	FieldLabel string    `json:"field_label"`
	FieldType  FieldType `json:"field_type"`
	Options    []string  `json:"options"`
	IsRequired bool      `json:"is_required"`
	SortOrder  int       `json:"sort_order"`
	IsHidden   bool      `json:"is_hidden"`
}

type SortItem struct {
	ID        int64 `json:"id"`
	SortOrder *int  `json:"sort_order"`
}
