package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldType(t *testing.T) {
	assert.True(t, FieldTypeFormula.Valid())
	assert.False(t, FieldType("checkbox").Valid())
	assert.True(t, FieldTypeCurrency.Numeric())
	assert.False(t, FieldTypeText.Numeric())
}

func TestFieldDefinition_Formula(t *testing.T) {
	f := FieldDefinition{FieldType: FieldTypeFormula, Options: []string{"price * qty"}}
	assert.Equal(t, "price * qty", f.Formula())

	f.FieldType = FieldTypeSelect
	assert.Empty(t, f.Formula())
}

func TestPrincipal_CanSeeShop(t *testing.T) {
	admin := Principal{Role: RoleAdmin}
	op := Principal{Role: RoleOperator, Shops: []string{"S1"}}

	assert.True(t, admin.CanSeeShop("anything"))
	assert.True(t, op.CanSeeShop("S1"))
	assert.False(t, op.CanSeeShop("S2"))
}

func TestOrder_StringValue(t *testing.T) {
	o := &Order{Data: map[string]any{FieldShopName: "S1", "qty": 3.0}}
	assert.Equal(t, "S1", o.StringValue(FieldShopName))
	assert.Empty(t, o.StringValue("qty"))
	assert.Empty(t, (*Order)(nil).StringValue(FieldShopName))
}
