package fields_test

import (
	"context"
	"testing"

	"order-crm/internal/apperrors"
	"order-crm/internal/database"
	"order-crm/internal/fields"
	fielddb "order-crm/internal/fields/db"
	"order-crm/internal/logger"
	"order-crm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = models.Principal{UserID: 1, Username: "admin", Role: models.RoleAdmin}

func setupService(t *testing.T) *fields.Service {
	bunDB, err := database.OpenSQLiteMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })
	return fields.NewService(&fielddb.DB{Bun: bunDB}, logger.Nop())
}

func create(t *testing.T, s *fields.Service, in models.FieldInput) *models.FieldDefinition {
	f, err := s.Create(context.Background(), admin, in)
	require.NoError(t, err)
	return f
}

func TestCreate_ValidatesInput(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   models.FieldInput
		code string
	}{
		{"missing label", models.FieldInput{FieldName: "x", FieldType: models.FieldTypeText}, "VALIDATION_ERROR"},
		{"bad name", models.FieldInput{FieldName: "1x", FieldLabel: "X", FieldType: models.FieldTypeText}, "VALIDATION_ERROR"},
		{"bad type", models.FieldInput{FieldName: "x", FieldLabel: "X", FieldType: "blob"}, "VALIDATION_ERROR"},
		{"formula without source", models.FieldInput{FieldName: "x", FieldLabel: "X", FieldType: models.FieldTypeFormula}, "VALIDATION_ERROR"},
		{"blank option", models.FieldInput{FieldName: "x", FieldLabel: "X", FieldType: models.FieldTypeSelect, Options: []string{"a", " "}}, "VALIDATION_ERROR"},
		{"unresolved formula", models.FieldInput{FieldName: "x", FieldLabel: "X", FieldType: models.FieldTypeFormula, Options: []string{"ghost * 2"}}, "UNRESOLVED_REFERENCE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, admin, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
		})
	}
}

func TestCreate_FormulaAgainstCatalog(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	create(t, s, models.FieldInput{FieldName: "price", FieldLabel: "Price", FieldType: models.FieldTypeCurrency})
	create(t, s, models.FieldInput{FieldName: "quantity", FieldLabel: "Qty", FieldType: models.FieldTypeNumber})

	f := create(t, s, models.FieldInput{FieldName: "total", FieldLabel: "Total", FieldType: models.FieldTypeFormula, Options: []string{"price * quantity"}})
	assert.Equal(t, "price * quantity", f.Formula())
	assert.Equal(t, admin.UserID, f.CreatedBy)

	_, err := s.Create(ctx, admin, models.FieldInput{FieldName: "price", FieldLabel: "Again", FieldType: models.FieldTypeText})
	assert.Equal(t, "CONFLICT", apperrors.CodeOf(err))

	_, err = s.Create(ctx, admin, models.FieldInput{FieldName: "broken", FieldLabel: "B", FieldType: models.FieldTypeFormula, Options: []string{"(price * 2"}})
	assert.Equal(t, "UNBALANCED_PARENTHESES", apperrors.CodeOf(err))
}

func TestCreate_FormulaZeroSampleDivisorAccepted(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	create(t, s, models.FieldInput{FieldName: "revenue", FieldLabel: "Revenue", FieldType: models.FieldTypeCurrency})
	create(t, s, models.FieldInput{FieldName: "cost", FieldLabel: "Cost", FieldType: models.FieldTypeCurrency})

	f := create(t, s, models.FieldInput{FieldName: "margin", FieldLabel: "Margin", FieldType: models.FieldTypeFormula, Options: []string{"revenue / (revenue - cost)"}})
	assert.Equal(t, "revenue / (revenue - cost)", f.Formula())

	_, err := s.PreviewFormula(ctx, "revenue / (revenue - cost)")
	assert.Equal(t, "INVALID_RESULT", apperrors.CodeOf(err))

	_, err = s.Create(ctx, admin, models.FieldInput{FieldName: "bad_margin", FieldLabel: "Bad", FieldType: models.FieldTypeFormula, Options: []string{"revenue / * cost"}})
	assert.Equal(t, "MISPLACED_OPERATOR", apperrors.CodeOf(err))
}

func TestPreviewFormula_UsesSampleValues(t *testing.T) {
	s := setupService(t)
	create(t, s, models.FieldInput{FieldName: "price", FieldLabel: "Price", FieldType: models.FieldTypeCurrency})
	create(t, s, models.FieldInput{FieldName: "quantity", FieldLabel: "Qty", FieldType: models.FieldTypeNumber})

	result, err := s.PreviewFormula(context.Background(), "price * quantity + 1")
	require.NoError(t, err)
	assert.Equal(t, "1001.00", result)

	_, err = s.PreviewFormula(context.Background(), "price / (quantity - 10)")
	assert.Equal(t, "INVALID_RESULT", apperrors.CodeOf(err))
}

func TestUpdate_NameIsImmutable(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	f := create(t, s, models.FieldInput{FieldName: "note", FieldLabel: "Note", FieldType: models.FieldTypeText})

	_, err := s.Update(ctx, f.ID, models.FieldInput{FieldName: "renamed", FieldLabel: "Note", FieldType: models.FieldTypeText})
	assert.Equal(t, "VALIDATION_ERROR", apperrors.CodeOf(err))

	updated, err := s.Update(ctx, f.ID, models.FieldInput{FieldLabel: "Remark", FieldType: models.FieldTypeRichText, IsHidden: true})
	require.NoError(t, err)
	assert.Equal(t, "note", updated.FieldName)
	assert.Equal(t, "Remark", updated.FieldLabel)
	assert.True(t, updated.IsHidden)

	_, err = s.Update(ctx, f.ID+99, models.FieldInput{FieldLabel: "X", FieldType: models.FieldTypeText})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSortOrderAndDelete(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	a := create(t, s, models.FieldInput{FieldName: "a", FieldLabel: "A", FieldType: models.FieldTypeText, SortOrder: 1})
	b := create(t, s, models.FieldInput{FieldName: "b", FieldLabel: "B", FieldType: models.FieldTypeText, SortOrder: 2})

	one, two := 1, 2
	require.NoError(t, s.UpdateSortOrder(ctx, []models.SortItem{{ID: a.ID, SortOrder: &two}, {ID: b.ID, SortOrder: &one}}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].FieldName)

	err = s.UpdateSortOrder(ctx, []models.SortItem{{ID: a.ID, SortOrder: &one}, {ID: 999, SortOrder: &two}})
	assert.True(t, apperrors.IsNotFound(err))
	list, _ = s.List(ctx)
	assert.Equal(t, "b", list[0].FieldName, "failed batch must not be partially applied")

	assert.Error(t, s.UpdateSortOrder(ctx, []models.SortItem{{ID: a.ID}}))

	require.NoError(t, s.Delete(ctx, a.ID))
	assert.True(t, apperrors.IsNotFound(s.Delete(ctx, a.ID)))
}
