package fields

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"order-crm/internal/apperrors"
	fielddb "order-crm/internal/fields/db"
	"order-crm/internal/formula"
	"order-crm/internal/logger"
	"order-crm/internal/metrics"
	"order-crm/internal/models"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type DBLayer interface {
	ListFields(ctx context.Context) ([]models.FieldDefinition, error)
	GetField(ctx context.Context, id int64) (*models.FieldDefinition, error)
	GetFieldByName(ctx context.Context, name string) (*models.FieldDefinition, error)
	CreateField(ctx context.Context, field *models.FieldDefinition) error
	UpdateField(ctx context.Context, field *models.FieldDefinition) error
	DeleteField(ctx context.Context, id int64) error
	UpdateSortOrders(ctx context.Context, items []models.SortItem) error
}

type Service struct {
	DB     DBLayer
	Logger *logger.Logger
	now    func() time.Time
}

func NewService(db DBLayer, l *logger.Logger) *Service {
	return &Service{DB: db, Logger: l, now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]models.FieldDefinition, error) {
	fields, err := s.DB.ListFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	return fields, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.FieldDefinition, error) {
	field, err := s.DB.GetField(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, id)
	}
	return field, nil
}

// Evaluator returns a formula evaluator over the current catalog together
// with the catalog itself.
func (s *Service) Evaluator(ctx context.Context) (*formula.Evaluator, []models.FieldDefinition, error) {
	fields, err := s.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	return formula.NewEvaluator(fields), fields, nil
}

// PreviewFormula evaluates src with sample values against the catalog.
func (s *Service) PreviewFormula(ctx context.Context, src string) (string, error) {
	eval, _, err := s.Evaluator(ctx)
	if err != nil {
		return "", err
	}
	result, err := eval.Preview(src)
	if err != nil {
		metrics.FormulaErrors.WithLabelValues(formula.Code(err)).Inc()
		return "", formulaValidationError(err)
	}
	return formula.Format(result), nil
}

func (s *Service) Create(ctx context.Context, actor models.Principal, in models.FieldInput) (*models.FieldDefinition, error) {
	in.FieldName = strings.TrimSpace(in.FieldName)
	in.FieldLabel = strings.TrimSpace(in.FieldLabel)

	if in.FieldName == "" || in.FieldLabel == "" || in.FieldType == "" {
		return nil, apperrors.NewValidationError("", "field_name, field_label and field_type are required")
	}
	if !fieldNamePattern.MatchString(in.FieldName) {
		return nil, apperrors.NewValidationError("field_name", "must start with a letter or underscore and contain only letters, digits and underscores")
	}
	if err := validateTypeAndOptions(in); err != nil {
		return nil, err
	}

	if _, err := s.DB.GetFieldByName(ctx, in.FieldName); err == nil {
		return nil, apperrors.NewConflictError("field", "field_name", in.FieldName)
	} else if !errors.Is(err, fielddb.ErrFieldNotFound) {
		return nil, fmt.Errorf("check field name: %w", err)
	}

	if in.FieldType == models.FieldTypeFormula {
		if err := s.validateFormula(ctx, in.Options[0]); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	field := &models.FieldDefinition{
		FieldName:  in.FieldName,
		FieldLabel: in.FieldLabel,
		FieldType:  in.FieldType,
		Options:    in.Options,
		IsRequired: in.IsRequired,
		SortOrder:  in.SortOrder,
		IsHidden:   in.IsHidden,
		CreatedBy:  actor.UserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.DB.CreateField(ctx, field); err != nil {
		return nil, fmt.Errorf("create field: %w", err)
	}

	s.Logger.Info("FIELDS", fmt.Sprintf("Field %s (%s) created by user %d", field.FieldName, field.FieldType, actor.UserID))
	return field, nil
}

// Update changes everything except the field name.
func (s *Service) Update(ctx context.Context, id int64, in models.FieldInput) (*models.FieldDefinition, error) {
	field, err := s.DB.GetField(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, id)
	}

	if name := strings.TrimSpace(in.FieldName); name != "" && name != field.FieldName {
		return nil, apperrors.NewValidationError("field_name", "field name cannot be changed")
	}
	in.FieldLabel = strings.TrimSpace(in.FieldLabel)
	if in.FieldLabel == "" || in.FieldType == "" {
		return nil, apperrors.NewValidationError("", "field_label and field_type are required")
	}
	if err := validateTypeAndOptions(in); err != nil {
		return nil, err
	}
	if in.FieldType == models.FieldTypeFormula {
		if err := s.validateFormula(ctx, in.Options[0]); err != nil {
			return nil, err
		}
	}

	field.FieldLabel = in.FieldLabel
	field.FieldType = in.FieldType
	field.Options = in.Options
	field.IsRequired = in.IsRequired
	field.SortOrder = in.SortOrder
	field.IsHidden = in.IsHidden
	field.UpdatedAt = s.now().UTC()

	if err := s.DB.UpdateField(ctx, field); err != nil {
		return nil, s.mapErr(err, id)
	}
	s.Logger.Info("FIELDS", fmt.Sprintf("Field %s updated", field.FieldName))
	return field, nil
}

// Delete removes the definition. Order data keyed by the field is kept.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.DB.DeleteField(ctx, id); err != nil {
		return s.mapErr(err, id)
	}
	s.Logger.Info("FIELDS", fmt.Sprintf("Field #%d deleted", id))
	return nil
}

func (s *Service) UpdateSortOrder(ctx context.Context, items []models.SortItem) error {
	if len(items) == 0 {
		return apperrors.NewValidationError("fields", "at least one field is required")
	}
	for _, item := range items {
		if item.ID == 0 || item.SortOrder == nil {
			return apperrors.NewValidationError("fields", "each item needs id and sort_order")
		}
	}
	if err := s.DB.UpdateSortOrders(ctx, items); err != nil {
		if errors.Is(err, fielddb.ErrFieldNotFound) {
			return apperrors.NewNotFoundError("field", "")
		}
		return fmt.Errorf("update sort order: %w", err)
	}
	return nil
}

func (s *Service) validateFormula(ctx context.Context, src string) error {
	eval, _, err := s.Evaluator(ctx)
	if err != nil {
		return err
	}
	// Sample values may legitimately divide by zero; only structural errors reject.
	if _, err := eval.Preview(src); err != nil && !errors.Is(err, formula.ErrInvalidResult) {
		metrics.FormulaErrors.WithLabelValues(formula.Code(err)).Inc()
		return formulaValidationError(err)
	}
	return nil
}

func validateTypeAndOptions(in models.FieldInput) error {
	if !in.FieldType.Valid() {
		return apperrors.NewValidationError("field_type", fmt.Sprintf("unsupported field type %q", in.FieldType))
	}
	switch in.FieldType {
	case models.FieldTypeFormula:
		if len(in.Options) == 0 || strings.TrimSpace(in.Options[0]) == "" {
			return apperrors.NewValidationError("options", "formula fields need a formula")
		}
	case models.FieldTypeSelect, models.FieldTypeMultiselect:
		for _, opt := range in.Options {
			if strings.TrimSpace(opt) == "" {
				return apperrors.NewValidationError("options", "options cannot be blank")
			}
		}
	}
	return nil
}

func formulaValidationError(err error) error {
	return &apperrors.ValidationError{Field: "formula", Message: err.Error(), Reason: formula.Code(err)}
}

func (s *Service) mapErr(err error, id int64) error {
	if errors.Is(err, fielddb.ErrFieldNotFound) {
		return apperrors.NewNotFoundError("field", strconv.FormatInt(id, 10))
	}
	return err
}
