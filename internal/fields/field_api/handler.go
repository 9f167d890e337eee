package field_api

import (
	"fmt"
	"net/http"
	"strconv"

	"order-crm/internal/apperrors"
	"order-crm/internal/auth"
	"order-crm/internal/fields"
	"order-crm/internal/logger"
	"order-crm/internal/models"
	"order-crm/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *fields.Service
	Logger  *logger.Logger
}

func NewHandler(service *fields.Service, l *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: l}
}

// RegisterRoutes mounts the catalog under /fields. Mutations are admin only.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/fields", func(r chi.Router) {
		r.Get("/", h.ListFields)
		r.Post("/formula/preview", h.PreviewFormula)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Post("/", h.CreateField)
			r.Put("/sort-order", h.UpdateSortOrder)
			r.Put("/{fieldId}", h.UpdateField)
			r.Delete("/{fieldId}", h.DeleteField)
		})
	})
}

func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListFields: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", list)
}

func (h *Handler) CreateField(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.PrincipalFrom(r.Context())

	var in models.FieldInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}

	field, err := h.Service.Create(r.Context(), actor, in)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateField: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "field created", field)
}

func (h *Handler) UpdateField(w http.ResponseWriter, r *http.Request) {
	id, err := fieldID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var in models.FieldInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}

	field, err := h.Service.Update(r.Context(), id, in)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("UpdateField #%d: %v", id, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "field updated", field)
}

func (h *Handler) DeleteField(w http.ResponseWriter, r *http.Request) {
	id, err := fieldID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("DeleteField #%d: %v", id, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "field deleted", nil)
}

func (h *Handler) UpdateSortOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Fields []models.SortItem `json:"fields"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.UpdateSortOrder(r.Context(), body.Fields); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "sort order updated", nil)
}

func (h *Handler) PreviewFormula(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Formula string `json:"formula"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.WriteError(w, err)
		return
	}
	result, err := h.Service.PreviewFormula(r.Context(), body.Formula)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]string{"result": result})
}

func fieldID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "fieldId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("id", "invalid field id")
	}
	return id, nil
}
