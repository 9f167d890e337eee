package user_api

import (
	"fmt"
	"net/http"
	"strconv"

	"order-crm/internal/apperrors"
	"order-crm/internal/auth"
	"order-crm/internal/logger"
	"order-crm/internal/models"
	"order-crm/internal/users"
	"order-crm/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *users.Service
	Logger  *logger.Logger
}

func NewHandler(service *users.Service, l *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: l}
}

// RegisterRoutes mounts user administration under /users. Every route is
// admin only.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Use(auth.RequireRole(models.RoleAdmin))
		r.Get("/shops", h.ListShops)
		r.Get("/", h.ListUsers)
		r.Post("/", h.CreateUser)
		r.Get("/{userId}", h.GetUser)
		r.Put("/{userId}", h.UpdateUser)
		r.Delete("/{userId}", h.DeleteUser)
		r.Put("/{userId}/shops", h.SetShops)
	})
}

func (h *Handler) ListShops(w http.ResponseWriter, r *http.Request) {
	shops, err := h.Service.AssignableShops(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListShops: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", shops)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListUsers: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", list)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	user, err := h.Service.Get(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", user)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in models.UserInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	user, err := h.Service.Create(r.Context(), in)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateUser: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "user created", user)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var in models.UserInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	user, err := h.Service.Update(r.Context(), id, in)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("UpdateUser #%d: %v", id, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "user updated", user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	actor, _ := auth.PrincipalFrom(r.Context())
	if err := h.Service.Delete(r.Context(), actor, id); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "user deleted", nil)
}

func (h *Handler) SetShops(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var body struct {
		Shops []string `json:"shop_permissions"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.WriteError(w, err)
		return
	}
	shops, err := h.Service.SetShopPermissions(r.Context(), id, body.Shops)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "shop permissions updated", shops)
}

// MeHandler returns the caller's full profile.
func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		utils.WriteError(w, apperrors.NewUnauthorizedError("not authenticated"))
		return
	}
	user, err := h.Service.Me(r.Context(), actor)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", user)
}

func userID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("id", "invalid user id")
	}
	return id, nil
}
