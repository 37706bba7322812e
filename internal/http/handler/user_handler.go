package handler

import (
	"net/http"

	"github.com/arjunms/account-service/internal/http/middleware"
	"github.com/arjunms/account-service/internal/http/response"
	"github.com/arjunms/account-service/internal/service"
)

type UserHandler struct {
	userSvc service.UserServiceInterface
	authSvc service.AuthServiceInterface
}

func NewUserHandler(userSvc service.UserServiceInterface, authSvc service.AuthServiceInterface) *UserHandler {
	return &UserHandler{userSvc: userSvc, authSvc: authSvc}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	uid, err := h.authSvc.ParseUserID(claims.Subject)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid subject", nil)
		return
	}
	user, err := h.userSvc.GetByID(r.Context(), uid)
	if err != nil {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		return
	}
	identities, err := h.userSvc.LinkedIdentities(r.Context(), uid)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":       user,
		"identities": identities,
	})
}
