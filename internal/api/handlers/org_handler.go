package handlers

import (
	"net/http"

	apiContext "worksphere/internal/api/context"
	"worksphere/internal/api/middleware"
	"worksphere/internal/pkg/errors"
	"worksphere/internal/platform/auth"
	"worksphere/internal/platform/repositories"
)

type OrgHandler struct {
	orgRepo  *repositories.OrganizationRepository
	userRepo *repositories.UserRepository
}

func NewOrgHandler(orgRepo *repositories.OrganizationRepository, userRepo *repositories.UserRepository) *OrgHandler {
	return &OrgHandler{
		orgRepo:  orgRepo,
		userRepo: userRepo,
	}
}

func (h *OrgHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.Tenant(r.Context())
	if tenant == nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No tenant context", nil)
		return
	}

	org, err := h.orgRepo.GetByID(r.Context(), tenant.OrgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if org == nil {
		errors.WriteDomainError(w, errors.NewNotFoundError("organization", tenant.OrgID))
		return
	}

	writeJSON(w, http.StatusOK, org)
}

// Me returns the caller's user record with its organization attached.
func (h *OrgHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
		return
	}

	user, err := h.userRepo.GetByID(r.Context(), claims.UserID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}
	if user == nil || user.OrganizationID != claims.OrganizationID {
		errors.WriteDomainError(w, errors.NewNotFoundError("user", claims.UserID))
		return
	}

	if org, err := h.orgRepo.GetByID(r.Context(), user.OrganizationID); err == nil {
		user.Organization = org
	}

	writeJSON(w, http.StatusOK, user)
}
