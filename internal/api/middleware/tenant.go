package middleware

import (
	"context"
	"net/http"

	apiContext "worksphere/internal/api/context"
	"worksphere/internal/pkg/errors"
	"worksphere/internal/platform/auth"
	"worksphere/internal/platform/repositories"
)

// TenantContext identifies the organization every query in the request is
// scoped to.
type TenantContext struct {
	OrgID   string
	OrgSlug string
}

type TenantMiddleware struct {
	orgRepo *repositories.OrganizationRepository
}

func NewTenantMiddleware(orgRepo *repositories.OrganizationRepository) *TenantMiddleware {
	return &TenantMiddleware{orgRepo: orgRepo}
}

func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}

		org, err := m.orgRepo.GetByID(r.Context(), claims.OrganizationID)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load organization", nil)
			return
		}
		if org == nil || org.DeletedAt != nil || org.Status == "cancelled" {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Organization not found", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Tenant, &TenantContext{
			OrgID:   org.ID,
			OrgSlug: org.Slug,
		})

		next(w, r.WithContext(ctx))
	}
}

// Tenant returns the tenant stored by TenantMiddleware, or nil.
func Tenant(ctx context.Context) *TenantContext {
	t, _ := ctx.Value(apiContext.Tenant).(*TenantContext)
	return t
}
