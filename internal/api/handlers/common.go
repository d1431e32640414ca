package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	apiContext "worksphere/internal/api/context"
	"worksphere/internal/api/middleware"
	"worksphere/internal/engine/admin"
	"worksphere/internal/pkg/errors"
	"worksphere/internal/platform/auth"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v, writing a 400 and returning false on
// failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return false
	}
	return true
}

func param(r *http.Request, name string) string {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return params.ByName(name)
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

// actorFromRequest builds the audit actor from the authenticated request.
func actorFromRequest(r *http.Request) admin.Actor {
	actor := admin.Actor{
		IPAddress: middleware.RemoteIP(r),
		UserAgent: r.UserAgent(),
	}
	if claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims); ok {
		actor.AdminID = claims.UserID
		actor.OrgID = claims.OrganizationID
	}
	if tenant := middleware.Tenant(r.Context()); tenant != nil {
		actor.OrgID = tenant.OrgID
	}
	return actor
}
