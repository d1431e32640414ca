package handlers

import (
	"net/http"

	"worksphere/internal/engine/admin"
	"worksphere/internal/pkg/errors"
	"worksphere/internal/platform/models"
)

type AuditHandler struct {
	facade *admin.Facade
}

func NewAuditHandler(facade *admin.Facade) *AuditHandler {
	return &AuditHandler{facade: facade}
}

// List supports ?entity_id= and ?limit= filters.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	logs, err := h.facade.AuditLogs(r.Context(), actorFromRequest(r), r.URL.Query().Get("entity_id"), queryInt(r, "limit"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	if logs == nil {
		logs = []*models.AuditLog{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"audit_logs": logs})
}
