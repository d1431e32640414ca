package handlers

import (
	"net/http"

	"worksphere/internal/engine/admin"
	"worksphere/internal/engine/metrics"
	"worksphere/internal/pkg/errors"
)

type AdminHandler struct {
	facade *admin.Facade
}

func NewAdminHandler(facade *admin.Facade) *AdminHandler {
	return &AdminHandler{facade: facade}
}

// Metrics serves the dashboard snapshot, for the last month unless ?range=
// says otherwise. Degraded sources are listed in the body; the response is
// still 200.
func (h *AdminHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	rangeToken := r.URL.Query().Get("range")
	if rangeToken == "" {
		rangeToken = string(metrics.RangeMonth)
	}

	snapshot, err := h.facade.DashboardMetrics(r.Context(), rangeToken)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (h *AdminHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req admin.AlertInput
	if !decode(w, r, &req) {
		return
	}

	alert, err := h.facade.CreateAlert(r.Context(), actorFromRequest(r), req)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

func (h *AdminHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.facade.ResolveAlert(r.Context(), actorFromRequest(r), param(r, "alert_id"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *AdminHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.facade.ListAlerts(r.Context(), actorFromRequest(r), r.URL.Query().Get("status"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (h *AdminHandler) UpsertFeatureFlag(w http.ResponseWriter, r *http.Request) {
	var req admin.FeatureFlagInput
	if !decode(w, r, &req) {
		return
	}
	if key := param(r, "flag_key"); key != "" {
		req.Key = key
	}

	flag, err := h.facade.UpsertFeatureFlag(r.Context(), actorFromRequest(r), req)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

func (h *AdminHandler) DeleteFeatureFlag(w http.ResponseWriter, r *http.Request) {
	if err := h.facade.DeleteFeatureFlag(r.Context(), actorFromRequest(r), param(r, "flag_key")); err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := h.facade.ListFeatureFlags(r.Context(), actorFromRequest(r))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"feature_flags": flags})
}

func (h *AdminHandler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req admin.AnnouncementInput
	if !decode(w, r, &req) {
		return
	}

	ann, err := h.facade.CreateAnnouncement(r.Context(), actorFromRequest(r), req)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ann)
}

func (h *AdminHandler) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req admin.AnnouncementPatch
	if !decode(w, r, &req) {
		return
	}

	ann, err := h.facade.UpdateAnnouncement(r.Context(), actorFromRequest(r), param(r, "announcement_id"), req)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ann)
}

func (h *AdminHandler) PublishAnnouncement(w http.ResponseWriter, r *http.Request) {
	ann, err := h.facade.PublishAnnouncement(r.Context(), actorFromRequest(r), param(r, "announcement_id"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ann)
}

func (h *AdminHandler) ArchiveAnnouncement(w http.ResponseWriter, r *http.Request) {
	ann, err := h.facade.ArchiveAnnouncement(r.Context(), actorFromRequest(r), param(r, "announcement_id"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ann)
}

func (h *AdminHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	anns, err := h.facade.ListAnnouncements(r.Context(), actorFromRequest(r), r.URL.Query().Get("status"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"announcements": anns})
}
