package handlers

import (
	"net/http"

	"worksphere/internal/engine/admin"
	"worksphere/internal/engine/webhooks"
	"worksphere/internal/pkg/errors"
	"worksphere/internal/platform/models"
)

type WebhookHandler struct {
	facade *admin.Facade
}

func NewWebhookHandler(facade *admin.Facade) *WebhookHandler {
	return &WebhookHandler{facade: facade}
}

// Create returns the secret once; every other read redacts it.
func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req webhooks.EndpointSpec
	if !decode(w, r, &req) {
		return
	}

	endpoint, err := h.facade.CreateWebhook(r.Context(), actorFromRequest(r), req)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, endpoint)
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.facade.ListWebhooks(r.Context(), actorFromRequest(r))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	out := make([]*models.WebhookEndpoint, 0, len(endpoints))
	for _, e := range endpoints {
		out = append(out, e.Redacted())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"webhooks": out})
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	endpoint, err := h.facade.GetWebhook(r.Context(), actorFromRequest(r), param(r, "webhook_id"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, endpoint.Redacted())
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req webhooks.EndpointPatch
	if !decode(w, r, &req) {
		return
	}

	endpoint, err := h.facade.UpdateWebhook(r.Context(), actorFromRequest(r), param(r, "webhook_id"), req)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, endpoint.Redacted())
}

// Delete deactivates the endpoint; its delivery history is kept.
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.facade.DeactivateWebhook(r.Context(), actorFromRequest(r), param(r, "webhook_id")); err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WebhookHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	endpoint, err := h.facade.RotateWebhookSecret(r.Context(), actorFromRequest(r), param(r, "webhook_id"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, endpoint)
}

// Test always answers 200 with the attempt; the attempt's status tells the
// caller whether the receiver accepted it.
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.facade.TestWebhook(r.Context(), actorFromRequest(r), param(r, "webhook_id"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, attempt)
}

func (h *WebhookHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.facade.ListDeliveries(r.Context(), actorFromRequest(r), param(r, "webhook_id"), queryInt(r, "limit"))
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	if attempts == nil {
		attempts = []*models.DeliveryAttempt{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deliveries": attempts})
}
