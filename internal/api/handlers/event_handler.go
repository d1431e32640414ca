package handlers

import (
	"encoding/json"
	"net/http"

	"worksphere/internal/engine/admin"
	"worksphere/internal/pkg/errors"
	"worksphere/internal/platform/models"
)

type EventHandler struct {
	facade *admin.Facade
}

func NewEventHandler(facade *admin.Facade) *EventHandler {
	return &EventHandler{facade: facade}
}

type PublishRequest struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type PublishResponse struct {
	Event      *models.DomainEvent       `json:"event"`
	Deliveries []*models.DeliveryAttempt `json:"deliveries"`
}

func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if !decode(w, r, &req) {
		return
	}

	event, attempts, err := h.facade.PublishEvent(r.Context(), actorFromRequest(r), req.EventType, req.Payload)
	if err != nil {
		errors.WriteDomainError(w, err)
		return
	}

	if attempts == nil {
		attempts = []*models.DeliveryAttempt{}
	}
	writeJSON(w, http.StatusAccepted, PublishResponse{Event: event, Deliveries: attempts})
}
