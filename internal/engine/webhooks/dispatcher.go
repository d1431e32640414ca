package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"worksphere/internal/pkg/errors"
	"worksphere/internal/pkg/validator"
	"worksphere/internal/platform/models"
	"worksphere/internal/platform/repositories"
)

// Dispatcher fans a domain event out to every subscribed endpoint of its
// organization.
type Dispatcher struct {
	endpoints *repositories.WebhookRepository
	events    *repositories.EventRepository
	tracker   *Tracker
	workers   int
	now       func() time.Time
}

func NewDispatcher(endpoints *repositories.WebhookRepository, events *repositories.EventRepository, tracker *Tracker, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{
		endpoints: endpoints,
		events:    events,
		tracker:   tracker,
		workers:   workers,
		now:       time.Now,
	}
}

// Store persists event, filling in its ID and creation time. Storing the
// same event twice is a no-op.
func (d *Dispatcher) Store(ctx context.Context, event *models.DomainEvent) error {
	if event.ID == "" {
		event.ID = "evt_" + uuid.New().String()
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = d.now().Unix()
	}
	if err := d.events.Append(ctx, event); err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	return nil
}

// Dispatch stores event and sends it to each active endpoint whose event
// list contains event.Type. It returns after every first attempt has
// completed, in endpoint order. A failure for one endpoint is recorded on
// its attempt and does not affect the others. Endpoints whose attempt could
// not be created are logged, counted as skipped and left out of the result.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.DomainEvent) ([]*models.DeliveryAttempt, error) {
	if err := d.Store(ctx, event); err != nil {
		return nil, err
	}

	endpoints, err := d.endpoints.ListSubscribed(ctx, event.OrganizationID, event.Type)
	if err != nil {
		return nil, fmt.Errorf("list subscribed webhooks: %w", err)
	}

	results := make([]*models.DeliveryAttempt, len(endpoints))
	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, endpoint := range endpoints {
		i, endpoint := i, endpoint
		g.Go(func() error {
			attempt, err := d.tracker.Begin(ctx, endpoint, event, 1)
			if err != nil {
				log.Error().Err(err).Str("endpoint_id", endpoint.ID).Str("event_id", event.ID).Msg("failed to start delivery")
				return nil
			}
			results[i] = d.tracker.Send(ctx, endpoint, event, attempt)
			return nil
		})
	}
	g.Wait()

	attempts := make([]*models.DeliveryAttempt, 0, len(results))
	for _, a := range results {
		if a != nil {
			attempts = append(attempts, a)
		}
	}
	skipped := len(endpoints) - len(attempts)
	for i := 0; i < skipped; i++ {
		d.tracker.metrics.DeliveryOutcome(OutcomeSkipped)
	}

	entry := log.Info()
	if skipped > 0 {
		entry = log.Warn()
	}
	entry.
		Str("org_id", event.OrganizationID).
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Int("endpoints", len(endpoints)).
		Int("skipped", skipped).
		Msg("event dispatched")
	return attempts, nil
}

// NewEvent validates raw input and builds an unsaved event.
func (d *Dispatcher) NewEvent(orgID, eventType string, payload json.RawMessage) (*models.DomainEvent, error) {
	if !validator.IsEventType(eventType) {
		return nil, errors.NewFieldError("event_type", "must be a dot-namespaced event type such as task.completed")
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	} else if !json.Valid(payload) {
		return nil, errors.NewFieldError("payload", "must be valid JSON")
	}

	return &models.DomainEvent{
		ID:             "evt_" + uuid.New().String(),
		OrganizationID: orgID,
		Type:           eventType,
		Payload:        payload,
		CreatedAt:      d.now().Unix(),
	}, nil
}

// Publish builds an event from raw input and dispatches it.
func (d *Dispatcher) Publish(ctx context.Context, orgID, eventType string, payload json.RawMessage) (*models.DomainEvent, []*models.DeliveryAttempt, error) {
	event, err := d.NewEvent(orgID, eventType, payload)
	if err != nil {
		return nil, nil, err
	}
	attempts, err := d.Dispatch(ctx, event)
	if err != nil {
		return nil, nil, err
	}
	return event, attempts, nil
}
