package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"worksphere/internal/engine/analytics"
	"worksphere/internal/engine/metrics"
	"worksphere/internal/engine/webhooks"
	"worksphere/internal/pkg/validator"
	"worksphere/internal/platform/audit"
	"worksphere/internal/platform/database"
	"worksphere/internal/platform/models"
	"worksphere/internal/platform/repositories"
)

// Actor identifies who performs an administrative call.
type Actor struct {
	AdminID   string
	OrgID     string
	IPAddress string
	UserAgent string
}

// Options wires the facade. DB scopes each mutation and its audit record
// to one transaction. Emitter may be nil.
type Options struct {
	DB            *sql.DB
	Registry      *webhooks.Registry
	Dispatcher    *webhooks.Dispatcher
	Tracker       *webhooks.Tracker
	Aggregator    *metrics.Aggregator
	Alerts        *repositories.AlertRepository
	Flags         *repositories.FeatureFlagRepository
	Announcements *repositories.AnnouncementRepository
	Audit         *audit.Logger
	Validator     *validator.Validator
	Emitter       *analytics.Emitter
}

// Facade is the single entry point the HTTP layer uses for administrative
// operations. Every successful mutating call writes exactly one audit record.
type Facade struct {
	db            *sql.DB
	registry      *webhooks.Registry
	dispatcher    *webhooks.Dispatcher
	tracker       *webhooks.Tracker
	aggregator    *metrics.Aggregator
	alerts        *repositories.AlertRepository
	flags         *repositories.FeatureFlagRepository
	announcements *repositories.AnnouncementRepository
	audit         *audit.Logger
	validate      *validator.Validator
	emitter       *analytics.Emitter
	now           func() time.Time
}

func NewFacade(opts Options) *Facade {
	v := opts.Validator
	if v == nil {
		v = validator.New()
	}
	return &Facade{
		db:            opts.DB,
		registry:      opts.Registry,
		dispatcher:    opts.Dispatcher,
		tracker:       opts.Tracker,
		aggregator:    opts.Aggregator,
		alerts:        opts.Alerts,
		flags:         opts.Flags,
		announcements: opts.Announcements,
		audit:         opts.Audit,
		validate:      v,
		emitter:       opts.Emitter,
		now:           time.Now,
	}
}

// auditTarget names the entity a mutation changed and what to record.
type auditTarget struct {
	entityType string
	entityID   string
	values     map[string]interface{}
}

// audited runs mutate and the audit record for action in one transaction:
// either both are stored or neither is. The action is emitted to analytics
// after commit.
func (f *Facade) audited(ctx context.Context, actor Actor, action string, mutate func(ctx context.Context) (auditTarget, error)) error {
	err := f.inTx(ctx, func(ctx context.Context) error {
		target, err := mutate(ctx)
		if err != nil {
			return err
		}
		_, err = f.audit.Record(ctx, audit.Entry{
			OrganizationID: actor.OrgID,
			AdminID:        actor.AdminID,
			Action:         action,
			EntityType:     target.entityType,
			EntityID:       target.entityID,
			NewValues:      target.values,
			IPAddress:      actor.IPAddress,
			UserAgent:      actor.UserAgent,
		})
		if err != nil {
			return fmt.Errorf("write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if f.emitter != nil {
		f.emitter.Emit(action, actor.OrgID)
	}
	return nil
}

func (f *Facade) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if f.db == nil {
		return fn(ctx)
	}
	return database.RunInTx(ctx, f.db, fn)
}

func endpointValues(e *models.WebhookEndpoint) map[string]interface{} {
	return map[string]interface{}{
		"name":                e.Name,
		"url":                 e.URL,
		"events":              e.Events,
		"active":              e.Active,
		"max_retries":         e.RetryPolicy.MaxRetries,
		"retry_delay_seconds": e.RetryPolicy.RetryDelaySeconds,
	}
}

func (f *Facade) CreateWebhook(ctx context.Context, actor Actor, spec webhooks.EndpointSpec) (*models.WebhookEndpoint, error) {
	var endpoint *models.WebhookEndpoint
	err := f.audited(ctx, actor, "webhook.create", func(ctx context.Context) (auditTarget, error) {
		var err error
		if endpoint, err = f.registry.Create(ctx, actor.OrgID, spec); err != nil {
			return auditTarget{}, err
		}
		return auditTarget{"webhook", endpoint.ID, endpointValues(endpoint)}, nil
	})
	if err != nil {
		return nil, err
	}
	return endpoint, nil
}

func (f *Facade) UpdateWebhook(ctx context.Context, actor Actor, id string, patch webhooks.EndpointPatch) (*models.WebhookEndpoint, error) {
	var endpoint *models.WebhookEndpoint
	err := f.audited(ctx, actor, "webhook.update", func(ctx context.Context) (auditTarget, error) {
		var err error
		if endpoint, err = f.registry.Update(ctx, actor.OrgID, id, patch); err != nil {
			return auditTarget{}, err
		}
		values := endpointValues(endpoint)
		if patch.Secret != nil {
			values["secret_changed"] = true
		}
		return auditTarget{"webhook", endpoint.ID, values}, nil
	})
	if err != nil {
		return nil, err
	}
	return endpoint, nil
}

func (f *Facade) DeactivateWebhook(ctx context.Context, actor Actor, id string) (*models.WebhookEndpoint, error) {
	var endpoint *models.WebhookEndpoint
	err := f.audited(ctx, actor, "webhook.deactivate", func(ctx context.Context) (auditTarget, error) {
		var err error
		if endpoint, err = f.registry.Deactivate(ctx, actor.OrgID, id); err != nil {
			return auditTarget{}, err
		}
		return auditTarget{"webhook", endpoint.ID, map[string]interface{}{"active": false}}, nil
	})
	if err != nil {
		return nil, err
	}
	return endpoint, nil
}

func (f *Facade) RotateWebhookSecret(ctx context.Context, actor Actor, id string) (*models.WebhookEndpoint, error) {
	var endpoint *models.WebhookEndpoint
	err := f.audited(ctx, actor, "webhook.rotate_secret", func(ctx context.Context) (auditTarget, error) {
		var err error
		if endpoint, err = f.registry.RotateSecret(ctx, actor.OrgID, id); err != nil {
			return auditTarget{}, err
		}
		return auditTarget{"webhook", endpoint.ID, map[string]interface{}{"secret_changed": true}}, nil
	})
	if err != nil {
		return nil, err
	}
	return endpoint, nil
}

func (f *Facade) GetWebhook(ctx context.Context, actor Actor, id string) (*models.WebhookEndpoint, error) {
	return f.registry.Get(ctx, actor.OrgID, id)
}

func (f *Facade) ListWebhooks(ctx context.Context, actor Actor) ([]*models.WebhookEndpoint, error) {
	return f.registry.List(ctx, actor.OrgID)
}

// TestWebhook sends a connectivity check. The test attempt and its audit
// record are stored before the request goes out. A failed delivery is still
// a successful call: the outcome is on the returned attempt.
func (f *Facade) TestWebhook(ctx context.Context, actor Actor, id string) (*models.DeliveryAttempt, error) {
	endpoint, err := f.registry.Get(ctx, actor.OrgID, id)
	if err != nil {
		return nil, err
	}

	var (
		event   *models.DomainEvent
		attempt *models.DeliveryAttempt
	)
	err = f.audited(ctx, actor, "webhook.test", func(ctx context.Context) (auditTarget, error) {
		var err error
		if event, attempt, err = f.tracker.BeginTest(ctx, endpoint); err != nil {
			return auditTarget{}, err
		}
		return auditTarget{"webhook", endpoint.ID, map[string]interface{}{"attempt_id": attempt.ID}}, nil
	})
	if err != nil {
		return nil, err
	}
	return f.tracker.Send(ctx, endpoint, event, attempt), nil
}

func (f *Facade) ListDeliveries(ctx context.Context, actor Actor, endpointID string, limit int) ([]*models.DeliveryAttempt, error) {
	return f.tracker.Deliveries(ctx, actor.OrgID, endpointID, limit)
}

// PublishEvent stores the event together with its audit record, then fans
// it out to subscribed endpoints.
func (f *Facade) PublishEvent(ctx context.Context, actor Actor, eventType string, payload json.RawMessage) (*models.DomainEvent, []*models.DeliveryAttempt, error) {
	event, err := f.dispatcher.NewEvent(actor.OrgID, eventType, payload)
	if err != nil {
		return nil, nil, err
	}
	err = f.audited(ctx, actor, "event.publish", func(ctx context.Context) (auditTarget, error) {
		if err := f.dispatcher.Store(ctx, event); err != nil {
			return auditTarget{}, err
		}
		return auditTarget{"event", event.ID, map[string]interface{}{"event_type": event.Type}}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	attempts, err := f.dispatcher.Dispatch(ctx, event)
	if err != nil {
		return nil, nil, err
	}
	return event, attempts, nil
}

func (f *Facade) DashboardMetrics(ctx context.Context, rangeToken string) (*metrics.Snapshot, error) {
	r, err := metrics.ParseTimeRange(rangeToken)
	if err != nil {
		return nil, err
	}
	return f.aggregator.GetDashboardMetrics(ctx, r)
}

func (f *Facade) AuditLogs(ctx context.Context, actor Actor, entityID string, limit int) ([]*models.AuditLog, error) {
	return f.audit.List(ctx, actor.OrgID, entityID, limit)
}
