package webhooks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"worksphere/internal/pkg/errors"
	"worksphere/internal/pkg/validator"
	"worksphere/internal/platform/config"
	"worksphere/internal/platform/models"
	"worksphere/internal/platform/repositories"
)

// EndpointSpec is the input for registering an endpoint. Nil retry fields
// take the configured defaults.
type EndpointSpec struct {
	Name              string            `json:"name" validate:"required,max=120"`
	URL               string            `json:"url" validate:"required,webhook_url"`
	Events            []string          `json:"events" validate:"required,min=1,dive,event_type"`
	Secret            string            `json:"secret,omitempty" validate:"omitempty,min=16"`
	MaxRetries        *int              `json:"max_retries,omitempty" validate:"omitempty,min=0,max=20"`
	RetryDelaySeconds *int              `json:"retry_delay_seconds,omitempty" validate:"omitempty,gt=0"`
	Headers           map[string]string `json:"headers,omitempty"`
}

// EndpointPatch carries the fields to change. Nil fields are left as is.
type EndpointPatch struct {
	Name              *string           `json:"name,omitempty"`
	URL               *string           `json:"url,omitempty"`
	Events            []string          `json:"events,omitempty"`
	Secret            *string           `json:"secret,omitempty"`
	MaxRetries        *int              `json:"max_retries,omitempty"`
	RetryDelaySeconds *int              `json:"retry_delay_seconds,omitempty"`
	Headers           map[string]string `json:"headers,omitempty"`
	Active            *bool             `json:"active,omitempty"`
}

type Registry struct {
	repo     *repositories.WebhookRepository
	validate *validator.Validator
	defaults models.RetryPolicy
	now      func() time.Time
}

func NewRegistry(repo *repositories.WebhookRepository, v *validator.Validator, cfg config.WebhooksConfig) *Registry {
	defaults := models.RetryPolicy{MaxRetries: cfg.DefaultMaxRetries, RetryDelaySeconds: cfg.DefaultRetryDelay}
	if defaults.RetryDelaySeconds <= 0 {
		defaults.RetryDelaySeconds = 60
	}
	return &Registry{repo: repo, validate: v, defaults: defaults, now: time.Now}
}

func (r *Registry) Create(ctx context.Context, orgID string, spec EndpointSpec) (*models.WebhookEndpoint, error) {
	if err := r.validate.Struct(spec); err != nil {
		return nil, err
	}

	secret := spec.Secret
	if secret == "" {
		var err error
		if secret, err = GenerateSecret(); err != nil {
			return nil, err
		}
	}

	policy := r.defaults
	if spec.MaxRetries != nil {
		policy.MaxRetries = *spec.MaxRetries
	}
	if spec.RetryDelaySeconds != nil {
		policy.RetryDelaySeconds = *spec.RetryDelaySeconds
	}

	now := r.now().Unix()
	endpoint := &models.WebhookEndpoint{
		ID:             "wh_" + uuid.New().String(),
		OrganizationID: orgID,
		Name:           spec.Name,
		URL:            spec.URL,
		Events:         dedupe(spec.Events),
		Secret:         secret,
		RetryPolicy:    policy,
		Headers:        spec.Headers,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := r.repo.Create(ctx, endpoint); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	return endpoint, nil
}

func (r *Registry) Update(ctx context.Context, orgID, id string, patch EndpointPatch) (*models.WebhookEndpoint, error) {
	endpoint, err := r.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		endpoint.Name = *patch.Name
	}
	if patch.URL != nil {
		endpoint.URL = *patch.URL
	}
	if patch.Events != nil {
		endpoint.Events = dedupe(patch.Events)
	}
	if patch.Secret != nil {
		endpoint.Secret = *patch.Secret
	}
	if patch.MaxRetries != nil {
		endpoint.RetryPolicy.MaxRetries = *patch.MaxRetries
	}
	if patch.RetryDelaySeconds != nil {
		endpoint.RetryPolicy.RetryDelaySeconds = *patch.RetryDelaySeconds
	}
	if patch.Headers != nil {
		endpoint.Headers = patch.Headers
	}
	if patch.Active != nil {
		endpoint.Active = *patch.Active
	}

	// Re-validate the merged endpoint with the same rules as creation.
	maxRetries, delay := endpoint.RetryPolicy.MaxRetries, endpoint.RetryPolicy.RetryDelaySeconds
	if err := r.validate.Struct(EndpointSpec{
		Name:              endpoint.Name,
		URL:               endpoint.URL,
		Events:            endpoint.Events,
		Secret:            endpoint.Secret,
		MaxRetries:        &maxRetries,
		RetryDelaySeconds: &delay,
	}); err != nil {
		return nil, err
	}

	endpoint.UpdatedAt = r.now().Unix()
	if err := r.repo.Update(ctx, endpoint); err != nil {
		return nil, fmt.Errorf("update webhook: %w", err)
	}
	return endpoint, nil
}

// Deactivate stops deliveries to the endpoint. Deactivating an inactive
// endpoint succeeds without changes.
func (r *Registry) Deactivate(ctx context.Context, orgID, id string) (*models.WebhookEndpoint, error) {
	endpoint, err := r.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !endpoint.Active {
		return endpoint, nil
	}

	endpoint.Active = false
	endpoint.UpdatedAt = r.now().Unix()
	if err := r.repo.SetActive(ctx, orgID, id, false, endpoint.UpdatedAt); err != nil {
		return nil, fmt.Errorf("deactivate webhook: %w", err)
	}
	return endpoint, nil
}

func (r *Registry) RotateSecret(ctx context.Context, orgID, id string) (*models.WebhookEndpoint, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, err
	}
	return r.Update(ctx, orgID, id, EndpointPatch{Secret: &secret})
}

func (r *Registry) Get(ctx context.Context, orgID, id string) (*models.WebhookEndpoint, error) {
	endpoint, err := r.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("get webhook: %w", err)
	}
	if endpoint == nil {
		return nil, errors.NewNotFoundError("webhook", id)
	}
	return endpoint, nil
}

func (r *Registry) List(ctx context.Context, orgID string) ([]*models.WebhookEndpoint, error) {
	return r.repo.List(ctx, orgID)
}

// GenerateSecret returns a new signing secret: whsec_ followed by 32
// random bytes in hex.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return "whsec_" + hex.EncodeToString(b), nil
}

func dedupe(events []string) []string {
	seen := make(map[string]bool, len(events))
	out := make([]string, 0, len(events))
	for _, e := range events {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}
