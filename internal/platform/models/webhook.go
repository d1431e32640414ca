package models

import "encoding/json"

const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryRetrying  = "retrying"
	DeliveryFailed    = "failed"
)

// TestEventType is the synthetic event sent by user-initiated connectivity checks.
const TestEventType = "test.event"

type RetryPolicy struct {
	MaxRetries        int `json:"max_retries"`
	RetryDelaySeconds int `json:"retry_delay_seconds"`
}

type WebhookEndpoint struct {
	ID              string            `json:"id"`
	OrganizationID  string            `json:"organization_id"`
	Name            string            `json:"name"`
	URL             string            `json:"url"`
	Events          []string          `json:"events"` // JSON array in DB
	Secret          string            `json:"secret,omitempty"`
	RetryPolicy     RetryPolicy       `json:"retry_policy"`
	Headers         map[string]string `json:"headers,omitempty"` // JSON object in DB
	Active          bool              `json:"active"`
	LastTriggeredAt *int64            `json:"last_triggered_at,omitempty"`
	LastStatus      string            `json:"last_status,omitempty"`
	LastError       string            `json:"last_error,omitempty"`
	CreatedAt       int64             `json:"created_at"`
	UpdatedAt       int64             `json:"updated_at"`
}

func (e *WebhookEndpoint) Subscribes(eventType string) bool {
	for _, ev := range e.Events {
		if ev == eventType {
			return true
		}
	}
	return false
}

// Redacted returns a copy safe to render in list views.
func (e *WebhookEndpoint) Redacted() *WebhookEndpoint {
	c := *e
	if len(c.Secret) > 10 {
		c.Secret = c.Secret[:10] + "..."
	} else if c.Secret != "" {
		c.Secret = "..."
	}
	return &c
}

type DomainEvent struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Type           string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      int64           `json:"created_at"`
}

type DeliveryAttempt struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	EndpointID     string `json:"endpoint_id"`
	EventID        string `json:"event_id"`
	EventType      string `json:"event_type,omitempty"`
	Status         string `json:"status"`
	ResponseStatus *int   `json:"response_status,omitempty"`
	AttemptCount   int    `json:"attempt_count"`
	ErrorMessage   string `json:"error_message,omitempty"`
	NextAttemptAt  *int64 `json:"next_attempt_at,omitempty"`
	DurationMs     int64  `json:"duration_ms"`
	CreatedAt      int64  `json:"created_at"`
	DeliveredAt    *int64 `json:"delivered_at,omitempty"`
}

func (a *DeliveryAttempt) Terminal() bool {
	return a.Status == DeliveryDelivered || a.Status == DeliveryFailed
}
