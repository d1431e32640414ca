package models

const (
	AlertOpen     = "open"
	AlertResolved = "resolved"

	AnnouncementDraft     = "draft"
	AnnouncementPublished = "published"
	AnnouncementArchived  = "archived"
)

type Alert struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Severity       string `json:"severity"` // info, warning, critical
	Title          string `json:"title"`
	Message        string `json:"message"`
	Status         string `json:"status"`
	CreatedAt      int64  `json:"created_at"`
	ResolvedAt     *int64 `json:"resolved_at,omitempty"`
}

type FeatureFlag struct {
	ID                string `json:"id"`
	OrganizationID    string `json:"organization_id"`
	Key               string `json:"key"`
	Description       string `json:"description"`
	Enabled           bool   `json:"enabled"`
	RolloutPercentage int    `json:"rollout_percentage"`
	CreatedAt         int64  `json:"created_at"`
	UpdatedAt         int64  `json:"updated_at"`
}

type Announcement struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	Audience       string `json:"audience"` // all, admins
	Status         string `json:"status"`
	PublishedAt    *int64 `json:"published_at,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

type AuditLog struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	AdminID        string                 `json:"admin_id"`
	Action         string                 `json:"action"`
	EntityType     string                 `json:"entity_type"`
	EntityID       string                 `json:"entity_id"`
	NewValues      map[string]interface{} `json:"new_values"`
	IPAddress      string                 `json:"ip_address"`
	UserAgent      string                 `json:"user_agent"`
	CreatedAt      int64                  `json:"created_at"`
}
