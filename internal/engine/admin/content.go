package admin

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"worksphere/internal/pkg/errors"
	"worksphere/internal/platform/models"
)

type AlertInput struct {
	Severity string `json:"severity" validate:"required,oneof=info warning critical"`
	Title    string `json:"title" validate:"required,max=200"`
	Message  string `json:"message" validate:"max=2000"`
}

type FeatureFlagInput struct {
	Key               string `json:"key" validate:"required,max=64"`
	Description       string `json:"description" validate:"max=500"`
	Enabled           bool   `json:"enabled"`
	RolloutPercentage int    `json:"rollout_percentage" validate:"min=0,max=100"`
}

type AnnouncementInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	Body     string `json:"body"`
	Audience string `json:"audience" validate:"omitempty,oneof=all admins"`
}

type AnnouncementPatch struct {
	Title    *string `json:"title,omitempty"`
	Body     *string `json:"body,omitempty"`
	Audience *string `json:"audience,omitempty"`
}

func (f *Facade) CreateAlert(ctx context.Context, actor Actor, in AlertInput) (*models.Alert, error) {
	if err := f.validate.Struct(in); err != nil {
		return nil, err
	}

	alert := &models.Alert{
		ID:             "alert_" + uuid.New().String(),
		OrganizationID: actor.OrgID,
		Severity:       in.Severity,
		Title:          in.Title,
		Message:        in.Message,
		Status:         models.AlertOpen,
		CreatedAt:      f.now().Unix(),
	}
	err := f.audited(ctx, actor, "alert.create", func(ctx context.Context) (auditTarget, error) {
		if err := f.alerts.Create(ctx, alert); err != nil {
			return auditTarget{}, fmt.Errorf("create alert: %w", err)
		}
		return auditTarget{"alert", alert.ID, map[string]interface{}{
			"severity": alert.Severity,
			"title":    alert.Title,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// ResolveAlert marks the alert resolved. Resolving a resolved alert keeps
// the original resolution time.
func (f *Facade) ResolveAlert(ctx context.Context, actor Actor, id string) (*models.Alert, error) {
	alert, err := f.alerts.GetByID(ctx, actor.OrgID, id)
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	if alert == nil {
		return nil, errors.NewNotFoundError("alert", id)
	}

	err = f.audited(ctx, actor, "alert.resolve", func(ctx context.Context) (auditTarget, error) {
		if alert.Status != models.AlertResolved {
			now := f.now().Unix()
			if err := f.alerts.Resolve(ctx, actor.OrgID, id, now); err != nil {
				return auditTarget{}, fmt.Errorf("resolve alert: %w", err)
			}
			alert.Status = models.AlertResolved
			alert.ResolvedAt = &now
		}
		return auditTarget{"alert", alert.ID, map[string]interface{}{"status": alert.Status}}, nil
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func (f *Facade) ListAlerts(ctx context.Context, actor Actor, status string) ([]*models.Alert, error) {
	if status != "" && status != models.AlertOpen && status != models.AlertResolved {
		return nil, errors.NewFieldError("status", "must be one of: open resolved")
	}
	return f.alerts.List(ctx, actor.OrgID, status)
}

func (f *Facade) UpsertFeatureFlag(ctx context.Context, actor Actor, in FeatureFlagInput) (*models.FeatureFlag, error) {
	if err := f.validate.Struct(in); err != nil {
		return nil, err
	}

	now := f.now().Unix()
	var flag *models.FeatureFlag
	err := f.audited(ctx, actor, "feature_flag.upsert", func(ctx context.Context) (auditTarget, error) {
		var err error
		flag, err = f.flags.Upsert(ctx, &models.FeatureFlag{
			ID:                "flag_" + uuid.New().String(),
			OrganizationID:    actor.OrgID,
			Key:               in.Key,
			Description:       in.Description,
			Enabled:           in.Enabled,
			RolloutPercentage: in.RolloutPercentage,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		if err != nil {
			return auditTarget{}, fmt.Errorf("upsert feature flag: %w", err)
		}
		return auditTarget{"feature_flag", flag.ID, map[string]interface{}{
			"key":                flag.Key,
			"enabled":            flag.Enabled,
			"rollout_percentage": flag.RolloutPercentage,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return flag, nil
}

func (f *Facade) DeleteFeatureFlag(ctx context.Context, actor Actor, key string) error {
	flag, err := f.flags.GetByKey(ctx, actor.OrgID, key)
	if err != nil {
		return fmt.Errorf("get feature flag: %w", err)
	}
	if flag == nil {
		return errors.NewNotFoundError("feature flag", key)
	}
	return f.audited(ctx, actor, "feature_flag.delete", func(ctx context.Context) (auditTarget, error) {
		if _, err := f.flags.Delete(ctx, actor.OrgID, key); err != nil {
			return auditTarget{}, fmt.Errorf("delete feature flag: %w", err)
		}
		return auditTarget{"feature_flag", flag.ID, map[string]interface{}{"key": key}}, nil
	})
}

func (f *Facade) ListFeatureFlags(ctx context.Context, actor Actor) ([]*models.FeatureFlag, error) {
	return f.flags.List(ctx, actor.OrgID)
}

func (f *Facade) CreateAnnouncement(ctx context.Context, actor Actor, in AnnouncementInput) (*models.Announcement, error) {
	if err := f.validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Audience == "" {
		in.Audience = "all"
	}

	now := f.now().Unix()
	a := &models.Announcement{
		ID:             "ann_" + uuid.New().String(),
		OrganizationID: actor.OrgID,
		Title:          in.Title,
		Body:           in.Body,
		Audience:       in.Audience,
		Status:         models.AnnouncementDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := f.audited(ctx, actor, "announcement.create", func(ctx context.Context) (auditTarget, error) {
		if err := f.announcements.Create(ctx, a); err != nil {
			return auditTarget{}, fmt.Errorf("create announcement: %w", err)
		}
		return auditTarget{"announcement", a.ID, map[string]interface{}{
			"title":    a.Title,
			"audience": a.Audience,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (f *Facade) UpdateAnnouncement(ctx context.Context, actor Actor, id string, patch AnnouncementPatch) (*models.Announcement, error) {
	a, err := f.getAnnouncement(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if a.Status == models.AnnouncementArchived {
		return nil, errors.NewFieldError("status", "archived announcements cannot be edited")
	}

	if patch.Title != nil {
		a.Title = *patch.Title
	}
	if patch.Body != nil {
		a.Body = *patch.Body
	}
	if patch.Audience != nil {
		a.Audience = *patch.Audience
	}
	if err := f.validate.Struct(AnnouncementInput{Title: a.Title, Body: a.Body, Audience: a.Audience}); err != nil {
		return nil, err
	}

	a.UpdatedAt = f.now().Unix()
	err = f.audited(ctx, actor, "announcement.update", func(ctx context.Context) (auditTarget, error) {
		if err := f.announcements.Update(ctx, a); err != nil {
			return auditTarget{}, fmt.Errorf("update announcement: %w", err)
		}
		return auditTarget{"announcement", a.ID, map[string]interface{}{
			"title":    a.Title,
			"audience": a.Audience,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (f *Facade) PublishAnnouncement(ctx context.Context, actor Actor, id string) (*models.Announcement, error) {
	return f.transitionAnnouncement(ctx, actor, id, models.AnnouncementPublished, "announcement.publish")
}

func (f *Facade) ArchiveAnnouncement(ctx context.Context, actor Actor, id string) (*models.Announcement, error) {
	return f.transitionAnnouncement(ctx, actor, id, models.AnnouncementArchived, "announcement.archive")
}

func (f *Facade) transitionAnnouncement(ctx context.Context, actor Actor, id, status, action string) (*models.Announcement, error) {
	a, err := f.getAnnouncement(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if a.Status == models.AnnouncementArchived && status == models.AnnouncementPublished {
		return nil, errors.NewFieldError("status", "archived announcements cannot be published")
	}

	now := f.now().Unix()
	if status == models.AnnouncementPublished && a.PublishedAt == nil {
		a.PublishedAt = &now
	}
	a.Status = status
	a.UpdatedAt = now
	err = f.audited(ctx, actor, action, func(ctx context.Context) (auditTarget, error) {
		if err := f.announcements.Update(ctx, a); err != nil {
			return auditTarget{}, fmt.Errorf("update announcement: %w", err)
		}
		return auditTarget{"announcement", a.ID, map[string]interface{}{"status": a.Status}}, nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (f *Facade) getAnnouncement(ctx context.Context, actor Actor, id string) (*models.Announcement, error) {
	a, err := f.announcements.GetByID(ctx, actor.OrgID, id)
	if err != nil {
		return nil, fmt.Errorf("get announcement: %w", err)
	}
	if a == nil {
		return nil, errors.NewNotFoundError("announcement", id)
	}
	return a, nil
}

func (f *Facade) ListAnnouncements(ctx context.Context, actor Actor, status string) ([]*models.Announcement, error) {
	return f.announcements.List(ctx, actor.OrgID, status)
}
