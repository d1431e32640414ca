package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "worksphere/internal/api/context"
	"worksphere/internal/api/handlers"
	"worksphere/internal/api/middleware"
	"worksphere/internal/platform/models"
)

type Dependencies struct {
	AuthHandler    *handlers.AuthHandler
	OrgHandler     *handlers.OrgHandler
	WebhookHandler *handlers.WebhookHandler
	EventHandler   *handlers.EventHandler
	AdminHandler   *handlers.AdminHandler
	AuditHandler   *handlers.AuditHandler
	HealthHandler  *handlers.HealthHandler
	// MetricsHandler is optional; nil leaves /metrics unrouted.
	MetricsHandler   *handlers.MetricsHandler
	MetricsPath      string
	AuthMiddleware   *middleware.AuthMiddleware
	TenantMiddleware *middleware.TenantMiddleware
	RateLimiter      *middleware.RateLimiter
	// ClientIP is optional; nil ignores X-Forwarded-For.
	ClientIP         *middleware.ClientIP
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	clientIP := deps.ClientIP
	if clientIP == nil {
		clientIP = &middleware.ClientIP{}
	}
	route := func(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
		return chain(handler, append([]func(http.HandlerFunc) http.HandlerFunc{clientIP.Handle}, middlewares...)...)
	}

	router := httprouter.New()

	router.GET("/health", wrap(deps.HealthHandler.Check))
	if deps.MetricsHandler != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, wrap(deps.MetricsHandler.Export))
	}

	rl := deps.RateLimiter

	// Authentication routes
	router.POST("/api/v1/auth/login",
		route(deps.AuthHandler.Login, rl.Limit(middleware.LimitAPIWrite)))
	router.POST("/api/v1/auth/refresh",
		route(deps.AuthHandler.Refresh, rl.Limit(middleware.LimitAPIWrite)))

	// Middleware references
	authMid := deps.AuthMiddleware
	tenantMid := deps.TenantMiddleware
	read := rl.Limit(middleware.LimitAPIRead)
	write := rl.Limit(middleware.LimitAPIWrite)
	orgAdmin := requireRole(models.RoleAdmin, models.RoleOwner, models.RolePlatformAdmin)
	platformAdmin := requireRole(models.RolePlatformAdmin)

	router.GET("/api/v1/organizations/current",
		route(deps.OrgHandler.GetCurrent, authMid.Handle, tenantMid.Handle, read))
	router.GET("/api/v1/users/me",
		route(deps.OrgHandler.Me, authMid.Handle, tenantMid.Handle, read))

	// Webhook endpoints
	wh := deps.WebhookHandler
	router.POST("/api/v1/webhooks",
		route(wh.Create, authMid.Handle, tenantMid.Handle, orgAdmin, write))
	router.GET("/api/v1/webhooks",
		route(wh.List, authMid.Handle, tenantMid.Handle, orgAdmin, read))
	router.GET("/api/v1/webhooks/:webhook_id",
		route(wh.Get, authMid.Handle, tenantMid.Handle, orgAdmin, read))
	router.PATCH("/api/v1/webhooks/:webhook_id",
		route(wh.Update, authMid.Handle, tenantMid.Handle, orgAdmin, write))
	router.DELETE("/api/v1/webhooks/:webhook_id",
		route(wh.Delete, authMid.Handle, tenantMid.Handle, orgAdmin, write))
	router.POST("/api/v1/webhooks/:webhook_id/test",
		route(wh.Test, authMid.Handle, tenantMid.Handle, orgAdmin, write))
	router.POST("/api/v1/webhooks/:webhook_id/rotate-secret",
		route(wh.RotateSecret, authMid.Handle, tenantMid.Handle, orgAdmin, write))
	router.GET("/api/v1/webhooks/:webhook_id/deliveries",
		route(wh.Deliveries, authMid.Handle, tenantMid.Handle, orgAdmin, read))

	// Domain events
	router.POST("/api/v1/events",
		route(deps.EventHandler.Publish, authMid.Handle, tenantMid.Handle, rl.Limit(middleware.LimitEvents)))

	// Audit trail
	router.GET("/api/v1/audit-logs",
		route(deps.AuditHandler.List, authMid.Handle, tenantMid.Handle, orgAdmin, read))

	// Platform administration
	ad := deps.AdminHandler
	router.GET("/api/v1/admin/metrics",
		route(ad.Metrics, authMid.Handle, tenantMid.Handle, platformAdmin, read))

	router.GET("/api/v1/admin/alerts",
		route(ad.ListAlerts, authMid.Handle, tenantMid.Handle, platformAdmin, read))
	router.POST("/api/v1/admin/alerts",
		route(ad.CreateAlert, authMid.Handle, tenantMid.Handle, platformAdmin, write))
	router.POST("/api/v1/admin/alerts/:alert_id/resolve",
		route(ad.ResolveAlert, authMid.Handle, tenantMid.Handle, platformAdmin, write))

	router.GET("/api/v1/admin/feature-flags",
		route(ad.ListFeatureFlags, authMid.Handle, tenantMid.Handle, platformAdmin, read))
	router.PUT("/api/v1/admin/feature-flags/:flag_key",
		route(ad.UpsertFeatureFlag, authMid.Handle, tenantMid.Handle, platformAdmin, write))
	router.DELETE("/api/v1/admin/feature-flags/:flag_key",
		route(ad.DeleteFeatureFlag, authMid.Handle, tenantMid.Handle, platformAdmin, write))

	router.GET("/api/v1/admin/announcements",
		route(ad.ListAnnouncements, authMid.Handle, tenantMid.Handle, platformAdmin, read))
	router.POST("/api/v1/admin/announcements",
		route(ad.CreateAnnouncement, authMid.Handle, tenantMid.Handle, platformAdmin, write))
	router.PATCH("/api/v1/admin/announcements/:announcement_id",
		route(ad.UpdateAnnouncement, authMid.Handle, tenantMid.Handle, platformAdmin, write))
	router.POST("/api/v1/admin/announcements/:announcement_id/publish",
		route(ad.PublishAnnouncement, authMid.Handle, tenantMid.Handle, platformAdmin, write))
	router.POST("/api/v1/admin/announcements/:announcement_id/archive",
		route(ad.ArchiveAnnouncement, authMid.Handle, tenantMid.Handle, platformAdmin, write))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return middleware.RequireRole(roles...)
}
