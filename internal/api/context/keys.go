// Package context holds the request-context keys shared by middleware and
// handlers.
package context

// Key is a distinct type; values never collide with other packages' keys.
type Key string

const (
	// Claims holds the caller's *auth.Claims.
	Claims Key = "claims"
	// Tenant holds the *middleware.TenantContext of the caller's organization.
	Tenant Key = "tenant"
	// Params holds the httprouter.Params of the matched route.
	Params Key = "params"
	// ClientIP holds the resolved client address as a string.
	ClientIP Key = "client_ip"
)
