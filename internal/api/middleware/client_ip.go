package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	apiContext "worksphere/internal/api/context"
)

// ClientIP resolves the address a request came from. X-Forwarded-For is
// only read when the direct peer is a configured trusted proxy; the client
// is then the right-most untrusted hop.
type ClientIP struct {
	trusted []*net.IPNet
}

// NewClientIP parses trusted proxies given as single addresses or CIDR
// ranges. An empty list trusts no proxy.
func NewClientIP(trusted []string) (*ClientIP, error) {
	c := &ClientIP{}
	for _, entry := range trusted {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			entry = fmt.Sprintf("%s/%d", ip.String(), bits)
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		c.trusted = append(c.trusted, network)
	}
	return c, nil
}

func (c *ClientIP) isTrusted(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, network := range c.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolve returns the client address of r.
func (c *ClientIP) Resolve(r *http.Request) string {
	peer := peerIP(r)
	if !c.isTrusted(peer) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !c.isTrusted(hop) {
			return hop
		}
	}
	return peer
}

// Handle stores the resolved client address on the request context.
func (c *ClientIP) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), apiContext.ClientIP, c.Resolve(r))
		next(w, r.WithContext(ctx))
	}
}

// RemoteIP returns the address resolved by ClientIP.Handle, or the direct
// peer when the request did not pass through it.
func RemoteIP(r *http.Request) string {
	if ip, ok := r.Context().Value(apiContext.ClientIP).(string); ok && ip != "" {
		return ip
	}
	return peerIP(r)
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
