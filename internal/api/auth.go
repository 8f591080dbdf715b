// Package api implements the HTTP surface of the fleet planning service.
package api

import (
	"net/http"
	"strings"
)

// Principal is the caller identity resolved for one request.
type Principal struct {
	Tenant  string
	Role    string // admin, dispatcher, viewer
	Subject string
}

// getPrincipal extracts tenant and role from the bearer token or headers.
// - If Authorization: Bearer is present, uses the configured verifier
//   (dev/hmac/jwks).
// - Else falls back to X-Tenant-Id / X-Role headers for local development.
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return Principal{Tenant: pr.Tenant, Role: pr.Role, Subject: pr.Subject}
		}
	}
	tenant := r.Header.Get("X-Tenant-Id")
	role := r.Header.Get("X-Role")
	if tenant == "" {
		tenant = "t_demo"
	}
	if role == "" {
		role = "admin"
	}
	return Principal{Tenant: tenant, Role: role}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }
