// Package api implements HTTP handlers and helpers for the patrol allocation service.
package api

import (
	"net/http"
	"strings"
)

type Principal struct {
	Tenant string
	Role   string // admin, dispatcher, officer, viewer
}

// getPrincipal extracts tenant and role from JWT or headers.
// - If Authorization: Bearer is present, uses configured verifier (dev/hmac/jwks).
// - Else falls back to headers for dev.
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		pr, err := s.Auth.Verify(tok)
		if err == nil {
			return Principal{Tenant: pr.Tenant, Role: pr.Role}
		}
		s.Log.Debug().Err(err).Msg("bearer token rejected, falling back to headers")
	}
	tenant := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
	role := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Role")))
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

// CanReport reports whether the principal may record incidents.
func (p Principal) CanReport() bool { return p.IsAdmin() || p.Role == "dispatcher" }
