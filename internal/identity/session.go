// Package identity resolves bearer credentials into an explicit Session that
// is passed to every service call.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnauthorized indicates missing, invalid, or expired credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Role selects which screens a user may see.
type Role string

const (
	RoleAdmin            Role = "admin"
	RoleSecurityOfficer  Role = "security_officer"
	RoleVisitCoordinator Role = "visit_coordinator"
	RoleHost             Role = "host"
	RolePortfolioManager Role = "portfolio_manager"
	RoleExportAnalyst    Role = "export_analyst"
	RoleReportViewer     Role = "report_viewer"
)

// KnownRoles lists every role the system understands.
var KnownRoles = []Role{
	RoleAdmin,
	RoleSecurityOfficer,
	RoleVisitCoordinator,
	RoleHost,
	RolePortfolioManager,
	RoleExportAnalyst,
	RoleReportViewer,
}

// Known reports whether r is one of KnownRoles.
func (r Role) Known() bool {
	for _, k := range KnownRoles {
		if r == k {
			return true
		}
	}
	return false
}

// Session is the authenticated caller. It is resolved once at the transport
// boundary and then passed explicitly.
type Session struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Validate checks the fields every service relies on.
func (s Session) Validate() error {
	switch {
	case strings.TrimSpace(s.ID) == "":
		return fmt.Errorf("%w: session id missing", ErrUnauthorized)
	case strings.TrimSpace(s.TenantID) == "":
		return fmt.Errorf("%w: tenant missing", ErrUnauthorized)
	case !s.Role.Known():
		return fmt.Errorf("%w: unknown role %q", ErrUnauthorized, s.Role)
	}
	return nil
}

// Resolver turns a bearer token into a Session.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Session, error)
}

// StaticResolver returns the same session for every token. It backs stdio
// mode and deployments with auth disabled.
type StaticResolver struct {
	Session Session
}

// Resolve returns the configured session.
func (r StaticResolver) Resolve(_ context.Context, _ string) (Session, error) {
	if err := r.Session.Validate(); err != nil {
		return Session{}, err
	}
	return r.Session, nil
}

// ChainResolver routes JWT-shaped tokens to JWT and everything else to
// APIKeys.
type ChainResolver struct {
	JWT     Resolver
	APIKeys Resolver
}

// Resolve dispatches on the token shape.
func (r ChainResolver) Resolve(ctx context.Context, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}
	if strings.Count(token, ".") == 2 && r.JWT != nil {
		return r.JWT.Resolve(ctx, token)
	}
	if r.APIKeys != nil {
		return r.APIKeys.Resolve(ctx, token)
	}
	return Session{}, fmt.Errorf("%w: no resolver for token", ErrUnauthorized)
}
