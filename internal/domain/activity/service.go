// Package activity keeps a per-tenant log of imports and case lookups.
package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rpggio/deskview/internal/identity"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

var (
	// ErrForbidden is returned when the session's role may not read the log.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput is returned for malformed list options.
	ErrInvalidInput = errors.New("invalid input")
)

// Readers are the roles allowed to read the activity log.
var Readers = []identity.Role{identity.RoleAdmin, identity.RoleSecurityOfficer}

// Service records and lists activity.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Record logs entry for the session's tenant. Failures are logged and
// otherwise ignored so that the audited operation is never blocked.
func (s *Service) Record(ctx context.Context, sess identity.Session, entry Entry) {
	entry.TenantID = sess.TenantID
	if entry.UserID == "" {
		entry.UserID = sess.UserID
	}
	if entry.At.IsZero() {
		entry.At = s.now().UTC()
	}
	if err := s.repo.Log(context.WithoutCancel(ctx), sess.TenantID, &entry); err != nil {
		s.logger.Warn("failed to record activity", "tenant_id", sess.TenantID, "type", entry.Type, "error", err)
	}
}

// Recent lists the tenant's activity, newest first.
func (s *Service) Recent(ctx context.Context, sess identity.Session, opts ListOptions) ([]Entry, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if !slices.Contains(Readers, sess.Role) {
		return nil, fmt.Errorf("%w: role %s may not read activity", ErrForbidden, sess.Role)
	}
	if opts.Type != nil && !opts.Type.Known() {
		return nil, fmt.Errorf("%w: unknown activity type %q", ErrInvalidInput, *opts.Type)
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidInput)
	}
	if opts.Limit == 0 {
		opts.Limit = defaultLimit
	}
	opts.Limit = min(opts.Limit, maxLimit)

	entries, err := s.repo.List(ctx, sess.TenantID, opts)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
