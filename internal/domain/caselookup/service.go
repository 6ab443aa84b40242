// Package caselookup finds export-control cases by number.
package caselookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/rpggio/deskview/internal/domain/activity"
	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/source"
	"github.com/rpggio/deskview/internal/view"
)

const (
	maxSuggestions = 3
	maxDistance    = 2
)

// ErrForbidden is returned when the session's role may not look up cases.
var ErrForbidden = errors.New("forbidden")

// State is the outcome of a lookup.
type State string

const (
	StateFound    State = "found"
	StateNotFound State = "not_found"
	StateInvalid  State = "invalid"
	StateError    State = "error"
)

// EmptyInputError is returned for a blank case number on explicit submit.
type EmptyInputError struct{}

func (EmptyInputError) Error() string { return "Enter a case number to search." }

// NotFoundError is returned when no case has the requested number.
type NotFoundError struct {
	Number string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("No case found with number %q.", e.Number)
}

// Result is what the screen renders. Errors never escape as Go errors.
type Result struct {
	State       State       `json:"state"`
	Number      string      `json:"number"`
	Message     string      `json:"message,omitempty"`
	Case        view.Record `json:"case,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty"`
}

// Backend reads cases from the collaborator.
type Backend interface {
	Get(ctx context.Context, sess identity.Session, path string) (view.Record, error)
	List(ctx context.Context, sess identity.Session, path, envelope string) ([]view.Record, error)
}

// Recorder logs tenant activity.
type Recorder interface {
	Record(ctx context.Context, sess identity.Session, entry activity.Entry)
}

// Config locates cases on the backend.
type Config struct {
	Path        string
	Envelope    string
	NumberField string
	Roles       []identity.Role
	// Activity, when set, receives an entry for every submitted number.
	Activity Recorder
}

// Service performs case lookups.
type Service struct {
	backend Backend
	cfg     Config
	logger  *slog.Logger
}

// NewService creates a Service.
func NewService(backend Backend, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Path == "" {
		cfg.Path = "/cases"
	}
	if cfg.NumberField == "" {
		cfg.NumberField = "number"
	}
	return &Service{backend: backend, cfg: cfg, logger: logger}
}

// Allowed reports whether role may look up cases.
func (s *Service) Allowed(role identity.Role) bool {
	return slices.Contains(s.cfg.Roles, role)
}

// Lookup finds the case with number. Only ErrForbidden and context errors
// are returned; everything else is a Result state.
func (s *Service) Lookup(ctx context.Context, sess identity.Session, number string) (Result, error) {
	if err := sess.Validate(); err != nil {
		return Result{}, err
	}
	if !s.Allowed(sess.Role) {
		return Result{}, fmt.Errorf("%w: role %s may not look up cases", ErrForbidden, sess.Role)
	}

	number = strings.TrimSpace(number)
	if number == "" {
		return Result{State: StateInvalid, Message: EmptyInputError{}.Error()}, nil
	}

	res, err := s.lookup(ctx, sess, number)
	if err == nil {
		s.record(ctx, sess, res)
	}
	return res, err
}

func (s *Service) lookup(ctx context.Context, sess identity.Session, number string) (Result, error) {
	path := strings.TrimRight(s.cfg.Path, "/") + "/" + url.PathEscape(number)
	rec, err := s.backend.Get(ctx, sess, path)
	switch {
	case err == nil:
		return Result{State: StateFound, Number: number, Case: rec}, nil
	case ctx.Err() != nil:
		return Result{}, ctx.Err()
	case errors.Is(err, source.ErrNotFound):
		return Result{
			State:       StateNotFound,
			Number:      number,
			Message:     NotFoundError{Number: number}.Error(),
			Suggestions: s.suggest(ctx, sess, number),
		}, nil
	default:
		s.logger.Warn("case lookup failed", "tenant_id", sess.TenantID, "number", number, "error", err)
		return Result{State: StateError, Number: number, Message: message(err)}, nil
	}
}

func (s *Service) record(ctx context.Context, sess identity.Session, res Result) {
	if s.cfg.Activity == nil {
		return
	}
	s.cfg.Activity.Record(ctx, sess, activity.Entry{
		Type:    activity.TypeCaseLookup,
		Summary: fmt.Sprintf("%s %s", res.Number, res.State),
		Details: res.Message,
	})
}

// suggest returns up to three close case numbers. Failures yield none.
func (s *Service) suggest(ctx context.Context, sess identity.Session, number string) []string {
	records, err := s.backend.List(ctx, sess, s.cfg.Path, s.cfg.Envelope)
	if err != nil {
		s.logger.Debug("case suggestions unavailable", "tenant_id", sess.TenantID, "error", err)
		return nil
	}

	type candidate struct {
		number   string
		distance int
	}
	want := strings.ToUpper(number)
	seen := make(map[string]bool)
	var candidates []candidate
	for _, rec := range records {
		n, ok := rec.Lookup(s.cfg.NumberField)
		if !ok || n == "" || seen[n] {
			continue
		}
		seen[n] = true
		d := levenshtein.ComputeDistance(want, strings.ToUpper(n))
		if d > 0 && d <= maxDistance {
			candidates = append(candidates, candidate{number: n, distance: d})
		}
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		if a.distance != b.distance {
			return a.distance - b.distance
		}
		return strings.Compare(a.number, b.number)
	})

	out := make([]string, 0, min(len(candidates), maxSuggestions))
	for _, c := range candidates[:min(len(candidates), maxSuggestions)] {
		out = append(out, c.number)
	}
	return out
}

// message returns the user-facing text of a fetch failure.
func message(err error) string {
	var fe *source.FetchError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	return err.Error()
}
