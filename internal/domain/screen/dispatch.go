package screen

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/source"
	"github.com/rpggio/deskview/internal/view"
)

// Factory builds a screen instance for a session.
type Factory func(sess identity.Session, screenID string) (*Instance, error)

type roleEntry struct {
	home    string
	screens []Screen
	factory Factory
}

// Dispatch maps each role to the factory that builds its screens.
type Dispatch struct {
	catalog *Catalog
	roles   map[identity.Role]roleEntry
}

// NewDispatch builds the role table from cat. Instances fetch through
// backend.
func NewDispatch(cat *Catalog, backend source.Lister, logger *slog.Logger) *Dispatch {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := &Dispatch{catalog: cat, roles: make(map[identity.Role]roleEntry, len(cat.Roles))}
	for role, rs := range cat.Roles {
		allowed := make(map[string]Screen, len(rs.Screens))
		screens := make([]Screen, 0, len(rs.Screens))
		for _, id := range rs.Screens {
			if s, ok := cat.Screen(id); ok {
				allowed[id] = s
				screens = append(screens, s)
			}
		}
		d.roles[role] = roleEntry{
			home:    rs.Home,
			screens: screens,
			factory: newFactory(allowed, backend, logger),
		}
	}
	return d
}

func newFactory(allowed map[string]Screen, backend source.Lister, logger *slog.Logger) Factory {
	return func(sess identity.Session, screenID string) (*Instance, error) {
		s, ok := allowed[screenID]
		if !ok {
			return nil, fmt.Errorf("%w: role %s may not open %s", ErrForbidden, sess.Role, screenID)
		}
		src := source.Endpoint{Client: backend, Session: sess, Path: s.Path, Envelope: s.Envelope}
		id := uuid.NewString()
		ctrl := view.NewController(s.Schema, src, logger.With("screen", s.ID, "instance", id))
		if s.DefaultSort.Key != "" {
			ctrl.SetSort(s.DefaultSort)
		}
		inst := &Instance{
			ID:         id,
			Screen:     s,
			Session:    sess,
			Controller: ctrl,
		}
		inst.touch(time.Now())
		return inst, nil
	}
}

// Factory returns the factory for role.
func (d *Dispatch) Factory(role identity.Role) (Factory, error) {
	entry, ok := d.roles[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return entry.factory, nil
}

// Build resolves the session's factory and builds screenID.
func (d *Dispatch) Build(sess identity.Session, screenID string) (*Instance, error) {
	if _, ok := d.catalog.Screen(screenID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScreen, screenID)
	}
	factory, err := d.Factory(sess.Role)
	if err != nil {
		return nil, err
	}
	return factory(sess, screenID)
}

// Home returns the landing screen and visible screens of role.
func (d *Dispatch) Home(role identity.Role) (Home, error) {
	entry, ok := d.roles[role]
	if !ok {
		return Home{}, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	home := Home{Role: role, Home: entry.home, Screens: make([]Descriptor, 0, len(entry.screens))}
	for _, s := range entry.screens {
		home.Screens = append(home.Screens, s.Describe())
	}
	return home, nil
}

// Visible returns the screens role may open.
func (d *Dispatch) Visible(role identity.Role) ([]Descriptor, error) {
	home, err := d.Home(role)
	if err != nil {
		return nil, err
	}
	return home.Screens, nil
}

// Screen returns screenID if role may open it.
func (d *Dispatch) Screen(role identity.Role, screenID string) (Screen, error) {
	s, ok := d.catalog.Screen(screenID)
	if !ok {
		return Screen{}, fmt.Errorf("%w: %s", ErrUnknownScreen, screenID)
	}
	entry, ok := d.roles[role]
	if !ok {
		return Screen{}, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	for _, allowed := range entry.screens {
		if allowed.ID == screenID {
			return s, nil
		}
	}
	return Screen{}, fmt.Errorf("%w: role %s may not open %s", ErrForbidden, role, screenID)
}
