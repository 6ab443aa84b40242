// Package screen mounts role-gated dashboards for sessions. Each mounted
// instance owns its own view controller and data source.
package screen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rpggio/deskview/internal/domain/activity"
	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/view"
)

// Uploader sends bulk-import files to the backend.
type Uploader interface {
	Upload(ctx context.Context, sess identity.Session, path, filename string, content io.Reader) error
}

// Recorder logs tenant activity. Implementations must not block on failure.
type Recorder interface {
	Record(ctx context.Context, sess identity.Session, entry activity.Entry)
}

// Instance is one mounted screen for one session.
type Instance struct {
	ID         string
	Screen     Screen
	Session    identity.Session
	Controller *view.Controller

	lastUsed atomic.Int64
}

func (i *Instance) touch(now time.Time) {
	i.lastUsed.Store(now.UnixNano())
}

// LastUsed reports when the instance was last accessed.
func (i *Instance) LastUsed() time.Time {
	return time.Unix(0, i.lastUsed.Load())
}

// View renders page of the instance.
func (i *Instance) View(page view.Page) View {
	snap := i.Controller.Snapshot(page)
	v := View{
		InstanceID: i.ID,
		Screen:     i.Screen.Describe(),
		Rows:       snap.Rows,
		Page:       snap.Page,
		Filters:    snap.Criteria.Values,
		Search:     snap.Criteria.Search,
		Sort:       snap.Sort,
		Loading:    snap.Loading,
		Loaded:     snap.Loaded,
		Error:      snap.Error,
	}
	if !snap.FetchedAt.IsZero() {
		at := snap.FetchedAt
		v.FetchedAt = &at
	}
	return v
}

// instanceKey scopes instances to one tenant and user. Session ids are
// only unique per credential issuer.
type instanceKey struct {
	tenant  string
	user    string
	session string
	screen  string
}

func keyOf(sess identity.Session, screenID string) instanceKey {
	return instanceKey{tenant: sess.TenantID, user: sess.UserID, session: sess.ID, screen: screenID}
}

// Options configures a Service.
type Options struct {
	IdleTimeout time.Duration
	// Activity, when set, receives an entry for every import.
	Activity Recorder
}

// Service keeps the mounted instances of every session.
type Service struct {
	dispatch *Dispatch
	uploader Uploader
	logger   *slog.Logger
	opts     Options
	now      func() time.Time

	mu        sync.Mutex
	instances map[instanceKey]*Instance
}

// NewService creates a Service.
func NewService(dispatch *Dispatch, uploader Uploader, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}
	return &Service{
		dispatch:  dispatch,
		uploader:  uploader,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
		instances: make(map[instanceKey]*Instance),
	}
}

// Dispatch returns the role table the service builds instances from.
func (s *Service) Dispatch() *Dispatch {
	return s.dispatch
}

// Home returns the landing screen and visible screens of role.
func (s *Service) Home(role identity.Role) (Home, error) {
	return s.dispatch.Home(role)
}

// Visible returns the descriptors of the screens role may open.
func (s *Service) Visible(role identity.Role) ([]Descriptor, error) {
	return s.dispatch.Visible(role)
}

// Open returns the session's instance of screenID, mounting it and running
// the first fetch when needed. Fetch failures are reported in the view,
// not as an error.
func (s *Service) Open(ctx context.Context, sess identity.Session, screenID string) (*Instance, error) {
	inst, err := s.mount(sess, screenID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureLoaded(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (s *Service) mount(sess identity.Session, screenID string) (*Instance, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.dispatch.Screen(sess.Role, screenID); err != nil {
		return nil, err
	}

	key := keyOf(sess, screenID)
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[key]
	if ok && !sameOwner(inst.Session, sess) {
		return nil, fmt.Errorf("%w: %s is mounted for another caller", ErrForbidden, screenID)
	}
	if !ok {
		var err error
		inst, err = s.dispatch.Build(sess, screenID)
		if err != nil {
			return nil, err
		}
		s.instances[key] = inst
		s.logger.Info("screen mounted",
			"screen", screenID,
			"instance", inst.ID,
			"tenant_id", sess.TenantID,
			"session_id", sess.ID,
		)
	}
	inst.touch(s.now())
	return inst, nil
}

func sameOwner(a, b identity.Session) bool {
	return a.TenantID == b.TenantID && a.UserID == b.UserID
}

// ensureLoaded runs the first fetch of an instance. Later loads only
// happen through Refresh.
func (s *Service) ensureLoaded(ctx context.Context, inst *Instance) error {
	snap := inst.Controller.Snapshot(view.Page{Size: 1})
	if snap.Loaded || snap.Error != "" {
		return nil
	}
	return s.refresh(ctx, inst)
}

// Get returns a mounted instance without fetching.
func (s *Service) Get(sess identity.Session, screenID string) (*Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[keyOf(sess, screenID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, screenID)
	}
	inst.touch(s.now())
	return inst, nil
}

// Refresh refetches the instance data. Overlapping refreshes share one
// fetch.
func (s *Service) Refresh(ctx context.Context, sess identity.Session, screenID string) (*Instance, error) {
	inst, err := s.mount(sess, screenID)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (s *Service) refresh(ctx context.Context, inst *Instance) error {
	return s.settle(ctx, inst, inst.Controller.Refresh(ctx))
}

// settle returns only errors that are not fetch failures.
func (s *Service) settle(ctx context.Context, inst *Instance, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, view.ErrClosed):
		return fmt.Errorf("%w: %s", ErrNotOpen, inst.Screen.ID)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		// Fetch failures live in the view's error field.
		return nil
	}
}

// Import uploads content to the screen's import endpoint, then refreshes
// the instance. Upload failures are reported in the result.
func (s *Service) Import(ctx context.Context, sess identity.Session, screenID, filename string, content io.Reader) (*Instance, ImportResult, error) {
	scr, err := s.dispatch.Screen(sess.Role, screenID)
	if err != nil {
		return nil, ImportResult{}, err
	}
	if !scr.Importable() {
		return nil, ImportResult{}, fmt.Errorf("%w: %s", ErrNotImportable, screenID)
	}
	inst, err := s.mount(sess, screenID)
	if err != nil {
		return nil, ImportResult{}, err
	}

	result := ImportResult{Filename: filename}
	if err := s.uploader.Upload(ctx, sess, scr.ImportPath, filename, content); err != nil {
		if ctx.Err() != nil {
			return nil, ImportResult{}, ctx.Err()
		}
		s.logger.Warn("import failed", "screen", screenID, "tenant_id", sess.TenantID, "error", err)
		result.Error = err.Error()
		s.record(ctx, sess, activity.Entry{
			Type:    activity.TypeImportFailed,
			Screen:  screenID,
			Summary: filename,
			Details: result.Error,
		})
		return inst, result, nil
	}
	result.Uploaded = true
	s.logger.Info("import uploaded", "screen", screenID, "tenant_id", sess.TenantID, "filename", filename)
	s.record(ctx, sess, activity.Entry{Type: activity.TypeImportUploaded, Screen: screenID, Summary: filename})

	// A fetch already in flight may predate the upload.
	if err := s.settle(ctx, inst, inst.Controller.Reload(ctx)); err != nil {
		return nil, ImportResult{}, err
	}
	return inst, result, nil
}

func (s *Service) record(ctx context.Context, sess identity.Session, entry activity.Entry) {
	if s.opts.Activity != nil {
		s.opts.Activity.Record(ctx, sess, entry)
	}
}

// Close unmounts the session's instance of screenID.
func (s *Service) Close(sess identity.Session, screenID string) error {
	key := keyOf(sess, screenID)
	s.mu.Lock()
	inst, ok := s.instances[key]
	delete(s.instances, key)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotOpen, screenID)
	}
	inst.Controller.Close()
	s.logger.Info("screen unmounted", "screen", screenID, "instance", inst.ID, "session_id", sess.ID)
	return nil
}

// Sweep unmounts instances idle longer than the idle timeout and returns
// how many were removed.
func (s *Service) Sweep(now time.Time) int {
	cutoff := now.Add(-s.opts.IdleTimeout)
	var evicted []*Instance

	s.mu.Lock()
	for key, inst := range s.instances {
		if inst.LastUsed().Before(cutoff) {
			delete(s.instances, key)
			evicted = append(evicted, inst)
		}
	}
	s.mu.Unlock()

	for _, inst := range evicted {
		inst.Controller.Close()
		s.logger.Debug("screen evicted", "screen", inst.Screen.ID, "instance", inst.ID, "session_id", inst.Session.ID)
	}
	return len(evicted)
}

// Run sweeps idle instances every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.logger.Info("evicted idle screens", "count", n)
			}
		}
	}
}

// Shutdown unmounts every instance.
func (s *Service) Shutdown() {
	s.mu.Lock()
	instances := s.instances
	s.instances = make(map[instanceKey]*Instance)
	s.mu.Unlock()
	for _, inst := range instances {
		inst.Controller.Close()
	}
}

// Len reports how many instances are mounted.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}
