package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/deskview/internal/domain/activity"
	"github.com/rpggio/deskview/internal/domain/caselookup"
	"github.com/rpggio/deskview/internal/domain/screen"
	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/view"
)

const defaultMaxUpload = 10 << 20

// ScreenService defines screen operations needed by the API.
type ScreenService interface {
	Home(role identity.Role) (screen.Home, error)
	Visible(role identity.Role) ([]screen.Descriptor, error)
	Open(ctx context.Context, sess identity.Session, screenID string) (*screen.Instance, error)
	Refresh(ctx context.Context, sess identity.Session, screenID string) (*screen.Instance, error)
	Import(ctx context.Context, sess identity.Session, screenID, filename string, content io.Reader) (*screen.Instance, screen.ImportResult, error)
	Close(sess identity.Session, screenID string) error
}

// CaseService defines case lookup operations needed by the API.
type CaseService interface {
	Lookup(ctx context.Context, sess identity.Session, number string) (caselookup.Result, error)
}

// ActivityService defines activity log operations needed by the API.
type ActivityService interface {
	Recent(ctx context.Context, sess identity.Session, opts activity.ListOptions) ([]activity.Entry, error)
}

// Services contains the domain services behind the API. Activity is
// optional.
type Services struct {
	Screens  ScreenService
	Cases    CaseService
	Activity ActivityService
}

// Options configures the router.
type Options struct {
	Resolver identity.Resolver
	Logger   *slog.Logger
	// PageSize applies when a view request has no size parameter.
	PageSize int
	// MaxUploadBytes caps import bodies.
	MaxUploadBytes int64
	// MCP, when set, is mounted at /mcp. It authenticates on its own.
	MCP http.Handler
}

// Server wires HTTP handlers.
type Server struct {
	services Services
	opts     Options
}

// NewServer creates an HTTP server router with middleware.
func NewServer(services Services, opts Options) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	srv := &Server{services: services, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
		r.Handle("/mcp/*", opts.MCP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(opts.Resolver))

		r.Get("/home", srv.handleHome)
		r.Get("/screens", srv.handleScreens)
		r.Route("/screens/{id}", func(r chi.Router) {
			r.Get("/view", srv.handleView)
			r.Post("/filters", srv.handleSetFilter)
			r.Delete("/filters", srv.handleClearFilters)
			r.Post("/search", srv.handleSearch)
			r.Post("/sort", srv.handleToggleSort)
			r.Post("/refresh", srv.handleRefresh)
			r.Post("/import", srv.handleImport)
			r.Delete("/", srv.handleClose)
		})
		r.Get("/cases", srv.handleCaseQuery)
		r.Get("/cases/{number}", srv.handleCasePath)
		if services.Activity != nil {
			r.Get("/activity", srv.handleActivity)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	home, err := s.services.Screens.Home(sess.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, home)
}

func (s *Server) handleScreens(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	screens, err := s.services.Screens.Visible(sess.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, screens)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	s.withInstance(w, r, func(inst *screen.Instance) error {
		if !r.URL.Query().Has("order_by") {
			return nil
		}
		state, err := view.ParseOrder(inst.Screen.Schema, r.URL.Query().Get("order_by"))
		if err != nil {
			return err
		}
		inst.Controller.SetSort(state)
		return nil
	})
}

type filterRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.withInstance(w, r, func(inst *screen.Instance) error {
		if _, ok := inst.Screen.Schema.Field(req.Key); !ok {
			return invalidInput("unknown filter field %q", req.Key)
		}
		inst.Controller.SetFilter(req.Key, req.Value)
		return nil
	})
}

func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	s.withInstance(w, r, func(inst *screen.Instance) error {
		inst.Controller.ClearFilters()
		return nil
	})
}

type searchRequest struct {
	Term string `json:"term"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.withInstance(w, r, func(inst *screen.Instance) error {
		inst.Controller.SetSearchTerm(req.Term)
		return nil
	})
}

type sortRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleToggleSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.withInstance(w, r, func(inst *screen.Instance) error {
		if _, ok := inst.Screen.Schema.Field(req.Key); !ok {
			return invalidInput("unknown sort field %q", req.Key)
		}
		inst.Controller.ToggleSort(req.Key)
		return nil
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	page, err := s.pageFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	inst, err := s.services.Screens.Refresh(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, inst.View(page))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	page, err := s.pageFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeError(w, invalidInput("parse upload: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, invalidInput("missing file field"))
		return
	}
	defer file.Close()

	inst, result, err := s.services.Screens.Import(r.Context(), sess, chi.URLParam(r, "id"), header.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	v := inst.View(page)
	v.Import = &result
	writeResult(w, v)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := s.services.Screens.Close(sess, id); err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, map[string]any{"id": id, "closed": true})
}

func (s *Server) handleCaseQuery(w http.ResponseWriter, r *http.Request) {
	s.lookupCase(w, r, r.URL.Query().Get("number"))
}

func (s *Server) handleCasePath(w http.ResponseWriter, r *http.Request) {
	number, err := url.PathUnescape(chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, invalidInput("case number: %v", err))
		return
	}
	s.lookupCase(w, r, number)
}

func (s *Server) lookupCase(w http.ResponseWriter, r *http.Request, number string) {
	sess, _ := SessionFromContext(r.Context())
	result, err := s.services.Cases.Lookup(r.Context(), sess, number)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, result)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	q := r.URL.Query()
	opts := activity.ListOptions{
		UserID: q.Get("user"),
		Screen: q.Get("screen"),
	}
	if raw := q.Get("type"); raw != "" {
		t := activity.Type(raw)
		opts.Type = &t
	}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, invalidInput("%s must be an integer", name))
			return
		}
		*dst = n
	}

	entries, err := s.services.Activity.Recent(r.Context(), sess, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, entries)
}

// withInstance opens the screen named in the route, applies change and
// writes the resulting view.
func (s *Server) withInstance(w http.ResponseWriter, r *http.Request, change func(*screen.Instance) error) {
	sess, _ := SessionFromContext(r.Context())
	page, err := s.pageFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	inst, err := s.services.Screens.Open(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := change(inst); err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, inst.View(page))
}

func (s *Server) pageFrom(r *http.Request) (view.Page, error) {
	q := r.URL.Query()
	page := view.Page{Number: 1, Size: s.opts.PageSize}
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return view.Page{}, invalidInput("page must be a positive integer")
		}
		page.Number = n
	}
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return view.Page{}, invalidInput("size must be a non-negative integer")
		}
		page.Size = n
	}
	return page, nil
}
