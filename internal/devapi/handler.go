package devapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/deskview/internal/repository"
)

const defaultMaxUpload = 10 << 20

// UserView is a list filtered to the calling user, such as the visits a
// host is hosting.
type UserView struct {
	Collection string `yaml:"collection"`
	// UserField holds the user ID a row belongs to.
	UserField string `yaml:"user_field"`
}

// Options configures the handler.
type Options struct {
	// Envelopes maps a collection to the key its list is wrapped in.
	Envelopes map[string]string
	// DefaultEnvelope wraps collections missing from Envelopes. Empty
	// serves a bare array.
	DefaultEnvelope string
	// Views maps "collection/name" paths to user-scoped lists.
	Views          map[string]UserView
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// DefaultOptions matches the collections of the built-in screen catalog.
func DefaultOptions() Options {
	return Options{
		Envelopes:       map[string]string{"projects": "data"},
		DefaultEnvelope: "items",
		Views: map[string]UserView{
			"visits/hosted": {Collection: "visits", UserField: "host_id"},
		},
	}
}

type contextKey int

const (
	tenantKey contextKey = iota
	userKey
)

// Handler serves fixture collections.
type Handler struct {
	store Store
	opts  Options
}

// NewHandler creates the router of the reference backend.
func NewHandler(store Store, opts Options) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	h := &Handler{store: store, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(tenantMiddleware)

	r.Get("/{collection}", h.handleList)
	r.Get("/{collection}/{key}", h.handleGet)
	r.Post("/{collection}/import", h.handleImport)
	return r
}

func tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
		if tenantID == "" {
			writeMessage(w, http.StatusUnauthorized, "missing X-Tenant-ID header")
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey, tenantID)
		ctx = context.WithValue(ctx, userKey, strings.TrimSpace(r.Header.Get("X-User-ID")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func valueOf(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	fixtures, err := h.store.ListFixtures(r.Context(), valueOf(r.Context(), tenantKey), collection)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeList(w, collection, fixtures)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	key := chi.URLParam(r, "key")
	tenantID := valueOf(r.Context(), tenantKey)

	if v, ok := h.opts.Views[collection+"/"+key]; ok {
		h.handleView(w, r, v)
		return
	}

	fixture, err := h.store.GetFixture(r.Context(), tenantID, collection, key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fixture.Payload)
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request, v UserView) {
	fixtures, err := h.store.ListFixtures(r.Context(), valueOf(r.Context(), tenantKey), v.Collection)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	userID := valueOf(r.Context(), userKey)
	mine := fixtures[:0:0]
	for _, f := range fixtures {
		if userID != "" && stringify(f.Payload[v.UserField]) == userID {
			mine = append(mine, f)
		}
	}
	h.writeList(w, v.Collection, mine)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	tenantID := valueOf(r.Context(), tenantKey)

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		writeMessage(w, http.StatusBadRequest, "upload must be multipart/form-data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	items, err := ParseImport(file)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.store.PutFixtures(r.Context(), tenantID, collection, items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.opts.Logger.Info("fixtures imported", "tenant_id", tenantID, "collection", collection, "filename", header.Filename, "count", n)
	writeJSON(w, http.StatusOK, map[string]any{"imported": n})
}

func (h *Handler) writeList(w http.ResponseWriter, collection string, fixtures []Fixture) {
	rows := make([]map[string]any, 0, len(fixtures))
	for _, f := range fixtures {
		rows = append(rows, f.Payload)
	}
	envelope, ok := h.opts.Envelopes[collection]
	if !ok {
		envelope = h.opts.DefaultEnvelope
	}
	if envelope == "" {
		writeJSON(w, http.StatusOK, rows)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{envelope: rows})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Not Found")
	case errors.Is(err, repository.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		h.opts.Logger.Error("devapi request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
